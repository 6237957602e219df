package http

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/viralforge/storefront/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"order", "orders", "product", "cart", "login", "error"}

var templateFuncs = template.FuncMap{
	"usd":      domain.FormatUSD,
	"subtotal": domain.LineSubtotal,
	"image": func(ref domain.MediaRef) *domain.Media {
		if ref.Media == nil || ref.Media.URL == "" {
			return nil
		}
		return ref.Media
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("January 2, 2006")
	},
}

// Renderer holds one template set per page, each sharing the layout.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	layout, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages}, nil
}

type pageView struct {
	Title     string
	Globals   domain.Globals
	User      *domain.User
	RequestID string
	// Refresh asks the browser to reload after this many seconds; zero disables it.
	Refresh int
	Body    any
}

// errTemplate marks failures that happen before any byte of the response is
// written, so the caller can still send an error response.
var errTemplate = errors.New("page template failed")

// render executes into a buffer first so a template failure still yields a
// clean error response. A write failure after the header is only reported.
func (rd *Renderer) render(w http.ResponseWriter, status int, page string, view pageView) error {
	t, ok := rd.pages[page]
	if !ok {
		return fmt.Errorf("%w: unknown page %q", errTemplate, page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", view); err != nil {
		return fmt.Errorf("%w: render %s: %v", errTemplate, page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write %s: %w", page, err)
	}
	return nil
}
