package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/storefront/internal/application"
	"github.com/viralforge/storefront/internal/domain"
)

type HandlerConfig struct {
	CookieName string
	// LoginURL is where the login notice sends users to sign in, usually the
	// CMS admin login screen.
	LoginURL string
	Metrics  http.Handler
	Ready    func(ctx context.Context) error
}

type Handler struct {
	service    *application.Service
	renderer   *Renderer
	cookieName string
	loginURL   string
	metrics    http.Handler
	ready      func(ctx context.Context) error
}

func NewHandler(service *application.Service, renderer *Renderer, cfg HandlerConfig) *Handler {
	cookie := strings.TrimSpace(cfg.CookieName)
	if cookie == "" {
		cookie = "payload-token"
	}
	return &Handler{
		service:    service,
		renderer:   renderer,
		cookieName: cookie,
		loginURL:   strings.TrimSpace(cfg.LoginURL),
		metrics:    cfg.Metrics,
		ready:      cfg.Ready,
	}
}

type orderView struct {
	application.OrderPage
	ErrorMessage string
}

type ordersView struct {
	application.OrdersPage
	ErrorMessage string
}

type loginView struct {
	Message  string
	LoginURL string
}

type errorView struct {
	Heading string
	Message string
}

const loadingRefreshSeconds = 2

func (h *Handler) orderDetail(w http.ResponseWriter, r *http.Request) {
	auth := authFromContext(r.Context())
	page, err := h.service.LoadOrderPage(r.Context(), chi.URLParam(r, "id"), auth)
	if err != nil {
		h.renderError(w, r, "load_order_page", err)
		return
	}
	if page.RedirectTo != "" {
		http.Redirect(w, r, page.RedirectTo, http.StatusSeeOther)
		return
	}
	view := h.view(r, "Order", auth, orderView{OrderPage: page, ErrorMessage: page.ErrorKind.Message()})
	if page.Loading {
		view.Refresh = loadingRefreshSeconds
	}
	h.renderPage(w, r, statusForKind(page.ErrorKind), "order", view)
}

func (h *Handler) orderHistory(w http.ResponseWriter, r *http.Request) {
	auth := authFromContext(r.Context())
	page, err := h.service.ListOrders(r.Context(), auth)
	if err != nil {
		h.renderError(w, r, "list_orders", err)
		return
	}
	if page.RedirectTo != "" {
		http.Redirect(w, r, page.RedirectTo, http.StatusSeeOther)
		return
	}
	msg := ""
	if page.ErrorKind != application.ErrorKindNone {
		msg = "We couldn't load your orders. Please try again."
	}
	view := h.view(r, "Orders", auth, ordersView{OrdersPage: page, ErrorMessage: msg})
	if page.Loading {
		view.Refresh = loadingRefreshSeconds
	}
	h.renderPage(w, r, statusForKind(page.ErrorKind), "orders", view)
}

func (h *Handler) productDetail(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.renderError(w, r, "get_product", err)
		return
	}
	title := product.Title
	if product.Meta.Title != "" {
		title = product.Meta.Title
	}
	h.renderPage(w, r, http.StatusOK, "product", h.view(r, title, authFromContext(r.Context()), product))
}

func (h *Handler) cart(w http.ResponseWriter, r *http.Request) {
	auth := authFromContext(r.Context())
	page, err := h.service.GetCart(r.Context(), auth)
	if err != nil {
		h.renderError(w, r, "get_cart", err)
		return
	}
	h.renderPage(w, r, http.StatusOK, "cart", h.view(r, "Cart", auth, page))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	view := loginView{LoginURL: h.loginURL}
	if r.URL.Query().Get("unauthorized") == "account" {
		view.Message = "You must be logged in to access your account."
	}
	h.renderPage(w, r, http.StatusOK, "login", h.view(r, "Login", authFromContext(r.Context()), view))
}

func (h *Handler) orderStaticPaths(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.service.OrderStaticPaths())
}

func (h *Handler) productStaticPaths(w http.ResponseWriter, r *http.Request) {
	paths, err := h.service.ProductStaticPaths(r.Context())
	if err != nil {
		code, c, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "product_static_paths", code, c, err)
		writeError(w, code, c, msg)
		return
	}
	writeSuccess(w, http.StatusOK, paths)
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			logHTTPOperationError(r.Context(), "readyz", http.StatusServiceUnavailable, "NOT_READY", err)
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable")
			return
		}
	}
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
}

// view assembles the layout data. Navigation is best effort: a failed
// globals fetch renders the page without it.
func (h *Handler) view(r *http.Request, title string, auth domain.AuthState, body any) pageView {
	globals, err := h.service.Globals(r.Context())
	if err != nil {
		logHTTPOperationError(r.Context(), "load_globals", http.StatusBadGateway, "GLOBALS_UNAVAILABLE", err)
	}
	return pageView{
		Title:     title,
		Globals:   globals,
		User:      auth.User,
		RequestID: requestIDFromContext(r.Context()),
		Body:      body,
	}
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, status int, page string, view pageView) {
	err := h.renderer.render(w, status, page, view)
	switch {
	case err == nil:
	case errors.Is(err, errTemplate):
		logHTTPOperationError(r.Context(), "render_"+page, http.StatusInternalServerError, "RENDER_FAILED", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	default:
		// Headers are already sent; the client went away mid-body.
		logHTTPOperationError(r.Context(), "render_"+page, status, "WRITE_FAILED", err)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	code, c, msg := mapDomainError(err)
	if code == http.StatusUnauthorized {
		http.Redirect(w, r, h.service.LoginPath(), http.StatusSeeOther)
		return
	}
	logHTTPOperationError(r.Context(), operation, code, c, err)
	heading := "Something went wrong"
	if code == http.StatusNotFound {
		heading = "Not found"
	}
	h.renderPage(w, r, code, "error", h.view(r, heading, authFromContext(r.Context()), errorView{Heading: heading, Message: msg}))
}
