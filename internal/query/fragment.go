// Package query composes GraphQL documents from named, reusable fragments.
//
// Templates embed other fragments with ${NAME} placeholders. A Registry parses
// every template into a small tree of text and reference nodes when it is
// registered, validates references and cycles once in Seal, and afterwards
// renders documents without further checks.
package query

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/viralforge/storefront/internal/domain"
)

type node struct {
	text string
	ref  string
}

func (n node) isRef() bool { return n.ref != "" }

// Fragment is a parsed template. It is immutable once registered.
type Fragment struct {
	Name     string
	Template string
	nodes    []node
}

// References lists the fragment names this fragment embeds directly, in order
// of first appearance.
func (f *Fragment) References() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, n := range f.nodes {
		if n.isRef() && !seen[n.ref] {
			seen[n.ref] = true
			out = append(out, n.ref)
		}
	}
	return out
}

func parse(name, template string) *Fragment {
	f := &Fragment{Name: name, Template: template}
	rest := template
	var text strings.Builder
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			text.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start+2:], '}')
		if end < 0 {
			text.WriteString(rest)
			break
		}
		ref := strings.TrimSpace(rest[start+2 : start+2+end])
		if !isIdentifier(ref) {
			text.WriteString(rest[:start+2+end+1])
			rest = rest[start+2+end+1:]
			continue
		}
		text.WriteString(rest[:start])
		if text.Len() > 0 {
			f.nodes = append(f.nodes, node{text: text.String()})
			text.Reset()
		}
		f.nodes = append(f.nodes, node{ref: ref})
		rest = rest[start+2+end+1:]
	}
	if text.Len() > 0 {
		f.nodes = append(f.nodes, node{text: text.String()})
	}
	return f
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// Registry holds named fragments. Register everything first, then Seal.
type Registry struct {
	mu        sync.RWMutex
	fragments map[string]*Fragment
	rendered  map[string]string
	sealed    bool
}

func NewRegistry() *Registry {
	return &Registry{fragments: map[string]*Fragment{}}
}

func (r *Registry) Register(name, template string) error {
	name = strings.TrimSpace(name)
	if !isIdentifier(name) {
		return fmt.Errorf("%w: fragment name %q", domain.ErrInvalidInput, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%w: registry sealed, cannot register %q", domain.ErrInvalidInput, name)
	}
	if _, ok := r.fragments[name]; ok {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateFragment, name)
	}
	r.fragments[name] = parse(name, template)
	return nil
}

func (r *Registry) MustRegister(name, template string) {
	if err := r.Register(name, template); err != nil {
		panic(err)
	}
}

// Seal validates every fragment (unknown references, cycles) and freezes the
// registry. Sealing twice is a no-op.
func (r *Registry) Seal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return nil
	}
	memo := make(map[string]string, len(r.fragments))
	for _, name := range r.namesLocked() {
		if _, err := expand(r.fragments[name], r.fragments, nil, map[string]bool{}, memo); err != nil {
			return err
		}
	}
	r.rendered = memo
	r.sealed = true
	return nil
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Render returns the fully expanded text of a registered fragment.
func (r *Registry) Render(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.sealed {
		out, ok := r.rendered[name]
		if !ok {
			return "", fmt.Errorf("%w: %q", domain.ErrUnknownFragment, name)
		}
		return out, nil
	}
	f, ok := r.fragments[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownFragment, name)
	}
	return expand(f, r.fragments, nil, map[string]bool{}, map[string]string{})
}

func (r *Registry) MustRender(name string) string {
	out, err := r.Render(name)
	if err != nil {
		panic(err)
	}
	return out
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) Lookup(name string) (*Fragment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fragments[name]
	return f, ok
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.fragments))
	for name := range r.fragments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// expand renders f depth-first. onStack holds the fragments being expanded on
// the current path; meeting one again is a cycle.
func expand(f *Fragment, all map[string]*Fragment, path []string, onStack map[string]bool, memo map[string]string) (string, error) {
	if out, ok := memo[f.Name]; ok && f.Name != "" {
		return out, nil
	}
	if onStack[f.Name] {
		return "", fmt.Errorf("%w: %s", domain.ErrCyclicFragment, strings.Join(append(path, f.Name), " -> "))
	}
	onStack[f.Name] = true
	path = append(path, displayName(f.Name))
	defer delete(onStack, f.Name)

	var b strings.Builder
	for _, n := range f.nodes {
		if !n.isRef() {
			b.WriteString(n.text)
			continue
		}
		child, ok := all[n.ref]
		if !ok {
			return "", fmt.Errorf("%w: %q referenced from %q", domain.ErrUnknownFragment, n.ref, displayName(f.Name))
		}
		out, err := expand(child, all, path, onStack, memo)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	out := b.String()
	if f.Name != "" {
		memo[f.Name] = out
	}
	return out, nil
}

func displayName(name string) string {
	if name == "" {
		return "<template>"
	}
	return name
}

// Compose substitutes every ${NAME} placeholder in template with the text of
// the named fragment, recursively. It fails with domain.ErrUnknownFragment for
// an undefined name and domain.ErrCyclicFragment when a fragment would expand
// into itself.
func Compose(template string, fragments map[string]string) (string, error) {
	all := make(map[string]*Fragment, len(fragments))
	for name, body := range fragments {
		all[name] = parse(name, body)
	}
	return expand(parse("", template), all, nil, map[string]bool{}, map[string]string{})
}
