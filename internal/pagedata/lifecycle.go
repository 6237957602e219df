// Package pagedata drives the fetch, derive and render lifecycle of a page
// that shows one remote resource to an authenticated user.
//
// A Lifecycle reacts to (identifier, auth) input changes:
//
//	Idle -> Loading -> Loaded | Failed
//	any  -> Unauthenticated (terminal, navigates to the login page once)
//
// Every fetch carries a generation number and its own cancellable context.
// Inputs that supersede a fetch cancel it, and a completion whose generation
// is no longer current is discarded.
package pagedata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/viralforge/storefront/internal/domain"
)

const DefaultLoginPath = "/login?unauthorized=account"

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseFailed
	PhaseUnauthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseFailed:
		return "failed"
	case PhaseUnauthenticated:
		return "unauthenticated"
	default:
		return "idle"
	}
}

// State is an immutable snapshot. Derived is recomputed from Data on every
// transition, including transitions that clear Data.
type State[T any, D any] struct {
	Phase   Phase
	ID      string
	Loading bool
	Err     error
	Data    *T
	Derived D
	Version uint64
}

type FetchFunc[T any] func(ctx context.Context, id string, auth domain.AuthState) (T, error)

type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Observer receives fetch outcomes, typically for metrics.
type Observer interface {
	FetchCompleted(outcome string, elapsed time.Duration)
	StaleDiscarded()
}

type Options[T any, D any] struct {
	Fetch     FetchFunc[T]
	Derive    func(data *T) D
	Navigator Navigator
	LoginPath string
	OnChange  func(State[T, D])
	Observer  Observer
	Logger    *slog.Logger
}

type Lifecycle[T any, D any] struct {
	opts Options[T, D]
	base context.Context

	mu        sync.Mutex
	state     State[T, D]
	auth      domain.AuthState
	key       string
	gen       uint64
	cancel    context.CancelFunc
	settled   chan struct{}
	navigated bool
	closed    bool

	notifyMu sync.Mutex
	notified uint64

	wg sync.WaitGroup
}

func New[T any, D any](ctx context.Context, opts Options[T, D]) (*Lifecycle[T, D], error) {
	if opts.Fetch == nil {
		return nil, fmt.Errorf("%w: fetch function is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(opts.LoginPath) == "" {
		opts.LoginPath = DefaultLoginPath
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	l := &Lifecycle[T, D]{opts: opts, base: ctx, auth: domain.Unresolved()}
	l.state = State[T, D]{Phase: PhaseIdle, Derived: l.derive(nil)}
	return l, nil
}

func (l *Lifecycle[T, D]) State() State[T, D] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle[T, D]) SetID(id string) {
	l.mu.Lock()
	auth := l.auth
	l.mu.Unlock()
	l.Update(id, auth)
}

func (l *Lifecycle[T, D]) SetAuth(auth domain.AuthState) {
	l.mu.Lock()
	id := l.state.ID
	l.mu.Unlock()
	l.Update(id, auth)
}

// Update applies new inputs. Repeating the inputs of the current fetch or
// result is a no-op, so at most one fetch per (id, auth context) is issued.
func (l *Lifecycle[T, D]) Update(id string, auth domain.AuthState) {
	id = strings.TrimSpace(id)

	l.mu.Lock()
	if l.closed || l.state.Phase == PhaseUnauthenticated {
		l.mu.Unlock()
		return
	}
	l.auth = auth

	var (
		navigate bool
		fetch    func()
	)
	switch {
	case auth.Status == domain.AuthUnauthenticated:
		l.cancelLocked()
		l.key = ""
		l.transitionLocked(PhaseUnauthenticated, id, nil, nil)
		if !l.navigated {
			l.navigated = true
			navigate = true
		}
	case !auth.IsAuthenticated() || id == "":
		l.cancelLocked()
		l.key = ""
		if l.state.Phase != PhaseIdle || l.state.ID != id {
			l.transitionLocked(PhaseIdle, id, nil, nil)
		}
	default:
		key := id + "\x00" + auth.ContextKey()
		if key == l.key {
			l.mu.Unlock()
			return
		}
		l.cancelLocked()
		l.key = key
		ctx, cancel := context.WithCancel(l.base)
		l.cancel = cancel
		gen := l.gen
		l.transitionLocked(PhaseLoading, id, nil, nil)
		l.wg.Add(1)
		fetch = func() { go l.run(ctx, gen, id, auth) }
	}
	snapshot := l.state
	l.mu.Unlock()

	l.notify(snapshot)
	if fetch != nil {
		fetch()
	}
	if navigate && l.opts.Navigator != nil {
		l.opts.Logger.Info("page requires authentication, redirecting",
			"module", "pagedata",
			"operation", "navigate",
			"target", l.opts.LoginPath,
		)
		l.opts.Navigator.Navigate(l.opts.LoginPath)
	}
}

func (l *Lifecycle[T, D]) run(ctx context.Context, gen uint64, id string, auth domain.AuthState) {
	defer l.wg.Done()
	started := time.Now()
	data, err := l.opts.Fetch(ctx, id, auth)
	elapsed := time.Since(started)

	l.mu.Lock()
	if gen != l.gen || l.closed {
		l.mu.Unlock()
		l.opts.Logger.Debug("discarding stale page fetch",
			"module", "pagedata",
			"operation", "fetch",
			"outcome", "stale",
			"id", id,
		)
		if l.opts.Observer != nil {
			l.opts.Observer.StaleDiscarded()
		}
		return
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		l.transitionLocked(PhaseFailed, id, nil, err)
	} else {
		l.transitionLocked(PhaseLoaded, id, &data, nil)
	}
	if l.opts.Observer != nil {
		l.opts.Observer.FetchCompleted(outcome, elapsed)
	}
	snapshot := l.state
	l.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		l.opts.Logger.Warn("page fetch failed",
			"module", "pagedata",
			"operation", "fetch",
			"outcome", "failure",
			"id", id,
			"error", err.Error(),
		)
	}
	l.notify(snapshot)
}

// Wait blocks until no fetch is in flight and returns the settled state. If
// ctx ends first it returns the current state together with ctx.Err().
func (l *Lifecycle[T, D]) Wait(ctx context.Context) (State[T, D], error) {
	for {
		l.mu.Lock()
		if !l.state.Loading || l.settled == nil {
			s := l.state
			l.mu.Unlock()
			return s, nil
		}
		ch := l.settled
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return l.State(), ctx.Err()
		}
	}
}

// Close cancels any in-flight fetch and waits for its goroutine to exit.
// Later updates are ignored.
func (l *Lifecycle[T, D]) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.cancelLocked()
	if l.state.Loading {
		l.transitionLocked(PhaseIdle, l.state.ID, nil, nil)
	}
	l.closed = true
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Lifecycle[T, D]) cancelLocked() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
}

func (l *Lifecycle[T, D]) transitionLocked(phase Phase, id string, data *T, err error) {
	wasLoading := l.state.Loading
	loading := phase == PhaseLoading
	l.state = State[T, D]{
		Phase:   phase,
		ID:      id,
		Loading: loading,
		Err:     err,
		Data:    data,
		Derived: l.derive(data),
		Version: l.state.Version + 1,
	}
	switch {
	case loading && !wasLoading:
		l.settled = make(chan struct{})
	case !loading && wasLoading && l.settled != nil:
		close(l.settled)
		l.settled = nil
	}
}

func (l *Lifecycle[T, D]) derive(data *T) D {
	if l.opts.Derive == nil {
		var zero D
		return zero
	}
	return l.opts.Derive(data)
}

// notify delivers snapshots in version order; a snapshot overtaken by a newer
// one is dropped.
func (l *Lifecycle[T, D]) notify(s State[T, D]) {
	if l.opts.OnChange == nil {
		return
	}
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	if s.Version <= l.notified {
		return
	}
	l.notified = s.Version
	l.opts.OnChange(s)
}
