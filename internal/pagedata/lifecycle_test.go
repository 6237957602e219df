package pagedata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/viralforge/storefront/internal/domain"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type order struct {
	id    string
	total int64
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type countingObserver struct {
	completed atomic.Int64
	stale     atomic.Int64
}

func (o *countingObserver) FetchCompleted(string, time.Duration) { o.completed.Add(1) }
func (o *countingObserver) StaleDiscarded()                      { o.stale.Add(1) }

func user() domain.AuthState {
	return domain.Authenticated(domain.User{ID: "u1", Email: "jane@example.com"}, "token-1")
}

func deriveTotal(o *order) int64 {
	if o == nil {
		return 0
	}
	return o.total
}

func newLifecycle(t *testing.T, fetch FetchFunc[order], nav Navigator, obs Observer) *Lifecycle[order, int64] {
	t.Helper()
	l, err := New(context.Background(), Options[order, int64]{
		Fetch:     fetch,
		Derive:    deriveTotal,
		Navigator: nav,
		Observer:  obs,
	})
	if err != nil {
		t.Fatalf("new lifecycle: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func waitSettled(t *testing.T, l *Lifecycle[order, int64]) State[order, int64] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := l.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	return s
}

func TestNewRequiresFetch(t *testing.T) {
	if _, err := New(context.Background(), Options[order, int64]{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUnresolvedAuthStaysIdle(t *testing.T) {
	var calls atomic.Int64
	l := newLifecycle(t, func(context.Context, string, domain.AuthState) (order, error) {
		calls.Add(1)
		return order{}, nil
	}, nil, nil)

	l.Update("42", domain.Unresolved())
	s := waitSettled(t, l)
	if s.Phase != PhaseIdle || s.Loading {
		t.Fatalf("expected idle, got %s loading=%v", s.Phase, s.Loading)
	}
	l.Update("", user())
	if s := l.State(); s.Phase != PhaseIdle {
		t.Fatalf("expected idle for empty id, got %s", s.Phase)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no fetch, got %d", calls.Load())
	}
}

func TestAuthenticatedFetchLoadsAndDerives(t *testing.T) {
	obs := &countingObserver{}
	l := newLifecycle(t, func(_ context.Context, id string, auth domain.AuthState) (order, error) {
		if auth.Credential != "token-1" {
			t.Errorf("expected credential to be forwarded, got %q", auth.Credential)
		}
		return order{id: id, total: 2000}, nil
	}, nil, obs)

	l.Update("42", user())
	s := waitSettled(t, l)
	if s.Phase != PhaseLoaded || s.Data == nil || s.Data.id != "42" {
		t.Fatalf("expected loaded order 42, got %+v", s)
	}
	if s.Derived != 2000 {
		t.Fatalf("expected derived total 2000, got %d", s.Derived)
	}
	if obs.completed.Load() != 1 {
		t.Fatalf("expected one completed fetch, got %d", obs.completed.Load())
	}
}

func TestFetchFailureLeavesNoDataAndNotLoading(t *testing.T) {
	l := newLifecycle(t, func(context.Context, string, domain.AuthState) (order, error) {
		return order{}, domain.ErrFetchFailed
	}, nil, nil)

	l.Update("42", user())
	s := waitSettled(t, l)
	if s.Phase != PhaseFailed || s.Loading || s.Data != nil {
		t.Fatalf("expected failed without data, got %+v", s)
	}
	if !errors.Is(s.Err, domain.ErrFetchFailed) {
		t.Fatalf("expected fetch failed error, got %v", s.Err)
	}
	if s.Derived != 0 {
		t.Fatalf("expected cleared derived total, got %d", s.Derived)
	}
}

func TestRepeatedInputsIssueOneFetch(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	l := newLifecycle(t, func(ctx context.Context, id string, _ domain.AuthState) (order, error) {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
			return order{}, ctx.Err()
		}
		return order{id: id}, nil
	}, nil, nil)

	l.Update("42", user())
	l.Update("42", user())
	l.SetID("42")
	close(release)
	waitSettled(t, l)
	l.Update("42", user())
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single fetch, got %d", got)
	}
}

func TestUnauthenticatedRedirectsOnceAndIsTerminal(t *testing.T) {
	nav := &recordingNavigator{}
	started := make(chan struct{})
	l := newLifecycle(t, func(ctx context.Context, id string, _ domain.AuthState) (order, error) {
		close(started)
		<-ctx.Done()
		return order{id: id}, ctx.Err()
	}, nav, nil)

	l.Update("42", user())
	<-started
	l.SetAuth(domain.Unauthenticated())
	l.SetAuth(domain.Unauthenticated())
	l.Update("43", user())

	s := waitSettled(t, l)
	if s.Phase != PhaseUnauthenticated || s.Data != nil {
		t.Fatalf("expected terminal unauthenticated state, got %+v", s)
	}
	paths := nav.Paths()
	if len(paths) != 1 || paths[0] != "/login?unauthorized=account" {
		t.Fatalf("expected a single login redirect, got %v", paths)
	}
}

func TestLateSuccessAfterLogoutKeepsUnauthenticated(t *testing.T) {
	nav := &recordingNavigator{}
	obs := &countingObserver{}
	started := make(chan struct{})
	release := make(chan struct{})
	l := newLifecycle(t, func(context.Context, string, domain.AuthState) (order, error) {
		close(started)
		// Ignores cancellation and succeeds anyway.
		<-release
		return order{id: "42", total: 4200}, nil
	}, nav, obs)

	l.Update("42", user())
	<-started
	l.SetAuth(domain.Unauthenticated())
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for obs.stale.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if obs.stale.Load() != 1 || obs.completed.Load() != 0 {
		t.Fatalf("expected the late success to be discarded, stale=%d completed=%d", obs.stale.Load(), obs.completed.Load())
	}
	s := l.State()
	if s.Phase != PhaseUnauthenticated || s.Data != nil || s.Loading || s.Derived != 0 {
		t.Fatalf("late success overwrote the unauthenticated state: %+v", s)
	}
	if paths := nav.Paths(); len(paths) != 1 {
		t.Fatalf("expected a single login redirect, got %v", paths)
	}
}

func TestStaleCompletionIsDiscarded(t *testing.T) {
	obs := &countingObserver{}
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	l := newLifecycle(t, func(_ context.Context, id string, _ domain.AuthState) (order, error) {
		if id == "42" {
			close(slowStarted)
			// Ignores cancellation to model a response already on the wire.
			<-releaseSlow
			return order{id: "42", total: 4200}, nil
		}
		return order{id: id, total: 4300}, nil
	}, nil, obs)

	l.Update("42", user())
	<-slowStarted
	l.SetID("43")
	s := waitSettled(t, l)
	if s.Phase != PhaseLoaded || s.Data == nil || s.Data.id != "43" {
		t.Fatalf("expected order 43 loaded, got %+v", s)
	}

	close(releaseSlow)
	deadline := time.Now().Add(2 * time.Second)
	for obs.stale.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if obs.stale.Load() != 1 {
		t.Fatalf("expected the stale completion to be discarded")
	}
	if s := l.State(); s.Data == nil || s.Data.id != "43" || s.Derived != 4300 {
		t.Fatalf("stale response overwrote state: %+v", s)
	}
}

func TestSupersededFetchIsCancelled(t *testing.T) {
	cancelled := make(chan struct{})
	l := newLifecycle(t, func(ctx context.Context, id string, _ domain.AuthState) (order, error) {
		if id == "42" {
			<-ctx.Done()
			close(cancelled)
			return order{}, ctx.Err()
		}
		return order{id: id}, nil
	}, nil, nil)

	l.Update("42", user())
	l.SetID("43")
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected superseded fetch to be cancelled")
	}
	if s := waitSettled(t, l); s.Data == nil || s.Data.id != "43" {
		t.Fatalf("expected order 43, got %+v", s)
	}
}

func TestOnChangeObservesTransitionsInOrder(t *testing.T) {
	var (
		mu     sync.Mutex
		phases []Phase
	)
	l, err := New(context.Background(), Options[order, int64]{
		Fetch: func(_ context.Context, id string, _ domain.AuthState) (order, error) {
			return order{id: id}, nil
		},
		OnChange: func(s State[order, int64]) {
			mu.Lock()
			defer mu.Unlock()
			phases = append(phases, s.Phase)
		},
	})
	if err != nil {
		t.Fatalf("new lifecycle: %v", err)
	}

	l.Update("42", user())
	if _, err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	// Close joins the fetch goroutine, so its notification has been delivered.
	l.Close()
	mu.Lock()
	defer mu.Unlock()
	if len(phases) != 2 || phases[0] != PhaseLoading || phases[1] != PhaseLoaded {
		t.Fatalf("expected loading then loaded, got %v", phases)
	}
}

func TestWaitReturnsContextErrorWhileLoading(t *testing.T) {
	l := newLifecycle(t, func(ctx context.Context, _ string, _ domain.AuthState) (order, error) {
		<-ctx.Done()
		return order{}, ctx.Err()
	}, nil, nil)

	l.Update("42", user())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s, err := l.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !s.Loading || s.Phase != PhaseLoading {
		t.Fatalf("expected loading snapshot, got %+v", s)
	}
}
