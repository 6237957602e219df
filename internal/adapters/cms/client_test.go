package cms

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/viralforge/storefront/internal/domain"
	"github.com/viralforge/storefront/internal/pagedata"
	"github.com/viralforge/storefront/internal/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func authed() domain.AuthState {
	return domain.Authenticated(domain.User{ID: "u1"}, "token-1")
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestGetOrderForwardsCredentialAndDecodes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		cookie, err := r.Cookie(DefaultCookieName)
		if err != nil || cookie.Value != "token-1" {
			t.Errorf("expected credential cookie, got %v %v", cookie, err)
		}
		_, _ = io.WriteString(w, `{"id":42,"orderedBy":{"id":"u1"},"items":[
			{"product":{"id":"p1","title":"Mug","price":1000},"quantity":2},
			{"product":"p2","quantity":1}
		]}`)
	})

	order, err := NewOrders(client).GetOrder(context.Background(), "42", authed())
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.ID != "42" || order.OrderedBy != "u1" || len(order.Items) != 2 {
		t.Fatalf("unexpected order: %+v", order)
	}
	if got := domain.OrderTotal(&order); got != 2000 {
		t.Fatalf("expected total 2000, got %d", got)
	}
	if order.Items[1].Product.Resolved() || order.Items[1].Product.ID != "p2" {
		t.Fatalf("expected unresolved product p2, got %+v", order.Items[1].Product)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnauthorized, domain.ErrNotAuthorized},
		{http.StatusForbidden, domain.ErrNotAuthorized},
		{http.StatusInternalServerError, domain.ErrFetchFailed},
		{http.StatusTeapot, domain.ErrFetchFailed},
	}
	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := NewOrders(client).GetOrder(context.Background(), "42", authed())
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestTransportFailureIsFetchFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client, err := NewClient(Config{BaseURL: url, Timeout: time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := NewOrders(client).GetOrder(context.Background(), "42", authed()); !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("expected fetch failed, got %v", err)
	}
}

func TestListOrdersDecodesDocs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"docs":[{"id":"a","items":[]},{"id":"b","items":[]}],"totalDocs":2}`)
	})
	orders, err := NewOrders(client).ListOrders(context.Background(), authed())
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "a" || orders[1].ID != "b" {
		t.Fatalf("unexpected orders: %+v", orders)
	}
}

func TestConcurrentIdenticalFetchesShareOneRequest(t *testing.T) {
	var hits atomic.Int64
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		_, _ = io.WriteString(w, `{"id":"42","items":[]}`)
	})
	orders := NewOrders(client)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orders.GetOrder(context.Background(), "42", authed())
			errs <- err
		}()
	}
	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Give the remaining callers time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected one backend request, got %d", got)
	}
}

func TestCancelledCallerStopsWaiting(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = io.WriteString(w, `{"id":"42"}`)
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := NewOrders(client).GetOrder(ctx, "42", authed())
	if !errors.Is(err, domain.ErrFetchFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected fetch failed wrapping deadline, got %v", err)
	}
}

func waitForWaiters(t *testing.T, c *Client, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		got := 0
		for _, f := range c.flights {
			got += f.waiters
		}
		c.mu.Unlock()
		if got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d waiters on the shared request", want)
}

func TestCancelledSoleCallerAbortsBackendRequest(t *testing.T) {
	started := make(chan struct{})
	aborted := make(chan struct{})
	client := newTestClient(t, func(_ http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
		close(aborted)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		_, err := NewOrders(client).GetOrder(ctx, "42", authed())
		errCh <- err
	}()
	<-started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled fetch, got %v", err)
	}
	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatalf("backend request still open after its only caller left")
	}
}

func TestRemainingWaiterKeepsSharedRequestAlive(t *testing.T) {
	var hits atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			_, _ = io.WriteString(w, `{"id":"42","items":[]}`)
		case <-r.Context().Done():
		}
	})
	orders := NewOrders(client)

	leaving, cancel := context.WithCancel(context.Background())
	defer cancel()
	leftErr := make(chan error, 1)
	go func() {
		_, err := orders.GetOrder(leaving, "42", authed())
		leftErr <- err
	}()
	<-started

	var got domain.Order
	stayErr := make(chan error, 1)
	go func() {
		o, err := orders.GetOrder(context.Background(), "42", authed())
		got = o
		stayErr <- err
	}()
	waitForWaiters(t, client, 2)

	cancel()
	if err := <-leftErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the leaving caller to be cancelled, got %v", err)
	}
	close(release)
	if err := <-stayErr; err != nil {
		t.Fatalf("expected the remaining caller to get the order, got %v", err)
	}
	if got.ID != "42" {
		t.Fatalf("expected order 42, got %q", got.ID)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected one backend request, got %d", n)
	}
}

func TestSupersededPageFetchAbortsBackendRequest(t *testing.T) {
	aborted := make(chan string, 2)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/orders/")
		if id == "43" {
			_, _ = io.WriteString(w, `{"id":"43","items":[]}`)
			return
		}
		<-r.Context().Done()
		aborted <- id
	})

	lc, err := pagedata.New(context.Background(), pagedata.Options[domain.Order, int64]{
		Fetch:  NewOrders(client).GetOrder,
		Derive: domain.OrderTotal,
	})
	if err != nil {
		t.Fatalf("new lifecycle: %v", err)
	}
	defer lc.Close()

	lc.Update("42", authed())
	waitForWaiters(t, client, 1)
	lc.SetID("43")
	select {
	case id := <-aborted:
		if id != "42" {
			t.Fatalf("expected the request for 42 to be aborted, got %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("superseded request for 42 still open on the backend")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := lc.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if s.Data == nil || s.Data.ID != "43" {
		t.Fatalf("expected order 43, got %+v", s)
	}
}

func TestResolveSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cookie, _ := r.Cookie(DefaultCookieName)
		switch {
		case cookie == nil:
			_, _ = io.WriteString(w, `{"user":null}`)
		case cookie.Value == "good":
			_, _ = io.WriteString(w, `{"user":{"id":7,"email":"jane@example.com","name":"Jane"},"exp":1}`)
		case cookie.Value == "expired":
			_, _ = io.WriteString(w, `{"user":null}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	sessions := NewSessions(client)

	state, err := sessions.ResolveSession(context.Background(), "good")
	if err != nil || !state.IsAuthenticated() || state.User.ID != "7" || state.Credential != "good" {
		t.Fatalf("expected authenticated user 7, got %+v err=%v", state, err)
	}
	for _, credential := range []string{"", "expired", "forged"} {
		state, err := sessions.ResolveSession(context.Background(), credential)
		if err != nil || state.Status != domain.AuthUnauthenticated {
			t.Fatalf("credential %q: expected unauthenticated, got %+v err=%v", credential, state, err)
		}
	}
}

func TestResolveSessionTransportFailureIsUnresolved(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	state, err := NewSessions(client).ResolveSession(context.Background(), "good")
	if err == nil || state.Status != domain.AuthUnresolved {
		t.Fatalf("expected unresolved with error, got %+v err=%v", state, err)
	}
}

func TestGraphQLReturnsData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != DefaultGraphQLPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"slug":"mug"`) {
			t.Errorf("expected variables in body, got %s", body)
		}
		_, _ = io.WriteString(w, `{"data":{"Products":{"docs":[{"id":"p1"}]}}}`)
	})
	data, err := NewGraphQL(client, "").Query(context.Background(), ports.GraphQLRequest{
		Query:     "query Product($slug: String) { Products { docs { id } } }",
		Variables: map[string]any{"slug": "mug"},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if string(data) != `{"Products":{"docs":[{"id":"p1"}]}}` {
		t.Fatalf("unexpected data %s", data)
	}
}

func TestGraphQLErrorsAreClassified(t *testing.T) {
	cases := map[string]error{
		`{"errors":[{"message":"You are not allowed","extensions":{"statusCode":403}}],"data":null}`: domain.ErrNotAuthorized,
		`{"errors":[{"message":"Not Found","extensions":{"statusCode":404}}]}`:                       domain.ErrNotFound,
		`{"errors":[{"message":"Cannot query field"}]}`:                                                domain.ErrFetchFailed,
		`{"data":null}`: domain.ErrFetchFailed,
		`not json`:      domain.ErrFetchFailed,
	}
	for payload, want := range cases {
		if _, err := decodeGraphQL([]byte(payload)); !errors.Is(err, want) {
			t.Fatalf("payload %s: expected %v, got %v", payload, want, err)
		}
	}
}

func TestGraphQLRejectsEmptyQuery(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://cms.invalid"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := NewGraphQL(client, "graphql").Query(context.Background(), ports.GraphQLRequest{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
