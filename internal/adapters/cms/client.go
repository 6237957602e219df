// Package cms talks to the content/commerce backend over REST and GraphQL.
package cms

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/viralforge/storefront/internal/domain"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCookieName = "payload-token"
	maxBodyBytes      = 8 << 20
	maxErrorBodyBytes = 64 << 10
)

type Config struct {
	BaseURL    string
	CookieName string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is shared by all requests. Identical GETs issued concurrently with
// the same credential share one round trip.
type Client struct {
	baseURL    string
	cookieName string
	httpClient *http.Client
	logger     *slog.Logger
	group      singleflight.Group

	mu      sync.Mutex
	seq     uint64
	flights map[string]*flight
}

// flight is one shared round trip. Its context is cancelled once every
// waiter has left, whether or not the request finished.
type flight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: cms base url is required", domain.ErrInvalidInput)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	cookie := strings.TrimSpace(cfg.CookieName)
	if cookie == "" {
		cookie = DefaultCookieName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    base,
		cookieName: cookie,
		httpClient: httpClient,
		logger:     logger.With("module", "cms.client", "layer", "adapter"),
		flights:    make(map[string]*flight),
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// get fetches path with the credential attached and returns the body of a
// 2xx response. Non-2xx statuses are classified into domain errors.
func (c *Client) get(ctx context.Context, path, credential string) ([]byte, error) {
	return c.shared(ctx, "GET\x00"+path+"\x00"+credentialKey(credential), func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, http.MethodGet, path, credential, nil)
	})
}

// shared runs fn once per key among concurrent callers. The shared request
// outlives any single caller but is cancelled when the last one stops
// waiting; a cancelled caller returns immediately.
func (c *Client) shared(ctx context.Context, key string, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	f, ch := c.join(ctx, key, fn)
	defer c.leave(key, f)

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrFetchFailed, ctx.Err())
	}
}

func (c *Client) join(ctx context.Context, key string, fn func(ctx context.Context) ([]byte, error)) (*flight, <-chan singleflight.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flights[key]
	if !ok {
		c.seq++
		// Values such as the request id carry over; cancellation does not.
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{key: fmt.Sprintf("%s\x00%d", key, c.seq), ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	ch := c.group.DoChan(f.key, func() (any, error) {
		defer c.finish(key, f)
		return fn(f.ctx)
	})
	return f, ch
}

// finish retires a completed flight so later callers start a fresh request.
func (c *Client) finish(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flights[key] == f {
		delete(c.flights, key)
	}
}

func (c *Client) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	if c.flights[key] == f {
		delete(c.flights, key)
	}
	f.cancel()
	c.group.Forget(f.key)
}

func (c *Client) do(ctx context.Context, method, path, credential string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrInvalidInput, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: credential})
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "cms request failed",
			"operation", "request",
			"outcome", "failure",
			"method", method,
			"path", path,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrFetchFailed, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		c.logger.InfoContext(ctx, "cms request rejected",
			"operation", "request",
			"outcome", "rejected",
			"method", method,
			"path", path,
			"status_code", resp.StatusCode,
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return nil, classifyStatus(resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrFetchFailed, err)
	}
	if len(raw) > maxBodyBytes {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", domain.ErrFetchFailed, maxBodyBytes)
	}
	return raw, nil
}

func classifyStatus(status int, body string) error {
	if len(body) > 200 {
		body = body[:200] + "...(truncated)"
	}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", domain.ErrNotFound, status)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", domain.ErrNotAuthorized, status)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", domain.ErrFetchFailed, status, body)
	default:
		return fmt.Errorf("%w: unexpected status %d: %s", domain.ErrFetchFailed, status, body)
	}
}

// credentialKey keeps raw tokens out of singleflight keys.
func credentialKey(credential string) string {
	if credential == "" {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
