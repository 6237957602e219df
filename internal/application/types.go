package application

import (
	"errors"
	"time"

	"github.com/viralforge/storefront/internal/domain"
	"github.com/viralforge/storefront/internal/pagedata"
)

type Config struct {
	ServiceName      string
	LoginPath        string
	RenderTimeout    time.Duration
	GlobalsCacheTTL  time.Duration
	ProductCacheTTL  time.Duration
	OrderViewedEvent string
}

// ErrorKind separates the failures a page shows differently.
type ErrorKind string

const (
	ErrorKindNone          ErrorKind = ""
	ErrorKindNotFound      ErrorKind = "not_found"
	ErrorKindNotAuthorized ErrorKind = "not_authorized"
	ErrorKindFetchFailed   ErrorKind = "fetch_failed"
)

func (k ErrorKind) Message() string {
	switch k {
	case ErrorKindNotFound:
		return "We couldn't find that order."
	case ErrorKindNotAuthorized:
		return "You are not allowed to view this order."
	case ErrorKindFetchFailed:
		return "Something went wrong loading this order. Please try again."
	default:
		return ""
	}
}

func classifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, domain.ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, domain.ErrNotAuthorized):
		return ErrorKindNotAuthorized
	default:
		return ErrorKindFetchFailed
	}
}

// OrderPage is what the order detail page renders. Exactly one of
// RedirectTo, Loading, ErrorKind or Order describes the outcome.
type OrderPage struct {
	ID         string
	Phase      pagedata.Phase
	Loading    bool
	Order      *domain.Order
	Total      int64
	ErrorKind  ErrorKind
	RedirectTo string
}

type OrdersPage struct {
	Phase      pagedata.Phase
	Loading    bool
	Orders     []OrderSummary
	ErrorKind  ErrorKind
	RedirectTo string
}

type OrderSummary struct {
	ID        string
	ItemCount int
	Total     int64
	CreatedAt time.Time
}

type CartPage struct {
	Authenticated bool
	Cart          domain.Cart
	Total         int64
}

// StaticPaths is the build-time contract for pre-rendered pages: the listed
// paths are built ahead of time and anything else renders on demand when
// Fallback is set.
type StaticPaths struct {
	Paths    []string `json:"paths"`
	Fallback bool     `json:"fallback"`
}
