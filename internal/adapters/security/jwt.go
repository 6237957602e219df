package security

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viralforge/storefront/internal/domain"
	"github.com/viralforge/storefront/internal/ports"
)

// SessionVerifier checks CMS session tokens locally. The CMS signs them with
// HS256 using its shared secret, so no round trip is needed for valid tokens.
type SessionVerifier struct {
	secret     []byte
	collection string
	leeway     time.Duration
	nowFn      func() time.Time
}

func NewSessionVerifier(secret, collection string) (*SessionVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &SessionVerifier{
		secret:     []byte(secret),
		collection: strings.TrimSpace(collection),
		leeway:     30 * time.Second,
		nowFn:      time.Now,
	}, nil
}

type sessionClaims struct {
	ID         any    `json:"id"`
	Email      string `json:"email"`
	Collection string `json:"collection"`
	jwt.RegisteredClaims
}

func (v *SessionVerifier) Verify(raw string) (domain.User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.User{}, fmt.Errorf("%w: missing session token", domain.ErrUnauthenticated)
	}
	parsed, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.nowFn),
	)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return domain.User{}, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthenticated)
	}
	if v.collection != "" && claims.Collection != "" && claims.Collection != v.collection {
		return domain.User{}, fmt.Errorf("%w: token issued for collection %q", domain.ErrUnauthenticated, claims.Collection)
	}
	id := claimID(claims.ID)
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return domain.User{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}
	return domain.User{ID: id, Email: claims.Email}, nil
}

// claimID accepts the numeric ids some databases produce as well as strings.
func claimID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

var _ ports.TokenVerifier = (*SessionVerifier)(nil)
