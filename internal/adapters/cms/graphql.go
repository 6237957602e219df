package cms

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/viralforge/storefront/internal/domain"
	"github.com/viralforge/storefront/internal/ports"
)

const DefaultGraphQLPath = "/api/graphql"

type GraphQL struct {
	client *Client
	path   string
}

func NewGraphQL(client *Client, path string) *GraphQL {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultGraphQLPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &GraphQL{client: client, path: path}
}

// Query posts the document and returns the "data" object. Concurrent identical
// documents with the same variables and credential share a round trip.
func (g *GraphQL) Query(ctx context.Context, req ports.GraphQLRequest) (json.RawMessage, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: graphql query is required", domain.ErrInvalidInput)
	}
	body, err := json.Marshal(map[string]any{
		"query":     req.Query,
		"variables": req.Variables,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode graphql request: %v", domain.ErrInvalidInput, err)
	}
	sum := sha256.Sum256(body)
	key := "POST\x00" + g.path + "\x00" + hex.EncodeToString(sum[:]) + "\x00" + credentialKey(req.Credential)

	raw, err := g.client.shared(ctx, key, func(ctx context.Context) ([]byte, error) {
		return g.client.do(ctx, http.MethodPost, g.path, req.Credential, bytes.NewReader(body))
	})
	if err != nil {
		return nil, err
	}
	return decodeGraphQL(raw)
}

func decodeGraphQL(raw []byte) (json.RawMessage, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid graphql response", domain.ErrFetchFailed)
	}
	result := gjson.ParseBytes(raw)
	if errs := result.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		first := errs.Array()[0]
		msg := first.Get("message").String()
		switch first.Get("extensions.statusCode").Int() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s", domain.ErrNotAuthorized, msg)
		case http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
		}
		return nil, fmt.Errorf("%w: graphql: %s", domain.ErrFetchFailed, msg)
	}
	data := result.Get("data")
	if !data.Exists() || data.Type == gjson.Null {
		return nil, fmt.Errorf("%w: graphql response has no data", domain.ErrFetchFailed)
	}
	return json.RawMessage(data.Raw), nil
}

var _ ports.GraphQLClient = (*GraphQL)(nil)
