package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/velourastyle/storefront-gateway/pkg/config"
	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
)

const accessTokenHeader = "X-Shopify-Storefront-Access-Token"

// Client speaks the commerce platform's storefront GraphQL API. Catalog,
// remote cart, and customer account calls all go through it.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *logger.Logger
}

// UserError is a field-level rejection returned inside a mutation payload.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// New builds a storefront API client from configuration.
func New(cfg config.CommerceConfig, logg *logger.Logger) (*Client, error) {
	if cfg.ShopDomain == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("shop domain and storefront access token are required")
	}
	return &Client{
		endpoint:   cfg.Endpoint(),
		token:      cfg.AccessToken,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logg,
	}, nil
}

// NewWithEndpoint is used by tests to point the client at a fake server.
func NewWithEndpoint(endpoint, token string, logg *logger.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{},
		logger:     logg,
	}
}

// Query posts a GraphQL document and decodes the data payload into out.
// Top-level GraphQL errors are mapped to a dependency error carrying the
// upstream messages verbatim.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode storefront request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build storefront request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessTokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storefront api unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("storefront api returned status %d", resp.StatusCode))
	}

	var envelope graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode storefront response")
	}

	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, gqlErr := range envelope.Errors {
			messages = append(messages, gqlErr.Message)
		}
		return pkgerrors.New(pkgerrors.CodeDependency, strings.Join(messages, "; ")).
			WithDetails(map[string]any{"errors": messages})
	}

	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode storefront data")
	}
	return nil
}

// FirstUserError flattens a userErrors slice into a message, or "".
func FirstUserError(errs []UserError) string {
	if len(errs) == 0 {
		return ""
	}
	return errs[0].Message
}

// StripGlobalID removes the platform's global-id namespace prefix, leaving
// the stable identifier used as a key in the local and shared stores.
func StripGlobalID(gid string) string {
	if idx := strings.LastIndex(gid, "/"); idx >= 0 {
		return gid[idx+1:]
	}
	return gid
}
