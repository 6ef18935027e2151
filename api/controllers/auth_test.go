package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/velourastyle/storefront-gateway/internal/identity"
	"github.com/velourastyle/storefront-gateway/pkg/config"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
	"github.com/velourastyle/storefront-gateway/pkg/storage"
)

// stubQuerier answers GraphQL operations by matching a marker substring in
// the query text.
type stubQuerier struct {
	payloads map[string]string
}

func (s *stubQuerier) Query(_ context.Context, query string, _ map[string]any, out any) error {
	for marker, payload := range s.payloads {
		if strings.Contains(query, marker) {
			return json.Unmarshal([]byte(payload), out)
		}
	}
	return fmt.Errorf("no stub payload for query: %s", query)
}

func identityService(t *testing.T, stub *stubQuerier) *identity.Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := identity.NewService(stub, storage.NewMemory(), config.JWTConfig{
		Secret:            "test-secret-test-secret-test-secret",
		Issuer:            "storefront-gateway",
		ExpirationMinutes: 60,
	}, logg)
	if err != nil {
		t.Fatalf("building identity service: %v", err)
	}
	return svc
}

func TestLoginReturnsSessionToken(t *testing.T) {
	t.Parallel()

	stub := &stubQuerier{payloads: map[string]string{
		"customerAccessTokenCreate": `{"customerAccessTokenCreate":{"customerAccessToken":{"accessToken":"commerce-tok","expiresAt":"2026-10-01T00:00:00Z"}}}`,
		"query getCustomer":         `{"customer":{"id":"gid://shopify/Customer/811","email":"a@veloura.in","firstName":"Asha"}}`,
	}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handler := Login(identityService(t, stub), logg)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@veloura.in","password":"hunter22"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data identity.LoginResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Data.SessionToken == "" {
		t.Fatal("expected a session token")
	}
	if body.Data.CustomerID != "811" {
		t.Fatalf("customer id = %q, want 811", body.Data.CustomerID)
	}
}

func TestLoginRejectsInvalidBody(t *testing.T) {
	t.Parallel()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handler := Login(identityService(t, &stubQuerier{}), logg)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"not-an-email"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("error code = %q", body.Error.Code)
	}
}

func TestLoginSurfacesRejectedCredentials(t *testing.T) {
	t.Parallel()

	stub := &stubQuerier{payloads: map[string]string{
		"customerAccessTokenCreate": `{"customerAccessTokenCreate":{"customerAccessToken":null,"customerUserErrors":[{"field":["email"],"message":"Unidentified customer"}]}}`,
	}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handler := Login(identityService(t, stub), logg)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@veloura.in","password":"wrongpass"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
