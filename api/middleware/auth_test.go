package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/velourastyle/storefront-gateway/internal/identity"
	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
)

type fakeResolver struct {
	session *identity.Session
	err     error
	token   string
}

func (f *fakeResolver) Resolve(_ context.Context, sessionToken string) (*identity.Session, error) {
	f.token = sessionToken
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	t.Parallel()

	handler := Auth(&fakeResolver{}, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthRejectsEmptyBearer(t *testing.T) {
	t.Parallel()

	for _, header := range []string{"Bearer", "Bearer ", "Bearer   ", "bearer"} {
		resolver := &fakeResolver{}
		handler := Auth(resolver, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatalf("next handler should not run for header %q", header)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want %d", header, rec.Code, http.StatusUnauthorized)
		}
		if resolver.token != "" {
			t.Fatalf("header %q: resolver must not be called, saw token %q", header, resolver.token)
		}
	}
}

func TestAuthRejectsNilSession(t *testing.T) {
	t.Parallel()

	handler := Auth(&fakeResolver{}, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthPropagatesResolverError(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{err: pkgerrors.New(pkgerrors.CodeUnauthenticated, "session expired")}
	handler := Auth(resolver, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Code != "UNAUTHENTICATED" {
		t.Fatalf("error code = %q, want UNAUTHENTICATED", body.Error.Code)
	}
}

func TestAuthSeedsSessionContext(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{session: &identity.Session{
		CustomerID:    "cust-9",
		Email:         "a@veloura.in",
		CommerceToken: "commerce-token",
	}}

	var got identity.Session
	var ok bool
	handler := Auth(resolver, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer session-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if resolver.token != "session-token" {
		t.Fatalf("resolver saw token %q", resolver.token)
	}
	if !ok || got.CustomerID != "cust-9" || got.CommerceToken != "commerce-token" {
		t.Fatalf("session in context = %+v, ok = %v", got, ok)
	}
}
