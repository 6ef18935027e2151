package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/velourastyle/storefront-gateway/api/middleware"
	"github.com/velourastyle/storefront-gateway/internal/cart"
	"github.com/velourastyle/storefront-gateway/internal/identity"
	"github.com/velourastyle/storefront-gateway/internal/remotecart"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
	"github.com/velourastyle/storefront-gateway/pkg/sharedstore"
	"github.com/velourastyle/storefront-gateway/pkg/storage"
)

type fakeShared struct {
	records map[string]string
}

func (f *fakeShared) key(namespace, key string) string { return namespace + "/" + key }

func (f *fakeShared) Write(_ context.Context, namespace, key, value string) error {
	if f.records == nil {
		f.records = map[string]string{}
	}
	f.records[f.key(namespace, key)] = value
	return nil
}

func (f *fakeShared) Read(_ context.Context, namespace, key string) (string, error) {
	value, ok := f.records[f.key(namespace, key)]
	if !ok {
		return "", sharedstore.ErrAbsent
	}
	return value, nil
}

func (f *fakeShared) Delete(_ context.Context, namespace, key string) error {
	delete(f.records, f.key(namespace, key))
	return nil
}

func (f *fakeShared) List(_ context.Context, namespace string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.records {
		if strings.HasPrefix(k, namespace+"/") {
			out[strings.TrimPrefix(k, namespace+"/")] = v
		}
	}
	return out, nil
}

type fakeRemote struct {
	total string
}

func (f *fakeRemote) Create(context.Context) (string, error) { return "rc-1", nil }

func (f *fakeRemote) ListLines(context.Context, string) ([]string, error) { return nil, nil }

func (f *fakeRemote) RemoveLines(context.Context, string, []string) error { return nil }

func (f *fakeRemote) AddLines(_ context.Context, _ string, lines []remotecart.LineInput) (*remotecart.AddLinesResult, error) {
	ids := make([]string, len(lines))
	for i := range lines {
		ids[i] = "line-id"
	}
	return &remotecart.AddLinesResult{
		Cost: remotecart.Cost{
			Subtotal: remotecart.Money{Amount: f.total, CurrencyCode: "INR"},
			Total:    remotecart.Money{Amount: f.total, CurrencyCode: "INR"},
		},
		LineIDs: ids,
	}, nil
}

func (f *fakeRemote) SetDiscountCodes(context.Context, string, []string) (*remotecart.DiscountResult, error) {
	return &remotecart.DiscountResult{}, nil
}

type fakeVariants struct{}

func (fakeVariants) LookupVariant(_ context.Context, handle string) (string, error) {
	return "variant-" + handle, nil
}

func cartTestRouter(t *testing.T) chi.Router {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	engine, err := cart.NewEngine(storage.NewMemory(), &fakeShared{}, &fakeRemote{total: "49.50"}, fakeVariants{}, logg, nil)
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithSession(req.Context(), identity.Session{CustomerID: "cust-1"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/cart", GetCart(engine, logg))
	r.Post("/cart/lines", UpsertCartLine(engine, logg))
	r.Put("/cart/lines/{key}", SetCartQuantity(engine, logg))
	r.Delete("/cart/lines/{key}", RemoveCartLine(engine, logg))
	return r
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) cart.View {
	t.Helper()
	var body struct {
		Data cart.View `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	return body.Data
}

func TestGetCartStartsEmpty(t *testing.T) {
	t.Parallel()

	router := cartTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	view := decodeView(t, rec)
	if len(view.Lines) != 0 {
		t.Fatalf("lines = %d, want 0", len(view.Lines))
	}
}

func TestUpsertLineReturnsSyncedView(t *testing.T) {
	t.Parallel()

	router := cartTestRouter(t)
	payload := `{"key":"linen-dress:m","handle":"linen-dress","title":"Linen Dress","price":"49.50","currency":"INR","quantity":1}`
	req := httptest.NewRequest(http.MethodPost, "/cart/lines", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	view := decodeView(t, rec)
	if len(view.Lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(view.Lines))
	}
	if view.Total != "49.50" {
		t.Fatalf("total = %q, want 49.50", view.Total)
	}
	if view.Stale {
		t.Fatal("view should not be stale after a successful sync")
	}
}

func TestUpsertLineRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	router := cartTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/cart/lines", strings.NewReader(`{"key":"k","handle":"h","bogus":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSetQuantityRejectsNegative(t *testing.T) {
	t.Parallel()

	router := cartTestRouter(t)
	seed := `{"key":"linen-dress:m","handle":"linen-dress","price":"49.50","quantity":1}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cart/lines", strings.NewReader(seed)))
	if rec.Code != http.StatusOK {
		t.Fatalf("seed status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPut, "/cart/lines/linen-dress:m", strings.NewReader(`{"quantity":-1}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

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
	if body.Error.Code != "INVALID_QUANTITY" {
		t.Fatalf("error code = %q", body.Error.Code)
	}
}

func TestRemoveLineEmptiesCart(t *testing.T) {
	t.Parallel()

	router := cartTestRouter(t)
	seed := `{"key":"linen-dress:m","handle":"linen-dress","price":"49.50","quantity":1}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cart/lines", strings.NewReader(seed)))
	if rec.Code != http.StatusOK {
		t.Fatalf("seed status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/cart/lines/linen-dress:m", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	view := decodeView(t, rec)
	if len(view.Lines) != 0 {
		t.Fatalf("lines = %d, want 0", len(view.Lines))
	}
	if view.RemoteCartID != "" {
		t.Fatalf("remote cart id should be cleared, got %q", view.RemoteCartID)
	}
}
