package catalog

import (
	"context"
	"encoding/json"
	"testing"

	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
)

type stubQuerier struct {
	payloads map[string]string
	err      error
	calls    int
}

func (s *stubQuerier) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	handle, _ := variables["handle"].(string)
	payload, ok := s.payloads[handle]
	if !ok {
		payload = `{"product":null}`
	}
	return json.Unmarshal([]byte(payload), out)
}

func TestLookupVariantResolvesFirstVariant(t *testing.T) {
	t.Parallel()

	stub := &stubQuerier{payloads: map[string]string{
		"linen-dress": `{"product":{"id":"gid://shop/Product/1","variants":{"edges":[{"node":{"id":"gid://shop/ProductVariant/11"}}]}}}`,
	}}
	svc, err := NewService(stub)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	variantID, err := svc.LookupVariant(context.Background(), "linen-dress")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if variantID != "gid://shop/ProductVariant/11" {
		t.Fatalf("unexpected variant id: %s", variantID)
	}
}

func TestLookupVariantNotFound(t *testing.T) {
	t.Parallel()

	svc, _ := NewService(&stubQuerier{payloads: map[string]string{}})
	_, err := svc.LookupVariant(context.Background(), "sold-out")
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestGetProductDenormalizesDisplayFields(t *testing.T) {
	t.Parallel()

	stub := &stubQuerier{payloads: map[string]string{
		"linen-dress": `{"product":{"id":"gid://shop/Product/1","title":"Linen Dress","handle":"linen-dress","featuredImage":{"url":"https://img/1.jpg"},"variants":{"edges":[{"node":{"id":"v1","price":{"amount":"49.50","currencyCode":"INR"}}}]}}}`,
	}}
	svc, _ := NewService(stub)

	product, err := svc.GetProduct(context.Background(), "linen-dress")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Title != "Linen Dress" || product.ImageURL != "https://img/1.jpg" {
		t.Fatalf("unexpected product: %+v", product)
	}
	if product.Price != "49.50" || product.Currency != "INR" {
		t.Fatalf("unexpected price: %+v", product)
	}
}

func TestSearchValidatesQuery(t *testing.T) {
	t.Parallel()

	svc, _ := NewService(&stubQuerier{})
	if _, err := svc.Search(context.Background(), "", 10); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
