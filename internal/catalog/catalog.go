package catalog

import (
	"context"
	"fmt"

	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
)

const productByHandleQuery = `
query getProductByHandle($handle: String!) {
  product(handle: $handle) {
    id
    title
    handle
    featuredImage { url }
    variants(first: 1) {
      edges {
        node {
          id
          price { amount currencyCode }
        }
      }
    }
  }
}`

const searchProductsQuery = `
query searchProducts($query: String!, $first: Int!) {
  products(query: $query, first: $first) {
    edges {
      node {
        id
        title
        handle
        featuredImage { url }
        priceRange { minVariantPrice { amount currencyCode } }
      }
    }
  }
}`

// Product is the denormalized catalog view stored on cart lines at add time.
type Product struct {
	ID       string
	Title    string
	Handle   string
	ImageURL string
	Price    string
	Currency string
}

type querier interface {
	Query(ctx context.Context, query string, variables map[string]any, out any) error
}

// Service resolves products and variants against the Catalog & Pricing Service.
type Service struct {
	client querier
}

// NewService wraps the storefront client for catalog lookups.
func NewService(client querier) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("storefront client required")
	}
	return &Service{client: client}, nil
}

// LookupVariant resolves the first variant id for a product handle.
func (s *Service) LookupVariant(ctx context.Context, handle string) (string, error) {
	if handle == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product handle is required")
	}

	var out productByHandlePayload
	if err := s.client.Query(ctx, productByHandleQuery, map[string]any{"handle": handle}, &out); err != nil {
		return "", err
	}
	if out.Product == nil || len(out.Product.Variants.Edges) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no variant for handle %q", handle))
	}
	return out.Product.Variants.Edges[0].Node.ID, nil
}

// GetProduct fetches title, image, and price for a handle.
func (s *Service) GetProduct(ctx context.Context, handle string) (*Product, error) {
	if handle == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product handle is required")
	}

	var out productByHandlePayload
	if err := s.client.Query(ctx, productByHandleQuery, map[string]any{"handle": handle}, &out); err != nil {
		return nil, err
	}
	if out.Product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %q not found", handle))
	}

	product := &Product{
		ID:       out.Product.ID,
		Title:    out.Product.Title,
		Handle:   out.Product.Handle,
		ImageURL: out.Product.FeaturedImage.URL,
	}
	if len(out.Product.Variants.Edges) > 0 {
		price := out.Product.Variants.Edges[0].Node.Price
		product.Price = price.Amount
		product.Currency = price.CurrencyCode
	}
	return product, nil
}

// Search runs a storefront product search and returns summaries.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Product, error) {
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query is required")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	var out searchPayload
	if err := s.client.Query(ctx, searchProductsQuery, map[string]any{"query": query, "first": limit}, &out); err != nil {
		return nil, err
	}

	results := make([]Product, 0, len(out.Products.Edges))
	for _, edge := range out.Products.Edges {
		results = append(results, Product{
			ID:       edge.Node.ID,
			Title:    edge.Node.Title,
			Handle:   edge.Node.Handle,
			ImageURL: edge.Node.FeaturedImage.URL,
			Price:    edge.Node.PriceRange.MinVariantPrice.Amount,
			Currency: edge.Node.PriceRange.MinVariantPrice.CurrencyCode,
		})
	}
	return results, nil
}

type moneyPayload struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type imagePayload struct {
	URL string `json:"url"`
}

type productByHandlePayload struct {
	Product *struct {
		ID            string       `json:"id"`
		Title         string       `json:"title"`
		Handle        string       `json:"handle"`
		FeaturedImage imagePayload `json:"featuredImage"`
		Variants      struct {
			Edges []struct {
				Node struct {
					ID    string       `json:"id"`
					Price moneyPayload `json:"price"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"variants"`
	} `json:"product"`
}

type searchPayload struct {
	Products struct {
		Edges []struct {
			Node struct {
				ID            string       `json:"id"`
				Title         string       `json:"title"`
				Handle        string       `json:"handle"`
				FeaturedImage imagePayload `json:"featuredImage"`
				PriceRange    struct {
					MinVariantPrice moneyPayload `json:"minVariantPrice"`
				} `json:"priceRange"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"products"`
}
