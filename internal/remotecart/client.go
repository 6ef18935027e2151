package remotecart

import (
	"context"
	"fmt"

	"github.com/velourastyle/storefront-gateway/internal/commerce"
	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
)

const createCartMutation = `
mutation createCart {
  cartCreate {
    cart {
      id
      cost {
        subtotalAmount { amount currencyCode }
        totalAmount { amount currencyCode }
      }
    }
    userErrors { field message }
  }
}`

const getCartLinesQuery = `
query getCart($cartId: ID!) {
  cart(id: $cartId) {
    lines(first: 100) {
      edges { node { id } }
    }
  }
}`

const removeLinesMutation = `
mutation cartLinesRemove($cartId: ID!, $lineIds: [ID!]!) {
  cartLinesRemove(cartId: $cartId, lineIds: $lineIds) {
    cart { id }
    userErrors { field message }
  }
}`

const addLinesMutation = `
mutation cartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) {
    cart {
      id
      cost {
        subtotalAmount { amount currencyCode }
        totalAmount { amount currencyCode }
        totalTaxAmount { amount currencyCode }
      }
      lines(first: 100) {
        edges { node { id quantity } }
      }
    }
    userErrors { field message }
  }
}`

const discountCodesMutation = `
mutation cartDiscountCodesUpdate($cartId: ID!, $discountCodes: [String!]) {
  cartDiscountCodesUpdate(cartId: $cartId, discountCodes: $discountCodes) {
    cart {
      id
      discountCodes { code applicable }
      cost {
        subtotalAmount { amount currencyCode }
        totalAmount { amount currencyCode }
      }
    }
    userErrors { field message }
  }
}`

// Money mirrors the platform's decimal-string money shape.
type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// Cost is the authoritative pricing snapshot returned by the remote cart.
type Cost struct {
	Subtotal Money  `json:"subtotalAmount"`
	Total    Money  `json:"totalAmount"`
	Tax      *Money `json:"totalTaxAmount,omitempty"`
}

// DiscountCode reports whether a submitted code applies to the current lines.
type DiscountCode struct {
	Code       string `json:"code"`
	Applicable bool   `json:"applicable"`
}

// LineInput is one (variant, quantity) pair for a bulk add.
type LineInput struct {
	VariantID string
	Quantity  int
}

// AddLinesResult carries the cost snapshot and remote line ids after a bulk add.
type AddLinesResult struct {
	Cost    Cost
	LineIDs []string
}

// DiscountResult carries the cost snapshot and code set after a discount update.
type DiscountResult struct {
	Cost  Cost
	Codes []DiscountCode
}

type querier interface {
	Query(ctx context.Context, query string, variables map[string]any, out any) error
}

// Client drives the session-scoped remote cart object.
type Client struct {
	client querier
}

// NewClient wraps the storefront transport for cart mutations.
func NewClient(client querier) (*Client, error) {
	if client == nil {
		return nil, fmt.Errorf("storefront client required")
	}
	return &Client{client: client}, nil
}

// Create requests a fresh remote cart and returns its id.
func (c *Client) Create(ctx context.Context) (string, error) {
	var out struct {
		CartCreate struct {
			Cart *struct {
				ID string `json:"id"`
			} `json:"cart"`
			UserErrors []commerce.UserError `json:"userErrors"`
		} `json:"cartCreate"`
	}
	if err := c.client.Query(ctx, createCartMutation, nil, &out); err != nil {
		return "", err
	}
	if msg := commerce.FirstUserError(out.CartCreate.UserErrors); msg != "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, msg)
	}
	if out.CartCreate.Cart == nil || out.CartCreate.Cart.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "cart creation returned no id")
	}
	return out.CartCreate.Cart.ID, nil
}

// ListLines returns the ids of every line currently on the remote cart.
func (c *Client) ListLines(ctx context.Context, cartID string) ([]string, error) {
	var out struct {
		Cart *struct {
			Lines struct {
				Edges []struct {
					Node struct {
						ID string `json:"id"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"lines"`
		} `json:"cart"`
	}
	if err := c.client.Query(ctx, getCartLinesQuery, map[string]any{"cartId": cartID}, &out); err != nil {
		return nil, err
	}
	if out.Cart == nil {
		return nil, nil
	}
	ids := make([]string, 0, len(out.Cart.Lines.Edges))
	for _, edge := range out.Cart.Lines.Edges {
		ids = append(ids, edge.Node.ID)
	}
	return ids, nil
}

// RemoveLines issues a bulk removal; removing an empty set is a no-op.
func (c *Client) RemoveLines(ctx context.Context, cartID string, lineIDs []string) error {
	if len(lineIDs) == 0 {
		return nil
	}
	var out struct {
		CartLinesRemove struct {
			UserErrors []commerce.UserError `json:"userErrors"`
		} `json:"cartLinesRemove"`
	}
	variables := map[string]any{"cartId": cartID, "lineIds": lineIDs}
	if err := c.client.Query(ctx, removeLinesMutation, variables, &out); err != nil {
		return err
	}
	if msg := commerce.FirstUserError(out.CartLinesRemove.UserErrors); msg != "" {
		return pkgerrors.New(pkgerrors.CodeDependency, msg)
	}
	return nil
}

// AddLines submits the full line set in one mutation and returns the
// authoritative cost snapshot.
func (c *Client) AddLines(ctx context.Context, cartID string, lines []LineInput) (*AddLinesResult, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}

	inputs := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, map[string]any{
			"merchandiseId": line.VariantID,
			"quantity":      line.Quantity,
		})
	}

	var out struct {
		CartLinesAdd struct {
			Cart *struct {
				Cost  Cost `json:"cost"`
				Lines struct {
					Edges []struct {
						Node struct {
							ID string `json:"id"`
						} `json:"node"`
					} `json:"edges"`
				} `json:"lines"`
			} `json:"cart"`
			UserErrors []commerce.UserError `json:"userErrors"`
		} `json:"cartLinesAdd"`
	}
	variables := map[string]any{"cartId": cartID, "lines": inputs}
	if err := c.client.Query(ctx, addLinesMutation, variables, &out); err != nil {
		return nil, err
	}
	if msg := commerce.FirstUserError(out.CartLinesAdd.UserErrors); msg != "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, msg)
	}
	if out.CartLinesAdd.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "line add returned no cart")
	}

	result := &AddLinesResult{Cost: out.CartLinesAdd.Cart.Cost}
	for _, edge := range out.CartLinesAdd.Cart.Lines.Edges {
		result.LineIDs = append(result.LineIDs, edge.Node.ID)
	}
	return result, nil
}

// SetDiscountCodes replaces the cart's discount code set. An empty slice
// clears all codes. User errors carry the platform's rejection verbatim.
func (c *Client) SetDiscountCodes(ctx context.Context, cartID string, codes []string) (*DiscountResult, error) {
	if codes == nil {
		codes = []string{}
	}
	var out struct {
		CartDiscountCodesUpdate struct {
			Cart *struct {
				DiscountCodes []DiscountCode `json:"discountCodes"`
				Cost          Cost           `json:"cost"`
			} `json:"cart"`
			UserErrors []commerce.UserError `json:"userErrors"`
		} `json:"cartDiscountCodesUpdate"`
	}
	variables := map[string]any{"cartId": cartID, "discountCodes": codes}
	if err := c.client.Query(ctx, discountCodesMutation, variables, &out); err != nil {
		return nil, err
	}
	if msg := commerce.FirstUserError(out.CartDiscountCodesUpdate.UserErrors); msg != "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCoupon, msg)
	}
	if out.CartDiscountCodesUpdate.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "discount update returned no cart")
	}
	return &DiscountResult{
		Cost:  out.CartDiscountCodesUpdate.Cart.Cost,
		Codes: out.CartDiscountCodesUpdate.Cart.DiscountCodes,
	}, nil
}
