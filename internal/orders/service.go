package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/velourastyle/storefront-gateway/internal/cart"
	"github.com/velourastyle/storefront-gateway/internal/commerce"
	"github.com/velourastyle/storefront-gateway/internal/identity"
	"github.com/velourastyle/storefront-gateway/internal/payment"
	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
)

const orderCreateMutation = `
mutation orderCreate($token: String!, $order: OrderCreateInput!) {
  orderCreate(customerAccessToken: $token, order: $order) {
    order {
      id
      name
      totalPrice { amount currencyCode }
    }
    userErrors { field message }
  }
}`

// Order is the confirmed order returned to the storefront.
type Order struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Total      string `json:"total"`
	Currency   string `json:"currency,omitempty"`
	PaymentID  string `json:"payment_id,omitempty"`
	ReceiptURL string `json:"receipt_url,omitempty"`
}

// CheckoutInput carries the tokenized payment source and shipping details.
type CheckoutInput struct {
	SourceID string  `json:"source_id" validate:"required"`
	Shipping Address `json:"shipping"`
	Note     string  `json:"note"`
}

// Address is the shipping address attached to the order.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city"`
	Province  string `json:"province,omitempty"`
	Country   string `json:"country"`
	Zip       string `json:"zip"`
	Phone     string `json:"phone,omitempty"`
}

type querier interface {
	Query(ctx context.Context, query string, variables map[string]any, out any) error
}

type cartEngine interface {
	Get(ctx context.Context, customerID string) (*cart.View, error)
	Sync(ctx context.Context, customerID string) (*cart.View, error)
	Clear(ctx context.Context, customerID string) (*cart.View, error)
}

type charger interface {
	Charge(ctx context.Context, params payment.ChargeParams) (*payment.Charge, error)
}

// Service turns a reconciled cart into a paid order. The cart is cleared only
// after the commerce platform confirms the order; a failed creation preserves
// the cart so the customer can retry.
type Service struct {
	client   querier
	cart     cartEngine
	payments charger
	logger   *logger.Logger
}

func NewService(client querier, cartEngine cartEngine, payments charger, logg *logger.Logger) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("storefront client is required")
	}
	if cartEngine == nil {
		return nil, fmt.Errorf("cart engine is required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment client is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{client: client, cart: cartEngine, payments: payments, logger: logg}, nil
}

// Checkout charges the authoritative cart total and creates the order. The
// payment runs first; if order creation then fails, the cart stays intact and
// the payment id is surfaced so support can reconcile the charge.
func (s *Service) Checkout(ctx context.Context, session identity.Session, input CheckoutInput) (*Order, error) {
	if session.CustomerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "checkout requires a signed-in customer")
	}
	if strings.TrimSpace(input.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source is required")
	}

	// Refresh the cost snapshot so the charge uses the authoritative total.
	view, err := s.cart.Sync(ctx, session.CustomerID)
	if err != nil {
		return nil, err
	}
	if len(view.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot check out an empty cart")
	}
	for _, line := range view.Lines {
		if line.Unresolved {
			return nil, pkgerrors.New(pkgerrors.CodeVariantResolution,
				fmt.Sprintf("line %q could not be resolved; remove it to continue", line.Key))
		}
	}

	ctx = s.logger.WithCustomerID(ctx, session.CustomerID)

	charge, err := s.payments.Charge(ctx, payment.ChargeParams{
		SourceID:    input.SourceID,
		Amount:      view.Total,
		Currency:    view.Currency,
		ReferenceID: view.RemoteCartID,
		Note:        input.Note,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(s.logger.WithField(ctx, "payment_id", charge.PaymentID), "payment confirmed")

	order, err := s.createOrder(ctx, session, view, input, charge)
	if err != nil {
		// The charge went through but the order did not. Never clear the
		// cart here; the payment id in the details is the recovery handle.
		s.logger.Error(s.logger.WithField(ctx, "payment_id", charge.PaymentID), "order creation failed after payment", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrderCreation, err, "create order").
			WithDetails(map[string]any{"payment_id": charge.PaymentID})
	}
	order.PaymentID = charge.PaymentID
	order.ReceiptURL = charge.ReceiptURL

	if _, err := s.cart.Clear(ctx, session.CustomerID); err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "order_id", order.ID), "cart not cleared after confirmed order")
	}
	return order, nil
}

func (s *Service) createOrder(ctx context.Context, session identity.Session, view *cart.View, input CheckoutInput, charge *payment.Charge) (*Order, error) {
	lines := make([]map[string]any, 0, len(view.Lines))
	for _, line := range view.Lines {
		lines = append(lines, map[string]any{
			"variantId": line.VariantID,
			"quantity":  line.Quantity,
		})
	}
	orderInput := map[string]any{
		"lineItems":        lines,
		"paymentReference": charge.PaymentID,
	}
	if view.AppliedCode != "" {
		orderInput["discountCodes"] = []string{view.AppliedCode}
	}
	if input.Shipping.Address1 != "" {
		orderInput["shippingAddress"] = map[string]any{
			"firstName": input.Shipping.FirstName,
			"lastName":  input.Shipping.LastName,
			"address1":  input.Shipping.Address1,
			"address2":  input.Shipping.Address2,
			"city":      input.Shipping.City,
			"province":  input.Shipping.Province,
			"country":   input.Shipping.Country,
			"zip":       input.Shipping.Zip,
			"phone":     input.Shipping.Phone,
		}
	}

	var out struct {
		OrderCreate struct {
			Order *struct {
				ID         string `json:"id"`
				Name       string `json:"name"`
				TotalPrice struct {
					Amount       string `json:"amount"`
					CurrencyCode string `json:"currencyCode"`
				} `json:"totalPrice"`
			} `json:"order"`
			UserErrors []commerce.UserError `json:"userErrors"`
		} `json:"orderCreate"`
	}
	variables := map[string]any{"token": session.CommerceToken, "order": orderInput}
	if err := s.client.Query(ctx, orderCreateMutation, variables, &out); err != nil {
		return nil, err
	}
	if msg := commerce.FirstUserError(out.OrderCreate.UserErrors); msg != "" {
		return nil, pkgerrors.New(pkgerrors.CodeOrderCreation, msg)
	}
	if out.OrderCreate.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeOrderCreation, "order creation returned no order")
	}
	return &Order{
		ID:       commerce.StripGlobalID(out.OrderCreate.Order.ID),
		Name:     out.OrderCreate.Order.Name,
		Total:    out.OrderCreate.Order.TotalPrice.Amount,
		Currency: out.OrderCreate.Order.TotalPrice.CurrencyCode,
	}, nil
}
