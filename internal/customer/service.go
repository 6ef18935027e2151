package customer

import (
	"context"
	"fmt"

	"github.com/velourastyle/storefront-gateway/internal/commerce"
	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
)

const profileQuery = `
query getProfile($token: String!) {
  customer(customerAccessToken: $token) {
    id
    email
    firstName
    lastName
    phone
  }
}`

const profileUpdateMutation = `
mutation customerUpdate($token: String!, $customer: CustomerUpdateInput!) {
  customerUpdate(customerAccessToken: $token, customer: $customer) {
    customer { id email firstName lastName phone }
    customerUserErrors { field message }
  }
}`

const addressesQuery = `
query getAddresses($token: String!) {
  customer(customerAccessToken: $token) {
    addresses(first: 20) {
      edges {
        node {
          id
          firstName
          lastName
          address1
          address2
          city
          province
          country
          zip
          phone
        }
      }
    }
  }
}`

const addressCreateMutation = `
mutation customerAddressCreate($token: String!, $address: MailingAddressInput!) {
  customerAddressCreate(customerAccessToken: $token, address: $address) {
    customerAddress { id }
    customerUserErrors { field message }
  }
}`

const ordersQuery = `
query getOrders($token: String!, $first: Int!) {
  customer(customerAccessToken: $token) {
    orders(first: $first, reverse: true) {
      edges {
        node {
          id
          name
          processedAt
          financialStatus
          fulfillmentStatus
          totalPrice { amount currencyCode }
        }
      }
    }
  }
}`

const orderDetailQuery = `
query getOrderDetail($token: String!, $first: Int!) {
  customer(customerAccessToken: $token) {
    orders(first: $first, reverse: true) {
      edges {
        node {
          id
          name
          processedAt
          financialStatus
          fulfillmentStatus
          totalPrice { amount currencyCode }
          subtotalPrice { amount currencyCode }
          lineItems(first: 50) {
            edges {
              node {
                title
                quantity
                variant { id }
                originalTotalPrice { amount currencyCode }
              }
            }
          }
        }
      }
    }
  }
}`

const orderCancelMutation = `
mutation orderCancel($token: String!, $orderId: ID!) {
  orderCancel(customerAccessToken: $token, orderId: $orderId) {
    order { id financialStatus }
    userErrors { field message }
  }
}`

// Profile is the customer account as shown on the account page.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// Address is one saved shipping address.
type Address struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city"`
	Province  string `json:"province,omitempty"`
	Country   string `json:"country"`
	Zip       string `json:"zip"`
	Phone     string `json:"phone,omitempty"`
}

// OrderSummary is one row of the order history.
type OrderSummary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ProcessedAt       string `json:"processed_at"`
	FinancialStatus   string `json:"financial_status,omitempty"`
	FulfillmentStatus string `json:"fulfillment_status,omitempty"`
	Total             string `json:"total"`
	Currency          string `json:"currency,omitempty"`
}

// OrderLine is one purchased item on an order.
type OrderLine struct {
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	VariantID string `json:"variant_id,omitempty"`
	Total     string `json:"total"`
	Currency  string `json:"currency,omitempty"`
}

// OrderDetail is the full order as shown on the order page.
type OrderDetail struct {
	OrderSummary
	Subtotal string      `json:"subtotal,omitempty"`
	Lines    []OrderLine `json:"lines"`
}

type querier interface {
	Query(ctx context.Context, query string, variables map[string]any, out any) error
}

// Service proxies account operations to the commerce platform using the
// customer's bearer token. It holds no state of its own.
type Service struct {
	client querier
	logger *logger.Logger
}

func NewService(client querier, logg *logger.Logger) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("storefront client is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{client: client, logger: logg}, nil
}

// Profile fetches the account profile.
func (s *Service) Profile(ctx context.Context, token string) (*Profile, error) {
	var out struct {
		Customer *profilePayload `json:"customer"`
	}
	if err := s.client.Query(ctx, profileQuery, map[string]any{"token": token}, &out); err != nil {
		return nil, err
	}
	if out.Customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "account token rejected")
	}
	return out.Customer.toProfile(), nil
}

// UpdateProfile applies the provided fields; nil fields are left untouched.
func (s *Service) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*Profile, error) {
	fields := map[string]any{}
	if update.FirstName != nil {
		fields["firstName"] = *update.FirstName
	}
	if update.LastName != nil {
		fields["lastName"] = *update.LastName
	}
	if update.Phone != nil {
		fields["phone"] = *update.Phone
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no profile fields to update")
	}

	var out struct {
		CustomerUpdate struct {
			Customer           *profilePayload      `json:"customer"`
			CustomerUserErrors []commerce.UserError `json:"customerUserErrors"`
		} `json:"customerUpdate"`
	}
	variables := map[string]any{"token": token, "customer": fields}
	if err := s.client.Query(ctx, profileUpdateMutation, variables, &out); err != nil {
		return nil, err
	}
	if msg := commerce.FirstUserError(out.CustomerUpdate.CustomerUserErrors); msg != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msg)
	}
	if out.CustomerUpdate.Customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "profile update returned no customer")
	}
	return out.CustomerUpdate.Customer.toProfile(), nil
}

// Addresses lists the saved shipping addresses.
func (s *Service) Addresses(ctx context.Context, token string) ([]Address, error) {
	var out struct {
		Customer *struct {
			Addresses struct {
				Edges []struct {
					Node Address `json:"node"`
				} `json:"edges"`
			} `json:"addresses"`
		} `json:"customer"`
	}
	if err := s.client.Query(ctx, addressesQuery, map[string]any{"token": token}, &out); err != nil {
		return nil, err
	}
	if out.Customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "account token rejected")
	}
	addresses := make([]Address, 0, len(out.Customer.Addresses.Edges))
	for _, edge := range out.Customer.Addresses.Edges {
		addr := edge.Node
		addr.ID = commerce.StripGlobalID(addr.ID)
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// AddAddress saves a new shipping address and returns its id.
func (s *Service) AddAddress(ctx context.Context, token string, address Address) (string, error) {
	if address.Address1 == "" || address.City == "" || address.Country == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "address line, city, and country are required")
	}
	payload := map[string]any{
		"firstName": address.FirstName,
		"lastName":  address.LastName,
		"address1":  address.Address1,
		"address2":  address.Address2,
		"city":      address.City,
		"province":  address.Province,
		"country":   address.Country,
		"zip":       address.Zip,
		"phone":     address.Phone,
	}

	var out struct {
		CustomerAddressCreate struct {
			CustomerAddress *struct {
				ID string `json:"id"`
			} `json:"customerAddress"`
			CustomerUserErrors []commerce.UserError `json:"customerUserErrors"`
		} `json:"customerAddressCreate"`
	}
	variables := map[string]any{"token": token, "address": payload}
	if err := s.client.Query(ctx, addressCreateMutation, variables, &out); err != nil {
		return "", err
	}
	if msg := commerce.FirstUserError(out.CustomerAddressCreate.CustomerUserErrors); msg != "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, msg)
	}
	if out.CustomerAddressCreate.CustomerAddress == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "address creation returned no address")
	}
	return commerce.StripGlobalID(out.CustomerAddressCreate.CustomerAddress.ID), nil
}

// Orders lists the customer's order history, newest first.
func (s *Service) Orders(ctx context.Context, token string, limit int) ([]OrderSummary, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	var out struct {
		Customer *struct {
			Orders struct {
				Edges []struct {
					Node struct {
						ID                string `json:"id"`
						Name              string `json:"name"`
						ProcessedAt       string `json:"processedAt"`
						FinancialStatus   string `json:"financialStatus"`
						FulfillmentStatus string `json:"fulfillmentStatus"`
						TotalPrice        struct {
							Amount       string `json:"amount"`
							CurrencyCode string `json:"currencyCode"`
						} `json:"totalPrice"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"orders"`
		} `json:"customer"`
	}
	variables := map[string]any{"token": token, "first": limit}
	if err := s.client.Query(ctx, ordersQuery, variables, &out); err != nil {
		return nil, err
	}
	if out.Customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "account token rejected")
	}

	summaries := make([]OrderSummary, 0, len(out.Customer.Orders.Edges))
	for _, edge := range out.Customer.Orders.Edges {
		node := edge.Node
		summaries = append(summaries, OrderSummary{
			ID:                commerce.StripGlobalID(node.ID),
			Name:              node.Name,
			ProcessedAt:       node.ProcessedAt,
			FinancialStatus:   node.FinancialStatus,
			FulfillmentStatus: node.FulfillmentStatus,
			Total:             node.TotalPrice.Amount,
			Currency:          node.TotalPrice.CurrencyCode,
		})
	}
	return summaries, nil
}

// Order fetches one order with its line items. The detail query is scoped by
// the customer token, so an order id belonging to another customer is simply
// not found.
func (s *Service) Order(ctx context.Context, token, orderID string) (*OrderDetail, error) {
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var out struct {
		Customer *struct {
			Orders struct {
				Edges []struct {
					Node struct {
						ID                string `json:"id"`
						Name              string `json:"name"`
						ProcessedAt       string `json:"processedAt"`
						FinancialStatus   string `json:"financialStatus"`
						FulfillmentStatus string `json:"fulfillmentStatus"`
						TotalPrice        struct {
							Amount       string `json:"amount"`
							CurrencyCode string `json:"currencyCode"`
						} `json:"totalPrice"`
						SubtotalPrice struct {
							Amount string `json:"amount"`
						} `json:"subtotalPrice"`
						LineItems struct {
							Edges []struct {
								Node struct {
									Title    string `json:"title"`
									Quantity int    `json:"quantity"`
									Variant  *struct {
										ID string `json:"id"`
									} `json:"variant"`
									OriginalTotalPrice struct {
										Amount       string `json:"amount"`
										CurrencyCode string `json:"currencyCode"`
									} `json:"originalTotalPrice"`
								} `json:"node"`
							} `json:"edges"`
						} `json:"lineItems"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"orders"`
		} `json:"customer"`
	}
	variables := map[string]any{"token": token, "first": 50}
	if err := s.client.Query(ctx, orderDetailQuery, variables, &out); err != nil {
		return nil, err
	}
	if out.Customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "account token rejected")
	}

	for _, edge := range out.Customer.Orders.Edges {
		node := edge.Node
		if commerce.StripGlobalID(node.ID) != orderID && node.Name != orderID {
			continue
		}
		detail := &OrderDetail{
			OrderSummary: OrderSummary{
				ID:                commerce.StripGlobalID(node.ID),
				Name:              node.Name,
				ProcessedAt:       node.ProcessedAt,
				FinancialStatus:   node.FinancialStatus,
				FulfillmentStatus: node.FulfillmentStatus,
				Total:             node.TotalPrice.Amount,
				Currency:          node.TotalPrice.CurrencyCode,
			},
			Subtotal: node.SubtotalPrice.Amount,
			Lines:    make([]OrderLine, 0, len(node.LineItems.Edges)),
		}
		for _, item := range node.LineItems.Edges {
			line := OrderLine{
				Title:    item.Node.Title,
				Quantity: item.Node.Quantity,
				Total:    item.Node.OriginalTotalPrice.Amount,
				Currency: item.Node.OriginalTotalPrice.CurrencyCode,
			}
			if item.Node.Variant != nil {
				line.VariantID = commerce.StripGlobalID(item.Node.Variant.ID)
			}
			detail.Lines = append(detail.Lines, line)
		}
		return detail, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no order %q for this customer", orderID))
}

// CancelOrder requests cancellation of an unfulfilled order.
func (s *Service) CancelOrder(ctx context.Context, token, orderID string) error {
	if orderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	var out struct {
		OrderCancel struct {
			UserErrors []commerce.UserError `json:"userErrors"`
		} `json:"orderCancel"`
	}
	variables := map[string]any{"token": token, "orderId": orderID}
	if err := s.client.Query(ctx, orderCancelMutation, variables, &out); err != nil {
		return err
	}
	if msg := commerce.FirstUserError(out.OrderCancel.UserErrors); msg != "" {
		return pkgerrors.New(pkgerrors.CodeValidation, msg)
	}
	return nil
}

type profilePayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

func (p *profilePayload) toProfile() *Profile {
	return &Profile{
		ID:        commerce.StripGlobalID(p.ID),
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
	}
}
