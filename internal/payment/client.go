package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/velourastyle/storefront-gateway/pkg/config"
	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired = errors.New("payment access token is required")
	errLocationRequired    = errors.New("payment location id is required")
	errInvalidPaymentEnv   = fmt.Errorf("payment environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("payment logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Client initiates checkout payments against the payment processor. The
// storefront tokenizes the card; this client only ever sees the opaque source
// token.
type Client struct {
	sdk         *sqclient.Client
	environment string
	locationID  string
	logger      *logger.Logger
}

// ChargeParams carries one payment attempt. Amount is the decimal display
// amount; it is converted to minor units for the processor.
type ChargeParams struct {
	SourceID       string
	Amount         string
	Currency       string
	ReferenceID    string
	Note           string
	IdempotencyKey string
}

// Charge is the processor's view of a payment.
type Charge struct {
	PaymentID  string
	Status     string
	ReceiptURL string
}

// NewClient initializes the payment wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PaymentConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment)
	if err != nil {
		return nil, err
	}
	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}
	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errLocationRequired
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURLs[env]),
		sqoption.WithToken(accessToken),
	)

	c := &Client{
		sdk:         sdk,
		environment: env,
		locationID:  locationID,
		logger:      logg,
	}
	logg.Info(ctx, "payment client initialized")
	return c, nil
}

// Environment reports the normalized processor environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// NewIdempotencyKey returns a unique key for payment operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "vl"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// Charge initiates one payment for the checkout amount.
func (c *Client) Charge(ctx context.Context, params ChargeParams) (*Charge, error) {
	if strings.TrimSpace(params.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source is required")
	}
	amountMinor, err := MinorUnits(params.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid charge amount")
	}
	if amountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}

	req := &sq.CreatePaymentRequest{
		IdempotencyKey: c.ensureIdempotencyKey("payment.create", params.IdempotencyKey),
		SourceID:       params.SourceID,
		LocationID:     ptrString(c.locationID),
		AmountMoney:    moneyPtr(amountMinor, params.Currency),
	}
	if trimmed := strings.TrimSpace(params.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(params.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}

	c.log(ctx, "request", "create_payment", map[string]any{
		"reference_id": params.ReferenceID,
		"amount_minor": amountMinor,
	})

	resp, err := c.sdk.Payments.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_payment", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "create payment")
	}

	charge := chargeFromPayment(resp.GetPayment())
	c.log(ctx, "response", "create_payment", map[string]any{
		"payment_id": charge.PaymentID,
		"status":     charge.Status,
	})
	return charge, nil
}

// GetPayment fetches the current processor state of a payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Charge, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	resp, err := c.sdk.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
	if err != nil {
		return nil, c.mapError(err, "get payment")
	}
	return chargeFromPayment(resp.GetPayment()), nil
}

// MinorUnits converts a decimal display amount to processor minor units.
func MinorUnits(amount string) (int64, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	return parsed.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

func chargeFromPayment(payment *sq.Payment) *Charge {
	if payment == nil {
		return &Charge{}
	}
	return &Charge{
		PaymentID:  stringValue(payment.GetID()),
		Status:     stringValue(payment.GetStatus()),
		ReceiptURL: stringValue(payment.GetReceiptURL()),
	}
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("payment %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("payment %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone", "source"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := pkgerrors.CodePaymentFailed
		if apiErr.StatusCode >= 500 {
			code = pkgerrors.CodeDependency
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("payment %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("payment %s failed", op))
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "INR"
	}
	currency := sq.Currency(trimmed)
	return &currency
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidPaymentEnv
	}
}
