package identity

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/velourastyle/storefront-gateway/internal/commerce"
	"github.com/velourastyle/storefront-gateway/pkg/config"
	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
	"github.com/velourastyle/storefront-gateway/pkg/storage"
)

const tokenCreateMutation = `
mutation customerAccessTokenCreate($input: CustomerAccessTokenCreateInput!) {
  customerAccessTokenCreate(input: $input) {
    customerAccessToken { accessToken expiresAt }
    customerUserErrors { field message }
  }
}`

const customerQuery = `
query getCustomer($token: String!) {
  customer(customerAccessToken: $token) {
    id
    email
    firstName
    lastName
  }
}`

const customerCreateMutation = `
mutation customerCreate($input: CustomerCreateInput!) {
  customerCreate(input: $input) {
    customer { id email }
    customerUserErrors { field message }
  }
}`

const customerRecoverMutation = `
mutation customerRecover($email: String!) {
  customerRecover(email: $email) {
    customerUserErrors { field message }
  }
}`

const tokenDeleteMutation = `
mutation customerAccessTokenDelete($token: String!) {
  customerAccessTokenDelete(customerAccessToken: $token) {
    deletedAccessToken
    userErrors { field message }
  }
}`

// Session identifies a signed-in customer. CommerceToken is the customer's
// account-scoped access token for the commerce platform, held server side.
type Session struct {
	CustomerID    string
	Email         string
	CommerceToken string
}

// LoginResult pairs the gateway session token with the customer identity.
type LoginResult struct {
	SessionToken string
	CustomerID   string
	Email        string
	FirstName    string
}

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type querier interface {
	Query(ctx context.Context, query string, variables map[string]any, out any) error
}

// Service authenticates customers against the commerce platform and issues
// gateway session tokens.
type Service struct {
	client querier
	cache  storage.KV
	jwtCfg config.JWTConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewService validates dependencies and builds the identity service.
func NewService(client querier, cache storage.KV, jwtCfg config.JWTConfig, logg *logger.Logger) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("storefront client is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("credential cache is required")
	}
	if jwtCfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		client: client,
		cache:  cache,
		jwtCfg: jwtCfg,
		logger: logg,
		now:    time.Now,
	}, nil
}

// Login exchanges credentials for a commerce access token, caches it, and
// returns a gateway session token carrying the customer identity.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	var tokenOut struct {
		CustomerAccessTokenCreate struct {
			CustomerAccessToken *struct {
				AccessToken string `json:"accessToken"`
				ExpiresAt   string `json:"expiresAt"`
			} `json:"customerAccessToken"`
			CustomerUserErrors []commerce.UserError `json:"customerUserErrors"`
		} `json:"customerAccessTokenCreate"`
	}
	input := map[string]any{"email": email, "password": password}
	if err := s.client.Query(ctx, tokenCreateMutation, map[string]any{"input": input}, &tokenOut); err != nil {
		return nil, err
	}
	if tokenOut.CustomerAccessTokenCreate.CustomerAccessToken == nil {
		msg := commerce.FirstUserError(tokenOut.CustomerAccessTokenCreate.CustomerUserErrors)
		if msg == "" {
			msg = "invalid credentials"
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, msg)
	}
	accessToken := tokenOut.CustomerAccessTokenCreate.CustomerAccessToken.AccessToken

	var customerOut struct {
		Customer *struct {
			ID        string `json:"id"`
			Email     string `json:"email"`
			FirstName string `json:"firstName"`
		} `json:"customer"`
	}
	if err := s.client.Query(ctx, customerQuery, map[string]any{"token": accessToken}, &customerOut); err != nil {
		return nil, err
	}
	if customerOut.Customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "token accepted but customer lookup returned nothing")
	}

	customerID := commerce.StripGlobalID(customerOut.Customer.ID)
	if err := s.cache.Set(ctx, credentialKey(customerID), accessToken); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cache commerce token")
	}

	sessionToken, err := MintSessionToken(s.jwtCfg, s.now(), customerID, customerOut.Customer.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session token")
	}

	s.logger.Info(s.logger.WithCustomerID(ctx, customerID), "customer signed in")
	return &LoginResult{
		SessionToken: sessionToken,
		CustomerID:   customerID,
		Email:        customerOut.Customer.Email,
		FirstName:    customerOut.Customer.FirstName,
	}, nil
}

// Register creates the account on the commerce platform and signs the new
// customer in.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*LoginResult, error) {
	var out struct {
		CustomerCreate struct {
			Customer *struct {
				ID string `json:"id"`
			} `json:"customer"`
			CustomerUserErrors []commerce.UserError `json:"customerUserErrors"`
		} `json:"customerCreate"`
	}
	payload := map[string]any{
		"email":     input.Email,
		"password":  input.Password,
		"firstName": input.FirstName,
		"lastName":  input.LastName,
	}
	if err := s.client.Query(ctx, customerCreateMutation, map[string]any{"input": payload}, &out); err != nil {
		return nil, err
	}
	if msg := commerce.FirstUserError(out.CustomerCreate.CustomerUserErrors); msg != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msg)
	}
	if out.CustomerCreate.Customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "account creation returned no customer")
	}
	return s.Login(ctx, input.Email, input.Password)
}

// ForgotPassword triggers the platform's recovery email. The response is
// identical whether or not the account exists.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	var out struct {
		CustomerRecover struct {
			CustomerUserErrors []commerce.UserError `json:"customerUserErrors"`
		} `json:"customerRecover"`
	}
	if err := s.client.Query(ctx, customerRecoverMutation, map[string]any{"email": email}, &out); err != nil {
		return err
	}
	// Account-not-found errors are swallowed so the endpoint does not leak
	// which emails are registered.
	if msg := commerce.FirstUserError(out.CustomerRecover.CustomerUserErrors); msg != "" {
		s.logger.Debug(ctx, "recovery rejected upstream: "+msg)
	}
	return nil
}

// Logout revokes the commerce token and drops the cached credential.
func (s *Service) Logout(ctx context.Context, session Session) error {
	if session.CommerceToken != "" {
		var out struct{}
		if err := s.client.Query(ctx, tokenDeleteMutation, map[string]any{"token": session.CommerceToken}, &out); err != nil {
			s.logger.Warn(s.logger.WithCustomerID(ctx, session.CustomerID), "remote token revocation failed")
		}
	}
	if err := s.cache.Delete(ctx, credentialKey(session.CustomerID)); err != nil && !stdErrors.Is(err, storage.ErrNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "drop cached credential")
	}
	return nil
}

// Resolve turns a gateway session token into a Session, loading the cached
// commerce credential. A valid JWT whose credential has been dropped is
// treated as signed out.
func (s *Service) Resolve(ctx context.Context, sessionToken string) (*Session, error) {
	claims, err := ParseSessionToken(s.jwtCfg, sessionToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthenticated, err, "invalid session token")
	}

	commerceToken, err := s.cache.Get(ctx, credentialKey(claims.CustomerID))
	if err != nil {
		if stdErrors.Is(err, storage.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "session expired")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read cached credential")
	}

	return &Session{
		CustomerID:    claims.CustomerID,
		Email:         claims.Email,
		CommerceToken: commerceToken,
	}, nil
}

func credentialKey(customerID string) string {
	return "credential:" + customerID
}
