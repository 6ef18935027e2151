package wishlist

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"sort"
	"time"

	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
	"github.com/velourastyle/storefront-gateway/pkg/sharedstore"
)

// Item is one saved product, denormalized for rendering.
type Item struct {
	Key      string    `json:"key"`
	Handle   string    `json:"handle"`
	Title    string    `json:"title"`
	ImageURL string    `json:"image_url,omitempty"`
	Price    string    `json:"price,omitempty"`
	Currency string    `json:"currency,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

// ItemInput is the caller-supplied shape for saving a product.
type ItemInput struct {
	Key      string `json:"key" validate:"required"`
	Handle   string `json:"handle" validate:"required"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

type store interface {
	Write(ctx context.Context, namespace, key, value string) error
	Read(ctx context.Context, namespace, key string) (string, error)
	Delete(ctx context.Context, namespace, key string) error
	List(ctx context.Context, namespace string) (map[string]string, error)
}

// Service keeps each customer's wishlist in the shared store so every device
// sees the same set. One record per product; last writer wins.
type Service struct {
	store  store
	logger *logger.Logger
	now    func() time.Time
}

func NewService(st store, logg *logger.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("shared store is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{store: st, logger: logg, now: time.Now}, nil
}

// Add saves the product. Re-adding overwrites the record and refreshes AddedAt.
func (s *Service) Add(ctx context.Context, customerID string, input ItemInput) (*Item, error) {
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "wishlist requires a signed-in customer")
	}
	if input.Key == "" || input.Handle == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item key and handle are required")
	}

	item := Item{
		Key:      input.Key,
		Handle:   input.Handle,
		Title:    input.Title,
		ImageURL: input.ImageURL,
		Price:    input.Price,
		Currency: input.Currency,
		AddedAt:  s.now().UTC(),
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode wishlist item")
	}
	if err := s.store.Write(ctx, sharedstore.WishlistNamespace(customerID), item.Key, string(payload)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write wishlist item")
	}
	return &item, nil
}

// Remove drops the product; removing an absent item is a no-op.
func (s *Service) Remove(ctx context.Context, customerID, key string) error {
	if customerID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthenticated, "wishlist requires a signed-in customer")
	}
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item key is required")
	}
	if err := s.store.Delete(ctx, sharedstore.WishlistNamespace(customerID), key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete wishlist item")
	}
	return nil
}

// Contains reports whether the product is saved.
func (s *Service) Contains(ctx context.Context, customerID, key string) (bool, error) {
	if customerID == "" {
		return false, pkgerrors.New(pkgerrors.CodeUnauthenticated, "wishlist requires a signed-in customer")
	}
	_, err := s.store.Read(ctx, sharedstore.WishlistNamespace(customerID), key)
	if err != nil {
		if stdErrors.Is(err, sharedstore.ErrAbsent) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read wishlist item")
	}
	return true, nil
}

// List returns the customer's saved products, newest first.
func (s *Service) List(ctx context.Context, customerID string) ([]Item, error) {
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "wishlist requires a signed-in customer")
	}
	records, err := s.store.List(ctx, sharedstore.WishlistNamespace(customerID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist")
	}

	items := make([]Item, 0, len(records))
	for key, value := range records {
		var item Item
		if err := json.Unmarshal([]byte(value), &item); err != nil {
			s.logger.Warn(s.logger.WithProductKey(ctx, key), "skipping corrupt wishlist record")
			continue
		}
		if item.Key == "" {
			item.Key = key
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].AddedAt.After(items[j].AddedAt) })
	return items, nil
}
