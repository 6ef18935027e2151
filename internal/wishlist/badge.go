package wishlist

import (
	"context"
	"fmt"
	"sync"

	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
	"github.com/velourastyle/storefront-gateway/pkg/sharedstore"
)

type badgeStore interface {
	List(ctx context.Context, namespace string) (map[string]string, error)
	Subscribe(ctx context.Context, namespace string, onChange func(sharedstore.Event)) (func(), error)
}

// BadgeCounter keeps a live per-customer item count for the wishlist badge.
// Counts are display-only: they are seeded from the shared store and kept
// current through its change feed, never consulted for mutation correctness.
type BadgeCounter struct {
	store  badgeStore
	logger *logger.Logger

	mu      sync.Mutex
	keys    map[string]map[string]struct{}
	cancels map[string]func()
}

func NewBadgeCounter(store badgeStore, logg *logger.Logger) (*BadgeCounter, error) {
	if store == nil {
		return nil, fmt.Errorf("shared store is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &BadgeCounter{
		store:   store,
		logger:  logg,
		keys:    make(map[string]map[string]struct{}),
		cancels: make(map[string]func()),
	}, nil
}

// Count returns the customer's wishlist size. The first call for a customer
// seeds from the shared store and starts following its change feed; later
// calls are served from memory.
func (b *BadgeCounter) Count(ctx context.Context, customerID string) (int, error) {
	if customerID == "" {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthenticated, "wishlist badge requires a signed-in customer")
	}

	b.mu.Lock()
	if tracked, ok := b.keys[customerID]; ok {
		count := len(tracked)
		b.mu.Unlock()
		return count, nil
	}
	b.mu.Unlock()

	namespace := sharedstore.WishlistNamespace(customerID)
	records, err := b.store.List(ctx, namespace)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read wishlist for badge")
	}

	tracked := make(map[string]struct{}, len(records))
	for key := range records {
		tracked[key] = struct{}{}
	}

	cancel, err := b.store.Subscribe(ctx, namespace, func(event sharedstore.Event) {
		b.apply(customerID, event)
	})
	if err != nil {
		// Badge still works, it just goes stale until the next seed.
		b.logger.Warn(b.logger.WithCustomerID(ctx, customerID), "wishlist badge subscription failed")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.keys[customerID]; ok {
		if cancel != nil {
			cancel()
		}
		return len(existing), nil
	}
	b.keys[customerID] = tracked
	if cancel != nil {
		b.cancels[customerID] = cancel
	}
	return len(tracked), nil
}

// Close cancels every active subscription.
func (b *BadgeCounter) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for customerID, cancel := range b.cancels {
		cancel()
		delete(b.cancels, customerID)
	}
}

func (b *BadgeCounter) apply(customerID string, event sharedstore.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tracked, ok := b.keys[customerID]
	if !ok {
		return
	}
	if event.Deleted {
		delete(tracked, event.Key)
		return
	}
	tracked[event.Key] = struct{}{}
}
