package wishlist

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"

	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
	"github.com/velourastyle/storefront-gateway/pkg/sharedstore"
)

type fakeBadgeStore struct {
	records   map[string]map[string]string
	onChange  func(sharedstore.Event)
	cancelled bool
}

func (f *fakeBadgeStore) List(_ context.Context, namespace string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.records[namespace] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeBadgeStore) Subscribe(_ context.Context, _ string, onChange func(sharedstore.Event)) (func(), error) {
	f.onChange = onChange
	return func() { f.cancelled = true }, nil
}

func badgeLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
}

func TestBadgeRequiresCustomer(t *testing.T) {
	t.Parallel()

	counter, err := NewBadgeCounter(&fakeBadgeStore{}, badgeLogger())
	if err != nil {
		t.Fatalf("new counter: %v", err)
	}
	if _, err := counter.Count(context.Background(), ""); !pkgerrors.Is(err, pkgerrors.CodeUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestBadgeSeedsAndFollowsChanges(t *testing.T) {
	t.Parallel()

	store := &fakeBadgeStore{records: map[string]map[string]string{
		sharedstore.WishlistNamespace("cust-1"): {"silk-scarf": "{}", "linen-dress": "{}"},
	}}
	counter, err := NewBadgeCounter(store, badgeLogger())
	if err != nil {
		t.Fatalf("new counter: %v", err)
	}

	count, err := counter.Count(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	store.onChange(sharedstore.Event{Key: "wool-shawl", Value: "{}"})
	count, err = counter.Count(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("count after add: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	store.onChange(sharedstore.Event{Key: "silk-scarf", Deleted: true})
	store.onChange(sharedstore.Event{Key: "linen-dress", Deleted: true})
	count, err = counter.Count(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("count after deletes: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestBadgeCloseCancelsSubscriptions(t *testing.T) {
	t.Parallel()

	store := &fakeBadgeStore{}
	counter, err := NewBadgeCounter(store, badgeLogger())
	if err != nil {
		t.Fatalf("new counter: %v", err)
	}
	if _, err := counter.Count(context.Background(), "cust-1"); err != nil {
		t.Fatalf("count: %v", err)
	}

	counter.Close()
	if !store.cancelled {
		t.Fatal("expected subscription to be cancelled")
	}
}
