package wishlist

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
	"github.com/velourastyle/storefront-gateway/pkg/sharedstore"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]map[string]string{}}
}

func (f *fakeStore) Write(ctx context.Context, namespace, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records[namespace] == nil {
		f.records[namespace] = map[string]string{}
	}
	f.records[namespace][key] = value
	return nil
}

func (f *fakeStore) Read(ctx context.Context, namespace, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.records[namespace][key]
	if !ok {
		return "", sharedstore.ErrAbsent
	}
	return value, nil
}

func (f *fakeStore) Delete(ctx context.Context, namespace, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records[namespace], key)
	return nil
}

func (f *fakeStore) List(ctx context.Context, namespace string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for key, value := range f.records[namespace] {
		out[key] = value
	}
	return out, nil
}

func testService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	svc, err := NewService(st, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, st
}

func TestAddRequiresCustomer(t *testing.T) {
	t.Parallel()

	svc, _ := testService(t)
	_, err := svc.Add(context.Background(), "", ItemInput{Key: "p1", Handle: "linen-dress"})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestAddListRoundTrip(t *testing.T) {
	t.Parallel()

	svc, _ := testService(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(time.Minute)}
	svc.now = func() time.Time {
		next := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return next
	}

	if _, err := svc.Add(ctx, "cust-1", ItemInput{Key: "p1", Handle: "linen-dress", Title: "Linen Dress"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Add(ctx, "cust-1", ItemInput{Key: "p2", Handle: "silk-scarf", Title: "Silk Scarf"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	items, err := svc.List(ctx, "cust-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Key != "p2" {
		t.Fatalf("expected newest first, got %s", items[0].Key)
	}
}

func TestContainsAndRemove(t *testing.T) {
	t.Parallel()

	svc, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "cust-1", ItemInput{Key: "p1", Handle: "linen-dress"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	saved, err := svc.Contains(ctx, "cust-1", "p1")
	if err != nil || !saved {
		t.Fatalf("expected saved item, got %v %v", saved, err)
	}

	if err := svc.Remove(ctx, "cust-1", "p1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	saved, err = svc.Contains(ctx, "cust-1", "p1")
	if err != nil || saved {
		t.Fatalf("expected removed, got %v %v", saved, err)
	}
}

func TestListsAreCustomerScoped(t *testing.T) {
	t.Parallel()

	svc, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "cust-1", ItemInput{Key: "p1", Handle: "linen-dress"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	items, err := svc.List(ctx, "cust-2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("customer isolation violated: %+v", items)
	}
}
