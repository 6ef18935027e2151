package sharedstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestWriteReadDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	ns := CartNamespace("cust-1")

	if err := client.Write(ctx, ns, "p1", `{"quantity":2}`); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := client.Read(ctx, ns, "p1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != `{"quantity":2}` {
		t.Fatalf("unexpected value: %s", got)
	}

	if err := client.Delete(ctx, ns, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.Read(ctx, ns, "p1"); !errors.Is(err, ErrAbsent) {
		t.Fatalf("expected ErrAbsent, got %v", err)
	}
}

func TestWritePublishesChangeEvent(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	ns := WishlistNamespace("cust-1")

	if err := client.Write(ctx, ns, "prod-9", "{}"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(mock.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(mock.published))
	}
	if !strings.Contains(mock.published[0].payload, `"prod-9"`) {
		t.Fatalf("event payload missing key: %s", mock.published[0].payload)
	}
	if !strings.HasSuffix(mock.published[0].channel, ":"+eventsSuffix) {
		t.Fatalf("unexpected channel: %s", mock.published[0].channel)
	}
}

func TestListReturnsNamespaceRecords(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	ns := CartNamespace("cust-1")

	if err := client.Write(ctx, ns, "p1", "a"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := client.Write(ctx, ns, "p2", "b"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := client.Write(ctx, CartNamespace("cust-2"), "p3", "c"); err != nil {
		t.Fatalf("write: %v", err)
	}

	records, err := client.List(ctx, ns)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected two records, got %d: %v", len(records), records)
	}
	if records["p1"] != "a" || records["p2"] != "b" {
		t.Fatalf("unexpected records: %v", records)
	}
}

func TestNamespaceHelpers(t *testing.T) {
	t.Parallel()

	if got := CartNamespace("c1"); got != "cart:c1" {
		t.Fatalf("unexpected cart namespace: %s", got)
	}
	if got := ReviewNamespace("linen-dress"); got != "reviews:linen-dress" {
		t.Fatalf("unexpected review namespace: %s", got)
	}
}

type publishedEvent struct {
	channel string
	payload string
}

type mockCmdable struct {
	values    map[string]string
	published []publishedEvent
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{values: map[string]string{}}
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.values[key] = toString(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	value, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := m.values[key]; ok {
			delete(m.values, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (m *mockCmdable) Keys(ctx context.Context, pattern string) *redis.StringSliceCmd {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return redis.NewStringSliceResult(keys, nil)
}

func (m *mockCmdable) MGet(ctx context.Context, keys ...string) *redis.SliceCmd {
	values := make([]any, 0, len(keys))
	for _, key := range keys {
		if value, ok := m.values[key]; ok {
			values = append(values, value)
		} else {
			values = append(values, nil)
		}
	}
	return redis.NewSliceResult(values, nil)
}

func (m *mockCmdable) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	m.published = append(m.published, publishedEvent{channel: channel, payload: toString(message)})
	return redis.NewIntResult(1, nil)
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}
