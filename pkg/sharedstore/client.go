package sharedstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/velourastyle/storefront-gateway/pkg/config"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
)

const (
	keyNamespace  = "veloura"
	eventsSuffix  = "events"
	CartPrefix    = "cart"
	WishPrefix    = "wishlist"
	ReviewPrefix  = "reviews"
)

// ErrAbsent is returned when a record does not exist in the shared store.
var ErrAbsent = errors.New("sharedstore: record absent")

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Del(context.Context, ...string) *redis.IntCmd
	Keys(context.Context, string) *redis.StringSliceCmd
	MGet(context.Context, ...string) *redis.SliceCmd
	Publish(context.Context, string, any) *redis.IntCmd
}

// Event describes a single record change broadcast to subscribers.
type Event struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Client is the multi-writer per-customer key-value store. Every write is a
// full-value overwrite of one record; the smallest unit of conflict is a
// single record, and the last writer wins.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// New bootstraps the shared store client and verifies connectivity.
func New(ctx context.Context, cfg config.SharedStoreConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping shared store: %w", err)
	}
	return &Client{store: raw, raw: raw}, nil
}

func optionsFromConfig(cfg config.SharedStoreConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("shared store url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing shared store url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Write overwrites the record at namespace/key and notifies subscribers.
func (c *Client) Write(ctx context.Context, namespace, key, value string) error {
	if c.store == nil {
		return errors.New("shared store not initialized")
	}
	full := c.buildKey(namespace, key)
	if err := c.store.Set(ctx, full, value, 0).Err(); err != nil {
		return err
	}
	c.notify(ctx, namespace, Event{Key: key, Value: value})
	return nil
}

// Read returns the record at namespace/key, or ErrAbsent.
func (c *Client) Read(ctx context.Context, namespace, key string) (string, error) {
	if c.store == nil {
		return "", errors.New("shared store not initialized")
	}
	value, err := c.store.Get(ctx, c.buildKey(namespace, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrAbsent
		}
		return "", err
	}
	return value, nil
}

// Delete removes the record and notifies subscribers; deleting an absent
// record is a no-op.
func (c *Client) Delete(ctx context.Context, namespace, key string) error {
	if c.store == nil {
		return errors.New("shared store not initialized")
	}
	if err := c.store.Del(ctx, c.buildKey(namespace, key)).Err(); err != nil {
		return err
	}
	c.notify(ctx, namespace, Event{Key: key, Deleted: true})
	return nil
}

// List returns every record under the namespace keyed by its short key.
func (c *Client) List(ctx context.Context, namespace string) (map[string]string, error) {
	if c.store == nil {
		return nil, errors.New("shared store not initialized")
	}
	prefix := c.buildKey(namespace, "")
	keys, err := c.store.Keys(ctx, prefix+"*").Result()
	if err != nil {
		return nil, err
	}
	records := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return records, nil
	}
	values, err := c.store.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, key := range keys {
		value, ok := values[i].(string)
		if !ok {
			continue
		}
		records[strings.TrimPrefix(key, prefix)] = value
	}
	return records, nil
}

// Subscribe streams record changes under the namespace. Used only for display
// counters (cart and wishlist badges), never for mutation correctness. The
// returned function cancels the subscription.
func (c *Client) Subscribe(ctx context.Context, namespace string, onChange func(Event)) (func(), error) {
	if c.raw == nil {
		return nil, errors.New("shared store not initialized")
	}
	sub := c.raw.Subscribe(ctx, c.channel(namespace))
	go func() {
		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			onChange(event)
		}
	}()
	return func() { _ = sub.Close() }, nil
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errors.New("shared store not initialized")
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) notify(ctx context.Context, namespace string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	// Badge updates are advisory; publish failures are ignored.
	_ = c.store.Publish(ctx, c.channel(namespace), payload).Err()
}

func (c *Client) channel(namespace string) string {
	return c.buildKey(namespace, eventsSuffix)
}

// CartNamespace returns the per-customer cart namespace.
func CartNamespace(customerID string) string {
	return CartPrefix + ":" + customerID
}

// WishlistNamespace returns the per-customer wishlist namespace.
func WishlistNamespace(customerID string) string {
	return WishPrefix + ":" + customerID
}

// ReviewNamespace returns the per-product review namespace.
func ReviewNamespace(productHandle string) string {
	return ReviewPrefix + ":" + productHandle
}

func (c *Client) buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	key := strings.Join(clean, ":")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		key += ":"
	}
	return key
}
