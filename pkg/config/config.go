package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Commerce CommerceConfig
	Shared   SharedStoreConfig
	Cache    CacheConfig
	JWT      JWTConfig
	Payment  PaymentConfig
	CORS     CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VELOURA_APP_ENV" required:"true"`
	Port         string `envconfig:"VELOURA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"VELOURA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VELOURA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CommerceConfig points at the hosted commerce platform's storefront API.
type CommerceConfig struct {
	ShopDomain  string        `envconfig:"VELOURA_SHOP_DOMAIN" required:"true"`
	AccessToken string        `envconfig:"VELOURA_STOREFRONT_ACCESS_TOKEN" required:"true"`
	APIVersion  string        `envconfig:"VELOURA_STOREFRONT_API_VERSION" default:"2024-10"`
	Timeout     time.Duration `envconfig:"VELOURA_STOREFRONT_TIMEOUT" default:"10s"`
}

// Endpoint returns the GraphQL endpoint for the configured shop.
func (c CommerceConfig) Endpoint() string {
	return fmt.Sprintf("https://%s/api/%s/graphql.json", c.ShopDomain, c.APIVersion)
}

// SharedStoreConfig configures the multi-writer key-value store used for
// cross-device cart mirroring, wishlist, and reviews.
type SharedStoreConfig struct {
	URL          string        `envconfig:"VELOURA_SHARED_STORE_URL" required:"true"`
	Address      string        `envconfig:"VELOURA_SHARED_STORE_ADDR"`
	Password     string        `envconfig:"VELOURA_SHARED_STORE_PASSWORD"`
	DB           int           `envconfig:"VELOURA_SHARED_STORE_DB" default:"0"`
	PoolSize     int           `envconfig:"VELOURA_SHARED_STORE_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VELOURA_SHARED_STORE_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VELOURA_SHARED_STORE_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VELOURA_SHARED_STORE_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VELOURA_SHARED_STORE_WRITE_TIMEOUT" default:"5s"`
}

// CacheConfig configures the durable per-device cache backing the cart
// snapshot and cached credentials.
type CacheConfig struct {
	Path string `envconfig:"VELOURA_CACHE_PATH" default:"storefront-cache.db"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VELOURA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VELOURA_JWT_ISSUER" default:"storefront-gateway"`
	ExpirationMinutes int    `envconfig:"VELOURA_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// Expiration returns the session token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PaymentConfig struct {
	AccessToken string `envconfig:"VELOURA_PAYMENT_ACCESS_TOKEN"`
	Environment string `envconfig:"VELOURA_PAYMENT_ENV" default:"sandbox"`
	LocationID  string `envconfig:"VELOURA_PAYMENT_LOCATION_ID"`
}

type CORSConfig struct {
	Origins []string `envconfig:"VELOURA_CORS_ORIGINS" default:"http://localhost:3000"`
}
