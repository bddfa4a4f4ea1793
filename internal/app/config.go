package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete service configuration, loadable from environment
// variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr              string `default:"0.0.0.0:8080" usage:"API server listen address"`
	OrderBackendURL   string `usage:"Base URL of the order backend" flag:"order-backend-url"`
	PaymentBackendURL string `usage:"Base URL of the payment backend" flag:"payment-backend-url"`
	CartBackendURL    string `usage:"Base URL of the cart service" flag:"cart-backend-url"`

	Storage  StorageConfig
	Poll     PollConfig
	Graceful GracefulConfig
}

// StorageConfig selects and configures the durable state store.
type StorageConfig struct {
	// Driver is one of memory, redis, postgres. The memory driver loses
	// pending state on restart and is for development only.
	Driver      string `default:"memory" usage:"State store driver: memory, redis, postgres"`
	RedisURL    string `usage:"Redis connection URL (redis driver)" flag:"redis-url"`
	DatabaseURL string `usage:"PostgreSQL connection URL (postgres driver)" flag:"database-url"`
	KeyPrefix   string `default:"checkout" usage:"Key prefix for the redis driver"`
}

// PollConfig controls the payment status poller.
type PollConfig struct {
	Interval time.Duration `default:"2s" usage:"Fixed interval between status queries"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CHECKOUT",
		Files:     []string{"config.yaml", "/etc/checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.OrderBackendURL == "" {
		return nil, errors.New("order backend URL is required: set CHECKOUT_ORDER_BACKEND_URL")
	}
	if cfg.PaymentBackendURL == "" {
		return nil, errors.New("payment backend URL is required: set CHECKOUT_PAYMENT_BACKEND_URL")
	}
	if cfg.CartBackendURL == "" {
		return nil, errors.New("cart backend URL is required: set CHECKOUT_CART_BACKEND_URL")
	}

	switch cfg.Storage.Driver {
	case "memory":
	case "redis":
		if cfg.Storage.RedisURL == "" {
			return nil, errors.New("redis URL is required for the redis storage driver")
		}
	case "postgres":
		if cfg.Storage.DatabaseURL == "" {
			return nil, errors.New("database URL is required for the postgres storage driver")
		}
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (PORT,
// DATABASE_URL, REDIS_URL) to the CHECKOUT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Storage.DatabaseURL = v
		}
	}
	if c.Storage.RedisURL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.Storage.RedisURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
