package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Document store drivers
const (
	DriverGraphQL = "graphql"
	DriverMongo   = "mongo"
	DriverMemory  = "memory"
)

// Config is loaded once at startup and passed to constructors
type Config struct {
	Port     string
	AppURL   string
	LogLevel string
	// Instances is how many replicas serve the same stores
	Instances int

	Shopify  ShopifyConfig
	DocStore DocStoreConfig
	Redis    RedisConfig
	Tickets  TicketConfig
	Billing  BillingConfig
}

// ShopifyConfig holds the app credentials issued by Shopify
type ShopifyConfig struct {
	APIKey     string
	APISecret  string
	Scopes     []string
	APIVersion string
}

// DocStoreConfig selects and configures the business-data store
type DocStoreConfig struct {
	Driver         string
	URL            string
	SecretHeader   string
	Secret         string
	Timeout        time.Duration
	AppDatabase    string
	MongoURI       string
	DatabasePrefix string
}

// RedisConfig enables cross-instance ticket locking when URL is set
type RedisConfig struct {
	URL     string
	LockTTL time.Duration
}

// TicketConfig controls the one-time ticket sub-protocol
type TicketConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// BillingConfig describes the recurring charges offered per plan
type BillingConfig struct {
	Test         bool
	BasicPrice   string
	PremiumPrice string
	Currency     string
	// ReturnTTL bounds how long a signed billing return URL is honoured
	ReturnTTL time.Duration
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{
		Port:     GetEnv("PORT", "8080"),
		AppURL:   strings.TrimSuffix(GetEnv("APP_URL", "http://localhost:8080"), "/"),
		LogLevel: GetEnv("LOG_LEVEL", "info"),
		Shopify: ShopifyConfig{
			APIKey:     os.Getenv("SHOPIFY_API_KEY"),
			APISecret:  os.Getenv("SHOPIFY_API_SECRET"),
			Scopes:     splitList(GetEnv("SHOPIFY_SCOPES", "read_products,write_products")),
			APIVersion: GetEnv("SHOPIFY_API_VERSION", "2024-10"),
		},
		DocStore: DocStoreConfig{
			Driver:         GetEnv("DOCSTORE_DRIVER", DriverGraphQL),
			URL:            os.Getenv("DOCSTORE_URL"),
			SecretHeader:   GetEnv("DOCSTORE_SECRET_HEADER", "X-Service-Key"),
			Secret:         os.Getenv("DOCSTORE_SECRET"),
			AppDatabase:    GetEnv("DOCSTORE_APP_DATABASE", "shopify_app"),
			MongoURI:       GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
			DatabasePrefix: os.Getenv("MONGODB_DATABASE_PREFIX"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Billing: BillingConfig{
			BasicPrice:   GetEnv("PLAN_PRICE_BASIC", "9.99"),
			PremiumPrice: GetEnv("PLAN_PRICE_PREMIUM", "29.99"),
			Currency:     GetEnv("PLAN_CURRENCY", "USD"),
		},
	}

	var err error
	if cfg.DocStore.Timeout, err = getDuration("DOCSTORE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Redis.LockTTL, err = getDuration("REDIS_LOCK_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Tickets.TTL, err = getDuration("TICKET_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Tickets.SweepInterval, err = getDuration("TICKET_SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.Billing.Test, err = getBool("BILLING_TEST", false); err != nil {
		return nil, err
	}
	if cfg.Billing.ReturnTTL, err = getDuration("BILLING_RETURN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Instances, err = getInt("INSTANCES", 1); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every deployment needs
func (c *Config) Validate() error {
	if c.Shopify.APIKey == "" || c.Shopify.APISecret == "" {
		return fmt.Errorf("SHOPIFY_API_KEY and SHOPIFY_API_SECRET are required")
	}
	switch c.DocStore.Driver {
	case DriverGraphQL:
		if c.DocStore.URL == "" {
			return fmt.Errorf("DOCSTORE_URL is required for the %s driver", DriverGraphQL)
		}
	case DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unknown DOCSTORE_DRIVER %q", c.DocStore.Driver)
	}
	if c.Tickets.TTL <= 0 {
		return fmt.Errorf("TICKET_TTL must be positive")
	}
	if c.Billing.ReturnTTL <= 0 {
		return fmt.Errorf("BILLING_RETURN_TTL must be positive")
	}
	if c.Instances > 1 && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when INSTANCES is %d: ticket locks must be shared", c.Instances)
	}
	return nil
}

// GetEnv returns the value of envVar or defaultValue when unset
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(envVar string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", envVar, err)
	}
	return d, nil
}

func getInt(envVar string, defaultValue int) (int, error) {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", envVar, err)
	}
	return n, nil
}

func getBool(envVar string, defaultValue bool) (bool, error) {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", envVar, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
