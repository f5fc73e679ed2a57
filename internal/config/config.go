package config

import (
	"fmt"
	"strings"
	"time"

	"ecom_ops_backend/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
)

// Config is the process configuration, read from the environment (and .env).
type Config struct {
	Port      string `validate:"required"`
	GinMode   string `validate:"oneof=debug release test"`
	LogLevel  string `validate:"oneof=trace debug info warn error"`
	LogFormat string `validate:"oneof=console json"`

	DataProvider string `validate:"oneof=postgres memory"`
	DemoSeedPath string

	DB DBConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int           `validate:"min=0"`
	CostCacheTTL  time.Duration `validate:"min=0"`

	JWTSecret     string        `validate:"required,min=16"`
	JWTExpiration time.Duration `validate:"gt=0"`

	AutomationAPIKey        string
	AllowInsecureAutomation bool

	BusinessTimezone   string `validate:"required"`
	CORSAllowedOrigins []string

	WooBaseURL        string `validate:"omitempty,url"`
	WooConsumerKey    string `validate:"required_with=WooBaseURL"`
	WooConsumerSecret string `validate:"required_with=WooBaseURL"`

	ShippoBaseURL  string `validate:"omitempty,url"`
	ShippoAPIToken string

	AffiliateRate         decimal.Decimal
	LowStockThreshold     int `validate:"min=0"`
	SyncBatchSize         int `validate:"min=1,max=100"`
	RegexMaxPatternLength int `validate:"min=1"`
}

// DBConfig is only validated when DataProvider is postgres.
type DBConfig struct {
	Host        string `validate:"required"`
	Port        string `validate:"required"`
	User        string `validate:"required"`
	Password    string
	Name        string `validate:"required"`
	SSLMode     string `validate:"oneof=disable require verify-ca verify-full"`
	SchemaPath  string
	ApplySchema bool
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	rate, err := decimal.NewFromString(utils.Getenv("AFFILIATE_RATE", "0.10"))
	if err != nil {
		return nil, fmt.Errorf("AFFILIATE_RATE: %w", err)
	}

	cfg := &Config{
		Port:      utils.Getenv("PORT", "8080"),
		GinMode:   utils.Getenv("GIN_MODE", "debug"),
		LogLevel:  strings.ToLower(utils.Getenv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(utils.Getenv("LOG_FORMAT", "console")),

		DataProvider: strings.ToLower(utils.Getenv("DATA_PROVIDER", ProviderPostgres)),
		DemoSeedPath: utils.Getenv("DEMO_SEED_PATH", ""),

		DB: DBConfig{
			Host:        utils.Getenv("DB_HOST", "localhost"),
			Port:        utils.Getenv("DB_PORT", "5432"),
			User:        utils.Getenv("DB_USER", "postgres"),
			Password:    utils.Getenv("DB_PASSWORD", ""),
			Name:        utils.Getenv("DB_NAME", "ecom_ops"),
			SSLMode:     utils.Getenv("DB_SSLMODE", "disable"),
			SchemaPath:  utils.Getenv("DB_SCHEMA_PATH", ""),
			ApplySchema: utils.GetenvBool("DB_APPLY_SCHEMA", true),
		},

		RedisAddr:     utils.Getenv("REDIS_ADDR", ""),
		RedisPassword: utils.Getenv("REDIS_PASSWORD", ""),
		RedisDB:       utils.GetenvInt("REDIS_DB", 0),
		CostCacheTTL:  utils.GetenvDuration("COST_CACHE_TTL", 5*time.Minute),

		JWTSecret:     utils.Getenv("JWT_SECRET", ""),
		JWTExpiration: utils.GetenvDuration("JWT_EXPIRATION", 72*time.Hour),

		AutomationAPIKey:        utils.Getenv("AUTOMATION_API_KEY", ""),
		AllowInsecureAutomation: utils.GetenvBool("ALLOW_INSECURE_AUTOMATION", false),

		BusinessTimezone:   utils.Getenv("BUSINESS_TIMEZONE", "America/New_York"),
		CORSAllowedOrigins: splitList(utils.Getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		WooBaseURL:        utils.Getenv("WOO_BASE_URL", ""),
		WooConsumerKey:    utils.Getenv("WOO_CONSUMER_KEY", ""),
		WooConsumerSecret: utils.Getenv("WOO_CONSUMER_SECRET", ""),

		ShippoBaseURL:  utils.Getenv("SHIPPO_BASE_URL", ""),
		ShippoAPIToken: utils.Getenv("SHIPPO_API_TOKEN", ""),

		AffiliateRate:         rate,
		LowStockThreshold:     utils.GetenvInt("LOW_STOCK_THRESHOLD", 5),
		SyncBatchSize:         utils.GetenvInt("SYNC_BATCH_SIZE", 25),
		RegexMaxPatternLength: utils.GetenvInt("REGEX_MAX_PATTERN_LENGTH", 256),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags plus the rules that span fields.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.StructExcept(c, "DB"); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.DataProvider == ProviderPostgres {
		if err := v.Struct(c.DB); err != nil {
			return fmt.Errorf("invalid database configuration: %w", err)
		}
	}
	if c.AffiliateRate.IsNegative() || c.AffiliateRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid configuration: AFFILIATE_RATE must be between 0 and 1, got %s", c.AffiliateRate)
	}
	if _, err := time.LoadLocation(c.BusinessTimezone); err != nil {
		return fmt.Errorf("invalid configuration: BUSINESS_TIMEZONE %q: %w", c.BusinessTimezone, err)
	}
	return nil
}

// Location returns the business timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AutomationAuthDisabled reports whether automation endpoints run without a key.
func (c *Config) AutomationAuthDisabled() bool {
	return c.AutomationAPIKey == "" && c.AllowInsecureAutomation
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
