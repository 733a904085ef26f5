package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"lbx/database"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Storage drivers
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMongo    = "mongo"
	StorageDriverMemory   = "memory"
)

// Event sinks
const (
	EventSinkNone  = "none"
	EventSinkNATS  = "nats"
	EventSinkKafka = "kafka"
)

// Config holds all application configuration
type Config struct {
	// HTTP server
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CookieSecure    bool

	// Storage
	StorageDriver       string // postgres, mongo or memory
	DatabaseURL         string
	DatabaseName        string
	MongoURI            string
	MongoDatabase       string
	ConnectTimeout      time.Duration
	AllowMemoryFallback bool
	StatePersist        bool
	StateFile           string // comma-separated candidate paths
	StateSaveDelay      time.Duration

	// Wallet
	SignupBonus int64

	// Jackpot
	JackpotBaseFloor decimal.Decimal
	JackpotTimezone  string
	JackpotLocation  *time.Location

	// Promo codes
	PromoAmounts        []int64
	RedeemRatePerMinute int
	RedeemBurst         int

	// Recharge orders
	RechargePackages  []int64
	RechargeCapPerDay int64

	// Stream event rewards
	HookSecret            string
	EventCapPerDay        int64
	EventLBXSubNew        int64
	EventLBXSubRenew      int64
	EventLBXGiftPerSub    int64
	EventLBXGiftRecipient int64
	EventJackpotPerSub    decimal.Decimal
	EventDefaultProvider  string

	// Admin
	AdminUser         string
	AdminPasswordHash string // bcrypt
	AdminSecret       string
	AdminTokenTTL     time.Duration
	DisableAdminAuth  bool

	// Event sink
	EventSink    string // none, nats or kafka
	NATSServers  string // comma-separated
	NATSStream   string
	KafkaBrokers []string
	KafkaTopic   string

	// OpenTelemetry
	OTelEnabled              bool
	OTelServiceName          string
	OTelExporterType         string // console, otlp or none
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = Load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// StateFileCandidates returns the configured state file paths in preference order
func (c *Config) StateFileCandidates() []string {
	return splitList(c.StateFile)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8080)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("COOKIE_SECURE", false)

	v.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	v.SetDefault("DATABASE_NAME", "")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB", "lbx")
	v.SetDefault("CONNECT_TIMEOUT", "5s")
	v.SetDefault("ALLOW_MEMORY_FALLBACK", false)
	v.SetDefault("STATE_PERSIST", false)
	v.SetDefault("STATE_FILE", "./data/lbx-state.json,/tmp/lbx-state.json")
	v.SetDefault("STATE_SAVE_DELAY", "500ms")

	v.SetDefault("SIGNUP_BONUS", 50)

	v.SetDefault("JACKPOT_BASE_FLOOR", "150")
	v.SetDefault("JACKPOT_TIMEZONE", "Australia/Melbourne")

	v.SetDefault("PROMO_AMOUNTS", "5,10,15,20,25,30")
	v.SetDefault("REDEEM_RATE_PER_MINUTE", 10)
	v.SetDefault("REDEEM_BURST", 5)

	v.SetDefault("RECHARGE_PACKAGES", "5,10,15,20,25,30")
	v.SetDefault("RECHARGE_CAP_PER_DAY", 30)

	v.SetDefault("EVENT_CAP_PER_DAY", 100)
	v.SetDefault("EVENT_LBX_SUB_NEW", 10)
	v.SetDefault("EVENT_LBX_SUB_RENEW", 5)
	v.SetDefault("EVENT_LBX_GIFT_PER_SUB", 2)
	v.SetDefault("EVENT_LBX_GIFT_RECIPIENT", 3)
	v.SetDefault("EVENT_JACKPOT_PER_SUB", "2.50")
	v.SetDefault("EVENT_DEFAULT_PROVIDER", "generic")

	v.SetDefault("ADMIN_USER", "admin")
	v.SetDefault("ADMIN_TOKEN_TTL", "12h")

	v.SetDefault("EVENT_SINK", EventSinkNone)
	v.SetDefault("NATS_SERVERS", "nats://localhost:4222")
	v.SetDefault("NATS_STREAM", "LBX_EVENTS")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "lbx.events")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "lbx")
	v.SetDefault("OTEL_EXPORTER_TYPE", "console")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_EXPORT_INTERVAL_MILLIS", 60000)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENVIRONMENT", "development")
}

// Load reads configuration from a .env file, an optional config.yaml and the environment.
// Environment variables take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	config := &Config{
		Host:            v.GetString("HOST"),
		Port:            v.GetInt("PORT"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		CookieSecure:    v.GetBool("COOKIE_SECURE"),

		StorageDriver:       strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		DatabaseName:        v.GetString("DATABASE_NAME"),
		MongoURI:            v.GetString("MONGO_URI"),
		MongoDatabase:       v.GetString("MONGO_DB"),
		ConnectTimeout:      v.GetDuration("CONNECT_TIMEOUT"),
		AllowMemoryFallback: v.GetBool("ALLOW_MEMORY_FALLBACK"),
		StatePersist:        v.GetBool("STATE_PERSIST"),
		StateFile:           v.GetString("STATE_FILE"),
		StateSaveDelay:      v.GetDuration("STATE_SAVE_DELAY"),

		SignupBonus: v.GetInt64("SIGNUP_BONUS"),

		JackpotTimezone: v.GetString("JACKPOT_TIMEZONE"),

		RedeemRatePerMinute: v.GetInt("REDEEM_RATE_PER_MINUTE"),
		RedeemBurst:         v.GetInt("REDEEM_BURST"),

		RechargeCapPerDay: v.GetInt64("RECHARGE_CAP_PER_DAY"),

		HookSecret:            v.GetString("HOOK_SECRET"),
		EventCapPerDay:        v.GetInt64("EVENT_CAP_PER_DAY"),
		EventLBXSubNew:        v.GetInt64("EVENT_LBX_SUB_NEW"),
		EventLBXSubRenew:      v.GetInt64("EVENT_LBX_SUB_RENEW"),
		EventLBXGiftPerSub:    v.GetInt64("EVENT_LBX_GIFT_PER_SUB"),
		EventLBXGiftRecipient: v.GetInt64("EVENT_LBX_GIFT_RECIPIENT"),
		EventDefaultProvider:  v.GetString("EVENT_DEFAULT_PROVIDER"),

		AdminUser:         v.GetString("ADMIN_USER"),
		AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		AdminSecret:       v.GetString("ADMIN_SECRET"),
		AdminTokenTTL:     v.GetDuration("ADMIN_TOKEN_TTL"),
		DisableAdminAuth:  v.GetBool("DISABLE_ADMIN_AUTH"),

		EventSink:    strings.ToLower(strings.TrimSpace(v.GetString("EVENT_SINK"))),
		NATSServers:  v.GetString("NATS_SERVERS"),
		NATSStream:   v.GetString("NATS_STREAM"),
		KafkaBrokers: splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("KAFKA_TOPIC"),

		OTelEnabled:              v.GetBool("OTEL_ENABLED"),
		OTelServiceName:          v.GetString("OTEL_SERVICE_NAME"),
		OTelExporterType:         v.GetString("OTEL_EXPORTER_TYPE"),
		OTelOTLPEndpoint:         v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelExportIntervalMillis: v.GetInt("OTEL_EXPORT_INTERVAL_MILLIS"),

		LogLevel:    v.GetString("LOG_LEVEL"),
		Environment: v.GetString("ENVIRONMENT"),
	}

	var err error
	if config.JackpotBaseFloor, err = decimal.NewFromString(v.GetString("JACKPOT_BASE_FLOOR")); err != nil {
		return nil, fmt.Errorf("JACKPOT_BASE_FLOOR is not a number: %w", err)
	}
	if config.EventJackpotPerSub, err = decimal.NewFromString(v.GetString("EVENT_JACKPOT_PER_SUB")); err != nil {
		return nil, fmt.Errorf("EVENT_JACKPOT_PER_SUB is not a number: %w", err)
	}
	if config.PromoAmounts, err = parseAmounts("PROMO_AMOUNTS", v.GetString("PROMO_AMOUNTS")); err != nil {
		return nil, err
	}
	if config.RechargePackages, err = parseAmounts("RECHARGE_PACKAGES", v.GetString("RECHARGE_PACKAGES")); err != nil {
		return nil, err
	}
	if config.JackpotLocation, err = time.LoadLocation(config.JackpotTimezone); err != nil {
		return nil, fmt.Errorf("JACKPOT_TIMEZONE %q is not loadable: %w", config.JackpotTimezone, err)
	}

	// The admin gate stays open outside production unless a secret is configured
	if !v.IsSet("DISABLE_ADMIN_AUTH") && !config.IsProduction() && config.AdminSecret == "" {
		config.DisableAdminAuth = true
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks value ranges and the settings each driver requires
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" && !c.AllowMemoryFallback {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case StorageDriverMongo:
		if c.MongoURI == "" && !c.AllowMemoryFallback {
			return fmt.Errorf("MONGO_URI is required for the mongo driver")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.EventSink {
	case EventSinkNone, EventSinkNATS, EventSinkKafka:
	default:
		return fmt.Errorf("unknown EVENT_SINK %q", c.EventSink)
	}

	if c.SignupBonus < 0 {
		return fmt.Errorf("SIGNUP_BONUS must be >= 0")
	}
	if !c.JackpotBaseFloor.IsPositive() {
		return fmt.Errorf("JACKPOT_BASE_FLOOR must be > 0")
	}
	if c.EventCapPerDay <= 0 {
		return fmt.Errorf("EVENT_CAP_PER_DAY must be > 0")
	}
	if c.EventJackpotPerSub.IsNegative() {
		return fmt.Errorf("EVENT_JACKPOT_PER_SUB must be >= 0")
	}
	if len(c.PromoAmounts) == 0 {
		return fmt.Errorf("PROMO_AMOUNTS must not be empty")
	}
	if len(c.RechargePackages) == 0 {
		return fmt.Errorf("RECHARGE_PACKAGES must not be empty")
	}
	if c.RechargeCapPerDay <= 0 {
		return fmt.Errorf("RECHARGE_CAP_PER_DAY must be > 0")
	}
	if c.RedeemRatePerMinute <= 0 || c.RedeemBurst <= 0 {
		return fmt.Errorf("REDEEM_RATE_PER_MINUTE and REDEEM_BURST must be > 0")
	}
	if !c.DisableAdminAuth && c.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required unless DISABLE_ADMIN_AUTH is set")
	}
	return nil
}

func parseAmounts(key, raw string) ([]int64, error) {
	var amounts []int64
	for _, part := range splitList(raw) {
		amount, err := strconv.ParseInt(part, 10, 64)
		if err != nil || amount <= 0 {
			return nil, fmt.Errorf("%s contains invalid amount %q", key, part)
		}
		amounts = append(amounts, amount)
	}
	return amounts, nil
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a memory-backed config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Host:                  "127.0.0.1",
		Port:                  8080,
		ShutdownTimeout:       time.Second,
		StorageDriver:         StorageDriverMemory,
		StateSaveDelay:        50 * time.Millisecond,
		SignupBonus:           50,
		JackpotBaseFloor:      decimal.NewFromInt(150),
		JackpotTimezone:       "UTC",
		JackpotLocation:       time.UTC,
		PromoAmounts:          []int64{5, 10, 15, 20, 25, 30},
		RedeemRatePerMinute:   60,
		RedeemBurst:           10,
		RechargePackages:      []int64{5, 10, 15, 20, 25, 30},
		RechargeCapPerDay:     30,
		HookSecret:            "test-hook-secret",
		EventCapPerDay:        100,
		EventLBXSubNew:        10,
		EventLBXSubRenew:      5,
		EventLBXGiftPerSub:    2,
		EventLBXGiftRecipient: 3,
		EventJackpotPerSub:    decimal.RequireFromString("2.50"),
		EventDefaultProvider:  "generic",
		AdminUser:             "admin",
		AdminSecret:           "test-admin-secret",
		AdminTokenTTL:         time.Hour,
		EventSink:             EventSinkNone,
		OTelServiceName:       "lbx-test",
		OTelExporterType:      "none",
		LogLevel:              "error",
		Environment:           "test",
	}
}
