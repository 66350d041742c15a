package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"` // 0 waits forever
	Migrate         bool          `mapstructure:"migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// LedgerConfig holds the business thresholds of the voucher ledger.
// Amounts are kept as strings so that env overrides never go through float parsing.
type LedgerConfig struct {
	MinVoucherAmount    string        `mapstructure:"min_voucher_amount"`
	MinRedemptionAmount string        `mapstructure:"min_redemption_amount"`
	VoucherTTL          time.Duration `mapstructure:"voucher_ttl"`
	CodeAttempts        int           `mapstructure:"code_attempts"`
}

// Rules converts the ledger thresholds into decimal values.
func (l LedgerConfig) Rules() (LedgerRules, error) {
	minVoucher, err := decimal.NewFromString(l.MinVoucherAmount)
	if err != nil {
		return LedgerRules{}, fmt.Errorf("parsing ledger.min_voucher_amount: %w", err)
	}
	minRedemption, err := decimal.NewFromString(l.MinRedemptionAmount)
	if err != nil {
		return LedgerRules{}, fmt.Errorf("parsing ledger.min_redemption_amount: %w", err)
	}
	if l.VoucherTTL <= 0 {
		return LedgerRules{}, fmt.Errorf("ledger.voucher_ttl must be positive")
	}
	attempts := l.CodeAttempts
	if attempts < 1 {
		attempts = 1
	}
	return LedgerRules{
		MinVoucherAmount:    minVoucher,
		MinRedemptionAmount: minRedemption,
		VoucherTTL:          l.VoucherTTL,
		CodeAttempts:        attempts,
	}, nil
}

// LedgerRules is the parsed form of LedgerConfig consumed by the services.
type LedgerRules struct {
	MinVoucherAmount    decimal.Decimal
	MinRedemptionAmount decimal.Decimal
	VoucherTTL          time.Duration
	CodeAttempts        int
}

// DefaultLedgerRules returns the thresholds used when nothing is configured.
func DefaultLedgerRules() LedgerRules {
	return LedgerRules{
		MinVoucherAmount:    decimal.NewFromInt(100),
		MinRedemptionAmount: decimal.NewFromInt(50),
		VoucherTTL:          30 * 24 * time.Hour,
		CodeAttempts:        5,
	}
}

// defaults applies when neither the config file nor PPAY_* variables set a key.
var defaults = map[string]any{
	"server.host":                  "0.0.0.0",
	"server.port":                  8080,
	"server.mode":                  "debug",
	"storage.driver":               "postgres",
	"database.host":                "localhost",
	"database.port":                5432,
	"database.user":                "postgres",
	"database.password":            "postgres",
	"database.dbname":              "purposepay",
	"database.sslmode":             "disable",
	"database.max_conns":           20,
	"database.min_conns":           5,
	"database.conn_max_lifetime":   "30m",
	"database.lock_timeout":        "5s",
	"database.migrate":             true,
	"redis.enabled":                true,
	"redis.host":                   "localhost",
	"redis.port":                   6379,
	"redis.password":               "",
	"redis.db":                     0,
	"jwt.secret":                   "",
	"jwt.expiry":                   "24h",
	"jwt.issuer":                   "purposepay",
	"log.level":                    "info",
	"log.pretty":                   false,
	"ledger.min_voucher_amount":    "100.00",
	"ledger.min_redemption_amount": "50.00",
	"ledger.voucher_ttl":           "720h",
	"ledger.code_attempts":         5,
}

// Load reads config.yaml (or path) and lets PPAY_* environment variables
// override it, e.g. PPAY_DATABASE_HOST for database.host. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("PPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode %q: want debug, release or test", c.Server.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver %q: want postgres or memory", c.Storage.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required (PPAY_JWT_SECRET)")
	}
	if c.Database.LockTimeout < 0 {
		return errors.New("database.lock_timeout must not be negative")
	}
	return nil
}
