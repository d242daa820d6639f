// Package config loads server configuration.
//
// Values are layered, each layer overriding the one before:
//
//  1. built-in defaults
//  2. an optional YAML file named by --config or VAULT_CONFIG
//  3. environment variables
//  4. command-line flags
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Stripe    StripeConfig    `yaml:"stripe"`
	Auth      AuthConfig      `yaml:"auth"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// MaxWebhookBytes caps the size of a webhook request body.
	MaxWebhookBytes int64 `yaml:"max_webhook_bytes"`
}

// StoreConfig selects and configures the ledger store.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// StripeConfig configures the payment processor.
type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`

	// APIURL overrides the API base URL, for test doubles.
	APIURL string `yaml:"api_url"`

	// Timeout bounds each processor call.
	Timeout time.Duration `yaml:"timeout"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// ReconcileConfig configures the background sweeper.
type ReconcileConfig struct {
	// SweepInterval is how often the sweeper runs. Zero disables it.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// StaleAfter is how long a transaction may stay pending before the
	// sweeper asks the processor about it.
	StaleAfter time.Duration `yaml:"stale_after"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxWebhookBytes: 64 << 10,
		},
		Store: StoreConfig{
			Driver:     DriverSQLite,
			SQLitePath: "./data/vault.db",
		},
		Stripe: StripeConfig{
			Timeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Reconcile: ReconcileConfig{
			SweepInterval: 5 * time.Minute,
			StaleAfter:    30 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from args (without the program name) and
// the environment as seen through getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("vault-server", pflag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file (env VAULT_CONFIG)")
	flags := cfg.flagValues(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	path := getenv("VAULT_CONFIG")
	if fs.Changed("config") {
		path = *configPath
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	flags.apply(fs, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"ADDR":                  &c.Server.Addr,
		"DB_DRIVER":             &c.Store.Driver,
		"DB_PATH":               &c.Store.SQLitePath,
		"DATABASE_URL":          &c.Store.PostgresDSN,
		"STRIPE_SECRET_KEY":     &c.Stripe.SecretKey,
		"STRIPE_WEBHOOK_SECRET": &c.Stripe.WebhookSecret,
		"STRIPE_API_URL":        &c.Stripe.APIURL,
		"JWT_SECRET":            &c.Auth.JWTSecret,
		"LOG_LEVEL":             &c.Log.Level,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"STRIPE_TIMEOUT": &c.Stripe.Timeout,
		"TOKEN_TTL":      &c.Auth.TokenTTL,
		"SWEEP_INTERVAL": &c.Reconcile.SweepInterval,
		"STALE_AFTER":    &c.Reconcile.StaleAfter,
	}
	for key, dst := range durations {
		v := getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if v := getenv("MAX_WEBHOOK_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_WEBHOOK_BYTES: %w", err)
		}
		c.Server.MaxWebhookBytes = n
	}
	return nil
}

// flagValues holds flag destinations until they are applied over the
// file and environment layers.
type flagValues struct {
	addr, driver, sqlitePath, postgresDSN, logLevel *string
	stripeTimeout, sweepInterval                    *time.Duration
}

func (c *Config) flagValues(fs *pflag.FlagSet) *flagValues {
	return &flagValues{
		addr:          fs.String("addr", c.Server.Addr, "listen address"),
		driver:        fs.String("store", c.Store.Driver, "ledger store driver: sqlite or postgres"),
		sqlitePath:    fs.String("db-path", c.Store.SQLitePath, "SQLite database path"),
		postgresDSN:   fs.String("database-url", "", "PostgreSQL connection string"),
		logLevel:      fs.String("log-level", c.Log.Level, "log level: debug, info, warn, error"),
		stripeTimeout: fs.Duration("stripe-timeout", c.Stripe.Timeout, "timeout for each payment processor call"),
		sweepInterval: fs.Duration("sweep-interval", c.Reconcile.SweepInterval, "reconciliation sweep interval (0 disables)"),
	}
}

func (f *flagValues) apply(fs *pflag.FlagSet, c *Config) {
	if fs.Changed("addr") {
		c.Server.Addr = *f.addr
	}
	if fs.Changed("store") {
		c.Store.Driver = *f.driver
	}
	if fs.Changed("db-path") {
		c.Store.SQLitePath = *f.sqlitePath
	}
	if fs.Changed("database-url") {
		c.Store.PostgresDSN = *f.postgresDSN
	}
	if fs.Changed("log-level") {
		c.Log.Level = *f.logLevel
	}
	if fs.Changed("stripe-timeout") {
		c.Stripe.Timeout = *f.stripeTimeout
	}
	if fs.Changed("sweep-interval") {
		c.Reconcile.SweepInterval = *f.sweepInterval
	}
}

// Validate reports configuration that the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxWebhookBytes <= 0 {
		errs = append(errs, errors.New("server.max_webhook_bytes must be positive"))
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("stripe.secret_key is required"))
	}
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("stripe.webhook_secret is required"))
	}
	if c.Stripe.Timeout <= 0 {
		errs = append(errs, errors.New("stripe.timeout must be positive"))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}

	if c.Reconcile.SweepInterval < 0 {
		errs = append(errs, errors.New("reconcile.sweep_interval must not be negative"))
	}
	if c.Reconcile.SweepInterval > 0 && c.Reconcile.StaleAfter <= 0 {
		errs = append(errs, errors.New("reconcile.stale_after must be positive when sweeping"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}
	return errors.Join(errs...)
}
