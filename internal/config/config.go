package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	KSeF     KSeFConfig     `mapstructure:"ksef"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Invoice  InvoiceConfig  `mapstructure:"invoice"`
	Registry RegistryConfig `mapstructure:"registry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // gin mode: debug, release or test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds record store configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// KSeFConfig holds gateway configuration. Credentials stored through the API take
// precedence over the ones configured here.
type KSeFConfig struct {
	Environment  string        `mapstructure:"environment"`
	Token        string        `mapstructure:"token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// InvoiceConfig holds the values new drafts are prefilled with
type InvoiceConfig struct {
	IssuePlace    string  `mapstructure:"issue_place"`
	PaymentMethod string  `mapstructure:"payment_method"`
	VatRate       float64 `mapstructure:"vat_rate"`
}

// RegistryConfig holds KRS lookup configuration
type RegistryConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from the YAML file at configPath and the environment.
// An empty path loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/faktura.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	// KSeF defaults
	v.SetDefault("ksef.environment", "")
	v.SetDefault("ksef.token", "")
	v.SetDefault("ksef.timeout", 30*time.Second)
	v.SetDefault("ksef.poll_interval", 30*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Invoice defaults
	v.SetDefault("invoice.issue_place", "Warszawa")
	v.SetDefault("invoice.payment_method", "Przelew")
	v.SetDefault("invoice.vat_rate", 23)

	// Registry defaults
	v.SetDefault("registry.base_url", "https://api-krs.ms.gov.pl/api/krs")
	v.SetDefault("registry.timeout", 10*time.Second)
}

// bindEnvVars binds the documented environment variables
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"ksef.token":       "KSEF_TOKEN",
		"ksef.environment": "KSEF_ENVIRONMENT",
		"database.path":    "DATABASE_PATH",
		"logger.level":     "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q", DriverSQLite, DriverMemory)
	}

	switch c.KSeF.Environment {
	case "", "test", "production":
	default:
		return fmt.Errorf("ksef.environment must be test or production")
	}
	if c.KSeF.PollInterval < 0 {
		return fmt.Errorf("ksef.poll_interval must not be negative")
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console")
	}

	if c.Invoice.VatRate < 0 {
		return fmt.Errorf("invoice.vat_rate must not be negative")
	}

	return nil
}
