package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"scheduling-api/internal/auth"
)

const (
	defaultSecret   = "your-secret-key-change-in-production"
	defaultTimezone = "Africa/Addis_Ababa"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTExpiry   time.Duration

	StoreDriver string
	DBDSN       string
	ListenAddr  string

	UploadDir      string
	MaxUploadBytes int64

	DefaultTimezone string
	EnableMetrics   bool
	EnableSwagger   bool
	Environment     string

	fileErr error
}

// Load builds the configuration from defaults, the optional CONFIG_FILE
// and the environment, in increasing order of precedence.
func Load() *Config {
	config := &Config{
		JWTSecret:       defaultSecret,
		JWTIssuer:       "scheduling-api",
		JWTAudience:     "scheduling-api",
		JWTExpiry:       24 * time.Hour, // Default to 24 hours
		StoreDriver:     DriverPostgres,
		ListenAddr:      ":8080",
		UploadDir:       "uploads",
		MaxUploadBytes:  16 << 20,
		DefaultTimezone: defaultTimezone,
		EnableMetrics:   true,
		EnableSwagger:   true,
		Environment:     "development",
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		config.fileErr = config.overlayFile(path)
	}

	config.JWTSecret = getEnv("JWT_SECRET", config.JWTSecret)
	config.JWTIssuer = getEnv("JWT_ISS", config.JWTIssuer)
	config.JWTAudience = getEnv("JWT_AUD", config.JWTAudience)
	config.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", config.StoreDriver))
	config.DBDSN = getEnv("DB_DSN", config.DBDSN)
	config.ListenAddr = getEnv("LISTEN_ADDR", config.ListenAddr)
	config.UploadDir = getEnv("UPLOAD_DIR", config.UploadDir)
	config.DefaultTimezone = getEnv("DEFAULT_TIMEZONE", config.DefaultTimezone)
	config.Environment = getEnv("ENVIRONMENT", config.Environment)
	config.EnableMetrics = getBool("ENABLE_METRICS", config.EnableMetrics)
	config.EnableSwagger = getBool("ENABLE_SWAGGER", config.EnableSwagger)

	// Parse JWT expiry from environment if provided
	if expiryStr := os.Getenv("JWT_EXPIRY"); expiryStr != "" {
		if expiry, err := time.ParseDuration(expiryStr); err == nil {
			config.JWTExpiry = expiry
		}
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.MaxUploadBytes = n
		}
	}

	return config
}

// LoadAndValidate loads the configuration and rejects unusable values.
func LoadAndValidate() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.fileErr != nil {
		return c.fileErr
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", auth.MinSecretLength)
	}
	if c.IsProduction() && c.JWTSecret == defaultSecret {
		return errors.New("JWT_SECRET must be changed in production")
	}
	if c.JWTIssuer == "" {
		return errors.New("JWT_ISS is required")
	}
	if c.JWTAudience == "" {
		return errors.New("JWT_AUD is required")
	}
	if c.JWTExpiry < time.Minute {
		return errors.New("JWT_EXPIRY must be at least 1 minute")
	}
	if c.JWTExpiry > 30*24*time.Hour {
		return errors.New("JWT_EXPIRY must not exceed 30 days")
	}

	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DBDSN == "" {
			return errors.New("DB_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// fileConfig mirrors Config with the expiry as text ("2h") so the YAML stays readable.
type fileConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	JWTIssuer       string `yaml:"jwt_issuer"`
	JWTAudience     string `yaml:"jwt_audience"`
	JWTExpiry       string `yaml:"jwt_expiry"`
	StoreDriver     string `yaml:"store_driver"`
	DBDSN           string `yaml:"db_dsn"`
	ListenAddr      string `yaml:"listen_addr"`
	UploadDir       string `yaml:"upload_dir"`
	MaxUploadBytes  int64  `yaml:"max_upload_bytes"`
	DefaultTimezone string `yaml:"default_timezone"`
	EnableMetrics   *bool  `yaml:"enable_metrics"`
	EnableSwagger   *bool  `yaml:"enable_swagger"`
	Environment     string `yaml:"environment"`
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.JWTSecret, f.JWTSecret)
	set(&c.JWTIssuer, f.JWTIssuer)
	set(&c.JWTAudience, f.JWTAudience)
	set(&c.StoreDriver, f.StoreDriver)
	set(&c.DBDSN, f.DBDSN)
	set(&c.ListenAddr, f.ListenAddr)
	set(&c.UploadDir, f.UploadDir)
	set(&c.DefaultTimezone, f.DefaultTimezone)
	set(&c.Environment, f.Environment)
	if f.JWTExpiry != "" {
		d, err := time.ParseDuration(f.JWTExpiry)
		if err != nil {
			return fmt.Errorf("config file jwt_expiry: %w", err)
		}
		c.JWTExpiry = d
	}
	if f.MaxUploadBytes != 0 {
		c.MaxUploadBytes = f.MaxUploadBytes
	}
	if f.EnableMetrics != nil {
		c.EnableMetrics = *f.EnableMetrics
	}
	if f.EnableSwagger != nil {
		c.EnableSwagger = *f.EnableSwagger
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
