package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Warehouse holds the analytical store connection settings
	Warehouse WarehouseConfig

	// Redis configuration
	Redis RedisConfig

	// Server configuration
	Server ServerConfig

	// NLSQL holds natural-language query processing configuration
	NLSQL NLSQLConfig
}

// WarehouseConfig holds PostgreSQL warehouse configuration
type WarehouseConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
	Timeout  time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string
	GinMode        string
	AllowedOrigins []string
}

// NLSQLConfig holds NL->SQL pipeline configuration
type NLSQLConfig struct {
	DefaultLimit          int
	MaxLimit              int
	DefaultTrailingMonths int
	MaxDateSpanYears      int
	CacheTTL              time.Duration
	MaxQuestionLength     int
}

// Loader handles loading configuration from various sources
type Loader struct {
	provider SecretProvider
}

// NewLoader creates a new configuration loader with the given secret provider
func NewLoader(provider SecretProvider) *Loader {
	return &Loader{
		provider: provider,
	}
}

// NewDefaultLoader creates a loader with the default provider chain:
// 1. File-based secrets (mounted credentials, if available)
// 2. Environment variables (fallback)
func NewDefaultLoader() *Loader {
	providers := []SecretProvider{
		NewFileProvider("/var/secrets"),
		NewEnvProvider(),
	}

	return &Loader{
		provider: NewChainProvider(providers...),
	}
}

// Load loads the complete configuration
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	cfg := &Config{}

	cfg.Warehouse = WarehouseConfig{
		Host:     l.getString(ctx, "WAREHOUSE_HOST", "localhost"),
		Port:     l.getString(ctx, "WAREHOUSE_PORT", "5432"),
		Database: l.getString(ctx, "WAREHOUSE_DB", "registry_analytics"),
		Username: l.getString(ctx, "WAREHOUSE_USER", "registry"),
		Password: l.getString(ctx, "WAREHOUSE_PASSWORD", ""),
		SSLMode:  l.getString(ctx, "WAREHOUSE_SSLMODE", "disable"),
		Timeout:  l.getDuration(ctx, "WAREHOUSE_TIMEOUT", 15*time.Second),
	}

	cfg.Redis = RedisConfig{
		Addr:     l.getString(ctx, "REDIS_ADDR", "localhost:6379"),
		Password: l.getString(ctx, "REDIS_PASSWORD", ""),
		DB:       l.getInt(ctx, "REDIS_DB", 0),
	}

	cfg.Server = ServerConfig{
		Port:           l.getString(ctx, "PORT", "8080"),
		GinMode:        l.getString(ctx, "GIN_MODE", "debug"),
		AllowedOrigins: l.getSlice(ctx, "ALLOWED_ORIGINS", []string{"*"}),
	}

	cfg.NLSQL = NLSQLConfig{
		DefaultLimit:          l.getInt(ctx, "NLSQL_DEFAULT_LIMIT", 10),
		MaxLimit:              l.getInt(ctx, "NLSQL_MAX_LIMIT", 50),
		DefaultTrailingMonths: l.getInt(ctx, "NLSQL_DEFAULT_TRAILING_MONTHS", 12),
		MaxDateSpanYears:      l.getInt(ctx, "NLSQL_MAX_DATE_SPAN_YEARS", 10),
		CacheTTL:              l.getDuration(ctx, "NLSQL_CACHE_TTL", 5*time.Minute),
		MaxQuestionLength:     l.getInt(ctx, "NLSQL_MAX_QUESTION_LENGTH", 500),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Warehouse.Port); err != nil {
		return fmt.Errorf("invalid warehouse port %q: %w", c.Warehouse.Port, err)
	}
	if c.Warehouse.Timeout <= 0 {
		return fmt.Errorf("warehouse timeout must be positive, got %s", c.Warehouse.Timeout)
	}
	if c.NLSQL.DefaultLimit <= 0 || c.NLSQL.MaxLimit <= 0 {
		return fmt.Errorf("limits must be positive (default=%d, max=%d)", c.NLSQL.DefaultLimit, c.NLSQL.MaxLimit)
	}
	if c.NLSQL.DefaultLimit > c.NLSQL.MaxLimit {
		return fmt.Errorf("default limit %d exceeds max limit %d", c.NLSQL.DefaultLimit, c.NLSQL.MaxLimit)
	}
	if c.NLSQL.DefaultTrailingMonths <= 0 {
		return fmt.Errorf("default trailing months must be positive, got %d", c.NLSQL.DefaultTrailingMonths)
	}
	if c.NLSQL.MaxDateSpanYears <= 0 {
		return fmt.Errorf("max date span years must be positive, got %d", c.NLSQL.MaxDateSpanYears)
	}
	return nil
}

// Helper methods for retrieving and parsing configuration values

func (l *Loader) getString(ctx context.Context, key, defaultValue string) string {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}
	return value
}

func (l *Loader) getInt(ctx context.Context, key string, defaultValue int) int {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}

func (l *Loader) getDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func (l *Loader) getSlice(ctx context.Context, key string, defaultValue []string) []string {
	value, err := l.provider.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// MustLoad loads configuration and panics on error
// Useful for application startup
func (l *Loader) MustLoad(ctx context.Context) *Config {
	cfg, err := l.Load(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
