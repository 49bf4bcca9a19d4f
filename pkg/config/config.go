package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Pipeline
	Pipeline PipelineConfig

	// Scanner sources
	Affiliate AffiliateConfig
	Social    SocialConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// PipelineConfig holds scan cycle and scoring settings
type PipelineConfig struct {
	ScanInterval       time.Duration // delay between scan cycles
	MaxConcurrentScans int           // worker pool size for a cycle
	MinScore           int           // threshold for the active store
	ScannerTimeout     time.Duration // per-scanner context deadline
	ScannerCacheTTL    time.Duration // scanner result cache window
	ScannerRateLimit   int           // per-scanner requests per minute
	OpportunityMaxAge  time.Duration // active store sweep age, 0 disables
	VolatilityHighRisk float64       // velocity volatility high-risk threshold
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// AffiliateConfig holds affiliate network API configuration
type AffiliateConfig struct {
	BaseURL string
	APIKey  string
}

// SocialConfig holds social trend feed configuration
type SocialConfig struct {
	BaseURL string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8097"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Pipeline
		Pipeline: PipelineConfig{
			ScanInterval:       getEnvAsDuration("SCAN_INTERVAL", "5m"),
			MaxConcurrentScans: getEnvAsInt("MAX_CONCURRENT_SCANS", 5),
			MinScore:           getEnvAsInt("MIN_SCORE", 70),
			ScannerTimeout:     getEnvAsDuration("SCANNER_TIMEOUT", "60s"),
			ScannerCacheTTL:    getEnvAsDuration("SCANNER_CACHE_TTL", "15m"),
			ScannerRateLimit:   getEnvAsInt("SCANNER_RATE_LIMIT", 60),
			OpportunityMaxAge:  getEnvAsDuration("OPPORTUNITY_MAX_AGE", "24h"),
			VolatilityHighRisk: getEnvAsFloat("VOLATILITY_HIGH_RISK", 0.5),
		},

		// Scanner sources
		Affiliate: AffiliateConfig{
			BaseURL: getEnv("AFFILIATE_BASE_URL", "https://api.affiliatehub.example.com"),
			APIKey:  getEnv("AFFILIATE_API_KEY", ""),
		},
		Social: SocialConfig{
			BaseURL: getEnv("SOCIAL_BASE_URL", "https://trends.socialpulse.example.com"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Pipeline.MaxConcurrentScans < 1 {
		return fmt.Errorf("MAX_CONCURRENT_SCANS must be at least 1")
	}

	if c.Pipeline.MinScore < 0 || c.Pipeline.MinScore > 100 {
		return fmt.Errorf("MIN_SCORE must be within [0, 100]")
	}

	if c.Pipeline.ScanInterval < time.Second {
		return fmt.Errorf("SCAN_INTERVAL must be at least 1s")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
