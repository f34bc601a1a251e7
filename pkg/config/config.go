package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Data sources
	Provider  ProviderConfig
	Eastmoney EastmoneyConfig

	// Pipeline
	Cache  CacheConfig
	Filter FilterConfig

	// Delivery
	Notify   NotifyConfig
	Schedule ScheduleConfig

	// Optional ledger backends
	Database DatabaseConfig
	Redis    RedisConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// ProviderConfig holds the premium-feed provider (jisilu) configuration.
// Username/Password are optional: without them datasets are fetched anonymously.
type ProviderConfig struct {
	LoginURL   string
	LOFURL     string
	QDIIURL    string
	Username   string
	Password   string
	PageSize   int
	Timeout    time.Duration
	UserAgent  string
	RefererURL string
}

// HasCredentials reports whether both username and password are set
func (p ProviderConfig) HasCredentials() bool {
	return p.Username != "" && p.Password != ""
}

// EastmoneyConfig holds the exchange spot list and NAV history endpoints
type EastmoneyConfig struct {
	SpotURL      string
	NavURL       string
	Workers      int
	LookbackDays int
	RatePerSec   float64 // 0 disables pacing
	Timeout      time.Duration
}

// CacheConfig holds the day-scoped NAV cache configuration
type CacheConfig struct {
	Dir      string
	KeepDays int
}

// FilterConfig holds opportunity thresholds
type FilterConfig struct {
	PremiumThreshold    float64 // premium-feed categories
	NavPremiumThreshold float64 // quote-vs-NAV category
	MinTurnover         float64 // quote-vs-NAV category, same unit as provider turnover
	HighPremium         float64 // summary "high premium" bucket
	CategoriesFile      string  // optional TOML vocabulary override
}

// NotifyConfig holds webhook delivery configuration
type NotifyConfig struct {
	WebhookURL string
	MaxItems   int
	Timeout    time.Duration
}

// ScheduleConfig holds the daily trigger configuration
type ScheduleConfig struct {
	TriggerTime  string // HH:MM local time
	PollInterval time.Duration
	Timezone     string
	Mode         string // premium-feed, nav, all
	Ledger       string // file, redis, postgres
	LedgerPath   string
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

var triggerTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Provider: ProviderConfig{
			LoginURL:   getEnv("JISILU_LOGIN_URL", "https://www.jisilu.cn/account/ajax/login_process/"),
			LOFURL:     getEnv("JISILU_LOF_URL", "https://www.jisilu.cn/data/lof/index_lof_list/"),
			QDIIURL:    getEnv("JISILU_QDII_URL", "https://www.jisilu.cn/data/qdii/qdii_list/"),
			Username:   firstEnv("JISILU_ACCOUNT", "jisilu_account"),
			Password:   firstEnv("JISILU_PASSWORD", "jisilu_password"),
			PageSize:   getEnvAsInt("JISILU_PAGE_SIZE", 100),
			Timeout:    getEnvAsDuration("JISILU_TIMEOUT", "10s"),
			UserAgent:  getEnv("JISILU_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"),
			RefererURL: getEnv("JISILU_REFERER", "https://www.jisilu.cn/"),
		},

		Eastmoney: EastmoneyConfig{
			SpotURL:      getEnv("EASTMONEY_SPOT_URL", "https://88.push2.eastmoney.com/api/qt/clist/get"),
			NavURL:       getEnv("EASTMONEY_NAV_URL", "https://fund.eastmoney.com/f10/F10DataApi.aspx"),
			Workers:      getEnvAsInt("NAV_WORKERS", 3),
			LookbackDays: getEnvAsInt("NAV_LOOKBACK_DAYS", 7),
			RatePerSec:   getEnvAsFloat("NAV_RATE_PER_SEC", 5),
			Timeout:      getEnvAsDuration("EASTMONEY_TIMEOUT", "10s"),
		},

		Cache: CacheConfig{
			Dir:      getEnv("NAV_CACHE_DIR", "lof_cache"),
			KeepDays: getEnvAsInt("NAV_CACHE_KEEP_DAYS", 7),
		},

		Filter: FilterConfig{
			PremiumThreshold:    getEnvAsFloat("PREMIUM_THRESHOLD", 5.0),
			NavPremiumThreshold: getEnvAsFloat("NAV_PREMIUM_THRESHOLD", 1.5),
			MinTurnover:         getEnvAsFloat("MIN_TURNOVER", 500_000),
			HighPremium:         getEnvAsFloat("HIGH_PREMIUM", 5.0),
			CategoriesFile:      getEnv("CATEGORIES_FILE", ""),
		},

		Notify: NotifyConfig{
			WebhookURL: getEnv("FEISHU_BOT_HOOK_URL", ""),
			MaxItems:   getEnvAsInt("NOTIFY_MAX_ITEMS", 5),
			Timeout:    getEnvAsDuration("NOTIFY_TIMEOUT", "10s"),
		},

		Schedule: ScheduleConfig{
			TriggerTime:  getEnv("SCHEDULE_TRIGGER_TIME", "14:00"),
			PollInterval: getEnvAsDuration("SCHEDULE_POLL_INTERVAL", "60s"),
			Timezone:     getEnv("SCHEDULE_TIMEZONE", "Local"),
			Mode:         getEnv("SCHEDULE_MODE", "premium-feed"),
			Ledger:       getEnv("SCHEDULE_LEDGER", "file"),
			LedgerPath:   getEnv("SCHEDULE_LEDGER_PATH", "lof_cache/fired.json"),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 4),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks structural configuration values.
// Missing credentials and webhook URL are not errors: those features degrade.
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if !triggerTimePattern.MatchString(c.Schedule.TriggerTime) {
		return fmt.Errorf("SCHEDULE_TRIGGER_TIME must be HH:MM, got %q", c.Schedule.TriggerTime)
	}

	if c.Schedule.PollInterval <= 0 {
		return fmt.Errorf("SCHEDULE_POLL_INTERVAL must be positive")
	}

	switch c.Schedule.Mode {
	case "premium-feed", "nav", "all":
	default:
		return fmt.Errorf("SCHEDULE_MODE must be one of: premium-feed, nav, all")
	}

	switch c.Schedule.Ledger {
	case "file", "redis", "postgres":
	default:
		return fmt.Errorf("SCHEDULE_LEDGER must be one of: file, redis, postgres")
	}

	if c.Schedule.Ledger == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when SCHEDULE_LEDGER=postgres")
	}

	if c.Schedule.Ledger == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("REDIS_ENABLED must be true when SCHEDULE_LEDGER=redis")
	}

	if c.Eastmoney.Workers < 1 {
		return fmt.Errorf("NAV_WORKERS must be at least 1")
	}

	return nil
}

// Location resolves the configured schedule timezone
func (c *Config) Location() *time.Location {
	if c.Schedule.Timezone == "" || c.Schedule.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

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

// firstEnv returns the first non-empty variable among keys
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
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
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
