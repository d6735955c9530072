package config

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process-level configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
// 분석 파라미터(유사도, 지평, 가중치 등)는 ANALYSIS_CONFIG YAML 파일에 있음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (price history source, optional)
	Database DatabaseConfig

	// Redis (result cache + API rate limit, optional)
	Redis RedisConfig

	// Analysis
	Analysis AnalysisConfig

	// API
	API APIConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	Prefix   string
	CacheTTL time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// AnalysisConfig holds analysis runtime settings
type AnalysisConfig struct {
	ConfigPath   string        // 분석 파라미터 YAML 경로
	Concurrency  int           // 배치 분석 병렬 수
	LookbackDays int           // DB에서 읽는 가격 이력 기간 (달력 일)
	Timeout      time.Duration // 요청 1건 분석 제한 시간

	// 장 마감 후 캐시 예열 (API 서버 + Redis 사용 시)
	WarmCodes    []string
	WarmSchedule string // cron (초 포함)
}

// APIConfig holds HTTP API settings
type APIConfig struct {
	RateLimit      int // 클라이언트당 분당 요청 수 (0 = 제한 없음)
	MaxBodyBytes   int64
	AllowedOrigins string
	TrustedProxies []string // X-Forwarded-For를 신뢰할 프록시 IP/CIDR (비어 있으면 RemoteAddr만 사용)
}

// TrustedProxyPrefixes parses TrustedProxies into prefixes (bare IPs become single-host prefixes)
func (a APIConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(a.TrustedProxies))
	for _, entry := range a.TrustedProxies {
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "histpos"),
			User:            getEnv("DB_USER", "histpos"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
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
			Prefix:   getEnv("REDIS_PREFIX", "histpos"),
			CacheTTL: getEnvAsDuration("CACHE_TTL", "24h"),
		},

		// Analysis
		Analysis: AnalysisConfig{
			ConfigPath:   getEnv("ANALYSIS_CONFIG", "config/analysis.yaml"),
			Concurrency:  getEnvAsInt("ANALYSIS_CONCURRENCY", 4),
			LookbackDays: getEnvAsInt("ANALYSIS_LOOKBACK_DAYS", 3650),
			Timeout:      getEnvAsDuration("ANALYSIS_TIMEOUT", "30s"),
			WarmCodes:    getEnvAsList("ANALYSIS_WARM_CODES"),
			WarmSchedule: getEnv("ANALYSIS_WARM_SCHEDULE", "0 30 18 * * 1-5"),
		},

		// API
		API: APIConfig{
			RateLimit:      getEnvAsInt("API_RATE_LIMIT", 60),
			MaxBodyBytes:   int64(getEnvAsInt("API_MAX_BODY_BYTES", 8<<20)),
			AllowedOrigins: getEnv("API_ALLOWED_ORIGINS", "*"),
			TrustedProxies: getEnvAsList("API_TRUSTED_PROXIES"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// HasDatabase reports whether a price history database is configured
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// validate checks if configuration values are consistent
// DATABASE_URL은 선택 (CSV 입력만으로도 분석 가능)
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Analysis.ConfigPath == "" {
		return fmt.Errorf("ANALYSIS_CONFIG must not be empty")
	}

	if c.Analysis.Concurrency < 1 {
		return fmt.Errorf("ANALYSIS_CONCURRENCY must be >= 1, got %d", c.Analysis.Concurrency)
	}

	if c.Analysis.LookbackDays < 1 {
		return fmt.Errorf("ANALYSIS_LOOKBACK_DAYS must be >= 1, got %d", c.Analysis.LookbackDays)
	}

	if c.API.RateLimit < 0 {
		return fmt.Errorf("API_RATE_LIMIT must be >= 0, got %d", c.API.RateLimit)
	}

	if _, err := c.API.TrustedProxyPrefixes(); err != nil {
		return fmt.Errorf("API_TRUSTED_PROXIES: %w", err)
	}

	if c.Env == "production" && c.Redis.Enabled && c.Redis.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive when Redis is enabled")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
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

func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
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
