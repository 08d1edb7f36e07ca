package config

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"
)

// Config holds all configuration for the schooladmin application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	MongoURI string `json:"mongo_uri"`
	MongoDB  string `json:"mongo_db"`
	RedisURL string `json:"redis_url"`
	HTTPAddr string `json:"http_addr"`

	// CacheBackend selects the store behind the response cache and the
	// rate-limit counters: "redis" or "memcache".
	CacheBackend  string `json:"cache_backend"`
	MemcachedAddr string `json:"memcached_addr,omitempty"`

	CacheTTL    time.Duration `json:"-"`
	CacheTTLStr string        `json:"cache_ttl_seconds"`

	RateLimitPerMinute int `json:"rate_limit_per_minute"`
	RateLimitPerHour   int `json:"rate_limit_per_hour"`
	MaxRecentRequests  int `json:"max_recent_requests"`

	AdminAPIKey string `json:"admin_api_key"`

	SMSProvider      string `json:"sms_provider"`
	TwilioAccountSID string `json:"twilio_account_sid,omitempty"`
	TwilioAuthToken  string `json:"twilio_auth_token,omitempty"`
	TwilioFromNumber string `json:"twilio_from_number,omitempty"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		MongoURI:               os.Getenv("MONGO_URI"),
		MongoDB:                os.Getenv("MONGO_DB"),
		RedisURL:               os.Getenv("REDIS_URL"),
		HTTPAddr:               os.Getenv("HTTP_ADDR"),
		CacheBackend:           os.Getenv("CACHE_BACKEND"),
		MemcachedAddr:          os.Getenv("MEMCACHED_ADDR"),
		AdminAPIKey:            os.Getenv("ADMIN_API_KEY"),
		SMSProvider:            os.Getenv("SMS_PROVIDER"),
		TwilioAccountSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:        os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:       os.Getenv("TWILIO_FROM_NUMBER"),
		DBOpTimeoutStr:         os.Getenv("DB_OP_TIMEOUT"),
		HTTPShutdownTimeoutStr: os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:         os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:            os.Getenv("METRICS_PATH"),
		MetricsPort:            os.Getenv("METRICS_PORT"),
	}

	if ttlStr := os.Getenv("CACHE_TTL_SECONDS"); ttlStr != "" {
		if n, err := parseInt(ttlStr); err == nil && n > 0 {
			cfg.CacheTTLStr = ttlStr
		} else {
			log.Printf("config: invalid CACHE_TTL_SECONDS %q (must be a positive integer), using default 60", ttlStr)
		}
	}
	if cfg.CacheTTLStr == "" {
		cfg.CacheTTLStr = "60"
	}

	if perMinStr := os.Getenv("RATE_LIMIT_PER_MINUTE"); perMinStr != "" {
		if n, err := parseInt(perMinStr); err == nil && n > 0 {
			cfg.RateLimitPerMinute = n
		} else {
			log.Printf("config: invalid RATE_LIMIT_PER_MINUTE %q (must be a positive integer), using default 60", perMinStr)
		}
	}
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = 60
	}

	if perHourStr := os.Getenv("RATE_LIMIT_PER_HOUR"); perHourStr != "" {
		if n, err := parseInt(perHourStr); err == nil && n > 0 {
			cfg.RateLimitPerHour = n
		} else {
			log.Printf("config: invalid RATE_LIMIT_PER_HOUR %q (must be a positive integer), using default 1000", perHourStr)
		}
	}
	if cfg.RateLimitPerHour == 0 {
		cfg.RateLimitPerHour = 1000
	}

	if recentStr := os.Getenv("MAX_RECENT_REQUESTS"); recentStr != "" {
		if n, err := parseInt(recentStr); err == nil && n > 0 {
			cfg.MaxRecentRequests = n
		} else {
			log.Printf("config: invalid MAX_RECENT_REQUESTS %q (must be a positive integer), using default 100", recentStr)
		}
	}
	if cfg.MaxRecentRequests == 0 {
		cfg.MaxRecentRequests = 100
	}

	if cfg.MongoDB == "" {
		cfg.MongoDB = "school_db"
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://localhost:6379/0"
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "redis"
	}
	if cfg.SMSProvider == "" {
		cfg.SMSProvider = "log"
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}

	// Parse durations; validation is handled separately by Validate().
	if n, err := parseInt(cfg.CacheTTLStr); err == nil {
		cfg.CacheTTL = time.Duration(n) * time.Second
	}
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}

	return cfg
}

// parseInt parses a string as a non-negative integer.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, os.ErrInvalid
	}
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		MongoURI            string `json:"mongo_uri"`
		MongoDB             string `json:"mongo_db"`
		RedisURL            string `json:"redis_url"`
		HTTPAddr            string `json:"http_addr"`
		CacheBackend        string `json:"cache_backend"`
		MemcachedAddr       string `json:"memcached_addr,omitempty"`
		CacheTTL            string `json:"cache_ttl_seconds"`
		RateLimitPerMinute  int    `json:"rate_limit_per_minute"`
		RateLimitPerHour    int    `json:"rate_limit_per_hour"`
		MaxRecentRequests   int    `json:"max_recent_requests"`
		AdminAPIKey         string `json:"admin_api_key"`
		SMSProvider         string `json:"sms_provider"`
		TwilioAccountSID    string `json:"twilio_account_sid,omitempty"`
		TwilioAuthToken     string `json:"twilio_auth_token,omitempty"`
		TwilioFromNumber    string `json:"twilio_from_number,omitempty"`
		DBOpTimeout         string `json:"db_op_timeout"`
		HTTPShutdownTimeout string `json:"http_shutdown_timeout"`
		MetricsEnabled      bool   `json:"metrics_enabled"`
		MetricsPath         string `json:"metrics_path"`
		MetricsPort         string `json:"metrics_port"`
	}{
		MongoURI:            maskURI(c.MongoURI),
		MongoDB:             c.MongoDB,
		RedisURL:            maskURI(c.RedisURL),
		HTTPAddr:            c.HTTPAddr,
		CacheBackend:        c.CacheBackend,
		MemcachedAddr:       c.MemcachedAddr,
		CacheTTL:            c.CacheTTLStr,
		RateLimitPerMinute:  c.RateLimitPerMinute,
		RateLimitPerHour:    c.RateLimitPerHour,
		MaxRecentRequests:   c.MaxRecentRequests,
		AdminAPIKey:         maskSecret(c.AdminAPIKey),
		SMSProvider:         c.SMSProvider,
		TwilioAccountSID:    c.TwilioAccountSID,
		TwilioAuthToken:     maskSecret(c.TwilioAuthToken),
		TwilioFromNumber:    c.TwilioFromNumber,
		DBOpTimeout:         c.DBOpTimeoutStr,
		HTTPShutdownTimeout: c.HTTPShutdownTimeoutStr,
		MetricsEnabled:      c.MetricsEnabled,
		MetricsPath:         c.MetricsPath,
		MetricsPort:         c.MetricsPort,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskURI masks credentials embedded in a connection string, preserving the
// scheme. URIs without credentials are returned unchanged.
func maskURI(s string) string {
	if s == "" {
		return ""
	}
	idx := strings.Index(s, "://")
	if idx < 0 {
		return "***"
	}
	if !strings.Contains(s[idx+3:], "@") {
		return s
	}
	return s[:idx+3] + "***"
}

// maskSecret fully masks a secret value.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
