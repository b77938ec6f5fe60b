package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv                 string
	LogLevel               string
	Port                   string
	DatabaseURL            string
	DBMaxConns             int
	SQLSlowThreshold       time.Duration
	JWTSecret              string
	StorageBaseURL         string
	GeoIPDBPath            string
	DefaultLocale          string
	WorkflowBaseURL        string
	WorkflowStartPath      string
	WorkflowPublishPath    string
	WorkflowTimeout        time.Duration
	WorkflowPublishTimeout time.Duration
	CORSAllowedOrigins     []string
	InternalAllowedCIDRs   []string
	HTTPReadTimeout        time.Duration
	HTTPWriteTimeout       time.Duration
	HTTPIdleTimeout        time.Duration
	RateLimitPerMin        int
	WSSendBuffer           int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "3001")
	cfg := &Config{
		AppEnv:                 getEnv("APP_ENV", "development"),
		LogLevel:               os.Getenv("LOG_LEVEL"),
		Port:                   port,
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		DBMaxConns:             getEnvInt("DB_MAX_CONNS", 10),
		SQLSlowThreshold:       time.Millisecond * time.Duration(getEnvInt("SQL_SLOW_MS", 500)),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		StorageBaseURL:         getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/media"),
		GeoIPDBPath:            os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:          getEnv("DEFAULT_LOCALE", "ru"),
		WorkflowBaseURL:        strings.TrimRight(getEnv("WORKFLOW_BASE_URL", "http://n8n:5678"), "/"),
		WorkflowStartPath:      getEnv("WORKFLOW_START_PATH", "/webhook/master-pipeline"),
		WorkflowPublishPath:    getEnv("WORKFLOW_PUBLISH_PATH", "/webhook/publisher"),
		WorkflowTimeout:        time.Second * time.Duration(getEnvInt("WORKFLOW_TIMEOUT_SECONDS", 10)),
		WorkflowPublishTimeout: time.Second * time.Duration(getEnvInt("WORKFLOW_PUBLISH_TIMEOUT_SECONDS", 120)),
		CORSAllowedOrigins:     getEnvList("CORS_ALLOWED_ORIGINS"),
		InternalAllowedCIDRs:   getEnvList("INTERNAL_ALLOWED_CIDRS"),
		HTTPReadTimeout:        time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:       time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 150)),
		HTTPIdleTimeout:        time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:        getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		WSSendBuffer:           getEnvInt("WS_SEND_BUFFER", 64),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.WorkflowTimeout <= 0 {
		return nil, fmt.Errorf("WORKFLOW_TIMEOUT_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
