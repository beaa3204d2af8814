// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Backend REST API
	APIBaseURL     string
	RequestTimeout time.Duration

	// Identity Provider
	IdPAPIKey       string
	IdPClientID     string
	IdPClientSecret string
	IdPRedirectURL  string

	// Image hosting
	ImageHostKey string

	// Session
	SessionSecret string
	SessionMaxAge int
	// InitTimeout は初回の認証状態解決を待つ上限。
	// 超過した場合は未認証として解決し、ローディング状態を解除する。
	InitTimeout time.Duration

	// Catalog
	CatalogCacheTTL time.Duration

	// Worker
	SessionCleanupInterval time.Duration

	// Rate Limit（req/min/user）
	RateLimitGeneral int
	RateLimitLogin   int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数が優先）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envはローカル開発用。存在しない場合は無視する。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.IdPAPIKey = os.Getenv("IDP_API_KEY")
	if cfg.IdPAPIKey == "" {
		missing = append(missing, "IDP_API_KEY")
	}

	cfg.IdPClientID = os.Getenv("IDP_CLIENT_ID")
	if cfg.IdPClientID == "" {
		missing = append(missing, "IDP_CLIENT_ID")
	}

	cfg.IdPClientSecret = os.Getenv("IDP_CLIENT_SECRET")
	if cfg.IdPClientSecret == "" {
		missing = append(missing, "IDP_CLIENT_SECRET")
	}

	cfg.IdPRedirectURL = os.Getenv("IDP_REDIRECT_URL")
	if cfg.IdPRedirectURL == "" {
		missing = append(missing, "IDP_REDIRECT_URL")
	}

	cfg.ImageHostKey = os.Getenv("IMAGE_HOST_KEY")
	if cfg.ImageHostKey == "" {
		missing = append(missing, "IMAGE_HOST_KEY")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.APIBaseURL = getEnvString("API_BASE_URL", "http://localhost:8080/api")
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 10*time.Second)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.InitTimeout = getEnvDuration("INIT_TIMEOUT", 10*time.Second)
	cfg.CatalogCacheTTL = getEnvDuration("CATALOG_CACHE_TTL", 60*time.Second)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "3000")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
