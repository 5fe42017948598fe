package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	OAuth      OAuthConfig
	Cloudinary CloudinaryConfig
	Session    SessionConfig
	Indexer    IndexerConfig
	PriceFeed  PriceFeedConfig
	Mailer     MailerConfig
	Cards      CardsConfig
	StoreRules []StoreRule
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

type SessionConfig struct {
	DefaultTTL    time.Duration
	SweepInterval time.Duration // 0 disables the background expiry sweep
}

// IndexerConfig points at the blockchain event indexer that reports
// confirmed CELO/cUSD transfers to our treasury address.
type IndexerConfig struct {
	BaseURL        string
	APIKey         string
	WebhookSecret  string
	VerifyPayments bool // when true, webhook payloads are re-checked against the indexer
}

type PriceFeedConfig struct {
	BaseURL  string
	CacheTTL time.Duration
}

// MailerConfig for the Resend-compatible transactional email API.
type MailerConfig struct {
	BaseURL string
	APIKey  string
	From    string
}

type CardsConfig struct {
	// 32-byte key (hex or raw) for AES-GCM sealing of gift card codes at rest.
	CipherKey string
}

// StoreRule maps a store-name substring to a gift card provider and currency.
// Rules are evaluated in order; the last rule should be a catch-all.
type StoreRule struct {
	Match    string `json:"match"` // case-insensitive substring; "" matches everything
	Provider string `json:"provider"`
	Currency string `json:"currency"`
}

func DefaultStoreRules() []StoreRule {
	return []StoreRule{
		{Match: "flipkart", Provider: "flipkart", Currency: "INR"},
		{Match: "myntra", Provider: "myntra", Currency: "INR"},
		{Match: "nykaa", Provider: "nykaa", Currency: "INR"},
		{Match: "", Provider: "amazon", Currency: "USD"},
	}
}

func Load() *Config {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", "mizu:mizu@tcp(localhost:3306)/mizupay?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: getEnv("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "mizupay",
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		},
		Session: SessionConfig{
			DefaultTTL:    time.Duration(getEnvInt("SESSION_TTL_MINUTES", 10)) * time.Minute,
			SweepInterval: time.Duration(getEnvInt("SESSION_SWEEP_SECONDS", 60)) * time.Second,
		},
		Indexer: IndexerConfig{
			BaseURL:        getEnv("INDEXER_BASE_URL", "https://indexer.mizupay.xyz"),
			APIKey:         getEnv("INDEXER_API_KEY", ""),
			WebhookSecret:  getEnv("INDEXER_WEBHOOK_SECRET", ""),
			VerifyPayments: getEnv("INDEXER_VERIFY_PAYMENTS", "true") == "true",
		},
		PriceFeed: PriceFeedConfig{
			BaseURL:  getEnv("PRICEFEED_BASE_URL", "https://api.coingecko.com/api/v3"),
			CacheTTL: 30 * time.Second,
		},
		Mailer: MailerConfig{
			BaseURL: getEnv("MAILER_BASE_URL", "https://api.resend.com"),
			APIKey:  getEnv("MAILER_API_KEY", ""),
			From:    getEnv("MAILER_FROM", "Mizu Pay <cards@mizupay.xyz>"),
		},
		Cards: CardsConfig{
			CipherKey: getEnv("CARD_CIPHER_KEY", ""),
		},
		StoreRules: loadStoreRules(),
	}
}

// loadStoreRules reads STORE_RULES_JSON or falls back to the built-in table.
func loadStoreRules() []StoreRule {
	raw := os.Getenv("STORE_RULES_JSON")
	if raw == "" {
		return DefaultStoreRules()
	}
	var rules []StoreRule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil || len(rules) == 0 {
		log.Printf("[Config] invalid STORE_RULES_JSON, using defaults: %v", err)
		return DefaultStoreRules()
	}
	return rules
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
