package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

type Config struct {
	WebAddr  string `env:"WEB_ADDR,default=:8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
	Debug    bool   `env:"DEBUG,default=false"`

	PreferIPv4            bool   `env:"PREFER_IPV4,default=true"`
	UserAgent             string `env:"HTTP_USER_AGENT,default=jingle-gift/1.0"`
	HTTPTimeoutSeconds    int    `env:"HTTP_TIMEOUT_SECONDS,default=180"`
	RequestTimeoutSeconds int    `env:"REQUEST_TIMEOUT_SECONDS,default=180"`
	MaxConcurrent         int    `env:"MAX_CONCURRENT,default=4"`

	HTTPTimeout    time.Duration
	RequestTimeout time.Duration

	CatalogPath string `env:"SCENE_CATALOG_PATH"`

	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	GeminiBaseURL    string `env:"GEMINI_BASE_URL,default=https://generativelanguage.googleapis.com"`
	GeminiAPIVersion string `env:"GEMINI_API_VERSION,default=v1beta"`
	GeminiImageModel string `env:"GEMINI_IMAGE_MODEL,default=gemini-2.0-flash-exp-image-generation"`
	GeminiTextModel  string `env:"GEMINI_TEXT_MODEL,default=gemini-2.0-flash"`
	ImagenModel      string `env:"IMAGEN_MODEL,default=imagen-3.0-generate-002"`
	ImageAspectRatio string `env:"IMAGE_ASPECT_RATIO,default=1:1"`

	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	OpenAIImageModel string `env:"OPENAI_IMAGE_MODEL,default=dall-e-3"`

	PlaceholderEnabled  bool   `env:"PLACEHOLDER_ENABLED,default=false"`
	PlaceholderImageURL string `env:"PLACEHOLDER_IMAGE_URL"`

	NeynarAPIKey        string  `env:"NEYNAR_API_KEY"`
	NeynarBaseURL       string  `env:"NEYNAR_BASE_URL,default=https://api.neynar.com"`
	OpenSeaAPIKey       string  `env:"OPENSEA_API_KEY"`
	OpenSeaBaseURL      string  `env:"OPENSEA_BASE_URL,default=https://api.opensea.io"`
	TrustScoreThreshold float64 `env:"TRUST_SCORE_THRESHOLD,default=0.5"`

	PinataJWT        string `env:"PINATA_JWT"`
	PinataBaseURL    string `env:"PINATA_BASE_URL,default=https://api.pinata.cloud"`
	PinataGatewayURL string `env:"PINATA_GATEWAY_URL,default=https://gateway.pinata.cloud"`

	RedisURL          string `env:"REDIS_URL"`
	MailboxMaxRetries int    `env:"MAILBOX_MAX_RETRIES,default=5"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=0"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=10"`
	TrustProxy     bool    `env:"TRUST_PROXY_HEADERS,default=false"`

	TelegramToken string `env:"TELEGRAM_BOT_TOKEN"`
}

// Load reads the environment. Provider credentials are optional here; each
// entry point checks the ones it needs.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.WebAddr = strings.TrimSpace(cfg.WebAddr)
	cfg.GeminiAPIKey = strings.TrimSpace(cfg.GeminiAPIKey)
	cfg.OpenAIAPIKey = strings.TrimSpace(cfg.OpenAIAPIKey)
	cfg.NeynarAPIKey = strings.TrimSpace(cfg.NeynarAPIKey)
	cfg.PinataJWT = strings.TrimSpace(cfg.PinataJWT)
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)

	if cfg.WebAddr == "" {
		cfg.WebAddr = ":8080"
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MailboxMaxRetries < 1 {
		cfg.MailboxMaxRetries = 1
	}
	if cfg.RateLimitBurst < 1 {
		cfg.RateLimitBurst = 1
	}
	if cfg.TrustScoreThreshold <= 0 {
		cfg.TrustScoreThreshold = 0.5
	}

	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 180 * time.Second
	}

	return cfg, nil
}

func (c Config) RequireTelegram() error {
	switch {
	case c.TelegramToken == "":
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	case c.GeminiAPIKey == "":
		return errors.New("GEMINI_API_KEY is required")
	}
	return nil
}
