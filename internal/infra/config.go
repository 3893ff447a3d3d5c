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
	AppEnv      string
	Port        string
	DatabaseURL string

	GeminiAPIKey         string
	GeminiTextModel      string
	GeminiImageModel     string
	GeminiBaseURL        string
	GeminiThinkingBudget int
	ImageAspectRatio     string
	ImageSize            string

	ProgressInterval       time.Duration
	TranscodeReferenceJPEG bool
	ExportPath             string
	MaxUploadBytes         int64
	ImageFetchTimeout      time.Duration

	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),

		GeminiAPIKey:         strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiTextModel:      getEnv("GEMINI_TEXT_MODEL", "gemini-3-pro-preview"),
		GeminiImageModel:     getEnv("GEMINI_IMAGE_MODEL", "gemini-3-pro-image-preview"),
		GeminiBaseURL:        os.Getenv("GEMINI_BASE_URL"),
		GeminiThinkingBudget: getEnvInt("GEMINI_THINKING_BUDGET", 4000),
		ImageAspectRatio:     getEnv("IMAGE_ASPECT_RATIO", "1:1"),
		ImageSize:            getEnv("IMAGE_SIZE", "2K"),

		ProgressInterval:       time.Millisecond * time.Duration(getEnvInt("PROGRESS_INTERVAL_MS", 1200)),
		TranscodeReferenceJPEG: getEnvBool("TRANSCODE_REFERENCE_JPEG", false),
		ExportPath:             getEnv("EXPORT_PATH", "./exports"),
		MaxUploadBytes:         int64(getEnvInt("MAX_UPLOAD_BYTES", 20<<20)),
		ImageFetchTimeout:      time.Second * time.Duration(getEnvInt("IMAGE_FETCH_TIMEOUT_SECONDS", 30)),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		// Campaign generation answers synchronously, so writes outlive several model calls.
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
	}

	if cfg.ProgressInterval <= 0 {
		return nil, fmt.Errorf("PROGRESS_INTERVAL_MS must be positive")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	return cfg, nil
}

// HasDatabase reports whether a Postgres credential store is configured.
func (c *Config) HasDatabase() bool {
	return c != nil && c.DatabaseURL != ""
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

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
