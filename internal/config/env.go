package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// PageConfig describes the page every document is laid out on.
type PageConfig struct {
	Size       string  // letter, legal, a4, a5
	MarginIn   float64 // margin on every side in inches
	DPI        float64
	Font       string
	FontSize   float64
	LineHeight float64
}

// StorageConfig selects the document store.
type StorageConfig struct {
	URL           string
	Key           string // passphrase for encryption at rest; empty disables it
	AutosaveDelay time.Duration
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Page    PageConfig
	Storage StorageConfig
	HTTP    HTTPConfig
}

// Load reads .env files (missing ones are ignored) and then the
// environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// Load never overrides variables already set
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	return FromEnv(), nil
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("QWILL_LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("QWILL_LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("QWILL_LOG_FILE", ""),
		MaxSizeMB:  parseInt(getEnv("QWILL_LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("QWILL_LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("QWILL_LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("QWILL_LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("AXIOM_SEND", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_qwill",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Page = PageConfig{
		Size:       strings.ToLower(getEnv("QWILL_PAGE_SIZE", "letter")),
		MarginIn:   parseFloat(getEnv("QWILL_MARGIN_IN", "1"), 1),
		DPI:        parseFloat(getEnv("QWILL_DPI", "96"), 96),
		Font:       getEnv("QWILL_FONT", "serif"),
		FontSize:   parseFloat(getEnv("QWILL_FONT_SIZE", "16"), 16),
		LineHeight: parseFloat(getEnv("QWILL_LINE_HEIGHT", "1.5"), 1.5),
	}

	cfg.Storage = StorageConfig{
		URL:           getEnv("QWILL_STORAGE_URL", "data"),
		Key:           getEnv("QWILL_STORAGE_KEY", ""),
		AutosaveDelay: parseDuration(getEnv("QWILL_AUTOSAVE_DELAY", "1s"), time.Second),
	}

	cfg.HTTP = HTTPConfig{
		Addr: getEnv("QWILL_HTTP_ADDR", ":8080"),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
