package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Parser   ParserConfig   `yaml:"parser"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // "postgres" | "sqlite"
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// OCRConfig holds OCR-related configuration.
type OCRConfig struct {
	Pdftotext        string `yaml:"pdftotext"`
	Pdftoppm         string `yaml:"pdftoppm"`
	Tesseract        string `yaml:"tesseract"`
	TesseractLang    string `yaml:"tesseract_lang"`
	DPI              int    `yaml:"dpi"`
	MaxPages         int    `yaml:"max_pages"`
	HeicConverter    string `yaml:"heic_converter"`
	TessdataDir      string `yaml:"tessdata_dir"`
	CachePath        string `yaml:"cache_path"` // bbolt file for OCR text cache; empty disables
	ArtifactCacheDir string `yaml:"artifact_cache_dir"`
}

// IngestConfig holds directory watcher configuration.
type IngestConfig struct {
	WatchDirs []string      `yaml:"watch_dirs"`
	UploadDir string        `yaml:"upload_dir"` // where HTTP uploads are written before ingestion
	Debounce  time.Duration `yaml:"debounce"`
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
}

// ParserConfig tunes the rule-based extractor. The built-in pattern
// tables stay fixed; extra label spellings can be appended per field
// without a rebuild.
type ParserConfig struct {
	ExtraTotalLabels    []string `yaml:"extra_total_labels"`
	ExtraTaxLabels      []string `yaml:"extra_tax_labels"`
	ExtraSubtotalLabels []string `yaml:"extra_subtotal_labels"`
}

// LoadConfig loads configuration from environment variables, with an
// optional YAML file (CONFIG_FILE) applied first so env vars win.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(c *Config) {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.Addr = getEnv("HTTP_ADDR", c.Server.Addr)
	c.Server.ShutdownTimeout = getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.OCR.Pdftotext = getEnv("PDFTOTEXT", c.OCR.Pdftotext)
	c.OCR.Pdftoppm = getEnv("PDFTOPPM", c.OCR.Pdftoppm)
	c.OCR.Tesseract = getEnv("TESSERACT", c.OCR.Tesseract)
	c.OCR.TesseractLang = getEnv("TESSERACT_LANG", c.OCR.TesseractLang)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.MaxPages = getEnvAsInt("OCR_MAX_PAGES", c.OCR.MaxPages)
	c.OCR.HeicConverter = getEnv("HEIC_CONVERTER", c.OCR.HeicConverter)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.CachePath = getEnv("OCR_CACHE_PATH", c.OCR.CachePath)
	c.OCR.ArtifactCacheDir = getEnv("ARTIFACT_CACHE_DIR", c.OCR.ArtifactCacheDir)

	if v := os.Getenv("WATCH_DIRS"); v != "" {
		c.Ingest.WatchDirs = splitCSV(v)
	}
	c.Ingest.UploadDir = getEnv("UPLOAD_DIR", c.Ingest.UploadDir)
	c.Ingest.Debounce = getEnvAsDuration("INGEST_DEBOUNCE", c.Ingest.Debounce)
	c.Ingest.Workers = getEnvAsInt("INGEST_WORKERS", c.Ingest.Workers)
	c.Ingest.QueueSize = getEnvAsInt("INGEST_QUEUE_SIZE", c.Ingest.QueueSize)
}

func applyDefaults(c *Config) {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = "file:invoice-tracker.db"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 20
	}
	if c.Database.MinConns <= 0 {
		c.Database.MinConns = 5
	}
	if c.Database.MaxConnLifetime <= 0 {
		c.Database.MaxConnLifetime = 30 * time.Minute
	}
	if c.Database.MaxConnIdleTime <= 0 {
		c.Database.MaxConnIdleTime = 5 * time.Minute
	}
	if c.Database.DialTimeout <= 0 {
		c.Database.DialTimeout = 3 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.OCR.HeicConverter == "" {
		c.OCR.HeicConverter = "magick"
	}
	if c.OCR.ArtifactCacheDir == "" {
		c.OCR.ArtifactCacheDir = "./tmp"
	}
	if c.Ingest.UploadDir == "" {
		c.Ingest.UploadDir = "./uploads"
	}
	if c.Ingest.Debounce <= 0 {
		c.Ingest.Debounce = 500 * time.Millisecond
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.QueueSize <= 0 {
		c.Ingest.QueueSize = 256
	}
}

// Validate validates the loaded configuration.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown DB_DRIVER %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	return nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions for environment variable parsing.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
