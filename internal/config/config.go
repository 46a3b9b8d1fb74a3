// Package config loads node-banana settings from defaults, an optional
// config.yaml and the environment (including a .env file), in that order.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	CacheMemory   = "memory"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
)

// Config holds every runtime setting.
type Config struct {
	Debug            bool          `yaml:"debug"`
	Addr             string        `yaml:"addr" validate:"required"`
	WorkflowName     string        `yaml:"workflow_name"`
	CacheBackend     string        `yaml:"cache_backend" validate:"oneof=memory sqlite postgres"`
	SQLitePath       string        `yaml:"sqlite_path" validate:"required_if=CacheBackend sqlite"`
	DatabaseURL      string        `yaml:"database_url" validate:"required_if=CacheBackend postgres"`
	CacheCompression string        `yaml:"cache_compression" validate:"omitempty,oneof=none gzip zstd"`
	CacheEncryptKey  string        `yaml:"cache_encrypt_key" validate:"omitempty,len=32"`
	OutputDir        string        `yaml:"output_dir"`
	AutosavePath     string        `yaml:"autosave_path"`
	AutosaveInterval time.Duration `yaml:"autosave_interval" validate:"gte=0"`
	GeminiAPIKey     string        `yaml:"gemini_api_key"`
	GeminiBaseURL    string        `yaml:"gemini_base_url" validate:"omitempty,url"`
	OpenAIAPIKey     string        `yaml:"openai_api_key"`
	OpenAIBaseURL    string        `yaml:"openai_base_url" validate:"omitempty,url"`
	BackendTimeout   time.Duration `yaml:"backend_timeout" validate:"gte=0"`
	OtelCollectorURL string        `yaml:"otel_collector_url"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Addr:             ":8080",
		WorkflowName:     "Untitled Workflow",
		CacheBackend:     CacheMemory,
		SQLitePath:       "node-banana.db",
		CacheCompression: "zstd",
		AutosaveInterval: 30 * time.Second,
		GeminiBaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		BackendTimeout:   5 * time.Minute,
	}
}

// Validate checks the settings.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// LogBuffer collects warnings raised before the logger exists.
type LogBuffer struct {
	buffer []logEntry
}

type logEntry struct {
	msg  string
	err  error
	meta map[string]string
}

// NewConfigLogger returns an empty buffer.
func NewConfigLogger() *LogBuffer {
	return &LogBuffer{}
}

func (cl *LogBuffer) Warn(msg string, err error, meta map[string]string) {
	cl.buffer = append(cl.buffer, logEntry{msg: msg, err: err, meta: meta})
}

// FlushToZap writes the buffered warnings and empties the buffer.
func (cl *LogBuffer) FlushToZap(logger *zap.Logger) {
	for _, e := range cl.buffer {
		var fields []zap.Field
		if e.err != nil {
			fields = append(fields, zap.Error(e.err))
		}
		for k, v := range e.meta {
			fields = append(fields, zap.String(k, v))
		}
		logger.Warn(e.msg, fields...)
	}
	cl.buffer = nil
}

// Len reports how many warnings are buffered.
func (cl *LogBuffer) Len() int { return len(cl.buffer) }

// Load layers defaults, the yaml file at path and the environment.
func Load(path string) (*Config, *LogBuffer) {
	logger := NewConfigLogger()
	cfg := Default()

	if err := FromFile(path, cfg); err != nil {
		logger.Warn("Failed to load config from file", err, map[string]string{"path": path})
	}
	if err := FromEnv(cfg, logger); err != nil {
		logger.Warn("Failed to load config from env", err, map[string]string{"path": ".env"})
	}
	return cfg, logger
}

// FromFile overlays the non-empty values of a yaml file onto cfg.
func FromFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fileCfg Config
	if err := yaml.Unmarshal(b, &fileCfg); err != nil {
		return err
	}
	merge(cfg, &fileCfg)
	return nil
}

// FromEnv loads .env if present and overlays NODE_BANANA_* variables, plus
// the conventional provider key variables.
func FromEnv(cfg *Config, logger *LogBuffer) error {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		logger.Warn("No .env file found", nil, map[string]string{"path": ".env"})
	}

	var errs []error
	duration := func(key string) time.Duration {
		v := os.Getenv(key)
		if v == "" {
			return 0
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}
	debug, _ := strconv.ParseBool(os.Getenv("NODE_BANANA_DEBUG"))

	envCfg := &Config{
		Debug:            debug,
		Addr:             os.Getenv("NODE_BANANA_ADDR"),
		WorkflowName:     os.Getenv("NODE_BANANA_WORKFLOW_NAME"),
		CacheBackend:     os.Getenv("NODE_BANANA_CACHE_BACKEND"),
		SQLitePath:       os.Getenv("NODE_BANANA_SQLITE_PATH"),
		DatabaseURL:      firstEnv("NODE_BANANA_DATABASE_URL", "DATABASE_URL"),
		CacheCompression: os.Getenv("NODE_BANANA_CACHE_COMPRESSION"),
		CacheEncryptKey:  os.Getenv("NODE_BANANA_CACHE_ENCRYPT_KEY"),
		OutputDir:        os.Getenv("NODE_BANANA_OUTPUT_DIR"),
		AutosavePath:     os.Getenv("NODE_BANANA_AUTOSAVE_PATH"),
		AutosaveInterval: duration("NODE_BANANA_AUTOSAVE_INTERVAL"),
		GeminiAPIKey:     firstEnv("NODE_BANANA_GEMINI_API_KEY", "GEMINI_API_KEY"),
		GeminiBaseURL:    os.Getenv("NODE_BANANA_GEMINI_BASE_URL"),
		OpenAIAPIKey:     firstEnv("NODE_BANANA_OPENAI_API_KEY", "OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("NODE_BANANA_OPENAI_BASE_URL"),
		BackendTimeout:   duration("NODE_BANANA_BACKEND_TIMEOUT"),
		OtelCollectorURL: firstEnv("NODE_BANANA_OTEL_COLLECTOR_URL", "OTEL_COLLECTOR_URL"),
	}
	merge(cfg, envCfg)
	return errors.Join(errs...)
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// merge copies every non-zero field of src onto dst.
func merge(dst, src *Config) {
	dst.Debug = dst.Debug || src.Debug
	str := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	dur := func(d *time.Duration, s time.Duration) {
		if s != 0 {
			*d = s
		}
	}
	str(&dst.Addr, src.Addr)
	str(&dst.WorkflowName, src.WorkflowName)
	str(&dst.CacheBackend, src.CacheBackend)
	str(&dst.SQLitePath, src.SQLitePath)
	str(&dst.DatabaseURL, src.DatabaseURL)
	str(&dst.CacheCompression, src.CacheCompression)
	str(&dst.CacheEncryptKey, src.CacheEncryptKey)
	str(&dst.OutputDir, src.OutputDir)
	str(&dst.AutosavePath, src.AutosavePath)
	dur(&dst.AutosaveInterval, src.AutosaveInterval)
	str(&dst.GeminiAPIKey, src.GeminiAPIKey)
	str(&dst.GeminiBaseURL, src.GeminiBaseURL)
	str(&dst.OpenAIAPIKey, src.OpenAIAPIKey)
	str(&dst.OpenAIBaseURL, src.OpenAIBaseURL)
	dur(&dst.BackendTimeout, src.BackendTimeout)
	str(&dst.OtelCollectorURL, src.OtelCollectorURL)
}
