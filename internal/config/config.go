package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "RECEIPTKEEPER"

// Config holds runtime settings for receiptkeeper.
//
// Fields:
//   - LocalStore / LocalPath: local snapshot backend ("sqlite" or "json") and its file.
//   - RemoteDSN: PostgreSQL DSN (pgx); empty means the remote tier is unconfigured.
//   - RemoteTimeout: per-call deadline for remote operations.
//   - RemoteMigrate: apply the remote schema on startup.
//   - OCREndpoint / OCRTimeout: text extraction service.
//   - Structurer / StructurerModel: LLM backend ("gemini" or "anthropic") and model name.
//   - GeminiAPIKey / AnthropicAPIKey: credentials for the structurer.
//   - AutoSync: push a freshly scanned receipt to the remote tier right away.
//   - Archive*: optional S3-compatible bucket for the original images.
//   - ExportDir: directory for CSV exports.
//   - LogFormat / LogLevel / LogFile: logging backend settings.
type Config struct {
	LocalStore string
	LocalPath  string

	RemoteDSN     string
	RemoteTimeout time.Duration
	RemoteMigrate bool

	OCREndpoint string
	OCRTimeout  time.Duration

	Structurer      string
	StructurerModel string
	GeminiAPIKey    string
	AnthropicAPIKey string

	AutoSync bool

	ArchiveBucket    string
	ArchiveRegion    string
	ArchiveEndpoint  string
	ArchiveAccessKey string
	ArchiveSecretKey string

	ExportDir string

	LogFormat string
	LogLevel  string
	LogFile   string
}

// LoadDefaults populates c with defaults suitable for a single-user desktop
// setup with no remote tier.
func (c *Config) LoadDefaults() {
	c.LocalStore = "sqlite"
	c.LocalPath = "receipts.db"
	c.RemoteDSN = ""
	c.RemoteTimeout = 10 * time.Second
	c.RemoteMigrate = true
	c.OCREndpoint = "http://127.0.0.1:8000/api/ocr"
	c.OCRTimeout = 60 * time.Second
	c.Structurer = "gemini"
	c.StructurerModel = ""
	c.AutoSync = true
	c.ArchiveRegion = "us-east-1"
	c.ExportDir = "."
	c.LogFormat = "text"
	c.LogLevel = "info"
}

// RemoteConfigured reports whether a remote DSN is set.
func (c *Config) RemoteConfigured() bool {
	return strings.TrimSpace(c.RemoteDSN) != ""
}

// ArchiveConfigured reports whether image archiving is enabled.
func (c *Config) ArchiveConfigured() bool {
	return c.ArchiveBucket != ""
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.LocalStore {
	case "sqlite", "json":
	default:
		return fmt.Errorf("local_store must be sqlite or json, got %q", c.LocalStore)
	}
	switch c.Structurer {
	case "gemini", "anthropic":
	default:
		return fmt.Errorf("structurer must be gemini or anthropic, got %q", c.Structurer)
	}
	if c.LocalPath == "" {
		return fmt.Errorf("local_path must not be empty")
	}
	if c.RemoteTimeout <= 0 || c.OCRTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// LoadConfig builds a Config from defaults, the optional config file, the
// environment and fs (which may be nil). Later sources take precedence.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
	}

	if path := v.GetString(keyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	fill(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
