package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	keyConfigFile       = "config"
	keyLocalStore       = "local_store"
	keyLocalPath        = "local_path"
	keyRemoteDSN        = "remote_dsn"
	keyRemoteTimeout    = "remote_timeout"
	keyRemoteMigrate    = "remote_migrate"
	keyOCREndpoint      = "ocr_endpoint"
	keyOCRTimeout       = "ocr_timeout"
	keyStructurer       = "structurer"
	keyStructurerModel  = "structurer_model"
	keyGeminiAPIKey     = "gemini_api_key"
	keyAnthropicAPIKey  = "anthropic_api_key"
	keyAutoSync         = "auto_sync"
	keyArchiveBucket    = "archive_bucket"
	keyArchiveRegion    = "archive_region"
	keyArchiveEndpoint  = "archive_endpoint"
	keyArchiveAccessKey = "archive_access_key"
	keyArchiveSecretKey = "archive_secret_key"
	keyExportDir        = "export_dir"
	keyLogFormat        = "log_format"
	keyLogLevel         = "log_level"
	keyLogFile          = "log_file"
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"config":         keyConfigFile,
	"store":          keyLocalStore,
	"db":             keyLocalPath,
	"remote-dsn":     keyRemoteDSN,
	"remote-timeout": keyRemoteTimeout,
	"ocr-endpoint":   keyOCREndpoint,
	"structurer":     keyStructurer,
	"model":          keyStructurerModel,
	"auto-sync":      keyAutoSync,
	"export-dir":     keyExportDir,
	"log-format":     keyLogFormat,
	"log-level":      keyLogLevel,
	"log-file":       keyLogFile,
}

// RegisterFlags declares the command-line overrides on fs. Defaults come from
// a fresh Config so help output shows effective values.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP("config", "c", "", "path to config file (json, yaml or toml)")
	fs.String("store", d.LocalStore, "local store backend: sqlite or json")
	fs.String("db", d.LocalPath, "local store file")
	fs.String("remote-dsn", d.RemoteDSN, "PostgreSQL DSN of the remote tier (empty for local mode)")
	fs.Duration("remote-timeout", d.RemoteTimeout, "per-call timeout for remote operations")
	fs.String("ocr-endpoint", d.OCREndpoint, "OCR service endpoint")
	fs.String("structurer", d.Structurer, "receipt structuring backend: gemini or anthropic")
	fs.String("model", d.StructurerModel, "model name for the structuring backend")
	fs.Bool("auto-sync", d.AutoSync, "push new receipts to the remote tier immediately")
	fs.String("export-dir", d.ExportDir, "directory for CSV exports")
	fs.String("log-format", d.LogFormat, "log format: text, json or console")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn or error")
	fs.String("log-file", d.LogFile, "write logs to a rotated file instead of stderr")
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault(keyConfigFile, "")
	v.SetDefault(keyLocalStore, c.LocalStore)
	v.SetDefault(keyLocalPath, c.LocalPath)
	v.SetDefault(keyRemoteDSN, c.RemoteDSN)
	v.SetDefault(keyRemoteTimeout, c.RemoteTimeout)
	v.SetDefault(keyRemoteMigrate, c.RemoteMigrate)
	v.SetDefault(keyOCREndpoint, c.OCREndpoint)
	v.SetDefault(keyOCRTimeout, c.OCRTimeout)
	v.SetDefault(keyStructurer, c.Structurer)
	v.SetDefault(keyStructurerModel, c.StructurerModel)
	v.SetDefault(keyGeminiAPIKey, c.GeminiAPIKey)
	v.SetDefault(keyAnthropicAPIKey, c.AnthropicAPIKey)
	v.SetDefault(keyAutoSync, c.AutoSync)
	v.SetDefault(keyArchiveBucket, c.ArchiveBucket)
	v.SetDefault(keyArchiveRegion, c.ArchiveRegion)
	v.SetDefault(keyArchiveEndpoint, c.ArchiveEndpoint)
	v.SetDefault(keyArchiveAccessKey, c.ArchiveAccessKey)
	v.SetDefault(keyArchiveSecretKey, c.ArchiveSecretKey)
	v.SetDefault(keyExportDir, c.ExportDir)
	v.SetDefault(keyLogFormat, c.LogFormat)
	v.SetDefault(keyLogLevel, c.LogLevel)
	v.SetDefault(keyLogFile, c.LogFile)
}

// bindFlags binds only flags present on fs, so partial flag sets work.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

func fill(v *viper.Viper, c *Config) {
	c.LocalStore = v.GetString(keyLocalStore)
	c.LocalPath = v.GetString(keyLocalPath)
	c.RemoteDSN = v.GetString(keyRemoteDSN)
	c.RemoteTimeout = v.GetDuration(keyRemoteTimeout)
	c.RemoteMigrate = v.GetBool(keyRemoteMigrate)
	c.OCREndpoint = v.GetString(keyOCREndpoint)
	c.OCRTimeout = v.GetDuration(keyOCRTimeout)
	c.Structurer = v.GetString(keyStructurer)
	c.StructurerModel = v.GetString(keyStructurerModel)
	c.GeminiAPIKey = v.GetString(keyGeminiAPIKey)
	c.AnthropicAPIKey = v.GetString(keyAnthropicAPIKey)
	c.AutoSync = v.GetBool(keyAutoSync)
	c.ArchiveBucket = v.GetString(keyArchiveBucket)
	c.ArchiveRegion = v.GetString(keyArchiveRegion)
	c.ArchiveEndpoint = v.GetString(keyArchiveEndpoint)
	c.ArchiveAccessKey = v.GetString(keyArchiveAccessKey)
	c.ArchiveSecretKey = v.GetString(keyArchiveSecretKey)
	c.ExportDir = v.GetString(keyExportDir)
	c.LogFormat = v.GetString(keyLogFormat)
	c.LogLevel = v.GetString(keyLogLevel)
	c.LogFile = v.GetString(keyLogFile)
}
