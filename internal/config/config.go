// Package config loads processing settings from defaults, an optional YAML
// file, a .env file and STATEMENT_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/fields"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// STATEMENT_MODEL_NAME for model.name.
const EnvPrefix = "STATEMENT"

// Model providers.
const (
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// Config holds application configuration.
type Config struct {
	Processing ProcessingConfig `mapstructure:"processing"`
	Model      ModelConfig      `mapstructure:"model"`
	Storage    StorageConfig    `mapstructure:"storage"`
	BigQuery   BigQueryConfig   `mapstructure:"bigquery"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Log        LogConfig        `mapstructure:"log"`
}

// ProcessingConfig holds the normalization policy knobs.
type ProcessingConfig struct {
	FallbackCurrency    string `mapstructure:"fallback_currency"`
	DateOrder           string `mapstructure:"date_order"`
	ToleranceMinorUnits int64  `mapstructure:"tolerance_minor_units"`
	StrictBalances      bool   `mapstructure:"strict_balances"`
	MaxFileSizeMB       int64  `mapstructure:"max_file_size_mb"`
}

// ModelConfig selects the AI model used for scanned or unstructured input.
type ModelConfig struct {
	Provider   string `mapstructure:"provider"`
	Name       string `mapstructure:"name"`
	APIVersion string `mapstructure:"api_version"`
	APIKey     string `mapstructure:"api_key"`
}

// StorageConfig holds Cloud Storage settings.
type StorageConfig struct {
	ArchiveBucket   string `mapstructure:"archive_bucket"`
	ArchivePrefix   string `mapstructure:"archive_prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// BigQueryConfig holds run-log settings.
type BigQueryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Dataset   string `mapstructure:"dataset"`
}

// WorkerConfig sizes the batch job queue.
type WorkerConfig struct {
	Count      int `mapstructure:"count"`
	QueueSize  int `mapstructure:"queue_size"`
	MaxRetries int `mapstructure:"max_retries"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("processing.fallback_currency", "MYR")
	v.SetDefault("processing.date_order", "day-first")
	v.SetDefault("processing.tolerance_minor_units", 1)
	v.SetDefault("processing.strict_balances", false)
	v.SetDefault("processing.max_file_size_mb", 50)
	v.SetDefault("model.provider", ProviderGemini)
	v.SetDefault("model.name", "gemini-2.5-flash")
	v.SetDefault("model.api_version", "v1")
	v.SetDefault("model.api_key", "")
	v.SetDefault("storage.archive_bucket", "")
	v.SetDefault("storage.archive_prefix", "statements")
	v.SetDefault("storage.credentials_file", "")
	v.SetDefault("bigquery.enabled", false)
	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset", "statements")
	v.SetDefault("worker.count", 4)
	v.SetDefault("worker.queue_size", 32)
	v.SetDefault("worker.max_retries", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Options says where Load looks for configuration.
type Options struct {
	// File is a YAML config file. Empty means none.
	File string

	// EnvFile is a dotenv file. Missing files are ignored.
	EnvFile string
}

// Load reads and validates the configuration.
func Load(opts Options) (Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("Load: read %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("Load: read %s: %w", opts.File, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("Load: unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the processor cannot run with.
func (c Config) Validate() error {
	var errs []error
	if _, ok := fields.ParseDateOrder(c.Processing.DateOrder); !ok {
		errs = append(errs, fmt.Errorf("processing.date_order: unknown order %q", c.Processing.DateOrder))
	}
	if _, ok := fields.ParseCurrency(c.Processing.FallbackCurrency); !ok {
		errs = append(errs, fmt.Errorf("processing.fallback_currency: unknown currency %q", c.Processing.FallbackCurrency))
	}
	if c.Processing.ToleranceMinorUnits < 0 {
		errs = append(errs, errors.New("processing.tolerance_minor_units must not be negative"))
	}
	if c.Processing.MaxFileSizeMB <= 0 {
		errs = append(errs, errors.New("processing.max_file_size_mb must be positive"))
	}
	switch c.Model.Provider {
	case ProviderGemini, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("model.provider: unknown provider %q", c.Model.Provider))
	}
	if c.BigQuery.Enabled && c.BigQuery.ProjectID == "" {
		errs = append(errs, errors.New("bigquery.project_id is required when bigquery.enabled is set"))
	}
	if c.Worker.Count <= 0 {
		errs = append(errs, errors.New("worker.count must be positive"))
	}
	if c.Worker.QueueSize <= 0 {
		errs = append(errs, errors.New("worker.queue_size must be positive"))
	}
	if c.Worker.MaxRetries < 0 {
		errs = append(errs, errors.New("worker.max_retries must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("Validate: %w", err)
	}
	return nil
}

// DateOrder returns the configured date order.
func (c Config) DateOrder() fields.DateOrder {
	order, _ := fields.ParseDateOrder(c.Processing.DateOrder)
	return order
}

// MaxFileBytes returns the input size limit in bytes.
func (c Config) MaxFileBytes() int64 {
	return c.Processing.MaxFileSizeMB << 20
}

// ModelEnabled reports whether a model provider is configured.
func (c Config) ModelEnabled() bool {
	return c.Model.Provider != ProviderNone
}
