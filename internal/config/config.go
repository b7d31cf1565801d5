// Package config provides configuration loading and validation for the
// packfang CLI and its long-running modes.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/packfang/internal/report"
	"github.com/Sumatoshi-tech/packfang/pkg/manifest"
	"github.com/Sumatoshi-tech/packfang/pkg/observability"
)

// Sentinel validation errors.
var (
	ErrInvalidBackend     = errors.New("invalid parser backend")
	ErrInvalidWorkers     = errors.New("workers must not be negative")
	ErrInvalidFormat      = errors.New("unknown report format")
	ErrInvalidColor       = errors.New("invalid color mode")
	ErrInvalidDebounce    = errors.New("watch debounce must be positive")
	ErrInvalidCacheSize   = errors.New("mcp cache size must be positive")
	ErrInvalidSampleRatio = errors.New("sample ratio must be between 0 and 1")
)

// Default configuration values.
const (
	defaultWorkers     = 0 // 0 selects the CPU count at run time
	defaultDebounce    = 300 * time.Millisecond
	defaultCacheSize   = 128
	defaultSampleRatio = 1.0
)

// Config holds all configuration for packfang.
type Config struct {
	Audit     AuditConfig     `mapstructure:"audit"`
	Report    ReportConfig    `mapstructure:"report"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Baseline  BaselineConfig  `mapstructure:"baseline"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AuditConfig holds audit-specific configuration.
type AuditConfig struct {
	Backend string   `mapstructure:"backend"`
	Workers int      `mapstructure:"workers"`
	Allow   []string `mapstructure:"allow"`
	Exclude []string `mapstructure:"exclude"`
	Strict  bool     `mapstructure:"strict"`
}

// ReportConfig holds report rendering configuration.
type ReportConfig struct {
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	Color  string `mapstructure:"color"`
}

// WatchConfig holds watch-mode configuration.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// BaselineConfig holds baseline comparison configuration.
type BaselineConfig struct {
	Ref string `mapstructure:"ref"`
}

// MCPConfig holds MCP server configuration.
type MCPConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OTLP export configuration.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
	Environment  string  `mapstructure:"environment"`
}

// LoadConfig loads configuration from file and environment variables. An
// empty configPath searches for .packfang.yaml in the working directory,
// the home directory and /etc/packfang.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".packfang")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME")
		viperCfg.AddConfigPath("/etc/packfang")
	}

	viperCfg.SetEnvPrefix("PACKFANG")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Audit defaults.
	viperCfg.SetDefault("audit.backend", string(manifest.BackendAuto))
	viperCfg.SetDefault("audit.workers", defaultWorkers)
	viperCfg.SetDefault("audit.allow", []string{})
	viperCfg.SetDefault("audit.exclude", []string{})
	viperCfg.SetDefault("audit.strict", false)

	// Report defaults.
	viperCfg.SetDefault("report.format", string(report.FormatText))
	viperCfg.SetDefault("report.output", "")
	viperCfg.SetDefault("report.color", report.ColorAuto)

	// Watch defaults.
	viperCfg.SetDefault("watch.debounce", defaultDebounce.String())

	// Baseline defaults.
	viperCfg.SetDefault("baseline.ref", "HEAD")

	// MCP defaults.
	viperCfg.SetDefault("mcp.cache_size", defaultCacheSize)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_addr", "")
	viperCfg.SetDefault("telemetry.sample_ratio", defaultSampleRatio)
	viperCfg.SetDefault("telemetry.debug_trace", false)
	viperCfg.SetDefault("telemetry.environment", "dev")
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if !manifest.Backend(config.Audit.Backend).Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidBackend, config.Audit.Backend)
	}

	if config.Audit.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Audit.Workers)
	}

	if !report.Format(config.Report.Format).Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, config.Report.Format)
	}

	switch config.Report.Color {
	case report.ColorAuto, report.ColorAlways, report.ColorNever:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidColor, config.Report.Color)
	}

	if config.Watch.Debounce <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDebounce, config.Watch.Debounce)
	}

	if config.MCP.CacheSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, config.MCP.CacheSize)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	return nil
}

// ObservabilityConfig maps the loaded configuration onto the observability
// stack's config for the given application mode.
func (c *Config) ObservabilityConfig(mode observability.AppMode) observability.Config {
	cfg := observability.DefaultConfig()

	cfg.Mode = mode
	cfg.Environment = c.Telemetry.Environment
	cfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	cfg.OTLPInsecure = c.Telemetry.OTLPInsecure
	cfg.MetricsAddr = c.Telemetry.MetricsAddr
	cfg.SampleRatio = c.Telemetry.SampleRatio
	cfg.DebugTrace = c.Telemetry.DebugTrace
	cfg.LogLevel = parseLogLevel(c.Logging.Level)
	cfg.LogJSON = strings.EqualFold(c.Logging.Format, "json")

	return cfg
}

// parseLogLevel maps a config string onto a slog level, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
