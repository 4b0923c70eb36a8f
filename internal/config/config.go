// Package config handles loading and validating taskpilot configuration.
// Supports YAML config files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Default values.
const (
	DefaultStoreBackend       = "file"
	DefaultOracleProvider     = "anthropic"
	DefaultAnthropicModel     = "claude-sonnet-4-20250514"
	DefaultGeminiModel        = "gemini-2.5-flash"
	DefaultOracleTimeout      = 60 * time.Second
	DefaultMaxTokens          = 2000
	DefaultSearchLanguage     = "lang_ja"
	DefaultSearchTimeout      = 10 * time.Second
	DefaultSearchResults      = 5
	DefaultServerAddr         = ":5000"
	DefaultStaleThresholdDays = 7
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultRetentionDays      = 7

	projectConfigName = "taskpilot.yaml"
	envPrefix         = "TASKPILOT"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Oracle providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderClaudeCLI = "claude-cli"
	ProviderCodexCLI  = "codex-cli"
	ProviderNone      = "none"
)

// Validation errors.
var (
	ErrInvalidBackend    = errors.New("store.backend must be file, sqlite or postgres")
	ErrMissingDSN        = errors.New("store.dsn is required for the postgres backend")
	ErrInvalidProvider   = errors.New("oracle.provider must be anthropic, gemini, claude-cli, codex-cli or none")
	ErrInvalidTimeout    = errors.New("oracle.timeout must be positive")
	ErrInvalidMaxTokens  = errors.New("oracle.max_tokens must be positive")
	ErrInvalidRetries    = errors.New("oracle.max_retries must not be negative")
	ErrInvalidThreshold  = errors.New("stale.threshold_days must be at least 1")
	ErrInvalidSchedule   = errors.New("stale.schedule is not a valid cron expression")
	ErrInvalidNumResults = errors.New("search.num_results must be between 1 and 10")
	ErrInvalidLogLevel   = errors.New("logging.level must be debug, info, warn or error")
	ErrInvalidLogFormat  = errors.New("logging.format must be json or text")
)

// Config holds all taskpilot configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Oracle  OracleConfig  `mapstructure:"oracle"`
	Search  SearchConfig  `mapstructure:"search"`
	Server  ServerConfig  `mapstructure:"server"`
	Stale   StaleConfig   `mapstructure:"stale"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig selects the task persistence backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // file, sqlite, postgres
	Path    string `mapstructure:"path"`    // data dir for file, db file for sqlite
	DSN     string `mapstructure:"dsn"`     // postgres connection string
}

// OracleConfig configures the language model used for assistance.
type OracleConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	BinaryPath string        `mapstructure:"binary_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxTokens  int           `mapstructure:"max_tokens"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// SearchConfig configures the Google Custom Search client.
type SearchConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	EngineID   string        `mapstructure:"engine_id"`
	Language   string        `mapstructure:"language"`
	NumResults int           `mapstructure:"num_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Configured reports whether both credentials are present.
func (s SearchConfig) Configured() bool {
	return s.APIKey != "" && s.EngineID != ""
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	Debug       bool     `mapstructure:"debug"`
}

// StaleConfig configures stale task detection.
type StaleConfig struct {
	ThresholdDays int    `mapstructure:"threshold_days"`
	Schedule      string `mapstructure:"schedule"` // cron expression; empty disables scheduled checks
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Path          string `mapstructure:"path"`
	Format        string `mapstructure:"format"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// GlobalConfigPath returns ~/.config/taskpilot/config.yaml.
func GlobalConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "taskpilot", "config.yaml")
}

// DataDir returns the default data directory.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "taskpilot")
}

// Load reads the global config and ./taskpilot.yaml.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getwd: %w", err)
	}
	return LoadFromPaths(cwd, GlobalConfigPath())
}

// LoadFile reads a single explicit config file.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(expandPath(path))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return decode(v)
}

// LoadFromPaths merges the global config at globalPath with the project
// config in projectDir, project values winning. Missing files are skipped.
func LoadFromPaths(projectDir, globalPath string) (*Config, error) {
	v := newViper()

	paths := []string{globalPath}
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, projectConfigName))
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		p = expandPath(p)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		v.SetConfigFile(p)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("search.api_key", envPrefix+"_SEARCH_API_KEY", "GOOGLE_SEARCH_API_KEY")
	_ = v.BindEnv("search.engine_id", envPrefix+"_SEARCH_ENGINE_ID", "GOOGLE_SEARCH_ENGINE_ID")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", DefaultStoreBackend)
	v.SetDefault("store.path", "")
	v.SetDefault("store.dsn", "")

	v.SetDefault("oracle.provider", DefaultOracleProvider)
	v.SetDefault("oracle.model", "")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.binary_path", "")
	v.SetDefault("oracle.timeout", DefaultOracleTimeout)
	v.SetDefault("oracle.max_tokens", DefaultMaxTokens)
	v.SetDefault("oracle.max_retries", 0)

	v.SetDefault("search.api_key", "")
	v.SetDefault("search.engine_id", "")
	v.SetDefault("search.language", DefaultSearchLanguage)
	v.SetDefault("search.num_results", DefaultSearchResults)
	v.SetDefault("search.timeout", DefaultSearchTimeout)

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.debug", false)

	v.SetDefault("stale.threshold_days", DefaultStaleThresholdDays)
	v.SetDefault("stale.schedule", "")

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", filepath.Join(DataDir(), "logs"))
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("logging.retention_days", DefaultRetentionDays)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	normalize(&cfg)
	return &cfg, nil
}

// normalize fills provider-dependent defaults and conventional env keys.
func normalize(cfg *Config) {
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.Oracle.Provider = strings.ToLower(strings.TrimSpace(cfg.Oracle.Provider))

	switch cfg.Oracle.Provider {
	case ProviderAnthropic:
		if cfg.Oracle.APIKey == "" {
			cfg.Oracle.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if cfg.Oracle.Model == "" {
			cfg.Oracle.Model = DefaultAnthropicModel
		}
	case ProviderGemini:
		if cfg.Oracle.APIKey == "" {
			cfg.Oracle.APIKey = os.Getenv("GEMINI_API_KEY")
		}
		if cfg.Oracle.APIKey == "" {
			cfg.Oracle.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
		if cfg.Oracle.Model == "" {
			cfg.Oracle.Model = DefaultGeminiModel
		}
	}

	if cfg.Store.Path != "" {
		cfg.Store.Path = expandPath(cfg.Store.Path)
	}
	if cfg.Logging.Path != "" {
		cfg.Logging.Path = expandPath(cfg.Logging.Path)
	}
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	switch cfg.Store.Backend {
	case BackendFile, BackendSQLite:
	case BackendPostgres:
		if cfg.Store.DSN == "" {
			return ErrMissingDSN
		}
	default:
		return ErrInvalidBackend
	}

	switch cfg.Oracle.Provider {
	case ProviderAnthropic, ProviderGemini, ProviderClaudeCLI, ProviderCodexCLI, ProviderNone:
	default:
		return ErrInvalidProvider
	}
	if cfg.Oracle.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if cfg.Oracle.MaxTokens <= 0 {
		return ErrInvalidMaxTokens
	}
	if cfg.Oracle.MaxRetries < 0 {
		return ErrInvalidRetries
	}

	if cfg.Search.NumResults < 1 || cfg.Search.NumResults > 10 {
		return ErrInvalidNumResults
	}

	if cfg.Stale.ThresholdDays < 1 {
		return ErrInvalidThreshold
	}
	if cfg.Stale.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Stale.Schedule); err != nil {
			return ErrInvalidSchedule
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return ErrInvalidLogFormat
	}

	return nil
}

// Write persists cfg as YAML at path, keeping unrelated keys already in the file.
// Secrets are written only when set.
func Write(path string, cfg *Config) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	v.Set("store.backend", cfg.Store.Backend)
	v.Set("store.path", cfg.Store.Path)
	if cfg.Store.DSN != "" {
		v.Set("store.dsn", cfg.Store.DSN)
	}

	v.Set("oracle.provider", cfg.Oracle.Provider)
	v.Set("oracle.model", cfg.Oracle.Model)
	v.Set("oracle.timeout", cfg.Oracle.Timeout.String())
	v.Set("oracle.max_tokens", cfg.Oracle.MaxTokens)
	v.Set("oracle.max_retries", cfg.Oracle.MaxRetries)
	if cfg.Oracle.APIKey != "" {
		v.Set("oracle.api_key", cfg.Oracle.APIKey)
	}

	v.Set("search.language", cfg.Search.Language)
	v.Set("search.num_results", cfg.Search.NumResults)

	v.Set("server.addr", cfg.Server.Addr)
	v.Set("server.cors_origins", cfg.Server.CORSOrigins)

	v.Set("stale.threshold_days", cfg.Stale.ThresholdDays)
	v.Set("stale.schedule", cfg.Stale.Schedule)

	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.format", cfg.Logging.Format)
	v.Set("logging.path", cfg.Logging.Path)
	v.Set("logging.retention_days", cfg.Logging.RetentionDays)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			return v.SafeWriteConfig()
		}
		return err
	}
	return nil
}

// Default returns the configuration used when no files or env are present.
func Default() *Config {
	cfg, err := decode(newDefaultsOnly())
	if err != nil {
		return &Config{}
	}
	return cfg
}

func newDefaultsOnly() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
