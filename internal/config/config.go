package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents the application configuration
type Config struct {
	Catalog   CatalogConfig   `json:"catalog"`
	Database  DatabaseConfig  `json:"database"`
	Templates TemplatesConfig `json:"templates"`
	LLM       LLMConfig       `json:"llm"`
	Embedding EmbeddingConfig `json:"embedding"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Server    ServerConfig    `json:"server"`
	Logging   LoggingConfig   `json:"logging"`
}

// CatalogConfig locates the externally built schema catalog artifacts.
type CatalogConfig struct {
	Dir       string `json:"dir"        env:"CATALOG_DIR"   envDefault:"~/.config/askdb/catalog"`
	LightFile string `json:"light_file" env:"CATALOG_LIGHT" envDefault:"catalog.yaml"`
	TablesDir string `json:"tables_dir" env:"CATALOG_TABLES" envDefault:"tables"`
	Watch     bool   `json:"watch"      env:"CATALOG_WATCH" envDefault:"false"`
}

// DatabaseConfig represents the target database the pipeline queries.
// The connection is opened read-only regardless of configuration; the
// path and timeout are the only tunables.
type DatabaseConfig struct {
	Path            string `json:"path"              env:"DB_PATH"              envDefault:"~/.config/askdb/data.db"`
	MaxConnections  int    `json:"max_connections"   env:"DB_MAX_CONNECTIONS"   envDefault:"4"`
	MaxIdleConns    int    `json:"max_idle_conns"    env:"DB_MAX_IDLE_CONNS"    envDefault:"2"`
	ConnMaxLifetime string `json:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	QueryTimeout    string `json:"query_timeout"     env:"DB_QUERY_TIMEOUT"     envDefault:"30s"`
	RowCap          int    `json:"row_cap"           env:"DB_ROW_CAP"           envDefault:"500"`
}

// TemplatesConfig represents the learned-template index storage.
type TemplatesConfig struct {
	Path     string `json:"path"      env:"TEMPLATES_PATH" envDefault:"~/.config/askdb/templates.db"`
	SeedFile string `json:"seed_file" env:"TEMPLATES_SEED" envDefault:""`
}

// LLMConfig represents language model provider configuration.
type LLMConfig struct {
	Provider string `json:"provider" env:"LLM_PROVIDER" envDefault:"ollama"`
	Model    string `json:"model"    env:"LLM_MODEL"    envDefault:"qwen2.5-coder"`
	APIKey   string `json:"api_key"  env:"LLM_API_KEY"  envDefault:""`
	BaseURL  string `json:"base_url" env:"LLM_BASE_URL" envDefault:""`
	Timeout  string `json:"timeout"  env:"LLM_TIMEOUT"  envDefault:"60s"`
}

// EmbeddingConfig represents embedding provider configuration.
type EmbeddingConfig struct {
	Provider   string `json:"provider"   env:"EMBEDDING_PROVIDER" envDefault:"local"`
	Model      string `json:"model"      env:"EMBEDDING_MODEL"    envDefault:"nomic-embed-text"`
	Dimensions int    `json:"dimensions" env:"EMBEDDING_DIMS"     envDefault:"384"`
}

// PipelineConfig tunes the orchestrator's retry and retrieval behavior.
type PipelineConfig struct {
	RetryBudget      int     `json:"retry_budget"       env:"PIPELINE_RETRY_BUDGET"   envDefault:"2"`
	MaxTemplates     int     `json:"max_templates"      env:"PIPELINE_MAX_TEMPLATES"  envDefault:"3"`
	ReuseThreshold   float64 `json:"reuse_threshold"    env:"PIPELINE_REUSE_THRESHOLD" envDefault:"0.95"`
	GenerateTimeout  string  `json:"generate_timeout"   env:"PIPELINE_GENERATE_TIMEOUT" envDefault:"60s"`
	EvaluateTimeout  string  `json:"evaluate_timeout"   env:"PIPELINE_EVALUATE_TIMEOUT" envDefault:"60s"`
	LearningDisabled bool    `json:"learning_disabled"  env:"PIPELINE_NO_LEARNING"    envDefault:"false"`
}

// ServerConfig represents the HTTP entry point configuration.
type ServerConfig struct {
	Addr         string `json:"addr"          env:"SERVER_ADDR"          envDefault:":8420"`
	ReadTimeout  string `json:"read_timeout"  env:"SERVER_READ_TIMEOUT"  envDefault:"15s"`
	WriteTimeout string `json:"write_timeout" env:"SERVER_WRITE_TIMEOUT" envDefault:"5m"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"  env:"LOG_LEVEL"  envDefault:"info"`   // debug, info, warn, error
	Format string `json:"format" env:"LOG_FORMAT" envDefault:"text"`   // text, json
	Output string `json:"output" env:"LOG_OUTPUT" envDefault:"stderr"` // stdout, stderr, file
	File   string `json:"file"   env:"LOG_FILE"   envDefault:"~/.config/askdb/logs/askdb.log"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag overrides
func LoadConfigWithOverrides(flagOverrides map[string]interface{}) (*Config, error) {
	config := &Config{}

	// Load from config file if it exists
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Apply environment variable overrides (also sets defaults)
	if err := env.ParseWithOptions(config, env.Options{
		Prefix: "ASKDB_",
	}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if flagOverrides != nil {
		applyFlagOverrides(config, flagOverrides)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeConfigs(config, &fileConfig)

	return nil
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "db-path":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Path = str
			}
		case "catalog-dir":
			if str, ok := value.(string); ok && str != "" {
				config.Catalog.Dir = str
			}
		case "templates-path":
			if str, ok := value.(string); ok && str != "" {
				config.Templates.Path = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		}
	}
}

// mergeConfigs merges source configuration into target configuration
func mergeConfigs(target, source *Config) {
	var mergeValues func(t, s reflect.Value)
	mergeValues = func(t, s reflect.Value) {
		if t.Kind() != s.Kind() {
			return
		}

		if t.Kind() == reflect.Struct {
			for i := range s.NumField() {
				mergeValues(t.Field(i), s.Field(i))
			}
		} else if s.Kind() == reflect.Bool {
			t.Set(s)
		} else if !s.IsZero() {
			t.Set(s)
		}
	}

	mergeValues(reflect.ValueOf(target).Elem(), reflect.ValueOf(source).Elem())
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf(
			"invalid log level: %s (must be debug, info, warn, or error)",
			config.Logging.Level,
		)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.Logging.Format)
	}

	validLogOutputs := map[string]bool{
		"stdout": true, "stderr": true, "file": true,
	}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return fmt.Errorf(
			"invalid log output: %s (must be stdout, stderr, or file)",
			config.Logging.Output,
		)
	}

	for name, value := range map[string]string{
		"database query_timeout":    config.Database.QueryTimeout,
		"llm timeout":               config.LLM.Timeout,
		"pipeline generate_timeout": config.Pipeline.GenerateTimeout,
		"pipeline evaluate_timeout": config.Pipeline.EvaluateTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %s", name, value)
		}
	}

	if config.Database.RowCap <= 0 {
		return fmt.Errorf("database row_cap must be positive: %d", config.Database.RowCap)
	}

	if config.Pipeline.RetryBudget < 0 {
		return fmt.Errorf("pipeline retry_budget must not be negative: %d", config.Pipeline.RetryBudget)
	}

	if config.Pipeline.ReuseThreshold < 0 || config.Pipeline.ReuseThreshold > 1 {
		return fmt.Errorf(
			"pipeline reuse_threshold must be between 0 and 1: %f",
			config.Pipeline.ReuseThreshold,
		)
	}

	if config.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive: %d", config.Embedding.Dimensions)
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config) error {
	configPath := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if configPath := os.Getenv("ASKDB_CONFIG"); configPath != "" {
		return expandPath(configPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(homeDir, ".config", "askdb", "config.json")
}

// expandPath expands ~ to home directory in file paths
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Catalog.Dir = expandPath(c.Catalog.Dir)
	c.Database.Path = expandPath(c.Database.Path)
	c.Templates.Path = expandPath(c.Templates.Path)
	c.Templates.SeedFile = expandPath(c.Templates.SeedFile)
	c.Logging.File = expandPath(c.Logging.File)
}

// GetConfigDir returns the configuration directory
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".config/askdb"
	}

	return filepath.Join(homeDir, ".config", "askdb")
}

// EnsureDirectories creates necessary directories for the configuration
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Database.Path),
		filepath.Dir(c.Templates.Path),
		filepath.Dir(c.Logging.File),
	}

	for _, dir := range dirs {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}

// QueryTimeoutDuration returns the parsed database query timeout.
func (c *DatabaseConfig) QueryTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}

	return d
}

// TimeoutDuration returns the parsed LLM call timeout.
func (c *LLMConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}

	return d
}

// StageTimeout parses one of the pipeline stage timeouts.
func StageTimeout(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 60 * time.Second
	}

	return d
}
