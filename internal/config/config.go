package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by embedding.backend and generation.backend.
const (
	BackendOpenAI = "openai"
	BackendLocal  = "local"
)

// Config holds the clinicrag service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Source     SourceConfig     `yaml:"source"`
	History    HistoryConfig    `yaml:"history"`
	Cache      CacheConfig      `yaml:"cache"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// SourceConfig points at the SQLite database holding the clinic catalog.
type SourceConfig struct {
	Path string `yaml:"path"`
}

// HistoryConfig holds chat transcript persistence settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // defaults to source.path
}

// CacheConfig holds the embedding cache connection settings. No addrs disables the cache.
type CacheConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether an embedding cache is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Backend      string                    `yaml:"backend"` // openai, local
	Providers    map[string]ProviderConfig `yaml:"providers"`
	Provider     string                    `yaml:"provider"` // key into providers for the openai backend
	Model        string                    `yaml:"model"`
	Dimensions   int                       `yaml:"dimensions"`
	TimeoutSec   int                       `yaml:"timeout_sec"`
	MaxBatchSize int                       `yaml:"max_batch_size"`
	ServerURL    string                    `yaml:"server_url"` // local backend
}

// ProviderConfig holds an OpenAI-compatible provider endpoint.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// GenerationConfig selects the answer generation backend.
type GenerationConfig struct {
	Backend     string  `yaml:"backend"` // openai, local
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	ServerURL   string  `yaml:"server_url"`
}

// RetrievalConfig holds the searched categories and query defaults.
type RetrievalConfig struct {
	TopK       int              `yaml:"top_k"`
	TimeoutSec int              `yaml:"timeout_sec"`
	Categories []CategoryConfig `yaml:"categories"`
}

// CategoryConfig maps one category to its source tables and embedded columns.
// Tables are concatenated in the listed order.
type CategoryConfig struct {
	Name    string   `yaml:"name"`
	Tables  []string `yaml:"tables"`
	Columns []string `yaml:"columns"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.History.Path == "" {
		c.History.Path = c.Source.Path
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "valkey"
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "clinicrag:"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Embedding.Backend == "" {
		c.Embedding.Backend = BackendOpenAI
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.MaxBatchSize <= 0 {
		c.Embedding.MaxBatchSize = 256
	}
	if c.Generation.Backend == "" {
		c.Generation.Backend = c.Embedding.Backend
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = c.Embedding.Provider
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 60
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 512
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 10
	}
	if c.Retrieval.TimeoutSec <= 0 {
		c.Retrieval.TimeoutSec = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Source.Path == "" {
		return fmt.Errorf("source.path is required")
	}
	switch c.Cache.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("cache.driver must be \"valkey\" or \"redis\", got %q", c.Cache.Driver)
	}
	if err := validateBackend("embedding", c.Embedding.Backend, c.Embedding.Provider, c.Embedding.Model, c.Embedding.Providers); err != nil {
		return err
	}
	if err := validateBackend("generation", c.Generation.Backend, c.Generation.Provider, c.Generation.Model, c.Embedding.Providers); err != nil {
		return err
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be between 0 and 2, got %g", c.Generation.Temperature)
	}
	if c.Generation.TopP < 0 || c.Generation.TopP > 1 {
		return fmt.Errorf("generation.top_p must be between 0 and 1, got %g", c.Generation.TopP)
	}
	return c.validateCategories()
}

func validateBackend(section, backend, provider, model string, providers map[string]ProviderConfig) error {
	if model == "" {
		return fmt.Errorf("%s.model is required", section)
	}
	switch backend {
	case BackendLocal:
		return nil
	case BackendOpenAI:
		if _, ok := providers[provider]; !ok {
			return fmt.Errorf("%s.provider %q is not declared in embedding.providers", section, provider)
		}
		return nil
	default:
		return fmt.Errorf("%s.backend must be %q or %q, got %q", section, BackendOpenAI, BackendLocal, backend)
	}
}

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (c *Config) validateCategories() error {
	if len(c.Retrieval.Categories) == 0 {
		return fmt.Errorf("retrieval.categories is required")
	}
	seen := make(map[string]bool, len(c.Retrieval.Categories))
	for i, cat := range c.Retrieval.Categories {
		if !identRegex.MatchString(cat.Name) {
			return fmt.Errorf("retrieval.categories[%d].name %q is invalid", i, cat.Name)
		}
		if seen[cat.Name] {
			return fmt.Errorf("retrieval.categories[%d]: duplicate category %q", i, cat.Name)
		}
		seen[cat.Name] = true
		if len(cat.Tables) == 0 {
			return fmt.Errorf("retrieval.categories.%s.tables is required", cat.Name)
		}
		if len(cat.Columns) == 0 {
			return fmt.Errorf("retrieval.categories.%s.columns is required", cat.Name)
		}
		for _, t := range cat.Tables {
			if !identRegex.MatchString(t) {
				return fmt.Errorf("retrieval.categories.%s: invalid table name %q", cat.Name, t)
			}
		}
		for _, col := range cat.Columns {
			if !identRegex.MatchString(col) {
				return fmt.Errorf("retrieval.categories.%s: invalid column name %q", cat.Name, col)
			}
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
