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

// Config holds the naviq agent configuration.
type Config struct {
	HTTP        HTTPConfig                  `yaml:"http"`
	Database    DatabaseConfig              `yaml:"database"`
	LLM         LLMConfig                   `yaml:"llm"`
	Embedding   EmbeddingConfig             `yaml:"embedding"`
	Pipeline    PipelineConfig              `yaml:"pipeline"`
	Auth        AuthConfig                  `yaml:"auth"`
	Collections map[string]CollectionConfig `yaml:"collections"`
	Logging     LoggingConfig               `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication and the default caller identity.
// The default caller is used when the HTTP layer receives no caller headers.
type AuthConfig struct {
	APIKeys           []string `yaml:"api_keys"`
	DefaultCallerID   string   `yaml:"default_caller_id"`
	DefaultCallerRole string   `yaml:"default_caller_role"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// LLMConfig holds the chat-completion provider settings.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// EmbeddingConfig holds the embedding provider settings.
// Dimensions is a system-wide invariant: every vector entering the store
// must have exactly this length.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// PipelineConfig holds agent pipeline tuning knobs.
type PipelineConfig struct {
	// TopK is how many retrieved records the RAG pipeline returns as context.
	TopK int `yaml:"top_k"`
	// CandidatePool bounds the KNN candidate set considered before the TopK cut.
	CandidatePool int `yaml:"candidate_pool"`
	// MaxRetries bounds retry attempts for completion/embedding calls (0 disables retry).
	MaxRetries int `yaml:"max_retries"`
	// BackfillBatchSize bounds each backfill sweep batch.
	BackfillBatchSize int `yaml:"backfill_batch_size"`
}

// CollectionConfig describes the schema and translation hints for one collection.
type CollectionConfig struct {
	TagFields     []string `yaml:"tag_fields"`
	NumericFields []string `yaml:"numeric_fields"`
	// NameFields are free-text identity fields whose equality matches must be
	// rendered case-insensitively and whitespace-tolerantly.
	NameFields []string `yaml:"name_fields"`
	// Vocabulary is domain jargon handed to the translation prompt verbatim
	// (category codes, unit conventions).
	Vocabulary string `yaml:"vocabulary"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

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
		// Pipeline stages are serial model round-trips; give handlers room.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "naviq:"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Pipeline.TopK <= 0 {
		c.Pipeline.TopK = 5
	}
	if c.Pipeline.CandidatePool <= 0 {
		c.Pipeline.CandidatePool = 100
	}
	if c.Pipeline.MaxRetries < 0 {
		c.Pipeline.MaxRetries = 0
	}
	if c.Pipeline.BackfillBatchSize <= 0 {
		c.Pipeline.BackfillBatchSize = 50
	}
	if c.Auth.DefaultCallerID == "" {
		c.Auth.DefaultCallerID = "admin"
	}
	if c.Auth.DefaultCallerRole == "" {
		c.Auth.DefaultCallerRole = "Admin"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required")
	}
	if len(c.Collections) == 0 {
		return fmt.Errorf("at least one collection must be configured")
	}
	if c.Pipeline.TopK > c.Pipeline.CandidatePool {
		return fmt.Errorf(
			"pipeline.top_k (%d) must not exceed pipeline.candidate_pool (%d)",
			c.Pipeline.TopK, c.Pipeline.CandidatePool,
		)
	}
	for name, col := range c.Collections {
		if len(col.TagFields)+len(col.NumericFields) == 0 {
			return fmt.Errorf("collection %q has no fields", name)
		}
		for _, nf := range col.NameFields {
			if !contains(col.TagFields, nf) {
				return fmt.Errorf("collection %q: name field %q is not a tag field", name, nf)
			}
		}
	}
	return nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
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
