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

// Config holds the paperdex pipeline configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Ops       OpsConfig       `yaml:"ops"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// EngineConfig holds search engine connection settings.
type EngineConfig struct {
	Driver           string   `yaml:"driver"` // elastic, memory (default: elastic)
	Addresses        []string `yaml:"addresses"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	BulkRetries      int      `yaml:"bulk_retries"` // extra attempts for connectivity failures, 0 = off
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider    string      `yaml:"provider"` // openai (default)
	BaseURL     string      `yaml:"base_url"`
	APIKey      string      `yaml:"api_key"`
	Model       string      `yaml:"model"`
	Dimensions  int         `yaml:"dimensions"`  // 0 = probe from the service
	Instruction string      `yaml:"instruction"` // optional prefix for passage-style models
	Cache       CacheConfig `yaml:"cache"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Driver    string   `yaml:"driver"` // badger, redis, none (default: badger)
	Path      string   `yaml:"path"`   // badger directory (default: <data_dir>/embcache)
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
}

// PipelineConfig holds corpus and batching settings.
type PipelineConfig struct {
	DataDir        string `yaml:"data_dir"`
	IndexName      string `yaml:"index_name"`
	CategoryPrefix string `yaml:"category_prefix"`
	BatchSize      int    `yaml:"batch_size"`       // bulk load batch
	EmbedBatchSize int    `yaml:"embed_batch_size"` // embedding request batch
	MaxDocuments   int    `yaml:"max_documents"`    // 0 = unlimited
	Workers        int    `yaml:"workers"`          // bulk load concurrency
	MappingPath    string `yaml:"mapping_path"`     // index mapping JSON, empty = built-in
}

// SnapshotConfig holds snapshot repository settings.
type SnapshotConfig struct {
	RepoName string `yaml:"repo_name"`
	RepoPath string `yaml:"repo_path"`
}

// OpsConfig holds the diagnostics HTTP server settings.
type OpsConfig struct {
	Addr    string   `yaml:"addr"` // empty = disabled
	APIKeys []string `yaml:"api_keys"`
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
	if c.Engine.Driver == "" {
		c.Engine.Driver = "elastic"
	}
	if len(c.Engine.Addresses) == 0 {
		c.Engine.Addresses = []string{"http://localhost:9200"}
	}
	if c.Engine.ReadinessTimeout <= 0 {
		c.Engine.ReadinessTimeout = 30
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Cache.Driver == "" {
		c.Embedding.Cache.Driver = "badger"
	}
	if c.Pipeline.DataDir == "" {
		c.Pipeline.DataDir = "./data"
	}
	if c.Pipeline.IndexName == "" {
		c.Pipeline.IndexName = "arxiv-papers"
	}
	if c.Pipeline.CategoryPrefix == "" {
		c.Pipeline.CategoryPrefix = "cs."
	}
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = 500
	}
	if c.Pipeline.EmbedBatchSize <= 0 {
		c.Pipeline.EmbedBatchSize = 32
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 1
	}
	if c.Embedding.Cache.Path == "" {
		c.Embedding.Cache.Path = filepath.Join(c.Pipeline.DataDir, "embcache")
	}
	if c.Pipeline.MappingPath == "" {
		if path := filepath.Join("config", "index_mapping.json"); fileExists(path) {
			c.Pipeline.MappingPath = path
		}
	}
	if c.Snapshot.RepoName == "" {
		c.Snapshot.RepoName = "arxiv_backup"
	}
	if c.Snapshot.RepoPath == "" {
		c.Snapshot.RepoPath = "/usr/share/elasticsearch/snapshots"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Engine.Driver {
	case "elastic", "memory":
	default:
		return fmt.Errorf("engine.driver must be \"elastic\" or \"memory\", got %q", c.Engine.Driver)
	}
	if c.Engine.Driver == "elastic" && len(c.Engine.Addresses) == 0 {
		return fmt.Errorf("engine.addresses is required")
	}
	switch c.Embedding.Cache.Driver {
	case "badger", "redis", "none":
	default:
		return fmt.Errorf(
			"embedding.cache.driver must be \"badger\", \"redis\" or \"none\", got %q",
			c.Embedding.Cache.Driver,
		)
	}
	if c.Embedding.Cache.Driver == "redis" && len(c.Embedding.Cache.Addresses) == 0 {
		return fmt.Errorf("embedding.cache.addresses is required for the redis driver")
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be positive, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.EmbedBatchSize <= 0 {
		return fmt.Errorf("pipeline.embed_batch_size must be positive, got %d", c.Pipeline.EmbedBatchSize)
	}
	if c.Pipeline.MaxDocuments < 0 {
		return fmt.Errorf("pipeline.max_documents must not be negative, got %d", c.Pipeline.MaxDocuments)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
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
