package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the crenews tool. It is loaded and
// validated once at startup; components receive the values they need and
// never re-read the environment.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Search    SearchConfig    `yaml:"search"`
}

// DatabaseConfig holds the relational store connection settings. DSN wins
// when set; otherwise a postgres DSN is assembled from the host fields,
// mirroring the DB_* environment variables the scrapers use.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Dimension  int    `yaml:"dimension"`
	BatchSize  int    `yaml:"batch_size"`
	MaxRetries int    `yaml:"max_retries"`
	MaxChars   int    `yaml:"max_chars"`
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	Provider   string `yaml:"provider"` // "qdrant" or "bolt"
	URL        string `yaml:"url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Path       string `yaml:"path"` // bolt database file
	BatchSize  int    `yaml:"batch_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// PipelineConfig holds embedding pipeline configuration.
type PipelineConfig struct {
	BatchSize  int `yaml:"batch_size"`
	MaxRetries int `yaml:"max_retries"`
}

// SearchConfig holds similarity search configuration.
type SearchConfig struct {
	TopK int `yaml:"top_k"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host: "localhost",
			Port: 5432,
			Name: "crenews",
			User: "postgres",
		},
		Embedding: EmbeddingConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			APIKeyEnv:  "OPENAI_API_KEY",
			Dimension:  1536,
			BatchSize:  100,
			MaxRetries: 3,
			MaxChars:   32000,
		},
		Index: IndexConfig{
			Provider:   "qdrant",
			URL:        "http://localhost:6333",
			APIKeyEnv:  "QDRANT_API_KEY",
			Path:       ".crenews/vectors.db",
			BatchSize:  100,
			MaxRetries: 3,
		},
		Pipeline: PipelineConfig{
			BatchSize:  10,
			MaxRetries: 3,
		},
		Search: SearchConfig{
			TopK: 5,
		},
	}
}

// Load loads configuration from a YAML file, fills gaps with defaults and
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, cfg.Validate()
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// LoadFromDir loads configuration from a directory (looks for crenews.yaml,
// then .crenews/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "crenews.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".crenews", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnv overlays the environment variables shared with the scrapers
// (DB_*, QDRANT_*) onto the loaded configuration. Secrets only ever come
// from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Database.Port = p
		}
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		c.Index.URL = v
	}
}

// Validate checks the configuration once at startup.
func (c *Config) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding batch size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline batch size must be positive, got %d", c.Pipeline.BatchSize)
	}
	switch c.Index.Provider {
	case "qdrant", "bolt", "memory":
	default:
		return fmt.Errorf("unsupported index provider: %s", c.Index.Provider)
	}
	return nil
}

// DatabaseDSN returns the relational store DSN, assembling a postgres URL
// from the host fields when no explicit DSN is configured.
func (c *Config) DatabaseDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name)
}
