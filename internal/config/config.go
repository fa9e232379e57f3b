package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

const (
	defaultProjectJournalPath = ".private-journal"
	defaultUserJournalPath    = "~/.private-journal"
	defaultIndexFile          = ".index/journal.db"
	defaultReindexSpec        = "*/30 * * * *"
	defaultCacheSize          = 512
	defaultCacheTTLSeconds    = 3600
)

type Config struct {
	ProjectJournalPath string           `json:"project_journal_path" yaml:"project_journal_path"`
	UserJournalPath    string           `json:"user_journal_path" yaml:"user_journal_path"`
	LogConfig          logger.LogConfig `json:"log_config" yaml:"-"`
	Embedding          EmbeddingConfig  `json:"embedding" yaml:"embedding"`
	Index              IndexConfig      `json:"index" yaml:"index"`
	Search             SearchConfig     `json:"search" yaml:"search"`
	Reindex            ReindexConfig    `json:"reindex" yaml:"reindex"`
}

type EmbeddingConfig struct {
	Provider        string       `json:"provider" yaml:"provider"`
	OpenAI          OpenAIConfig `json:"openai" yaml:"openai"`
	Gemini          GeminiConfig `json:"gemini" yaml:"gemini"`
	Local           LocalConfig  `json:"local" yaml:"local"`
	CacheSize       int          `json:"cache_size" yaml:"cache_size"`
	CacheTTLSeconds int64        `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
}

type OpenAIConfig struct {
	APIKey    string `json:"api_key" yaml:"api_key"`
	BaseURL   string `json:"base_url" yaml:"base_url"`
	Model     string `json:"model" yaml:"model"`
	Dimension int    `json:"dimension" yaml:"dimension"`
}

type GeminiConfig struct {
	APIKey    string `json:"api_key" yaml:"api_key"`
	BaseURL   string `json:"base_url" yaml:"base_url"`
	Model     string `json:"model" yaml:"model"`
	Dimension int    `json:"dimension" yaml:"dimension"`
}

type LocalConfig struct {
	Dimension int `json:"dimension" yaml:"dimension"`
}

// IndexConfig selects a vector index backend. Data is decoded by the backend factory.
type IndexConfig struct {
	Type string      `json:"type" yaml:"type"`
	Data interface{} `json:"data" yaml:"data"`
}

type SQLiteConfig struct {
	Path string `json:"path"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type SearchConfig struct {
	OverFetchFactor int `json:"over_fetch_factor" yaml:"over_fetch_factor"`
}

type ReindexConfig struct {
	Spec string `json:"spec" yaml:"spec"`
}

// aixFile is the persona file layout; only the settings block concerns the journal.
type aixFile struct {
	Settings Config `yaml:"settings"`
}

// Load reads the config at path. An empty path yields the defaults. Files ending in
// .aix, .yaml or .yml are read as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	}
	ApplyEnv(cfg, os.Getenv)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".aix":
		file := &aixFile{}
		if err := yaml.Unmarshal(data, file); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
		*cfg = file.Settings
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	return nil
}

// ApplyEnv fills credentials and the provider from the environment when the file left them unset.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = getenv("MJOURNAL_EMBEDDING_PROVIDER")
	}
	if cfg.Embedding.OpenAI.APIKey == "" {
		cfg.Embedding.OpenAI.APIKey = getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.Gemini.APIKey == "" {
		cfg.Embedding.Gemini.APIKey = getenv("GEMINI_API_KEY")
	}
	if cfg.Embedding.Gemini.APIKey == "" {
		cfg.Embedding.Gemini.APIKey = getenv("GOOGLE_API_KEY")
	}
}

func (c *Config) normalize() error {
	if c.ProjectJournalPath == "" {
		c.ProjectJournalPath = defaultProjectJournalPath
	}
	if c.UserJournalPath == "" {
		c.UserJournalPath = defaultUserJournalPath
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "local"
	}
	switch c.Embedding.Provider {
	case "local", "openai", "gemini":
	default:
		return fmt.Errorf("embedding.provider must be local, openai or gemini")
	}
	if c.Embedding.CacheSize == 0 {
		c.Embedding.CacheSize = defaultCacheSize
	}
	if c.Embedding.CacheTTLSeconds == 0 {
		c.Embedding.CacheTTLSeconds = defaultCacheTTLSeconds
	}
	if c.Index.Type == "" {
		c.Index.Type = "sqlite"
	}
	switch c.Index.Type {
	case "sqlite":
		if c.Index.Data == nil {
			c.Index.Data = map[string]interface{}{
				"path": filepath.Join(c.UserJournalPath, defaultIndexFile),
			}
		}
	case "postgres":
		if c.Index.Data == nil {
			return fmt.Errorf("index.data is required for postgres index")
		}
	default:
		return fmt.Errorf("index.type must be sqlite or postgres")
	}
	if c.Search.OverFetchFactor <= 0 {
		c.Search.OverFetchFactor = 1
	}
	if c.Reindex.Spec == "" {
		c.Reindex.Spec = defaultReindexSpec
	}
	return nil
}
