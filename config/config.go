// Package config loads ragdoc settings from a YAML file, a .env file and
// the process environment.
package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/ragdoc"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvDB     = "RAGDOC_DB"
	EnvConfig = "RAGDOC_CONFIG"
	EnvGemini = "GEMINI_API_KEY"
	EnvOpenAI = "OPENAI_API_KEY"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// Config holds every tunable setting.
type Config struct {
	Storage      StorageConfig            `yaml:"storage"`
	Embedding    EmbeddingConfig          `yaml:"embedding"`
	Generation   GenerationConfig         `yaml:"generation"`
	Chunking     ragdoc.ChunkOptions      `yaml:"chunking"`
	Retrieval    RetrievalConfig          `yaml:"retrieval"`
	Conversation ConversationConfig       `yaml:"conversation"`
	Warnings     ragdoc.WarningThresholds `yaml:"warnings"`
	Fetch        FetchConfig              `yaml:"fetch"`

	// API keys come from the environment only.
	GeminiAPIKey string `yaml:"-"`
	OpenAIAPIKey string `yaml:"-"`
}

// StorageConfig locates the database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig selects and tunes the embedder.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

// GenerationConfig selects and tunes the language model.
type GenerationConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RetrievalConfig controls search.
type RetrievalConfig struct {
	MinRelevance float64              `yaml:"min_relevance"`
	MaxChunks    int                  `yaml:"max_chunks"`
	Ranking      ragdoc.RankingPolicy `yaml:"ranking"`
}

// ConversationConfig controls chat history.
type ConversationConfig struct {
	MaxTurns int `yaml:"max_turns"`
}

// FetchConfig controls page retrieval during indexing.
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	UserAgent     string        `yaml:"user_agent"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Concurrency   int           `yaml:"concurrency"`
	Render        bool          `yaml:"render"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultDBPath()
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderGemini
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 100
	}
	if c.Embedding.Concurrency <= 0 {
		c.Embedding.Concurrency = 4
	}

	if c.Generation.Provider == "" {
		c.Generation.Provider = ProviderGemini
	}
	if c.Generation.Temperature == 0 {
		c.Generation.Temperature = 0.2
	}
	if c.Generation.Timeout <= 0 {
		c.Generation.Timeout = 60 * time.Second
	}

	if c.Chunking.MaxTokens <= 0 {
		c.Chunking.MaxTokens = ragdoc.DefaultMaxTokens
	}
	if c.Chunking.OverlapTokens <= 0 {
		c.Chunking.OverlapTokens = ragdoc.DefaultOverlapTokens
	}

	if c.Retrieval.MaxChunks <= 0 {
		c.Retrieval.MaxChunks = 5
	}
	def := ragdoc.DefaultRankingPolicy()
	r := &c.Retrieval.Ranking
	if r.Steepness == 0 {
		r.Steepness = def.Steepness
	}
	if r.Midpoint == 0 {
		r.Midpoint = def.Midpoint
	}
	if r.MaxBoost == 0 {
		r.MaxBoost = def.MaxBoost
	}
	if r.BoostSaturationTokens == 0 {
		r.BoostSaturationTokens = def.BoostSaturationTokens
	}
	if r.OverFetch == 0 {
		r.OverFetch = def.OverFetch
	}

	if c.Conversation.MaxTurns <= 0 {
		c.Conversation.MaxTurns = 10
	}

	w := ragdoc.DefaultWarningThresholds()
	if c.Warnings.Info <= 0 {
		c.Warnings.Info = w.Info
	}
	if c.Warnings.Warning <= 0 {
		c.Warnings.Warning = w.Warning
	}
	if c.Warnings.Critical <= 0 {
		c.Warnings.Critical = w.Critical
	}

	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.RatePerSecond <= 0 {
		c.Fetch.RatePerSecond = 1
	}
	if c.Fetch.Concurrency <= 0 {
		c.Fetch.Concurrency = 4
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderHash:
	default:
		return ragdoc.Errorf(ragdoc.EINVALID, "unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.Generation.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return ragdoc.Errorf(ragdoc.EINVALID, "unknown generation provider %q", c.Generation.Provider)
	}
	if c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return ragdoc.Errorf(ragdoc.EINVALID, "chunk overlap (%d) must be smaller than max tokens (%d)", c.Chunking.OverlapTokens, c.Chunking.MaxTokens)
	}
	if c.Retrieval.MinRelevance < 0 || c.Retrieval.MinRelevance > 1 {
		return ragdoc.Errorf(ragdoc.EINVALID, "min relevance must be within [0,1], got %v", c.Retrieval.MinRelevance)
	}
	if c.Generation.Temperature < 0 {
		return ragdoc.Errorf(ragdoc.EINVALID, "temperature must not be negative")
	}
	return nil
}

// Env looks up an environment variable, returning "" when unset.
type Env func(key string) string

// DotEnv returns an Env that consults next first and falls back to the
// values in the .env file at path. A missing file yields next unchanged.
func DotEnv(path string, next Env) (Env, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return next, nil
	} else if err != nil {
		return nil, ragdoc.Errorf(ragdoc.EINVALID, "failed to read %s: %v", path, err)
	}
	return func(key string) string {
		if v := next(key); v != "" {
			return v
		}
		return values[key]
	}, nil
}

// Load builds the configuration. The file at path, or at RAGDOC_CONFIG
// when path is empty, is decoded over the defaults; a missing file is an
// error only when named explicitly. Environment overrides apply last.
func Load(path string, env Env) (*Config, error) {
	c := &Config{}

	explicit := path != ""
	if !explicit {
		path = env(EnvConfig)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultConfigPath()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		case err != nil:
			return nil, ragdoc.Errorf(ragdoc.EINVALID, "failed to read config %s: %v", path, err)
		default:
			if err := decode(data, c); err != nil {
				return nil, ragdoc.Errorf(ragdoc.EINVALID, "failed to parse config %s: %v", path, err)
			}
		}
	}

	if v := env(EnvDB); v != "" {
		c.Storage.Path = v
	}
	c.GeminiAPIKey = env(EnvGemini)
	c.OpenAIAPIKey = env(EnvOpenAI)

	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decode(data []byte, c *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// DefaultDBPath returns ~/.ragdoc/ragdoc.db, or ragdoc.db in the working
// directory when the home directory is unknown.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ragdoc.db"
	}
	return filepath.Join(home, ".ragdoc", "ragdoc.db")
}

// DefaultConfigPath returns ~/.ragdoc/config.yaml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ragdoc", "config.yaml")
}
