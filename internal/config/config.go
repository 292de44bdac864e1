package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "CREATORPULSE_CONFIG"
	databasePathEnv  = "DATABASE_PATH"
	generationKeyEnv = "GEMINI_API_KEY"
	embeddingURLEnv  = "EMBEDDING_URL"
	embeddingKeyEnv  = "EMBEDDING_API_KEY"
	socialTokenEnv   = "SOCIAL_BEARER_TOKEN"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Generation GenerationConfig `yaml:"generation"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Social     SocialConfig     `yaml:"social"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines when daily pipeline runs are enqueued and when
// old content is pruned.
type SchedulerConfig struct {
	CronExpression        string `yaml:"cronExpression"`
	CleanupCronExpression string `yaml:"cleanupCronExpression"`
	Timezone              string `yaml:"timezone"`
}

// PipelineConfig tunes per-run behavior and the worker pool.
type PipelineConfig struct {
	MaxItemsPerSource   int     `yaml:"maxItemsPerSource"`
	MaxDraftsPerRun     int     `yaml:"maxDraftsPerRun"`
	ContentAgeHours     int     `yaml:"contentAgeHours"`
	FetchConcurrency    int     `yaml:"fetchConcurrency"`
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	MaxMatches          int     `yaml:"maxMatches"`
	WorkerPoolSize      int     `yaml:"workerPoolSize"`
	RetentionDays       int     `yaml:"retentionDays"`
}

// GenerationConfig defines how to contact the generation API.
type GenerationConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// EmbeddingConfig describes the embedding service; an empty endpoint
// selects the deterministic stub.
type EmbeddingConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// SocialConfig wires the social-timeline API.
type SocialConfig struct {
	APIBaseURL  string `yaml:"apiBaseUrl"`
	BearerToken string `yaml:"bearerToken"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(generationKeyEnv); v != "" {
		c.Generation.APIKey = v
	}
	if v := os.Getenv(embeddingURLEnv); v != "" {
		c.Embedding.Endpoint = v
	}
	if v := os.Getenv(embeddingKeyEnv); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv(socialTokenEnv); v != "" {
		c.Social.BearerToken = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.CleanupCronExpression != "" {
		base.Scheduler.CleanupCronExpression = override.Scheduler.CleanupCronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Pipeline.MaxItemsPerSource > 0 {
		base.Pipeline.MaxItemsPerSource = override.Pipeline.MaxItemsPerSource
	}
	if override.Pipeline.MaxDraftsPerRun > 0 {
		base.Pipeline.MaxDraftsPerRun = override.Pipeline.MaxDraftsPerRun
	}
	if override.Pipeline.ContentAgeHours > 0 {
		base.Pipeline.ContentAgeHours = override.Pipeline.ContentAgeHours
	}
	if override.Pipeline.FetchConcurrency > 0 {
		base.Pipeline.FetchConcurrency = override.Pipeline.FetchConcurrency
	}
	if override.Pipeline.SimilarityThreshold > 0 {
		base.Pipeline.SimilarityThreshold = override.Pipeline.SimilarityThreshold
	}
	if override.Pipeline.MaxMatches > 0 {
		base.Pipeline.MaxMatches = override.Pipeline.MaxMatches
	}
	if override.Pipeline.WorkerPoolSize > 0 {
		base.Pipeline.WorkerPoolSize = override.Pipeline.WorkerPoolSize
	}
	if override.Pipeline.RetentionDays > 0 {
		base.Pipeline.RetentionDays = override.Pipeline.RetentionDays
	}

	if override.Generation.Endpoint != "" {
		base.Generation.Endpoint = override.Generation.Endpoint
	}
	if override.Generation.Model != "" {
		base.Generation.Model = override.Generation.Model
	}
	if override.Generation.APIKey != "" {
		base.Generation.APIKey = override.Generation.APIKey
	}

	if override.Embedding.Endpoint != "" {
		base.Embedding.Endpoint = override.Embedding.Endpoint
	}
	if override.Embedding.APIKey != "" {
		base.Embedding.APIKey = override.Embedding.APIKey
	}

	if override.Social.APIBaseURL != "" {
		base.Social.APIBaseURL = override.Social.APIBaseURL
	}
	if override.Social.BearerToken != "" {
		base.Social.BearerToken = override.Social.BearerToken
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Database:  DatabaseConfig{Path: "creatorpulse.db"},
		Scheduler: SchedulerConfig{
			CronExpression:        "0 6 * * *",
			CleanupCronExpression: "0 3 * * 0",
			Timezone:              "UTC",
		},
		Pipeline: PipelineConfig{
			MaxItemsPerSource:   20,
			MaxDraftsPerRun:     5,
			ContentAgeHours:     48,
			FetchConcurrency:    5,
			SimilarityThreshold: 0.5,
			MaxMatches:          10,
			WorkerPoolSize:      4,
			RetentionDays:       30,
		},
		Generation: GenerationConfig{
			Endpoint: "https://generativelanguage.googleapis.com/v1beta/models",
			Model:    "gemini-pro",
			APIKey:   "",
		},
		Embedding: EmbeddingConfig{Endpoint: "", APIKey: ""},
		Social:    SocialConfig{APIBaseURL: "https://api.twitter.com", BearerToken: ""},
	}
}
