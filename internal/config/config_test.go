package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Logging.Level != "info" {
		t.Fatalf("unexpected default log level: %s", cfg.Logging.Level)
	}
	if cfg.Pipeline.MaxDraftsPerRun != 5 {
		t.Fatalf("unexpected default draft cap: %d", cfg.Pipeline.MaxDraftsPerRun)
	}
	if cfg.Pipeline.SimilarityThreshold != 0.5 {
		t.Fatalf("unexpected default threshold: %f", cfg.Pipeline.SimilarityThreshold)
	}
	if cfg.Scheduler.CronExpression == "" || cfg.Scheduler.Timezone == "" {
		t.Fatal("scheduler defaults must be set")
	}
	if cfg.Scheduler.CleanupCronExpression == "" {
		t.Fatal("cleanup schedule default must be set")
	}
	if cfg.Pipeline.RetentionDays != 30 {
		t.Fatalf("unexpected default retention: %d", cfg.Pipeline.RetentionDays)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
logging:
  level: debug
pipeline:
  maxDraftsPerRun: 3
  similarityThreshold: 0.7
scheduler:
  cronExpression: "30 7 * * *"
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg := Load()
	if cfg.Logging.Level != "debug" {
		t.Fatalf("file value not applied: %s", cfg.Logging.Level)
	}
	if cfg.Pipeline.MaxDraftsPerRun != 3 {
		t.Fatalf("file value not applied: %d", cfg.Pipeline.MaxDraftsPerRun)
	}
	if cfg.Pipeline.SimilarityThreshold != 0.7 {
		t.Fatalf("file value not applied: %f", cfg.Pipeline.SimilarityThreshold)
	}
	if cfg.Scheduler.CronExpression != "30 7 * * *" {
		t.Fatalf("file value not applied: %s", cfg.Scheduler.CronExpression)
	}
	// Unset fields keep their defaults.
	if cfg.Pipeline.MaxItemsPerSource != 20 {
		t.Fatalf("default lost in merge: %d", cfg.Pipeline.MaxItemsPerSource)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(databasePathEnv, "/tmp/override.db")
	t.Setenv(generationKeyEnv, "secret-key")
	t.Setenv(socialTokenEnv, "bearer-token")

	cfg := Load()
	if cfg.Database.Path != "/tmp/override.db" {
		t.Fatalf("database path override not applied: %s", cfg.Database.Path)
	}
	if cfg.Generation.APIKey != "secret-key" {
		t.Fatal("generation key override not applied")
	}
	if cfg.Social.BearerToken != "bearer-token" {
		t.Fatal("social token override not applied")
	}
}

func TestLoadUnreadableFileFallsBack(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.Database.Path != "creatorpulse.db" {
		t.Fatalf("expected defaults when the file is missing, got %s", cfg.Database.Path)
	}
}
