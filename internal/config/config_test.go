package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"database_url": "postgres://localhost:5432/audioscribe",
		"transcribe_workers": 5,
		"max_attempts": 2,
		"output_dir": "/tmp/out"
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost:5432/audioscribe" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.TranscribeWorkers != 5 {
		t.Errorf("TranscribeWorkers = %d, want 5", cfg.TranscribeWorkers)
	}
	if cfg.MaxAttempts != 2 {
		t.Errorf("MaxAttempts = %d, want 2", cfg.MaxAttempts)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := Load("/nonexistent/config.json"); err == nil {
		t.Error("expected error for missing file")
	}

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{TranscribeWorkers: 8, OutputDir: "custom"}
	merged := cfg.MergeWithDefaults(Defaults())

	if merged.TranscribeWorkers != 8 {
		t.Errorf("TranscribeWorkers = %d, want explicit 8", merged.TranscribeWorkers)
	}
	if merged.OutputDir != "custom" {
		t.Errorf("OutputDir = %q, want explicit custom", merged.OutputDir)
	}
	if merged.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want default 3", merged.MaxAttempts)
	}
	if merged.WatchdogInterval != 5*time.Second {
		t.Errorf("WatchdogInterval = %v, want default 5s", merged.WatchdogInterval)
	}
	if merged.StallTimeout != 60*time.Second {
		t.Errorf("StallTimeout = %v, want default 60s", merged.StallTimeout)
	}
	if merged.ContextChunks != 2 {
		t.Errorf("ContextChunks = %d, want default 2", merged.ContextChunks)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{
			name:    "too many workers",
			mutate:  func(c *Config) { c.TranscribeWorkers = 64 },
			wantErr: true,
		},
		{
			name:    "zero attempts after merge",
			mutate:  func(c *Config) { c.MaxAttempts = -1 },
			wantErr: true,
		},
		{
			name:    "watchdog slower than stall timeout",
			mutate:  func(c *Config) { c.WatchdogInterval = 2 * time.Minute },
			wantErr: true,
		},
		{
			name:    "negative stall timeout",
			mutate:  func(c *Config) { c.StallTimeout = -time.Second },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host:5432/db")
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg := Config{DatabaseURL: "postgres://file-host:5432/db"}
	cfg.FromEnv()

	if cfg.DatabaseURL != "postgres://env-host:5432/db" {
		t.Errorf("DatabaseURL = %q, want env value", cfg.DatabaseURL)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env value", cfg.APIKey)
	}
}
