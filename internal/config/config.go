// Package config provides configuration loading and validation for the
// transcription pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds pipeline settings. All fields are optional in the config file;
// missing values are filled in by Defaults via MergeWithDefaults.
type Config struct {
	// Connections
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key

	// Models
	TranscribeModel string `json:"transcribe_model,omitempty"` // Speech-to-text model
	PolishModel     string `json:"polish_model,omitempty"`     // Refinement model
	AdvisorModel    string `json:"advisor_model,omitempty"`    // Escalation advisor model

	// Paths
	OutputDir string `json:"output_dir,omitempty"` // Directory for merged documents

	// Concurrency and retries. Refinement has no worker knob: it is strictly
	// sequential because each call carries the preceding chunks as context.
	TranscribeWorkers int `json:"transcribe_workers,omitempty" validate:"omitempty,min=1,max=32"`
	MaxAttempts       int `json:"max_attempts,omitempty" validate:"omitempty,min=1,max=10"`

	// Watchdog
	WatchdogInterval time.Duration `json:"watchdog_interval,omitempty"`
	StallTimeout     time.Duration `json:"stall_timeout,omitempty"`

	// Refinement context
	ContextChunks   int `json:"context_chunks,omitempty" validate:"omitempty,min=0,max=10"`
	ContextMaxChars int `json:"context_max_chars,omitempty" validate:"omitempty,min=0"`

	// Server
	ListenAddr string `json:"listen_addr,omitempty"`
}

var validate = validator.New()

// Defaults returns the standard pipeline configuration.
func Defaults() Config {
	return Config{
		TranscribeModel:   "gemini-2.0-flash",
		PolishModel:       "gemini-2.0-flash",
		AdvisorModel:      "gemini-2.0-flash",
		OutputDir:         "output",
		TranscribeWorkers: 3,
		MaxAttempts:       3,
		WatchdogInterval:  5 * time.Second,
		StallTimeout:      60 * time.Second,
		ContextChunks:     2,
		ContextMaxChars:   2000,
		ListenAddr:        ":8080",
	}
}

// Load reads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv overlays environment variables onto the config. Environment wins
// over file values for secrets so a checked-in config never needs the key.
func (c *Config) FromEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("AUDIOSCRIBE_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("AUDIOSCRIBE_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
}

// Validate checks ranges and relationships after defaults are merged.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.WatchdogInterval < 0 {
		return fmt.Errorf("config error: 'watchdog_interval' must be non-negative")
	}
	if c.StallTimeout < 0 {
		return fmt.Errorf("config error: 'stall_timeout' must be non-negative")
	}
	if c.StallTimeout > 0 && c.WatchdogInterval > c.StallTimeout {
		return fmt.Errorf("config error: 'watchdog_interval' must not exceed 'stall_timeout'")
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from
// defaults. File and flag values always win over defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.TranscribeModel == "" {
		result.TranscribeModel = defaults.TranscribeModel
	}
	if result.PolishModel == "" {
		result.PolishModel = defaults.PolishModel
	}
	if result.AdvisorModel == "" {
		result.AdvisorModel = defaults.AdvisorModel
	}
	if result.OutputDir == "" {
		result.OutputDir = defaults.OutputDir
	}
	if result.TranscribeWorkers == 0 {
		result.TranscribeWorkers = defaults.TranscribeWorkers
	}
	if result.MaxAttempts == 0 {
		result.MaxAttempts = defaults.MaxAttempts
	}
	if result.WatchdogInterval == 0 {
		result.WatchdogInterval = defaults.WatchdogInterval
	}
	if result.StallTimeout == 0 {
		result.StallTimeout = defaults.StallTimeout
	}
	if result.ContextChunks == 0 {
		result.ContextChunks = defaults.ContextChunks
	}
	if result.ContextMaxChars == 0 {
		result.ContextMaxChars = defaults.ContextMaxChars
	}
	if result.ListenAddr == "" {
		result.ListenAddr = defaults.ListenAddr
	}

	return result
}
