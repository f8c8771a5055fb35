// Package config loads runtime configuration from .env and environment
// variables. Flags override env, env overrides defaults.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings.
type Config struct {
	DBPath        string
	RulesPath     string
	ModelName     string
	ModelBaseURL  string
	ModelAPIKey   string
	Timeout       time.Duration
	Retries       int
	ContextWindow int
	MockModel     bool
}

// Load reads .env (when present) then the environment.
func Load() Config {
	godotenv.Load()

	home, _ := os.UserHomeDir()
	cfg := Config{
		DBPath:        filepath.Join(home, ".study-coach", "study.db"),
		RulesPath:     "",
		ModelName:     "llama3",
		ModelBaseURL:  "http://localhost:11434/v1",
		Timeout:       3 * time.Minute,
		Retries:       1,
		ContextWindow: 20,
	}

	if v := os.Getenv("STUDY_COACH_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("STUDY_COACH_RULES"); v != "" {
		cfg.RulesPath = v
	}
	if v := os.Getenv("STUDY_COACH_MODEL"); v != "" {
		cfg.ModelName = v
	}
	if v := os.Getenv("STUDY_COACH_MODEL_URL"); v != "" {
		cfg.ModelBaseURL = v
	}
	if v := os.Getenv("STUDY_COACH_API_KEY"); v != "" {
		cfg.ModelAPIKey = v
	}
	if v := os.Getenv("STUDY_COACH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("STUDY_COACH_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Retries = n
		}
	}
	if v := os.Getenv("STUDY_COACH_CONTEXT_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ContextWindow = n
		}
	}
	if v := os.Getenv("STUDY_COACH_MOCK_MODEL"); v != "" {
		cfg.MockModel = v == "1" || v == "true"
	}

	return cfg
}
