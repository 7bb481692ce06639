package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabasePath string `json:"database_path"`
	APIPort      string `json:"api_port"`
	DataDir      string `json:"data_dir"`
	CORSOrigins  string `json:"cors_origins"` // comma-separated, * for all
	APIKey       string `json:"api_key"`      // key for the operational API

	LLMAPIKey  string `json:"llm_api_key"`
	LLMBaseURL string `json:"llm_base_url"` // empty uses the OpenRouter default
	LLMModel   string `json:"llm_model"`

	PollIntervalSeconds int `json:"poll_interval_seconds"`
}

// Default configuration values
const (
	DefaultDatabasePath        = "data/inboxpilot.db"
	DefaultAPIPort             = "8080"
	DefaultDataDir             = "data"
	DefaultCORSOrigins         = "*"
	DefaultLLMModel            = "anthropic/claude-3.5-sonnet"
	DefaultPollIntervalSeconds = 300
)

// Load loads configuration from environment variables and config file.
// Priority: environment variables > config file > defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:        DefaultDatabasePath,
		APIPort:             DefaultAPIPort,
		DataDir:             DefaultDataDir,
		CORSOrigins:         DefaultCORSOrigins,
		LLMModel:            DefaultLLMModel,
		PollIntervalSeconds: DefaultPollIntervalSeconds,
	}

	// Config file is optional
	cfg.loadFromFile()
	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from config.json
func (c *Config) loadFromFile() error {
	configPaths := []string{
		"config.json",
		filepath.Join(c.DataDir, "config.json"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		if err := json.Unmarshal(data, c); err != nil {
			return err
		}
		return nil
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if val := os.Getenv("INBOXPILOT_DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("INBOXPILOT_API_PORT"); val != "" {
		c.APIPort = val
	}
	if val := os.Getenv("INBOXPILOT_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("INBOXPILOT_CORS_ORIGINS"); val != "" {
		c.CORSOrigins = val
	}
	if val := os.Getenv("INBOXPILOT_API_KEY"); val != "" {
		c.APIKey = val
	}
	if val := os.Getenv("INBOXPILOT_LLM_API_KEY"); val != "" {
		c.LLMAPIKey = val
	}
	if val := os.Getenv("INBOXPILOT_LLM_BASE_URL"); val != "" {
		c.LLMBaseURL = val
	}
	if val := os.Getenv("INBOXPILOT_LLM_MODEL"); val != "" {
		c.LLMModel = val
	}
	if val := os.Getenv("INBOXPILOT_POLL_INTERVAL"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
			c.PollIntervalSeconds = seconds
		}
	}
}

// PollInterval returns the polling interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}
