// Package config provides configuration loading for the CLI and server.
// Values come from an optional JSON file overlaid with environment
// variables; the environment wins.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds everything the pipeline and server need. All fields are
// optional in the file; missing values use defaults or environment
// variables.
type Config struct {
	// Keys and endpoints
	GeminiAPIKey  string `json:"gemini_api_key,omitempty"`
	YouTubeAPIKey string `json:"youtube_api_key,omitempty"`
	DatabaseURL   string `json:"database_url,omitempty"`

	// Server
	Port            int    `json:"port,omitempty"`
	JWTSecret       string `json:"jwt_secret,omitempty"`
	JWTExpiryHours  int    `json:"jwt_expiry_hours,omitempty"`
	APIPasswordHash string `json:"api_password_hash,omitempty"` // bcrypt hash

	// Logging: "development" or "production"
	LogMode string `json:"log_mode,omitempty"`

	// Pipeline tunables
	ConcurrencyLimit int `json:"concurrency_limit,omitempty"`
	MaxFixAttempts   int `json:"max_fix_attempts,omitempty"`
	MaxQuestions     int `json:"max_questions,omitempty"`
	MaxVideos        int `json:"max_videos,omitempty"`
}

// Load reads the optional JSON config file, then overlays environment
// variables and fills defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
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
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.YouTubeAPIKey, "YOUTUBE_API_KEY")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.APIPasswordHash, "API_PASSWORD_HASH")
	setString(&c.LogMode, "LOG_MODE")
	setInt(&c.Port, "PORT")
	setInt(&c.JWTExpiryHours, "JWT_EXPIRATION_HOURS")
	setInt(&c.ConcurrencyLimit, "CONCURRENCY_LIMIT")
	setInt(&c.MaxFixAttempts, "MAX_FIX_ATTEMPTS")
	setInt(&c.MaxQuestions, "MAX_QUESTIONS")
	setInt(&c.MaxVideos, "MAX_VIDEOS")
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.JWTExpiryHours == 0 {
		c.JWTExpiryHours = 24
	}
	if c.LogMode == "" {
		c.LogMode = "production"
	}
	if c.ConcurrencyLimit == 0 {
		c.ConcurrencyLimit = 5
	}
	if c.MaxFixAttempts == 0 {
		c.MaxFixAttempts = 2
	}
	if c.MaxQuestions == 0 {
		c.MaxQuestions = 5
	}
	if c.MaxVideos == 0 {
		c.MaxVideos = 3
	}
}

// Validate checks value ranges. Presence of the Gemini key is checked by the
// commands that need it, not here, so read-only commands work without one.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: port %d out of range", c.Port)
	}
	if c.JWTExpiryHours < 1 {
		return fmt.Errorf("config error: jwt_expiry_hours must be at least 1")
	}
	if c.ConcurrencyLimit < 1 {
		return fmt.Errorf("config error: concurrency_limit must be at least 1")
	}
	if c.MaxFixAttempts < 0 {
		return fmt.Errorf("config error: max_fix_attempts must be non-negative")
	}
	if c.LogMode != "development" && c.LogMode != "production" {
		return fmt.Errorf("config error: log_mode must be development or production, got %q", c.LogMode)
	}
	return nil
}

// RequireGemini errors unless the Gemini API key is configured.
func (c *Config) RequireGemini() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required but not set")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
