package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 24, cfg.JWTExpiryHours)
	assert.Equal(t, "production", cfg.LogMode)
	assert.Equal(t, 5, cfg.ConcurrencyLimit)
	assert.Equal(t, 2, cfg.MaxFixAttempts)
	assert.Equal(t, 5, cfg.MaxQuestions)
	assert.Equal(t, 3, cfg.MaxVideos)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"port": 9090,
		"log_mode": "development",
		"concurrency_limit": 2
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "development", cfg.LogMode)
	assert.Equal(t, 2, cfg.ConcurrencyLimit)
	// Untouched fields keep defaults.
	assert.Equal(t, 3, cfg.MaxVideos)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 9090}`), 0o600))
	t.Setenv("PORT", "7070")
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "env-key", cfg.GeminiAPIKey)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"port out of range", `{"port": 99999}`},
		{"bad log mode", `{"log_mode": "quiet"}`},
		{"negative fix attempts", `{"max_fix_attempts": -1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestRequireGemini(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireGemini())
	cfg.GeminiAPIKey = "k"
	assert.NoError(t, cfg.RequireGemini())
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	cfg := &Config{APIPasswordHash: hash}
	assert.NoError(t, cfg.CheckPassword("s3cret"))
	assert.Error(t, cfg.CheckPassword("wrong"))

	empty := &Config{}
	assert.Error(t, empty.CheckPassword("anything"))
}
