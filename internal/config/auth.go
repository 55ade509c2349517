package config

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes an API password with bcrypt for storing in
// api_password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a password against the configured hash.
func (c *Config) CheckPassword(password string) error {
	if c.APIPasswordHash == "" {
		return fmt.Errorf("api_password_hash is not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.APIPasswordHash), []byte(password)); err != nil {
		return fmt.Errorf("invalid credentials")
	}
	return nil
}

// RequireAuth errors unless both the JWT secret and password hash are set.
func (c *Config) RequireAuth() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}
	if c.APIPasswordHash == "" {
		return fmt.Errorf("API_PASSWORD_HASH is required but not set")
	}
	return nil
}
