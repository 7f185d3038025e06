// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Store backends selectable via STORE_BACKEND.
const (
	BackendFirebase = "firebase"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config holds everything the server needs to start.
type Config struct {
	Port          int
	StoreBackend  string
	DBPath        string // sqlite backend
	FirebaseURL   string // firebase backend
	FirebaseAuth  string // firebase backend, optional
	JWTSecret     string
	EncSecretKey  string // shared secret for /client-config encryption
	ClientConfig  string // JSON blob served (encrypted) on /client-config
	LinkBaseURL   string
	SecureCookies bool
}

// Load reads the configuration. A .env file in the working directory is
// loaded first if present; real environment variables win over it.
func Load() (*Config, error) {
	// Ignore the error: no .env file simply means env-only configuration.
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnvInt("PORT", 8080),
		StoreBackend:  getEnv("STORE_BACKEND", BackendSQLite),
		DBPath:        getEnv("DB_PATH", "child_panel.db"),
		FirebaseURL:   getEnv("FIREBASE_URL", ""),
		FirebaseAuth:  getEnv("FIREBASE_AUTH", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		EncSecretKey:  getEnv("ENC_SECRET_KEY", ""),
		ClientConfig:  getEnv("FIREBASE_CLIENT_CONFIG", ""),
		LinkBaseURL:   getEnv("LINK_BASE_URL", "https://star5.com"),
		SecureCookies: getEnvBool("SECURE_COOKIES", true),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}
	switch cfg.StoreBackend {
	case BackendFirebase:
		if cfg.FirebaseURL == "" {
			return nil, fmt.Errorf("config: FIREBASE_URL is required for the firebase backend")
		}
	case BackendSQLite, BackendMemory:
	default:
		return nil, fmt.Errorf("config: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
