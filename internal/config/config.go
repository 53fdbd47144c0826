package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the archive. Values come from the
// environment, with an optional .env file in the working directory.
type Config struct {
	// DataDir is the root under which all three stores live. The layout
	// below it must stay stable across restarts: the repair commands
	// operate on the same paths the server does.
	DataDir string

	ListenAddr          string
	DisableRegistration bool
	Verbose             bool
}

// Load reads configuration from the environment. Variables already set take
// precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := os.Getenv("MAILVAULT_DATA_DIR")
	if dataDir == "" {
		return nil, fmt.Errorf("MAILVAULT_DATA_DIR is required")
	}

	cfg := &Config{
		DataDir:             dataDir,
		ListenAddr:          getEnv("MAILVAULT_LISTEN_ADDR", ":8025"),
		DisableRegistration: getEnvBool("MAILVAULT_DISABLE_REGISTRATION", true),
		Verbose:             getEnvBool("MAILVAULT_VERBOSE", false),
	}
	return cfg, nil
}

// DatabasePath is the relational database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "mailvault.db")
}

// BlobDatabasePath is the blob store file.
func (c *Config) BlobDatabasePath() string {
	return filepath.Join(c.DataDir, "blobs.db")
}

// SearchIndexPath is the search index directory.
func (c *Config) SearchIndexPath() string {
	return filepath.Join(c.DataDir, "search")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
