// Package config reads daemon configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/settings"
	"github.com/lotas/tabgruppen/internal/storage"
)

const DefaultPort = 19192

// Config holds the locations and knobs of the daemon. Command-line flags
// override these values.
type Config struct {
	Port         int
	SettingsPath string
	DBPath       string
	LogDir       string
	LogLevel     string
}

// Load reads configuration from environment variables and an optional .env
// file in the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		applog.Debug("config.dotenv", "err", err)
	}

	dbPath, err := storage.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Port:         getEnvIntOrDefault("TABGRUPPEN_PORT", DefaultPort),
		SettingsPath: getEnvOrDefault("TABGRUPPEN_SETTINGS", settings.DefaultPath()),
		DBPath:       getEnvOrDefault("TABGRUPPEN_DB", dbPath),
		LogDir:       getEnvOrDefault("TABGRUPPEN_LOG_DIR", filepath.Dir(dbPath)),
		LogLevel:     getEnvOrDefault("TABGRUPPEN_LOG_LEVEL", "info"),
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
