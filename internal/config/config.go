// Package config loads application configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DBDriver      string // "mysql" or "sqlite"
	DBDSN         string
	DBName        string
	MigrationsDir string
	LogLevel      string
}

func Load() (*Config, error) {
	// a missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DBDriver:      getEnv("DB_DRIVER", "sqlite"),
		DBDSN:         getEnv("DB_DSN", "invito.db"),
		DBName:        os.Getenv("DB_NAME"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
	}

	if cfg.DBDriver != "mysql" && cfg.DBDriver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (expected \"mysql\" or \"sqlite\")", cfg.DBDriver)
	}
	if cfg.DBDriver == "mysql" && cfg.DBName == "" {
		return nil, fmt.Errorf("DB_NAME is required when DB_DRIVER is \"mysql\"")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
