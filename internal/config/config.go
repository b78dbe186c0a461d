package config

import (
	"os"
	"time"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string

	// Store selection: memory, postgres, or mongo
	StoreDriver string
	DatabaseURL string
	MongoURI    string
	MongoDB     string

	// PollInterval is how often the postgres store re-queries the
	// collection to pick up writes made by other clients.
	PollInterval time.Duration

	// Limits, overridable via docforest.yaml (see limits.go)
	Limits Limits

	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:         getEnv("PORT", "8080"),
		Environment:  env,
		CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		StoreDriver:  getEnv("STORE_DRIVER", "memory"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		MongoURI:     getEnv("MONGO_URI", ""),
		MongoDB:      getEnv("MONGO_DB", "docforest"),
		PollInterval: getDuration("POLL_INTERVAL", 5*time.Second),
		Limits:       LoadLimits(getEnv("LIMITS_FILE", "docforest.yaml")),
		// Debug defaults to true outside prod
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
