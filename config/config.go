package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the application settings read from the environment.
type Config struct {
	Port             int
	MongoURI         string
	MongoDB          string
	JWTKey           string
	Debug            bool
	CronSecret       string
	RolloverSchedule string
	RedisURL         string
	CORSOrigins      []string
	AdminEmail       string
	AdminPassword    string
}

// LoadConfig reads the configuration from environment variables.
func LoadConfig() *Config {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		port = 8080
	}
	return &Config{
		Port:             port,
		MongoURI:         getEnv("MONGO_URI", "mongodb://127.0.0.1:27017/?replicaSet=rs0"),
		MongoDB:          getEnv("MONGO_DB", "dreamkitchen"),
		JWTKey:           getEnv("JWT_KEY", "your-secret-key"), // override in every deployed environment
		Debug:            getEnv("GIN_MODE", "debug") == "debug",
		CronSecret:       getEnv("CRON_SECRET", ""),
		RolloverSchedule: getEnv("ROLLOVER_SCHEDULE", "0 0 * * *"),
		RedisURL:         getEnv("REDIS_URL", ""),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		AdminEmail:       getEnv("ADMIN_EMAIL", "admin@thedreamkitchen.in"),
		AdminPassword:    getEnv("ADMIN_PASSWORD", "admin123"),
	}
}

// getEnv returns the environment variable or defaultValue when it is unset.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
