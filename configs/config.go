package config

import (
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	Port        string
	Environment string
	APIKey      string

	AdminUsername string
	AdminPassword string

	AirtableBaseURL        string
	AirtableAPIKey         string
	AirtableBaseID         string
	AirtableOrdersTable    string
	AirtableLinesTable     string
	AirtableProductsTable  string
	AirtableCustomersTable string
	AirtableTimeoutSeconds int
	AirtableMaxRetries     int

	RedisURL           string
	SnapshotTTLSeconds int

	SessionIdleMinutes int
	PipelineConfigPath string

	// Timezone はモニタリングの時間バケットに使うIANA名
	Timezone string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		APIKey:      getEnv("API_KEY", ""),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		AirtableBaseURL:        getEnv("AIRTABLE_BASE_URL", "https://api.airtable.com/v0"),
		AirtableAPIKey:         getEnv("AIRTABLE_API_KEY", ""),
		AirtableBaseID:         getEnv("AIRTABLE_BASE_ID", ""),
		AirtableOrdersTable:    getEnv("AIRTABLE_ORDERS_TABLE", "Comanda"),
		AirtableLinesTable:     getEnv("AIRTABLE_ORDER_LINES_TABLE", "Detall comanda"),
		AirtableProductsTable:  getEnv("AIRTABLE_PRODUCTS_TABLE", "Inventari"),
		AirtableCustomersTable: getEnv("AIRTABLE_CUSTOMERS_TABLE", "Client"),
		AirtableTimeoutSeconds: getEnvInt("AIRTABLE_TIMEOUT_SECONDS", 15),
		AirtableMaxRetries:     getEnvInt("AIRTABLE_MAX_RETRIES", 3),

		RedisURL:           getEnv("REDIS_URL", ""),
		SnapshotTTLSeconds: getEnvInt("SNAPSHOT_TTL_SECONDS", 60),

		SessionIdleMinutes: getEnvInt("SESSION_IDLE_MINUTES", 120),
		PipelineConfigPath: getEnv("PIPELINE_CONFIG_PATH", "configs/pipeline.yaml"),

		Timezone: getEnv("TIMEZONE", "UTC"),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt is getEnv for integers; unparseable values fall back to the default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
