package tests

import (
	"os"
	"strconv"

	"github.com/0xsend/distributor/internal/config"
)

func GetConfig() *config.Config {
	return config.NewConfig()
}

// GetDbConfigFromEnv reads the test database location from TEST_DATABASE_*
// environment variables. HasDbConfig gates integration tests on the host
// being set.
func GetDbConfigFromEnv() config.DatabaseConfig {
	port := 5432
	if p, err := strconv.Atoi(os.Getenv("TEST_DATABASE_PORT")); err == nil && p > 0 {
		port = p
	}
	return config.DatabaseConfig{
		Host:     os.Getenv("TEST_DATABASE_HOST"),
		Port:     port,
		User:     envOr("TEST_DATABASE_USER", "postgres"),
		Password: os.Getenv("TEST_DATABASE_PASSWORD"),
		DbName:   envOr("TEST_DATABASE_DB_NAME", "postgres"),
	}
}

func HasDbConfig() bool {
	return os.Getenv("TEST_DATABASE_HOST") != ""
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func ReplaceEnv(newValues map[string]string, previousValues *map[string]string) {
	for k, v := range newValues {
		(*previousValues)[k] = os.Getenv(k)
		os.Setenv(k, v)
	}
}

func RestoreEnv(previousValues map[string]string) {
	for k, v := range previousValues {
		os.Setenv(k, v)
	}
}
