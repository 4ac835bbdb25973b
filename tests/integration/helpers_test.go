//go:build integration

package integration

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/expertbooking/backend/pkg/config"
)

const schemaPath = "../../migrations/001_booking_schema.sql"

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func requireEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if os.Getenv(key) == "" {
			t.Skipf("Skipping integration test: %s not set", key)
		}
	}
}

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	cfg := &config.RedisConfig{
		Host:     getEnv("TEST_REDIS_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_REDIS_PORT", 6379),
		Password: getEnv("TEST_REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("TEST_REDIS_DB", 0),
	}

	client, err := redis.NewClient(cfg)
	require.NoError(t, err, "Failed to create redis client")
	t.Cleanup(func() { client.Close() })
	return client
}

// newTestPostgresClient connects, applies the schema and empties every table
func newTestPostgresClient(t *testing.T) *postgres.Client {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "expert_booking_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	client, err := postgres.NewClient(cfg)
	require.NoError(t, err, "Failed to create postgres client")
	t.Cleanup(func() { client.Close() })

	schema, err := os.ReadFile(schemaPath)
	require.NoError(t, err)
	_, err = client.DB().Exec(string(schema))
	require.NoError(t, err)

	truncateAll(t, client.DB())
	t.Cleanup(func() { truncateAll(t, client.DB()) })
	return client
}

func truncateAll(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE wallet_transactions, wallets, proposals, appointments, webhook_events, providers CASCADE`)
	require.NoError(t, err)
}

func seedProvider(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO providers (id, user_id, name, email, is_available, available_days, time_slots, session_fee, currency, timezone)
		VALUES ($1, $2, 'Test Expert', 'expert@example.com', true, '{Monday,Tuesday,Wednesday,Thursday,Friday}',
		        '{09:00-10:00,10:00-11:00}', 50000, 'INR', 'Asia/Kolkata')
	`, id, "user-"+id)
	require.NoError(t, err)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
