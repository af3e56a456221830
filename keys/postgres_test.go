package keys

import (
	"context"
	"os"
	"testing"
)

// setupTestPostgresProvider mirrors internal/storage's env-var-gated test
// database setup, skipping when no PostgreSQL instance is reachable.
func setupTestPostgresProvider(t *testing.T) *PostgresProvider {
	t.Helper()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "mbus"
	}
	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "mbus"
	}
	database := os.Getenv("POSTGRES_DB")
	if database == "" {
		database = "mbus_keys"
	}

	ctx := context.Background()
	p, err := OpenPostgresProvider(ctx, PostgresConfig{
		Host:     host,
		Port:     5432,
		User:     user,
		Password: password,
		Database: database,
	})
	if err != nil {
		return nil
	}
	return p
}

func TestPostgresProviderKeyLookup(t *testing.T) {
	p := setupTestPostgresProvider(t)
	if p == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer p.Close()

	ctx := context.Background()
	_, err := p.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS device_keys (manufacturer INTEGER, device_id BIGINT, key_hex TEXT)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	defer p.pool.Exec(ctx, "DELETE FROM device_keys WHERE manufacturer = 11117 AND device_id = 305419896")

	_, err = p.pool.Exec(ctx,
		"INSERT INTO device_keys VALUES ($1, $2, $3)",
		11117, 305419896, "000102030405060708090a0b0c0d0e0f")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	key, ok := p.KeyContext(ctx, 11117, 305419896)
	if !ok {
		t.Fatal("expected key to be found")
	}
	if len(key) != 16 {
		t.Errorf("key length = %d, want 16", len(key))
	}

	_, ok = p.KeyContext(ctx, 11117, 0xDEADBEEF)
	if ok {
		t.Error("expected lookup of unknown device to fail")
	}
}
