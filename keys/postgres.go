package keys

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mbusgo/bitops"
	"mbusgo/mbuserr"
)

// PostgresConfig mirrors internal/storage.PostgresConfig's shape, adapted
// to this package's connection-pool defaults.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// PostgresProvider resolves keys from a PostgreSQL table, for fleets
// operated centrally rather than per-gateway. Grounded on
// internal/storage/postgres.go's OpenPostgres connection-pool setup.
type PostgresProvider struct {
	pool *pgxpool.Pool
}

// OpenPostgresProvider opens a pooled connection. The database must have a
// `device_keys(manufacturer INTEGER, device_id BIGINT, key_hex TEXT)` table.
func OpenPostgresProvider(ctx context.Context, cfg PostgresConfig) (*PostgresProvider, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, url.QueryEscape(cfg.Password), cfg.Host, cfg.Port, cfg.Database, sslMode)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, mbuserr.Wrap(mbuserr.KindResource, "keys.OpenPostgresProvider", "parse config", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, mbuserr.Wrap(mbuserr.KindResource, "keys.OpenPostgresProvider", "open pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, mbuserr.Wrap(mbuserr.KindResource, "keys.OpenPostgresProvider", "ping", err)
	}
	return &PostgresProvider{pool: pool}, nil
}

// Close releases the connection pool.
func (p *PostgresProvider) Close() {
	p.pool.Close()
}

// KeyContext is like Key but accepts a caller-supplied context, since
// mbuscrypto.KeyProvider's Key method has no context parameter; callers
// wanting cancellation/timeouts should use this directly rather than
// through the KeyProvider interface.
func (p *PostgresProvider) KeyContext(ctx context.Context, manufacturer uint16, deviceID uint32) ([]byte, bool) {
	var keyHex string
	err := p.pool.QueryRow(ctx,
		"SELECT key_hex FROM device_keys WHERE manufacturer = $1 AND device_id = $2",
		manufacturer, deviceID,
	).Scan(&keyHex)
	if err != nil {
		return nil, false
	}
	key, err := bitops.DecodeHex(keyHex)
	if err != nil {
		return nil, false
	}
	return key, true
}

// Key implements mbuscrypto.KeyProvider using context.Background(); prefer
// KeyContext when a request-scoped context is available.
func (p *PostgresProvider) Key(manufacturer uint16, deviceID uint32) ([]byte, bool) {
	return p.KeyContext(context.Background(), manufacturer, deviceID)
}
