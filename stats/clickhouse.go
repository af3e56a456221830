package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds connection settings for ClickHouseExporter,
// mirroring internal/storage.ClickHouseConfig's shape.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseExporter periodically flushes Registry snapshots to a
// ClickHouse table for historical dashboards. It never reads from
// ClickHouse and the Registry never depends on it: a caller who doesn't
// want this wires nothing and the Registry works purely in memory.
type ClickHouseExporter struct {
	conn driver.Conn
	reg  *Registry
}

// OpenClickHouseExporter connects to ClickHouse and ensures the counters
// table exists, grounded on internal/storage.OpenClickHouse/CreateSchema.
func OpenClickHouseExporter(ctx context.Context, reg *Registry, cfg ClickHouseConfig) (*ClickHouseExporter, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	e := &ClickHouseExporter{conn: conn, reg: reg}
	if err := e.createSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return e, nil
}

func (e *ClickHouseExporter) createSchema(ctx context.Context) error {
	const q = `CREATE TABLE IF NOT EXISTS device_stats (
		device_key              String,
		frames_total            UInt64,
		frames_ok               UInt64,
		crc_errors              UInt64,
		block_crc_errors        UInt64,
		parse_errors            UInt64,
		encrypted_frames_skipped UInt64,
		invalid_headers         UInt64,
		recorded_at             DateTime64(3) DEFAULT now64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(recorded_at)
	ORDER BY (device_key, recorded_at)`
	if err := e.conn.Exec(ctx, q); err != nil {
		return fmt.Errorf("create device_stats schema: %w", err)
	}
	return nil
}

// Flush inserts one row per device currently tracked by the Registry.
func (e *ClickHouseExporter) Flush(ctx context.Context) error {
	snapshots := e.reg.AllSnapshots()
	if len(snapshots) == 0 {
		return nil
	}

	batch, err := e.conn.PrepareBatch(ctx, `
		INSERT INTO device_stats (device_key, frames_total, frames_ok, crc_errors, block_crc_errors, parse_errors, encrypted_frames_skipped, invalid_headers)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for key, c := range snapshots {
		err := batch.Append(key.String(), c.FramesTotal, c.FramesOK, c.CRCErrors,
			c.BlockCRCErrors, c.ParseErrors, c.EncryptedFramesSkipped, c.InvalidHeaders)
		if err != nil {
			return fmt.Errorf("append device_stats row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Run flushes on every tick until ctx is cancelled.
func (e *ClickHouseExporter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Flush(ctx); err != nil {
				return err
			}
		}
	}
}

// Close closes the underlying ClickHouse connection.
func (e *ClickHouseExporter) Close() error {
	return e.conn.Close()
}
