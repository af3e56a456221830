package keys

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"mbusgo/bitops"
	"mbusgo/mbuserr"
)

// SQLiteProvider resolves keys from a read-only on-disk SQLite database,
// for device fleets too large to carry in a YAML file. Grounded on
// internal/storage/sqlite.go's OpenSQLite read-only-mode pattern.
type SQLiteProvider struct {
	db *sql.DB
}

// OpenSQLiteProvider opens path in read-only mode. The database must have
// a `device_keys(manufacturer INTEGER, device_id INTEGER, key_hex TEXT)`
// table.
func OpenSQLiteProvider(path string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, mbuserr.Wrap(mbuserr.KindResource, "keys.OpenSQLiteProvider", "open database", err)
	}
	return &SQLiteProvider{db: db}, nil
}

// Close closes the underlying database handle.
func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}

// Key implements mbuscrypto.KeyProvider.
func (p *SQLiteProvider) Key(manufacturer uint16, deviceID uint32) ([]byte, bool) {
	var keyHex string
	err := p.db.QueryRow(
		"SELECT key_hex FROM device_keys WHERE manufacturer = ? AND device_id = ?",
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
