package keys

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSQLiteFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keys.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE device_keys (manufacturer INTEGER, device_id INTEGER, key_hex TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO device_keys VALUES (?, ?, ?)`, 0x2C2D, 0x12345678, "000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	return path
}

func TestSQLiteProviderKeyLookup(t *testing.T) {
	path := seedSQLiteFixture(t)

	p, err := OpenSQLiteProvider(path)
	require.NoError(t, err)
	defer p.Close()

	key, ok := p.Key(0x2C2D, 0x12345678)
	require.True(t, ok)
	assert.Len(t, key, 16)

	_, ok = p.Key(0x2C2D, 0xDEADBEEF)
	assert.False(t, ok)
}

func TestSQLiteProviderOpenNonexistentDirErrors(t *testing.T) {
	_, err := OpenSQLiteProvider("/nonexistent/dir/keys.db")
	if err == nil {
		t.Skip("driver defers file errors until first query on this platform")
	}
	assert.Error(t, err)
}
