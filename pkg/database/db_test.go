package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) (Config, func()) {
	t.Helper()
	cfg := Config{Path: filepath.Join(t.TempDir(), "shelf.db")}
	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	return cfg, func() { _ = db.Close() }
}

func TestOpen_CreatesSchema(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "nested", "shelf.db")}
	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"entries", "categories", "settings"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}

	var version int
	require.NoError(t, db.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, currentVersion, version)
}

func TestOpen_Idempotent(t *testing.T) {
	cfg, closeFirst := openTestDB(t)
	closeFirst()

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer db.Close()

	has, err := hasColumn(context.Background(), db, "entries", "schema_version")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestMigrate_UpgradesLegacyRows(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Path: filepath.Join(t.TempDir(), "legacy.db")}

	// build a version-1 database by hand
	db, err := Open(ctx, cfg)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO entries (title, tags, characters, chapter_rows, schema_version)
		VALUES ('Old', '["a", 3, "a"]', '[{"Name":"Guts","Image":"g.png","role":"lead"}]', '[{"ChapterSE":"1","Description":"start","Tags":["x"],"Characters":"Guts"}]', 1)
	`)
	require.NoError(t, err)
	_, err = db.Exec(`PRAGMA user_version = 1`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	var tags, chars, rows string
	var version int
	require.NoError(t, db.QueryRow(`SELECT tags, characters, chapter_rows, schema_version FROM entries WHERE title = 'Old'`).
		Scan(&tags, &chars, &rows, &version))

	assert.JSONEq(t, `["a","3"]`, tags)
	assert.JSONEq(t, `[{"name":"Guts","image":"g.png","role":"lead","description":"","tags":[],"alternativeNames":[]}]`, chars)
	assert.JSONEq(t, `[{"chapterSE":"1","description":"start","characters":"Guts","tags":["x"]}]`, rows)
	assert.Equal(t, 2, version)
}

func TestExecTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Path: filepath.Join(t.TempDir(), "tx.db")}
	db, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	err = ExecTx(ctx, db, func(ctx context.Context) error {
		if _, err := Conn(ctx, db).ExecContext(ctx, `INSERT INTO settings (key, value) VALUES ('k', 'v')`); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM settings`).Scan(&n))
	assert.Zero(t, n)
}

func TestWriterLock_Exclusive(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "lock.db")}

	first := NewWriterLock(cfg)
	require.NoError(t, first.TryAcquire())
	defer first.Release()

	second := NewWriterLock(cfg)
	assert.ErrorIs(t, second.TryAcquire(), ErrLocked)

	require.NoError(t, first.Release())
	require.NoError(t, second.TryAcquire())
	require.NoError(t, second.Release())
}
