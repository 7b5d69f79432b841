package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MANGASHELF_DB_PATH", "")
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ":7070", cfg.Sync.TCPAddr)
	assert.Equal(t, []string{"00:00", "12:00"}, cfg.Backup.Times)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWTDuration)
	assert.False(t, cfg.Auth.Enabled)
	assert.NotEmpty(t, cfg.Database.Path)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mangashelf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/from-file.db
http:
  addr: ":9090"
backup:
  enabled: true
  times: ["03:30"]
log:
  level: debug
`), 0o644))

	t.Setenv("MANGASHELF_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-file.db", cfg.Database.Path)
	assert.Equal(t, "/tmp/from-file.db", cfg.DB().Path)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, []string{"03:30"}, cfg.Backup.Times)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("import finished", "inserted", 2)
	assert.Contains(t, buf.String(), `"msg":"import finished"`)
	assert.Contains(t, buf.String(), `"inserted":2`)

	_, err = NewLogger(LogConfig{Format: "xml"}, &buf)
	assert.Error(t, err)

	_, err = NewLogger(LogConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
}
