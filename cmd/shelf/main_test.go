package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mangashelf/pkg/database"
	"mangashelf/pkg/models"
)

type shelfEnv struct {
	dir    string
	config string
	dbPath string
}

func newShelfEnv(t *testing.T) shelfEnv {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "shelf.db")
	config := filepath.Join(dir, "mangashelf.yaml")
	content := "database:\n  path: " + dbPath + "\nbackup:\n  dir: " + filepath.Join(dir, "backups") + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(config, []byte(content), 0o644))
	return shelfEnv{dir: dir, config: config, dbPath: dbPath}
}

func (e shelfEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestShelf_ImportListExport(t *testing.T) {
	env := newShelfEnv(t)

	batch := `[
		{"title": "Solo Leveling", "category": "Action", "tags": ["hunter"]},
		{"title": "solo leveling!", "tags": ["system"]},
		{"title": "Frieren", "rating": 10}
	]`
	_, err := env.run(t, batch, "import", "-")
	require.NoError(t, err)

	out, err := env.run(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Solo Leveling")
	assert.Contains(t, out, "Frieren")
	assert.Contains(t, out, "Action")

	out, err = env.run(t, "", "list", "--mode", "t", "-q", "system")
	require.NoError(t, err)
	assert.Contains(t, out, "Solo Leveling")
	assert.NotContains(t, out, "Frieren")

	out, err = env.run(t, "", "export", "--format", "json")
	require.NoError(t, err)
	var exported []models.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &exported))
	require.Len(t, exported, 2)
	assert.Equal(t, "Solo Leveling", exported[0].Title)
	assert.Equal(t, []string{"hunter", "system"}, exported[0].Tags)
	assert.Equal(t, "Action", exported[0].Category)

	out, err = env.run(t, "", "export", "--format", "md")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Library Export\n"))
}

func TestShelf_ExportRejectsUnknownFormat(t *testing.T) {
	env := newShelfEnv(t)

	_, err := env.run(t, "", "export", "--format", "xml", "--out", filepath.Join(env.dir, "out.xml"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(env.dir, "out.xml"))

	_, err = env.run(t, "", "export", "--format", "pdf")
	require.Error(t, err)
}

func TestShelf_EntryCommands(t *testing.T) {
	env := newShelfEnv(t)
	_, err := env.run(t, `[{"title": "Blame!"}]`, "import", "-")
	require.NoError(t, err)

	out, err := env.run(t, "", "show", "1")
	require.NoError(t, err)
	var e models.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	assert.Equal(t, "Blame!", e.Title)
	assert.Nil(t, e.OpenedAt)

	_, err = env.run(t, "", "open", "1")
	require.NoError(t, err)
	out, err = env.run(t, "", "show", "1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	assert.NotNil(t, e.OpenedAt)

	_, err = env.run(t, "", "delete", "1")
	require.NoError(t, err)
	_, err = env.run(t, "", "show", "1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = env.run(t, "", "open", "abc")
	assert.Error(t, err)
}

func TestShelf_CategoryCommands(t *testing.T) {
	env := newShelfEnv(t)

	for _, name := range []string{"Drama", "Action"} {
		_, err := env.run(t, "", "category", "add", name)
		require.NoError(t, err)
	}
	_, err := env.run(t, "", "category", "reorder", "Action", "Drama")
	require.NoError(t, err)
	_, err = env.run(t, "", "category", "rename", "Drama", "Slice of Life")
	require.NoError(t, err)

	out, err := env.run(t, "", "category", "select", "Action")
	require.NoError(t, err)
	assert.Equal(t, "Action\n", out)

	out, err = env.run(t, "", "category", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Slice of Life")
	assert.NotContains(t, out, "Drama")
	assert.Less(t, strings.Index(out, "Action"), strings.Index(out, "Slice of Life"))

	_, err = env.run(t, "", "category", "remove", "Action")
	require.NoError(t, err)
	out, err = env.run(t, "", "category", "select")
	require.NoError(t, err)
	assert.Equal(t, models.AllCategory+"\n", out)

	_, err = env.run(t, "", "category", "remove", "Nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestShelf_WriterLockBlocksMutations(t *testing.T) {
	env := newShelfEnv(t)

	lock := database.NewWriterLock(database.Config{Path: env.dbPath})
	require.NoError(t, lock.TryAcquire())
	defer lock.Release()

	_, err := env.run(t, "", "category", "add", "Action")
	assert.ErrorIs(t, err, database.ErrLocked)

	_, err = env.run(t, "", "list")
	assert.NoError(t, err)
}

func TestShelf_BackupRun(t *testing.T) {
	env := newShelfEnv(t)
	_, err := env.run(t, `[{"title": "Akira"}]`, "import", "-")
	require.NoError(t, err)

	target := filepath.Join(env.dir, "elsewhere")
	_, err = env.run(t, "", "backup", "run", "--dir", target)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(target, "lib-autobackup.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Akira")
}

func TestShelf_HashPassword(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader("hunter2\n"))
	root.SetArgs([]string{"--config", "/does/not/exist.yaml", "auth", "hash-password"})
	require.NoError(t, root.Execute())

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))
}
