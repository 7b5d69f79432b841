package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mangashelf/pkg/database"
)

// Known keys.
const (
	KeySelectedCategory = "selectedCategory"
	KeySortOrder        = "sortOrder"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Get returns def when key is unset.
func (r *Repo) Get(ctx context.Context, key, def string) (string, error) {
	var v string
	err := database.Conn(ctx, r.DB).QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return v, nil
}

func (r *Repo) Set(ctx context.Context, key, value string) error {
	_, err := database.Conn(ctx, r.DB).ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}
