package category

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mangashelf/pkg/database"
	"mangashelf/pkg/models"
)

var ErrNotFound = fmt.Errorf("category %w", models.ErrNotFound)

// Repo stores category records. "All" is never stored.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) conn(ctx context.Context) database.DBTX {
	return database.Conn(ctx, r.DB)
}

// List returns stored categories by order, then name.
func (r *Repo) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, `
		SELECT name, created_at, sort_order FROM categories ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]models.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Get returns (nil, nil) when name is absent.
func (r *Repo) Get(ctx context.Context, name string) (*models.Category, error) {
	row := r.conn(ctx).QueryRowContext(ctx, `
		SELECT name, created_at, sort_order FROM categories WHERE name = ?
	`, name)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Put inserts or replaces the record keyed by c.Name.
func (r *Repo) Put(ctx context.Context, c models.Category) error {
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO categories (name, created_at, sort_order) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET created_at = excluded.created_at, sort_order = excluded.sort_order
	`, c.Name, c.CreatedAt.UTC().Format(time.RFC3339Nano), c.Order)
	if err != nil {
		return fmt.Errorf("put category %q: %w", c.Name, err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, name string) error {
	res, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete category %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(s scanner) (models.Category, error) {
	var (
		c       models.Category
		created string
	)
	if err := s.Scan(&c.Name, &created, &c.Order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("scan category: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return c, fmt.Errorf("parse created_at of category %q: %w", c.Name, err)
	}
	c.CreatedAt = t
	return c, nil
}
