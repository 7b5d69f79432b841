package entry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mangashelf/pkg/database"
	"mangashelf/pkg/models"
)

// ErrNotFound is returned by Update, Delete and MarkOpened for an unknown id.
var ErrNotFound = fmt.Errorf("entry %w", models.ErrNotFound)

// Search modes.
const (
	SearchDefault    = ""
	SearchAltTitles  = "a"
	SearchTags       = "t"
	SearchBadges     = "b"
	SearchCharacters = "c"
)

type Repo struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

const selectColumns = `
	SELECT id, slug, title, alternative_titles, cover_image_url, description, category,
	       tags, badges, rating, characters, chapter_rows, data_type, created_at, opened_at, edited_at,
	       schema_version
	FROM entries
`

func (r *Repo) conn(ctx context.Context) database.DBTX {
	return database.Conn(ctx, r.DB)
}

// GetAll returns every entry, newest id first.
func (r *Repo) GetAll(ctx context.Context) ([]models.Entry, error) {
	return r.query(ctx, selectColumns+` ORDER BY id DESC`)
}

// GetByCategory returns the entries of one category; "All" returns everything.
func (r *Repo) GetByCategory(ctx context.Context, category string) ([]models.Entry, error) {
	if category == "" || category == models.AllCategory {
		return r.GetAll(ctx)
	}
	return r.query(ctx, selectColumns+` WHERE category = ? ORDER BY id DESC`, category)
}

// GetByID returns (nil, nil) when the id is absent.
func (r *Repo) GetByID(ctx context.Context, id int64) (*models.Entry, error) {
	out, err := r.query(ctx, selectColumns+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get entry %d: %w", id, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Add persists e as a new record and returns its id. Any id on e is ignored.
// CreatedAt defaults to now.
func (r *Repo) Add(ctx context.Context, e models.Entry) (int64, error) {
	if e.CreatedAt == nil {
		now := r.Now()
		e.CreatedAt = &now
	}
	if strings.TrimSpace(e.Category) == "" {
		e.Category = models.AllCategory
	}
	if strings.TrimSpace(e.DataType) == "" {
		e.DataType = models.DataTypeLib
	}

	cols, err := encodeColumns(e)
	if err != nil {
		return 0, err
	}

	res, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO entries (
			slug, title, alternative_titles, cover_image_url, description, category,
			tags, badges, rating, characters, chapter_rows, data_type, created_at, opened_at, edited_at,
			schema_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Slug, e.Title, cols.alts, nullString(e.CoverImageURL), e.Description, e.Category,
		cols.tags, cols.badges, nullInt(e.Rating), cols.chars, cols.rows, e.DataType,
		nullTime(e.CreatedAt), nullTime(e.OpenedAt), nullTime(e.EditedAt),
		models.SchemaVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert entry: last id: %w", err)
	}
	return id, nil
}

// Update replaces the stored record with e as a whole. The id and createdAt
// of the stored record are kept and editedAt is stamped with now.
func (r *Repo) Update(ctx context.Context, id int64, e models.Entry) error {
	if strings.TrimSpace(e.Category) == "" {
		e.Category = models.AllCategory
	}
	if strings.TrimSpace(e.DataType) == "" {
		e.DataType = models.DataTypeLib
	}
	cols, err := encodeColumns(e)
	if err != nil {
		return err
	}

	now := r.Now()
	res, err := r.conn(ctx).ExecContext(ctx, `
		UPDATE entries SET
			slug = ?, title = ?, alternative_titles = ?, cover_image_url = ?, description = ?,
			category = ?, tags = ?, badges = ?, rating = ?, characters = ?, chapter_rows = ?,
			data_type = ?, opened_at = ?, edited_at = ?, schema_version = ?
		WHERE id = ?
	`,
		e.Slug, e.Title, cols.alts, nullString(e.CoverImageURL), e.Description,
		e.Category, cols.tags, cols.badges, nullInt(e.Rating), cols.chars, cols.rows,
		e.DataType, nullTime(e.OpenedAt), nullTime(&now), models.SchemaVersion,
		id,
	)
	if err != nil {
		return fmt.Errorf("update entry %d: %w", id, err)
	}
	return expectOne(res, id)
}

// MarkOpened stamps openedAt.
func (r *Repo) MarkOpened(ctx context.Context, id int64) error {
	now := r.Now()
	res, err := r.conn(ctx).ExecContext(ctx, `UPDATE entries SET opened_at = ? WHERE id = ?`, nullTime(&now), id)
	if err != nil {
		return fmt.Errorf("mark entry %d opened: %w", id, err)
	}
	return expectOne(res, id)
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	res, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	return expectOne(res, id)
}

// ReassignCategory moves every entry of category from to category to and
// returns how many entries changed.
func (r *Repo) ReassignCategory(ctx context.Context, from, to string) (int64, error) {
	now := r.Now()
	res, err := r.conn(ctx).ExecContext(ctx, `
		UPDATE entries SET category = ?, edited_at = ? WHERE category = ?
	`, to, nullTime(&now), from)
	if err != nil {
		return 0, fmt.Errorf("reassign category %q -> %q: %w", from, to, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Search filters entries of category by a case-insensitive substring match.
// mode selects the field: default title and alternative titles, "a"
// alternative titles, "t" tags, "b" badges, "c" character names.
func (r *Repo) Search(ctx context.Context, category, query, mode string) ([]models.Entry, error) {
	all, err := r.GetByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all, nil
	}

	out := make([]models.Entry, 0, len(all))
	for _, e := range all {
		if matches(e, q, mode) {
			out = append(out, e)
		}
	}
	return out, nil
}

func matches(e models.Entry, q, mode string) bool {
	contains := func(list []string) bool {
		return strings.Contains(strings.ToLower(strings.Join(list, " ")), q)
	}
	switch mode {
	case SearchAltTitles:
		return contains(e.AlternativeTitles)
	case SearchTags:
		return contains(e.Tags)
	case SearchBadges:
		return contains(e.Badges)
	case SearchCharacters:
		names := make([]string, 0, len(e.Characters))
		for _, c := range e.Characters {
			names = append(names, c.Name)
		}
		return contains(names)
	default:
		return strings.Contains(strings.ToLower(e.Title), q) || contains(e.AlternativeTitles)
	}
}

func (r *Repo) query(ctx context.Context, q string, args ...any) ([]models.Entry, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := make([]models.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func scanEntry(rows *sql.Rows) (models.Entry, error) {
	var (
		e                                 models.Entry
		alts, tags, badges, chars, chRows string
		cover                             sql.NullString
		rating                            sql.NullInt64
		createdAt, openedAt, editedAt     sql.NullString
	)
	if err := rows.Scan(
		&e.ID, &e.Slug, &e.Title, &alts, &cover, &e.Description, &e.Category,
		&tags, &badges, &rating, &chars, &chRows, &e.DataType, &createdAt, &openedAt, &editedAt,
		&e.SchemaVersion,
	); err != nil {
		return e, fmt.Errorf("scan entry: %w", err)
	}

	if cover.Valid {
		e.CoverImageURL = &cover.String
	}
	if rating.Valid {
		n := int(rating.Int64)
		e.Rating = &n
	}

	for _, col := range []struct {
		name string
		raw  string
		dst  any
	}{
		{"alternative_titles", alts, &e.AlternativeTitles},
		{"tags", tags, &e.Tags},
		{"badges", badges, &e.Badges},
		{"characters", chars, &e.Characters},
		{"rows", chRows, &e.Rows},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return e, fmt.Errorf("decode %s of entry %d: %w", col.name, e.ID, err)
		}
	}

	var err error
	if e.CreatedAt, err = models.ParseTimestamp(createdAt.String); err != nil {
		return e, fmt.Errorf("parse created_at of entry %d: %w", e.ID, err)
	}
	if e.OpenedAt, err = models.ParseTimestamp(openedAt.String); err != nil {
		return e, fmt.Errorf("parse opened_at of entry %d: %w", e.ID, err)
	}
	if e.EditedAt, err = models.ParseTimestamp(editedAt.String); err != nil {
		return e, fmt.Errorf("parse edited_at of entry %d: %w", e.ID, err)
	}
	return e, nil
}

type encoded struct {
	alts, tags, badges, chars, rows string
}

func encodeColumns(e models.Entry) (encoded, error) {
	var out encoded
	fields := []struct {
		name string
		v    any
		dst  *string
	}{
		{"alternative_titles", nonNilStrings(e.AlternativeTitles), &out.alts},
		{"tags", models.DedupeStrings(e.Tags), &out.tags},
		{"badges", models.DedupeStrings(e.Badges), &out.badges},
		{"characters", nonNilCharacters(e.Characters), &out.chars},
		{"rows", nonNilRows(e.Rows), &out.rows},
	}
	for _, f := range fields {
		b, err := json.Marshal(f.v)
		if err != nil {
			return out, fmt.Errorf("encode %s: %w", f.name, err)
		}
		*f.dst = string(b)
	}
	return out, nil
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for entry %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}
	return nil
}

// IsNotFound reports whether err is a missing-entry error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilCharacters(in []models.Character) []models.Character {
	if in == nil {
		return []models.Character{}
	}
	return in
}

func nonNilRows(in []models.ChapterRow) []models.ChapterRow {
	if in == nil {
		return []models.ChapterRow{}
	}
	return in
}
