package database

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"mangashelf/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions (PRAGMA user_version):
// 0 - empty database
// 1 - base tables
// 2 - entries.schema_version; legacy characters/rows/tags normalized
const currentVersion = 2

// Migrate applies the schema and any pending migrations. Safe to call on
// every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 2 {
		if err := migrateToV2(ctx, db); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, currentVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV2 adds entries.schema_version and rewrites every stored record
// older than models.SchemaVersion through the legacy normalizers.
func migrateToV2(ctx context.Context, db *sql.DB) error {
	has, err := hasColumn(ctx, db, "entries", "schema_version")
	if err != nil {
		return err
	}
	if !has {
		if _, err := db.ExecContext(ctx, `ALTER TABLE entries ADD COLUMN schema_version INTEGER NOT NULL DEFAULT 1`); err != nil {
			return fmt.Errorf("migrate to v2: add schema_version: %w", err)
		}
	}

	return ExecTx(ctx, db, func(ctx context.Context) error {
		conn := Conn(ctx, db)
		rows, err := conn.QueryContext(ctx, `
			SELECT id, alternative_titles, tags, badges, characters, chapter_rows
			FROM entries
			WHERE schema_version < ?
		`, models.SchemaVersion)
		if err != nil {
			return fmt.Errorf("migrate to v2: select legacy rows: %w", err)
		}

		var pending []upgradedColumns
		for rows.Next() {
			var (
				id                                 int64
				alts, tags, badges, chars, chRows string
			)
			if err := rows.Scan(&id, &alts, &tags, &badges, &chars, &chRows); err != nil {
				rows.Close()
				return fmt.Errorf("migrate to v2: scan: %w", err)
			}
			u, err := upgradeColumns(alts, tags, badges, chars, chRows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("migrate to v2: entry %d: %w", id, err)
			}
			u.id = id
			pending = append(pending, u)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("migrate to v2: rows: %w", err)
		}
		rows.Close()

		for _, u := range pending {
			if _, err := conn.ExecContext(ctx, `
				UPDATE entries
				SET alternative_titles = ?, tags = ?, badges = ?, characters = ?, chapter_rows = ?, schema_version = ?
				WHERE id = ?
			`, string(u.alts), string(u.tags), string(u.badges), string(u.chars), string(u.chRows), models.SchemaVersion, u.id); err != nil {
				return fmt.Errorf("migrate to v2: update entry %d: %w", u.id, err)
			}
		}
		return nil
	})
}

type upgradedColumns struct {
	id                                int64
	alts, tags, badges, chars, chRows []byte
}

func upgradeColumns(alts, tags, badges, chars, chRows string) (upgradedColumns, error) {
	var out upgradedColumns

	altList, err := models.UpgradeStrings(json.RawMessage(alts))
	if err != nil {
		return out, fmt.Errorf("alternative_titles: %w", err)
	}
	tagList, err := models.UpgradeStrings(json.RawMessage(tags))
	if err != nil {
		return out, fmt.Errorf("tags: %w", err)
	}
	badgeList, err := models.UpgradeStrings(json.RawMessage(badges))
	if err != nil {
		return out, fmt.Errorf("badges: %w", err)
	}
	charList, err := models.UpgradeCharacters(json.RawMessage(chars))
	if err != nil {
		return out, fmt.Errorf("characters: %w", err)
	}
	rowList, err := models.UpgradeRows(json.RawMessage(chRows))
	if err != nil {
		return out, fmt.Errorf("rows: %w", err)
	}

	// marshaling plain string/struct slices cannot fail
	out.alts, _ = json.Marshal(altList)
	out.tags, _ = json.Marshal(tagList)
	out.badges, _ = json.Marshal(badgeList)
	out.chars, _ = json.Marshal(charList)
	out.chRows, _ = json.Marshal(rowList)
	return out, nil
}

func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &primaryKey); err != nil {
			return false, fmt.Errorf("scan table_info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
