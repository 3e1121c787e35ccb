// Package migrate applies the SQL files under db/migrations to a Postgres
// database and records each one in a bookkeeping table.
package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// Table records applied migrations
const Table = "schema_migrations"

// ErrChecksumMismatch means an applied file was edited afterwards
var ErrChecksumMismatch = errors.New("migration changed after it was applied")

// File is one migration read from disk
type File struct {
	Name     string
	SQL      string
	Checksum string
}

// Files lists the .sql files at the root of fsys in name order
func Files(fsys fs.FS) ([]File, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}
	var out []File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(data)
		out = append(out, File{Name: e.Name(), SQL: string(data), Checksum: hex.EncodeToString(sum[:])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Apply runs every file not yet recorded, each in its own transaction, and
// returns the names it applied. Recorded files must still match their checksum.
func Apply(ctx context.Context, db *sql.DB, fsys fs.FS) ([]string, error) {
	files, err := Files(fsys)
	if err != nil {
		return nil, err
	}
	table := pq.QuoteIdentifier(Table)
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+table+` (
		id BIGSERIAL PRIMARY KEY,
		filename TEXT NOT NULL UNIQUE,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return nil, fmt.Errorf("create %s: %w", Table, err)
	}

	applied, err := recorded(ctx, db, table)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, f := range files {
		if sum, ok := applied[f.Name]; ok {
			if sum != f.Checksum {
				return done, fmt.Errorf("%w: %s", ErrChecksumMismatch, f.Name)
			}
			continue
		}
		if err := applyOne(ctx, db, table, f); err != nil {
			return done, err
		}
		done = append(done, f.Name)
	}
	return done, nil
}

func recorded(ctx context.Context, db *sql.DB, table string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT filename, checksum FROM `+table)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, sum string
		if err := rows.Scan(&name, &sum); err != nil {
			return nil, err
		}
		out[name] = sum
	}
	return out, rows.Err()
}

func applyOne(ctx context.Context, db *sql.DB, table string, f File) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, f.SQL); err != nil {
		return fmt.Errorf("apply migration %s: %w", f.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+table+` (filename, checksum) VALUES ($1, $2)`, f.Name, f.Checksum); err != nil {
		return fmt.Errorf("record migration %s: %w", f.Name, err)
	}
	return tx.Commit()
}
