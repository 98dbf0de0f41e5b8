package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/class-enrollment/internal/database/migrations"
)

const migrationTable = "schema_migrations"

// Migrate applies the embedded migrations for the dialect, each file at
// most once.  Applied file names are tracked in schema_migrations.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if db == nil {
		return fmt.Errorf("sql db is required")
	}
	dir := string(dialect)
	entries, err := fs.ReadDir(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    name VARCHAR(255) NOT NULL PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`, migrationTable)
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		key := path.Join(dir, file)
		var n int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+migrationTable+" WHERE name = ?", key).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", key, err)
		}
		if n > 0 {
			continue
		}
		content, err := fs.ReadFile(migrations.FS, key)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", key, err)
		}
		// MySQL DDL commits implicitly, so statements run one by one rather
		// than inside a transaction.
		for _, stmt := range SplitStatements(ExtractUp(string(content))) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec migration %s: %w", key, err)
			}
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
			key, time.Now().UTC().UnixMilli()); err != nil {
			return fmt.Errorf("record migration %s: %w", key, err)
		}
	}
	return nil
}

// ExtractUp returns the SQL in the "-- +migrate Up" section.  Files without
// markers are returned whole.
func ExtractUp(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}

// SplitStatements splits a script on semicolons and drops empty and
// comment-only statements.  Migration files must not put semicolons inside
// string literals.
func SplitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
