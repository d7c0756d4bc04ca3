package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

type migration struct {
	version int
	name    string
	upSQL   string
}

// Migrate brings the database schema up to date. Every applied migration is
// recorded as its own row in schema_migrations, so the history stays visible
// after upgrades and a partially-new file set only runs what is missing.
func Migrate(db *sql.DB) error {
	pending, err := readMigrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations(
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TEXT NOT NULL
);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(tx)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if applied[m.version] {
			continue
		}
		if _, err := tx.Exec(m.upSQL); err != nil {
			return fmt.Errorf("apply %s: %w", m.name, err)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version,name,applied_at) VALUES (?,?,?)`,
			m.version, m.name, now); err != nil {
			return fmt.Errorf("record %s: %w", m.name, err)
		}
	}
	return tx.Commit()
}

func appliedVersions(tx *sql.Tx) (map[int]bool, error) {
	rows, err := tx.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()
	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// readMigrations loads sql/NNNN_name.sql files sorted by version.
func readMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "sql")
	if err != nil {
		return nil, err
	}
	out := make([]migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: want NNNN_name.sql", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: non-numeric version prefix", name)
		}
		data, err := migrationsFS.ReadFile("sql/" + name)
		if err != nil {
			return nil, err
		}
		out = append(out, migration{version: version, name: name, upSQL: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}
