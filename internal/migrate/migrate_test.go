package migrate

import (
	"testing"

	"cutroom/internal/db"
)

func TestMigrateRecordsEachVersionOnce(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Re-running must be a no-op, not a re-apply.
	if err := Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	rows, err := conn.Query(`SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	defer rows.Close()
	seen := map[int]bool{}
	for rows.Next() {
		var version int
		var name, appliedAt string
		if err := rows.Scan(&version, &name, &appliedAt); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if seen[version] {
			t.Fatalf("version %d recorded twice", version)
		}
		seen[version] = true
		if name == "" || appliedAt == "" {
			t.Fatalf("ledger row %d missing name or timestamp", version)
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(seen) == 0 {
		t.Fatal("no migrations recorded")
	}

	// The migrated schema must actually be usable.
	if _, err := conn.Exec(`INSERT INTO users(id,email,name,role,created_at)
		VALUES ('u1','u1@cutroom.test','U One','admin','2026-01-01T00:00:00Z')`); err != nil {
		t.Fatalf("insert into migrated schema: %v", err)
	}
}
