// Command migrate applies or reverts the SQL migrations under the
// configured migrations directory against the Postgres record store.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/motorpool/motorpool/internal/config"
)

type migration struct {
	version int
	name    string
	path    string
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	mode := flag.String("mode", "up", "migration mode: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseURL())
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	if err := ensureVersionTable(db); err != nil {
		log.Fatalf("failed to ensure schema_migrations: %v", err)
	}

	dir := cfg.Store.Postgres.MigrationsPath
	switch strings.ToLower(*mode) {
	case "up":
		if err := migrateUp(db, dir); err != nil {
			log.Fatalf("migration up failed: %v", err)
		}
		log.Println("Migration up completed successfully")
	case "down":
		if err := migrateDown(db, dir); err != nil {
			log.Fatalf("migration down failed: %v", err)
		}
		log.Println("Migration down completed successfully")
	default:
		log.Fatalf("unknown mode: %s", *mode)
	}
}

func ensureVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

// listMigrations returns the migrations with the given suffix
// (".up.sql" or ".down.sql") sorted by ascending version.
func listMigrations(dir, suffix string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []migration
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		base := strings.TrimSuffix(name, suffix)
		parts := strings.SplitN(base, "_", 2)
		if len(parts) != 2 {
			log.Printf("skip migration without version prefix: %s", name)
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			log.Printf("skip migration with bad version prefix: %s", name)
			continue
		}
		out = append(out, migration{
			version: version,
			name:    parts[1],
			path:    filepath.Join(dir, name),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func applied(db *sql.DB, version int) (bool, error) {
	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&exists)
	return exists, err
}

// run executes one migration file and its bookkeeping in a single
// transaction so a failed migration leaves no partial state.
func run(db *sql.DB, m migration, bookkeeping string) error {
	script, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(string(script)); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed executing %s: %w", m.path, err)
	}
	if _, err := tx.Exec(bookkeeping, m.version, m.name); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func migrateUp(db *sql.DB, dir string) error {
	ups, err := listMigrations(dir, ".up.sql")
	if err != nil {
		return err
	}
	for _, m := range ups {
		done, err := applied(db, m.version)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		log.Printf("Applying %03d_%s", m.version, m.name)
		if err := run(db, m, "INSERT INTO schema_migrations(version, name) VALUES($1, $2)"); err != nil {
			return err
		}
	}
	return nil
}

func migrateDown(db *sql.DB, dir string) error {
	downs, err := listMigrations(dir, ".down.sql")
	if err != nil {
		return err
	}
	// revert newest first
	for i := len(downs) - 1; i >= 0; i-- {
		m := downs[i]
		done, err := applied(db, m.version)
		if err != nil {
			return err
		}
		if !done {
			continue
		}
		log.Printf("Reverting %03d_%s", m.version, m.name)
		if err := run(db, m, "DELETE FROM schema_migrations WHERE version = $1 AND name = $2"); err != nil {
			return err
		}
	}
	return nil
}
