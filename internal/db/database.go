package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"syncdisplay/internal/observability"
)

// InMemory opens a private database that lives as long as the handle.
const InMemory = ":memory:"

// Open opens the SQLite database at dbPath and creates the tables.
func Open(dbPath string, log *observability.Logger) (*sql.DB, error) {
	dsn := InMemory
	if dbPath != InMemory {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_foreign_keys=1&_busy_timeout=5000"
	}

	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway and an in-memory
	// database is per connection.
	database.SetMaxOpenConns(1)

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTables(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.WithComponent("db").Info().Str("path", dbPath).Msg("Database initialized")
	return database, nil
}

// createTables creates all necessary tables
func createTables(database *sql.DB) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"settings", `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`},
		{"clickers", `
	CREATE TABLE IF NOT EXISTS clickers (
		id TEXT PRIMARY KEY,
		mac_address TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		press_count INTEGER NOT NULL DEFAULT 0,
		last_press DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`},
		{"idx_clickers_mac", `CREATE INDEX IF NOT EXISTS idx_clickers_mac ON clickers(mac_address);`},
	}

	for _, stmt := range statements {
		if _, err := database.Exec(stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}
