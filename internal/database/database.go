package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB owns the SQLite connection and hands out the per-table repositories
type DB struct {
	db *sql.DB
}

// New creates and initializes a new database connection
func New(dbPath string) (*DB, error) {
	// Pragmas set with Exec only reach one pooled connection; the DSN
	// parameters apply them to every connection the pool opens.
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := optimizeSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to optimize database: %w", err)
	}

	database := &DB{db: db}

	if err := database.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// optimizeSQLite applies connection pragmas
func optimizeSQLite(db *sql.DB) error {
	// WAL lets the listing pages read while an edit is being written
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Set busy timeout to handle concurrent access better
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Pilots returns the pilot repository
func (d *DB) Pilots() PilotRepository {
	return NewPilotRepository(d.db)
}

// Airstrips returns the airstrip repository
func (d *DB) Airstrips() AirstripRepository {
	return NewAirstripRepository(d.db)
}

// AircraftTypes returns the aircraft type repository
func (d *DB) AircraftTypes() AircraftTypeRepository {
	return NewAircraftTypeRepository(d.db)
}

// Checkouts returns the checkout repository
func (d *DB) Checkouts() CheckoutRepository {
	return NewCheckoutRepository(d.db)
}

// initSchema creates the database schema if it doesn't exist
func (d *DB) initSchema() error {
	tables := []struct {
		name   string
		schema string
	}{
		{"pilots", `CREATE TABLE IF NOT EXISTS pilots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			is_pilot BOOLEAN NOT NULL DEFAULT 0,
			is_superuser BOOLEAN NOT NULL DEFAULT 0,
			password_hash TEXT NOT NULL DEFAULT ''
		);`},
		{"airstrips", `CREATE TABLE IF NOT EXISTS airstrips (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ident TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			is_base BOOLEAN NOT NULL DEFAULT 0
		);`},
		{"airstrip_bases", `CREATE TABLE IF NOT EXISTS airstrip_bases (
			airstrip_id INTEGER NOT NULL REFERENCES airstrips(id) ON DELETE CASCADE,
			base_id INTEGER NOT NULL REFERENCES airstrips(id) ON DELETE CASCADE,
			PRIMARY KEY (airstrip_id, base_id),
			CHECK (airstrip_id <> base_id)
		);`},
		{"aircraft_types", `CREATE TABLE IF NOT EXISTS aircraft_types (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);`},
		// The (pilot, airstrip, aircraft type) uniqueness of checkouts is kept by
		// the checkout reconciler, so the index below is deliberately not UNIQUE.
		{"checkouts", `CREATE TABLE IF NOT EXISTS checkouts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pilot_id INTEGER NOT NULL REFERENCES pilots(id) ON DELETE CASCADE,
			airstrip_id INTEGER NOT NULL REFERENCES airstrips(id) ON DELETE CASCADE,
			aircraft_type_id INTEGER NOT NULL REFERENCES aircraft_types(id) ON DELETE CASCADE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`},
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_airstrip_bases_base ON airstrip_bases(base_id)`,
		`CREATE INDEX IF NOT EXISTS idx_checkouts_triple ON checkouts(pilot_id, airstrip_id, aircraft_type_id)`,
		`CREATE INDEX IF NOT EXISTS idx_checkouts_airstrip ON checkouts(airstrip_id)`,
	}

	for _, table := range tables {
		if _, err := d.db.Exec(table.schema); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for _, idx := range indexes {
		if _, err := d.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Snapshot writes a consistent copy of the whole database to path.
// The destination must not exist.
func (d *DB) Snapshot(path string) error {
	if _, err := d.db.Exec("VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("failed to snapshot database to %s: %w", path, err)
	}
	return nil
}
