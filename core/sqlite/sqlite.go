// Package sqlite selects and configures the underlying SQL engine for
// strata: a unified SQLite interface supporting both pure Go
// (modernc.org/sqlite) and CGO (mattn/go-sqlite3) implementations, plus
// the narrow set of dialect-specific SQL fragments the rest of the
// engine needs (JSON extraction, virtual generated columns, the
// REGEXP operator) so that nothing above this package writes
// engine-specific SQL by hand.
//
// Build modes:
//   - Default (CGO_ENABLED=0): Uses pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): Uses mattn/go-sqlite3 via contrib/sqlite-external
//
// The CGO driver is located in contrib/sqlite-external/ to clearly separate
// optional external dependencies from core functionality.
//
// The driver name is "sqlite" for the pure Go build and
// "sqlite3_with_regexp" for the CGO build.
// Use Open() instead of sql.Open() to ensure the correct driver is used,
// WAL journaling, and a busy timeout are all applied consistently.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// DriverName returns the SQL driver name to use.
func DriverName() string {
	return driverName
}

// DriverType returns a string identifying the underlying implementation.
// Returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// Options configures how Open prepares a connection.
type Options struct {
	// JournalMode is the journal_mode PRAGMA value. Defaults to "WAL".
	JournalMode string
	// BusyTimeout is the busy_timeout PRAGMA value. Defaults to 5s.
	BusyTimeout time.Duration
	// ForeignKeys enables the foreign_keys PRAGMA. Off by default: strata
	// enforces its own relationship contracts in the odm layer.
	ForeignKeys bool
}

// DefaultOptions returns the options Open uses when none are given.
func DefaultOptions() Options {
	return Options{
		JournalMode: "WAL",
		BusyTimeout: 5 * time.Second,
	}
}

// Open opens a SQLite database using the appropriate driver and applies
// journal mode, busy timeout, and foreign-key PRAGMAs. This is the
// preferred way to open SQLite databases in strata; sql.Open alone does
// not configure WAL or busy handling.
func Open(dataSourceName string, opts Options) (*sql.DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dataSourceName, err)
	}

	// A single physical connection per handle. The engine's WAL mode lets
	// readers and the one writer proceed without blocking each other, but
	// strata serializes writes at the Go level via the transaction
	// controller (core/txn), so one *sql.DB connection is sufficient and
	// avoids surprising interleavings from Go's internal pool.
	db.SetMaxOpenConns(1)

	if opts.JournalMode == "" {
		opts.JournalMode = "WAL"
	}
	if opts.BusyTimeout == 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode = %s", opts.JournalMode),
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()),
	}
	if opts.ForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys = ON")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: apply %q: %w", p, err)
		}
	}

	return db, nil
}

// OpenReadOnly opens a SQLite database in read-only mode.
func OpenReadOnly(path string) (*sql.DB, error) {
	dsn := path + "?mode=ro"
	return Open(dsn, DefaultOptions())
}

// MustOpen opens a SQLite database and panics on error.
// Intended for use in tests where database access failure is unrecoverable.
func MustOpen(dataSourceName string, opts Options) *sql.DB {
	db, err := Open(dataSourceName, opts)
	if err != nil {
		panic(fmt.Sprintf("sqlite: failed to open %s: %v", dataSourceName, err))
	}
	return db
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
