// Package database is strata's top-level handle: it owns the single
// SQL connection, the write-ahead-log setup, the transaction
// controller, an append-only registry of open collections, and the
// "documents" default collection the legacy single-collection API
// forwards to.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/stratadb/strata/core/collection"
	"github.com/stratadb/strata/core/document"
	strataerrors "github.com/stratadb/strata/core/errors"
	"github.com/stratadb/strata/core/sqlite"
	"github.com/stratadb/strata/core/txn"
	"github.com/stratadb/strata/internal/logging"
)

// legacyCollection is the reserved name backing Database's own
// CRUD methods when no explicit collection is addressed.
const legacyCollection = "documents"

// Options configures Open.
type Options struct {
	// BusyTimeout is how long the engine retries before reporting busy.
	BusyTimeout time.Duration
	// JournalMode defaults to "WAL".
	JournalMode string
	// ForeignKeys enables the engine's own foreign_keys PRAGMA.
	ForeignKeys bool
	// StatementCacheSize bounds each collection's prepared-statement
	// cache. Zero selects collection.DefaultOptions()'s default.
	StatementCacheSize int
	// StatsTTL bounds how long a collection's Stats() is memoised.
	StatsTTL time.Duration
	// SkipFileLock disables the advisory inter-process file lock, for
	// in-memory databases where there is no path to lock.
	SkipFileLock bool
}

// DefaultOptions returns the options Open uses when none are given.
func DefaultOptions() Options {
	return Options{
		JournalMode:        "WAL",
		BusyTimeout:        5 * time.Second,
		StatementCacheSize: 16,
		StatsTTL:           time.Second,
	}
}

func (o Options) sqliteOptions() sqlite.Options {
	return sqlite.Options{
		JournalMode: o.JournalMode,
		BusyTimeout: o.BusyTimeout,
		ForeignKeys: o.ForeignKeys,
	}
}

func (o Options) collectionOptions() collection.Options {
	opts := collection.DefaultOptions()
	if o.StatementCacheSize > 0 {
		opts.StatementCacheSize = o.StatementCacheSize
	}
	if o.StatsTTL > 0 {
		opts.StatsTTL = o.StatsTTL
	}
	return opts
}

// Database is a single open database file: one connection, one
// transaction controller, and an append-only collection registry —
// entries are never removed once opened.
type Database struct {
	mu          sync.RWMutex
	path        string
	opts        Options
	db          *sql.DB
	txnCtl      *txn.Controller
	collections map[string]*collection.Collection
	lock        *flock.Flock
}

// Open opens or creates the database file at path, applies WAL
// journaling and busy-timeout pragmas, and takes an advisory
// process-level file lock alongside the engine's own file locking,
// making cross-process contention observable and testable from Go.
func Open(path string, opts Options) (*Database, error) {
	var fl *flock.Flock
	if !opts.SkipFileLock && path != "" && path != ":memory:" {
		fl = flock.New(path + ".lock")
		ctx, cancel := context.WithTimeout(context.Background(), opts.sqliteOptions().BusyTimeout)
		defer cancel()
		locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
		if err != nil {
			return nil, fmt.Errorf("database: acquire file lock: %w", err)
		}
		if !locked {
			return nil, &strataerrors.LockedError{Operation: "open " + path}
		}
	}

	db, err := sqlite.Open(path, opts.sqliteOptions())
	if err != nil {
		if fl != nil {
			fl.Unlock()
		}
		return nil, err
	}

	d := &Database{
		path:        path,
		opts:        opts,
		db:          db,
		txnCtl:      txn.New(db),
		collections: make(map[string]*collection.Collection),
		lock:        fl,
	}

	logging.LoggerFromContext(context.Background()).Info("database opened", "path", path, "driver", sqlite.DriverType())
	return d, nil
}

// Close releases the file lock (if held) and closes the connection.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.db.Close()
	if d.lock != nil {
		if unlockErr := d.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	return err
}

// Txn exposes the shared transaction controller so the odm layer can
// proxy begin/commit/rollback/transaction calls to the bound database.
func (d *Database) Txn() *txn.Controller { return d.txnCtl }

// Path returns the database's file path.
func (d *Database) Path() string { return d.path }

// Collection opens or returns the cached collection named name with
// the given indexed fields, applying the open-or-create-or-mismatch
// rule. The registry only ever grows.
func (d *Database) Collection(name string, indexedFields []string) (*collection.Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collectionLocked(name, indexedFields)
}

func (d *Database) collectionLocked(name string, indexedFields []string) (*collection.Collection, error) {
	if c, ok := d.collections[name]; ok {
		wanted := append([]string(nil), indexedFields...)
		slices.Sort(wanted)
		if have := c.IndexedFields(); !slices.Equal(have, wanted) {
			return nil, &strataerrors.SchemaMismatchError{Collection: name, Wanted: wanted, Actual: have}
		}
		return c, nil
	}

	c, err := collection.Open(d.db, d.txnCtl, d.path, name, indexedFields, d.opts.collectionOptions())
	if err != nil {
		return nil, err
	}
	d.collections[name] = c
	return c, nil
}

// Collections returns the names of every collection opened so far, in
// no particular order. Used by export/import and the read-only UI.
func (d *Database) Collections() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.collections))
	for name := range d.collections {
		names = append(names, name)
	}
	return names
}

// legacy lazily opens the reserved "documents" collection the
// Database's own CRUD methods forward to.
func (d *Database) legacy() (*collection.Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collectionLocked(legacyCollection, nil)
}

// Insert forwards to the default "documents" collection.
func (d *Database) Insert(ctx context.Context, doc document.Document) (document.ID, error) {
	c, err := d.legacy()
	if err != nil {
		return 0, err
	}
	return c.Insert(ctx, doc)
}

// GetByID forwards a point lookup to the default collection.
func (d *Database) GetByID(ctx context.Context, id document.ID) (document.Record, bool, error) {
	c, err := d.legacy()
	if err != nil {
		return document.Record{}, false, err
	}
	return c.GetByID(ctx, id)
}

// Search forwards to the default collection.
func (d *Database) Search(ctx context.Context, key string, value any, limit, offset int) ([]document.Record, error) {
	c, err := d.legacy()
	if err != nil {
		return nil, err
	}
	return c.Search(ctx, key, value, limit, offset)
}

// Update forwards to the default collection.
func (d *Database) Update(ctx context.Context, key string, value any, patch document.Document) (bool, error) {
	c, err := d.legacy()
	if err != nil {
		return false, err
	}
	return c.Update(ctx, key, value, patch)
}

// Remove forwards to the default collection.
func (d *Database) Remove(ctx context.Context, key string, value any) (int64, error) {
	c, err := d.legacy()
	if err != nil {
		return 0, err
	}
	return c.Remove(ctx, key, value)
}

// All forwards to the default collection.
func (d *Database) All(ctx context.Context, limit, offset int) ([]document.Record, error) {
	c, err := d.legacy()
	if err != nil {
		return nil, err
	}
	return c.All(ctx, limit, offset)
}
