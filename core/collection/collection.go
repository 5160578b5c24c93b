// Package collection implements the engine's unit of storage: one
// physical table per collection, generated virtual columns and B-tree
// indexes for declared indexed fields, and every CRUD, search, and
// pagination operation a caller or the odm layer needs.
package collection

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/stratadb/strata/core/cache"
	"github.com/stratadb/strata/core/document"
	strataerrors "github.com/stratadb/strata/core/errors"
	"github.com/stratadb/strata/core/query"
	"github.com/stratadb/strata/core/sqlite"
	"github.com/stratadb/strata/core/txn"
	internalcache "github.com/stratadb/strata/internal/cache"
)

// Collection is one named, table-backed set of documents.
type Collection struct {
	name          string
	table         string
	indexedFields []string
	indexedSet    map[string]bool

	db     *sql.DB
	txnCtl *txn.Controller
	dbPath string

	stmtCache *cache.StmtCache[*sql.Stmt]
	mu        sync.Mutex

	statsCache *internalcache.TTLCache[string, Stats]
}

// Options configures a Collection at Open time.
type Options struct {
	// StatementCacheSize bounds the number of prepared statements kept
	// open per collection. Zero selects a small default.
	StatementCacheSize int
	// StatsTTL bounds how long Stats() results are memoised. Zero
	// disables caching.
	StatsTTL time.Duration
}

// DefaultOptions returns the options Open uses when none are given.
func DefaultOptions() Options {
	return Options{StatementCacheSize: 16, StatsTTL: time.Second}
}

// Open opens or creates the table backing a collection with the given
// indexed fields:
//  1. table absent: create it with the declared generated columns.
//  2. table present with the same indexed set: reuse it.
//  3. table present with a different indexed set: ErrIndexSchemaMismatch.
func Open(db *sql.DB, txnCtl *txn.Controller, dbPath, name string, indexedFields []string, opts Options) (*Collection, error) {
	if !document.ValidCollectionName(name) {
		return nil, &strataerrors.FieldError{Field: name, Reason: "collection names must match [A-Za-z0-9_]+"}
	}
	for _, f := range indexedFields {
		if !document.ValidFieldName(f) {
			return nil, &strataerrors.FieldError{Field: f, Reason: "indexed field names must match [A-Za-z0-9_]+"}
		}
	}

	sorted := append([]string(nil), indexedFields...)
	sort.Strings(sorted)

	table := sqlite.TableName(name)

	exists, existingFields, err := introspectTable(db, table)
	if err != nil {
		return nil, err
	}

	if exists {
		if !sameFields(existingFields, sorted) {
			return nil, &strataerrors.SchemaMismatchError{Collection: name, Wanted: sorted, Actual: existingFields}
		}
	} else if err := createTable(db, table, sorted); err != nil {
		return nil, err
	}

	if opts.StatementCacheSize <= 0 {
		opts.StatementCacheSize = 16
	}

	c := &Collection{
		name:          name,
		table:         table,
		indexedFields: sorted,
		indexedSet:    toSet(sorted),
		db:            db,
		txnCtl:        txnCtl,
		dbPath:        dbPath,
		stmtCache:     cache.NewStmtCache[*sql.Stmt](opts.StatementCacheSize),
	}
	if opts.StatsTTL > 0 {
		c.statsCache = internalcache.New[string, Stats](opts.StatsTTL)
	}
	return c, nil
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// IndexedFields returns the collection's indexed field names in sorted
// order, the order used to detect schema mismatches.
func (c *Collection) IndexedFields() []string {
	return append([]string(nil), c.indexedFields...)
}

func (c *Collection) schema() query.Schema {
	return query.Schema{Table: c.table, IndexedFields: c.indexedSet}
}

func introspectTable(db *sql.DB, table string) (exists bool, generatedFields []string, err error) {
	var count int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
	).Scan(&count); err != nil {
		return false, nil, fmt.Errorf("collection: introspect %s: %w", table, err)
	}
	if count == 0 {
		return false, nil, nil
	}

	// table_xinfo, unlike table_info, also lists generated columns.
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_xinfo(%s)", sqlite.QuoteIdent(table)))
	if err != nil {
		return true, nil, fmt.Errorf("collection: table_xinfo %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk, hidden int
		var dflt any
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk, &hidden); err != nil {
			return true, nil, fmt.Errorf("collection: scan table_xinfo %s: %w", table, err)
		}
		if name == "id" || name == "data" {
			continue
		}
		generatedFields = append(generatedFields, name)
	}
	sort.Strings(generatedFields)
	return true, generatedFields, rows.Err()
}

func createTable(db *sql.DB, table string, indexedFields []string) error {
	var cols strings.Builder
	fmt.Fprintf(&cols, "id INTEGER PRIMARY KEY, data TEXT NOT NULL")
	for _, f := range indexedFields {
		cols.WriteString(", ")
		cols.WriteString(sqlite.VirtualColumnDDL(f, "data"))
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", sqlite.QuoteIdent(table), cols.String())
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("collection: create table %s: %w", table, err)
	}

	for _, f := range indexedFields {
		idx := fmt.Sprintf(
			"CREATE INDEX %s ON %s (%s)",
			sqlite.QuoteIdent(sqlite.IndexName(table, f)), sqlite.QuoteIdent(table), sqlite.QuoteIdent(f),
		)
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("collection: create index on %s.%s: %w", table, f, err)
		}
	}
	return nil
}

func sameFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toSet(fields []string) map[string]bool {
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f] = true
	}
	return m
}

// Stats reports operational metrics about a collection: row count,
// database file size, indexed fields, journal mode.
type Stats struct {
	DocumentCount int64
	FileSize      int64
	FileSizeHuman string
	IndexedFields []string
	JournalMode   string
}

// Stats computes the collection's current statistics, memoised for
// the configured TTL to keep repeated dashboard-style polling cheap.
func (c *Collection) Stats(ctx context.Context) (Stats, error) {
	if c.statsCache != nil {
		if s, ok := c.statsCache.Get(c.name); ok {
			return s, nil
		}
	}

	var count int64
	if err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", sqlite.QuoteIdent(c.table))).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("collection: stats count: %w", err)
	}

	var journalMode string
	if err := c.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return Stats{}, fmt.Errorf("collection: stats journal_mode: %w", err)
	}

	var size int64
	if c.dbPath != "" {
		if info, err := os.Stat(c.dbPath); err == nil {
			size = info.Size()
		}
	}

	s := Stats{
		DocumentCount: count,
		FileSize:      size,
		FileSizeHuman: humanize.Bytes(uint64(size)),
		IndexedFields: c.IndexedFields(),
		JournalMode:   journalMode,
	}

	if c.statsCache != nil {
		c.statsCache.Set(c.name, s)
	}
	return s, nil
}

// invalidateStats drops the memoised Stats result after a mutation.
func (c *Collection) invalidateStats() {
	if c.statsCache != nil {
		c.statsCache.Invalidate()
	}
}

// Explain runs the engine's query-plan inspection on the statement op
// would issue and returns its rows verbatim. Supported ops: "search"
// (args: key, value) and "all"; any other op, "search_optimized"
// included, returns an error.
func (c *Collection) Explain(ctx context.Context, op string, args ...any) ([]string, error) {
	var sqlStr string
	var params []any
	var err error

	switch op {
	case "search":
		if len(args) != 2 {
			return nil, fmt.Errorf("collection: explain search wants (key, value)")
		}
		key, _ := args[0].(string)
		sqlStr, params, err = c.schema().Select([]query.Predicate{{Field: key, Op: query.OpEq, Value: args[1]}}, 0, 0)
	case "all":
		sqlStr, params, err = c.schema().Select(nil, 0, 0)
	default:
		return nil, fmt.Errorf("collection: unsupported explain op %q", op)
	}
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, "EXPLAIN QUERY PLAN "+sqlStr, params...)
	if err != nil {
		return nil, fmt.Errorf("collection: explain: %w", err)
	}
	defer rows.Close()

	var plan []string
	for rows.Next() {
		var id, parent, notUsed int
		var detail string
		if err := rows.Scan(&id, &parent, &notUsed, &detail); err != nil {
			return nil, fmt.Errorf("collection: explain scan: %w", err)
		}
		plan = append(plan, detail)
	}
	return plan, rows.Err()
}
