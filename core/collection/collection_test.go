package collection

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	strataerrors "github.com/stratadb/strata/core/errors"
	"github.com/stratadb/strata/core/sqlite"
	"github.com/stratadb/strata/core/txn"
)

func newTestCollection(t *testing.T, name string, indexed []string) (*Collection, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strata.db")
	db, err := sqlite.Open(path, sqlite.DefaultOptions())
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	c, err := Open(db, txn.New(db), path, name, indexed, DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c, path
}

func TestOpenCreatesTable(t *testing.T) {
	c, _ := newTestCollection(t, "people", []string{"name", "age"})
	if c.Name() != "people" {
		t.Errorf("Name() = %q; want people", c.Name())
	}
	if got := c.IndexedFields(); len(got) != 2 || got[0] != "age" || got[1] != "name" {
		t.Errorf("IndexedFields() = %v; want sorted [age name]", got)
	}
}

func TestOpenReopenSameFieldsSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.db")
	db, err := sqlite.Open(path, sqlite.DefaultOptions())
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	defer db.Close()
	ctl := txn.New(db)

	if _, err := Open(db, ctl, path, "people", []string{"name"}, DefaultOptions()); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := Open(db, ctl, path, "people", []string{"name"}, DefaultOptions()); err != nil {
		t.Fatalf("second Open: %v", err)
	}
}

func TestOpenReopenDifferentFieldsFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.db")
	db, err := sqlite.Open(path, sqlite.DefaultOptions())
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	defer db.Close()
	ctl := txn.New(db)

	if _, err := Open(db, ctl, path, "people", []string{"name"}, DefaultOptions()); err != nil {
		t.Fatalf("first Open: %v", err)
	}

	_, err = Open(db, ctl, path, "people", []string{"name", "age"}, DefaultOptions())
	var mismatch *strataerrors.SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("second Open error = %v; want *SchemaMismatchError", err)
	}
	if !errors.Is(err, strataerrors.ErrIndexSchemaMismatch) {
		t.Errorf("error does not wrap ErrIndexSchemaMismatch")
	}
}

func TestOpenRejectsInvalidNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.db")
	db, err := sqlite.Open(path, sqlite.DefaultOptions())
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	defer db.Close()

	if _, err := Open(db, txn.New(db), path, "bad name!", nil, DefaultOptions()); err == nil {
		t.Fatal("expected error for invalid collection name")
	}
	if _, err := Open(db, txn.New(db), path, "people", []string{"bad field!"}, DefaultOptions()); err == nil {
		t.Fatal("expected error for invalid indexed field name")
	}
}

func TestStatsReportsCountAndIndexedFields(t *testing.T) {
	c, _ := newTestCollection(t, "people", []string{"name"})
	ctx := context.Background()

	if _, err := c.Insert(ctx, map[string]any{"name": "Ada"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.DocumentCount != 1 {
		t.Errorf("DocumentCount = %d; want 1", stats.DocumentCount)
	}
	if len(stats.IndexedFields) != 1 || stats.IndexedFields[0] != "name" {
		t.Errorf("IndexedFields = %v; want [name]", stats.IndexedFields)
	}
}

func TestStatsIsMemoizedUntilInvalidated(t *testing.T) {
	c, _ := newTestCollection(t, "people", nil)
	ctx := context.Background()

	first, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if first.DocumentCount != 0 {
		t.Fatalf("DocumentCount = %d; want 0", first.DocumentCount)
	}

	if _, err := c.Insert(ctx, map[string]any{"x": 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// invalidateStats is called by Insert, so the next read reflects it.
	second, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if second.DocumentCount != 1 {
		t.Errorf("DocumentCount after insert = %d; want 1", second.DocumentCount)
	}
}

func TestExplainSearchUsesIndex(t *testing.T) {
	c, _ := newTestCollection(t, "people", []string{"name"})
	ctx := context.Background()

	plan, err := c.Explain(ctx, "search", "name", "Ada")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if len(plan) == 0 {
		t.Fatal("expected a non-empty query plan")
	}
	if !strings.Contains(strings.Join(plan, "\n"), "INDEX") {
		t.Errorf("query plan %q does not use an index", plan)
	}
}
