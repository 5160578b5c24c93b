package collection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/stratadb/strata/core/document"
	strataerrors "github.com/stratadb/strata/core/errors"
	"github.com/stratadb/strata/core/query"
	"github.com/stratadb/strata/internal/logging"
)

// Insert serializes doc and inserts it, returning the assigned id.
// Fails with ErrInvalidDocument if doc cannot be serialized.
func (c *Collection) Insert(ctx context.Context, doc document.Document) (document.ID, error) {
	if err := document.Validate(doc); err != nil {
		return 0, err
	}
	data, err := document.Marshal(doc)
	if err != nil {
		return 0, err
	}

	var id document.ID
	err = c.txnCtl.AutoExec(ctx, func(ctx context.Context) error {
		sqlStr, args, err := c.schema().Insert(data)
		if err != nil {
			return err
		}
		res, err := c.db.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			return c.translate(err)
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("collection: insert: %w", err)
		}
		id = document.ID(lastID)
		return nil
	})
	if err != nil {
		return 0, err
	}
	c.invalidateStats()
	return id, nil
}

// InsertMany inserts every document in docs inside a single
// transaction (or savepoint, if one is already open) and returns the
// assigned ids in input order. On any failure the whole batch is
// rolled back; the returned error names the failing row, and the
// transaction controller appends any error from the rollback itself,
// since both are relevant to the caller's diagnosis.
func (c *Collection) InsertMany(ctx context.Context, docs []document.Document) ([]document.ID, error) {
	ids := make([]document.ID, len(docs))

	err := c.txnCtl.Transaction(ctx, func(ctx context.Context) error {
		for i, doc := range docs {
			if err := document.Validate(doc); err != nil {
				return fmt.Errorf("insert_many: row %d: %w", i, err)
			}
			data, err := document.Marshal(doc)
			if err != nil {
				return fmt.Errorf("insert_many: row %d: %w", i, err)
			}

			sqlStr, args, err := c.schema().Insert(data)
			if err != nil {
				return err
			}
			res, execErr := c.db.ExecContext(ctx, sqlStr, args...)
			if execErr != nil {
				return multierr.Append(fmt.Errorf("insert_many: row %d: %w", i, c.translate(execErr)), nil)
			}
			lastID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("insert_many: row %d: %w", i, err)
			}
			ids[i] = document.ID(lastID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.invalidateStats()
	return ids, nil
}

// GetByID returns the document with the given id, if present.
func (c *Collection) GetByID(ctx context.Context, id document.ID) (document.Record, bool, error) {
	sqlStr := fmt.Sprintf("SELECT id, data FROM %s WHERE id = ?", c.table)
	recs, err := c.scanRows(ctx, sqlStr, []any{int64(id)})
	if err != nil {
		return document.Record{}, false, err
	}
	if len(recs) == 0 {
		return document.Record{}, false, nil
	}
	return recs[0], true, nil
}

// Search returns documents where key equals value, in ascending id
// order. Routes to the generated column when key is indexed.
func (c *Collection) Search(ctx context.Context, key string, value any, limit, offset int) ([]document.Record, error) {
	return c.query(ctx, []query.Predicate{{Field: key, Op: query.OpEq, Value: value}}, limit, offset)
}

// SearchOptimized ANDs equality predicates across multiple fields,
// mixing generated-column and json_extract conditions freely in one
// statement.
func (c *Collection) SearchOptimized(ctx context.Context, pairs map[string]any, limit, offset int) ([]document.Record, error) {
	preds := make([]query.Predicate, 0, len(pairs))
	for k, v := range pairs {
		preds = append(preds, query.Predicate{Field: k, Op: query.OpEq, Value: v})
	}
	return c.query(ctx, preds, limit, offset)
}

// SearchPattern matches key against a regular expression. Regular
// expression matching cannot use an index, so this always scans.
func (c *Collection) SearchPattern(ctx context.Context, key, pattern string, limit, offset int) ([]document.Record, error) {
	s := c.schema()
	cond, args := s.PatternCondition(key, pattern)
	sqlStr := fmt.Sprintf("SELECT id, data FROM %s WHERE %s ORDER BY id ASC", c.table, cond)
	if limit > 0 {
		sqlStr += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		sqlStr += fmt.Sprintf(" OFFSET %d", offset)
	}
	return c.scanRows(ctx, sqlStr, args)
}

// FindAny returns documents where key equals any of values.
func (c *Collection) FindAny(ctx context.Context, key string, values []any, limit, offset int) ([]document.Record, error) {
	return c.query(ctx, []query.Predicate{{Field: key, Op: query.OpIn, Value: values}}, limit, offset)
}

// FindAll returns documents whose key is a JSON array containing
// every element of values. Retrieves candidates via a full scan and
// filters in-memory. A non-array value at key is treated as a silent
// non-match rather than an error.
func (c *Collection) FindAll(ctx context.Context, key string, values []any) ([]document.Record, error) {
	all, err := c.All(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	var out []document.Record
	for _, rec := range all {
		raw, ok := rec.Document[key]
		if !ok {
			continue
		}
		arr, ok := raw.([]any)
		if !ok {
			continue // non-array at key: silent non-match
		}
		if containsAll(arr, values) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func containsAll(haystack, needles []any) bool {
	for _, needle := range needles {
		found := false
		for _, h := range haystack {
			if fmt.Sprint(h) == fmt.Sprint(needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Update locates rows where key equals value, shallow-merges patch
// into each row's data (patch wins at the top level), and writes the
// merged document back. Returns whether any row matched.
func (c *Collection) Update(ctx context.Context, key string, value any, patch document.Document) (bool, error) {
	matched := false

	err := c.txnCtl.AutoExec(ctx, func(ctx context.Context) error {
		sqlStr, args, err := c.schema().Select([]query.Predicate{{Field: key, Op: query.OpEq, Value: value}}, 0, 0)
		if err != nil {
			return err
		}
		rows, err := c.db.QueryContext(ctx, sqlStr, args...)
		if err != nil {
			return c.translate(err)
		}

		type pending struct {
			id   int64
			data []byte
		}
		var updates []pending
		for rows.Next() {
			var id int64
			var raw []byte
			if err := rows.Scan(&id, &raw); err != nil {
				rows.Close()
				return fmt.Errorf("collection: update scan: %w", err)
			}
			doc, err := document.Unmarshal(raw)
			if err != nil {
				rows.Close()
				return err
			}
			merged := document.Merge(doc, patch)
			data, err := document.Marshal(merged)
			if err != nil {
				rows.Close()
				return err
			}
			updates = append(updates, pending{id: id, data: data})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, u := range updates {
			updateSQL, updateArgs, err := c.schema().Update(u.id, u.data)
			if err != nil {
				return err
			}
			if _, err := c.db.ExecContext(ctx, updateSQL, updateArgs...); err != nil {
				return c.translate(err)
			}
			matched = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if matched {
		c.invalidateStats()
	}
	return matched, nil
}

// Replace overwrites the stored document at id wholesale (no merge),
// used by the odm layer's Save on an already-persisted instance.
func (c *Collection) Replace(ctx context.Context, id document.ID, doc document.Document) error {
	data, err := document.Marshal(doc)
	if err != nil {
		return err
	}
	err = c.txnCtl.AutoExec(ctx, func(ctx context.Context) error {
		sqlStr, args, err := c.schema().Update(int64(id), data)
		if err != nil {
			return err
		}
		_, err = c.db.ExecContext(ctx, sqlStr, args...)
		return c.translate(err)
	})
	if err != nil {
		return err
	}
	c.invalidateStats()
	return nil
}

// RemoveByID deletes the row with the given id.
func (c *Collection) RemoveByID(ctx context.Context, id document.ID) error {
	err := c.txnCtl.AutoExec(ctx, func(ctx context.Context) error {
		sqlStr := fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.table)
		_, err := c.db.ExecContext(ctx, sqlStr, int64(id))
		return c.translate(err)
	})
	if err != nil {
		return err
	}
	c.invalidateStats()
	return nil
}

// Remove deletes rows where key equals value and returns the number
// removed.
func (c *Collection) Remove(ctx context.Context, key string, value any) (int64, error) {
	var affected int64
	err := c.txnCtl.AutoExec(ctx, func(ctx context.Context) error {
		sqlStr, args, err := c.schema().Delete([]query.Predicate{{Field: key, Op: query.OpEq, Value: value}})
		if err != nil {
			return err
		}
		res, err := c.db.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			return c.translate(err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		c.invalidateStats()
	}
	return affected, nil
}

// DeleteWhere deletes rows matching every predicate in preds (an AND
// conjunction) and returns the number removed. Used by the odm
// layer's DeleteMany, which enforces the non-empty-filter rule itself.
func (c *Collection) DeleteWhere(ctx context.Context, preds []query.Predicate) (int64, error) {
	var affected int64
	err := c.txnCtl.AutoExec(ctx, func(ctx context.Context) error {
		sqlStr, args, err := c.schema().Delete(preds)
		if err != nil {
			return err
		}
		res, err := c.db.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			return c.translate(err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		c.invalidateStats()
	}
	return affected, nil
}

// Purge removes every row; the table persists.
func (c *Collection) Purge(ctx context.Context) error {
	err := c.txnCtl.AutoExec(ctx, func(ctx context.Context) error {
		sqlStr, _, err := c.schema().Delete(nil)
		if err != nil {
			return err
		}
		_, err = c.db.ExecContext(ctx, sqlStr)
		return c.translate(err)
	})
	if err != nil {
		return err
	}
	c.invalidateStats()
	return nil
}

// All returns every document in ascending id order, optionally paged
// by limit/offset.
func (c *Collection) All(ctx context.Context, limit, offset int) ([]document.Record, error) {
	return c.query(ctx, nil, limit, offset)
}

// CursorPage is the result of a cursor-paginated All query.
type CursorPage struct {
	Documents  []document.Record
	NextCursor *int64
	HasMore    bool
}

// AllCursor returns up to limit documents with id > afterID, in
// ascending id order — stable, O(log n) per page.
func (c *Collection) AllCursor(ctx context.Context, afterID int64, limit int) (CursorPage, error) {
	sqlStr, args, err := c.schema().SelectCursor(afterID, limit)
	if err != nil {
		return CursorPage{}, err
	}
	recs, err := c.scanRows(ctx, sqlStr, args)
	if err != nil {
		return CursorPage{}, err
	}

	page := CursorPage{Documents: recs, HasMore: len(recs) == limit}
	if len(recs) > 0 {
		last := int64(recs[len(recs)-1].ID)
		page.NextCursor = &last
	}
	return page, nil
}

// Count returns the number of documents matching the filters.
func (c *Collection) Count(ctx context.Context, preds []query.Predicate) (int64, error) {
	sqlStr, args, err := c.schema().Count(preds)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := c.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, c.translate(err)
	}
	return n, nil
}

// Filter returns documents matching every predicate in preds (an AND
// conjunction), routed per-field to an index or a json_extract scan.
// This is the entry point the odm layer's Filter/Get/Count use.
func (c *Collection) Filter(ctx context.Context, preds []query.Predicate, limit, offset int) ([]document.Record, error) {
	return c.query(ctx, preds, limit, offset)
}

func (c *Collection) query(ctx context.Context, preds []query.Predicate, limit, offset int) ([]document.Record, error) {
	sqlStr, args, err := c.schema().Select(preds, limit, offset)
	if err != nil {
		return nil, err
	}
	return c.scanRows(ctx, sqlStr, args)
}

func (c *Collection) scanRows(ctx context.Context, sqlStr string, args []any) ([]document.Record, error) {
	start := time.Now()
	rows, err := c.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, c.translate(err)
	}
	defer rows.Close()

	var out []document.Record
	for rows.Next() {
		var id int64
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("collection: scan: %w", err)
		}
		doc, err := document.Unmarshal(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, document.Record{ID: document.ID(id), Document: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logging.QueryExecuted(ctx, c.name, len(out), time.Since(start))
	return out, nil
}

// translate maps a busy engine into ErrDatabaseLocked, logging the
// event, and passes every other driver error through unchanged except
// for added operation context.
func (c *Collection) translate(err error) error {
	if err == nil {
		return nil
	}
	if isBusy(err) {
		logging.DatabaseLocked(context.Background(), "collection:"+c.name, err)
		return &strataerrors.LockedError{Operation: "collection:" + c.name, Err: err}
	}
	return err
}

// isBusy reports whether err is the engine's busy/locked signal. This
// mirrors core/txn's driver-agnostic substring check rather than
// importing it, since that check is unexported there and collection
// only needs the boolean.
func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
