package query

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/stratadb/strata/core/sqlite"
)

// builder is the shared squirrel statement builder, configured for
// SQLite's "?" placeholder style.
var builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// Schema describes enough of a collection's shape for the compiler to
// decide generated-column vs. json_extract routing.
type Schema struct {
	Table         string
	IndexedFields map[string]bool
}

// column returns the SQL expression a predicate's field resolves to:
// the bare generated column when indexed and the operator supports
// index routing, json_extract(data, '$.field') otherwise.
func (s Schema) column(field string, op Op) string {
	if s.IndexedFields[field] && CanIndex(op) {
		return sqlite.QuoteIdent(field)
	}
	return sqlite.JSONExtractExpr("data", field)
}

// condition converts one predicate into a squirrel Sqlizer.
func (s Schema) condition(p Predicate) (squirrel.Sqlizer, error) {
	col := s.column(p.Field, p.Op)

	switch p.Op {
	case OpEq:
		return squirrel.Expr(col+" = ?", p.Value), nil
	case OpNe:
		return squirrel.Expr(col+" <> ?", p.Value), nil
	case OpGt:
		return squirrel.Expr(col+" > ?", p.Value), nil
	case OpGte:
		return squirrel.Expr(col+" >= ?", p.Value), nil
	case OpLt:
		return squirrel.Expr(col+" < ?", p.Value), nil
	case OpLte:
		return squirrel.Expr(col+" <= ?", p.Value), nil
	case OpIn:
		return squirrel.Expr(col+" IN ("+placeholders(p.Value)+")", flatten(p.Value)...), nil
	case OpLike:
		// Always json_extract: "like" never routes to an index (spec §4.4).
		col = sqlite.JSONExtractExpr("data", p.Field)
		return squirrel.Expr(col+" LIKE ?", p.Value), nil
	case OpIsNull:
		want, _ := p.Value.(bool)
		if want {
			return squirrel.Expr(col + " IS NULL"), nil
		}
		return squirrel.Expr(col + " IS NOT NULL"), nil
	default:
		return nil, fmt.Errorf("query: unsupported operator %q", p.Op)
	}
}

func flatten(v any) []any {
	switch vv := v.(type) {
	case []any:
		return vv
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(vv))
		for i, n := range vv {
			out[i] = n
		}
		return out
	default:
		return []any{v}
	}
}

func placeholders(v any) string {
	n := len(flatten(v))
	if n == 0 {
		return ""
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ", ?"
	}
	return out
}

// Select builds a "SELECT id, data FROM <table> WHERE <preds> ORDER BY id
// LIMIT n OFFSET m" statement, with n and m written into the SQL as
// literal numbers rather than bound arguments. limit <= 0 omits the
// LIMIT clause; offset <= 0 omits OFFSET.
func (s Schema) Select(preds []Predicate, limit, offset int) (string, []any, error) {
	q := builder.Select("id", "data").From(s.Table)
	for _, p := range preds {
		cond, err := s.condition(p)
		if err != nil {
			return "", nil, err
		}
		q = q.Where(cond)
	}
	q = q.OrderBy("id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q.ToSql()
}

// SelectCursor builds the "id > ?" cursor-pagination form.
func (s Schema) SelectCursor(afterID int64, limit int) (string, []any, error) {
	q := builder.Select("id", "data").From(s.Table).
		Where(squirrel.Gt{"id": afterID}).
		OrderBy("id ASC").
		Limit(uint64(limit))
	return q.ToSql()
}

// Count builds a "SELECT COUNT(*) FROM <table> WHERE <preds>" statement.
func (s Schema) Count(preds []Predicate) (string, []any, error) {
	q := builder.Select("COUNT(*)").From(s.Table)
	for _, p := range preds {
		cond, err := s.condition(p)
		if err != nil {
			return "", nil, err
		}
		q = q.Where(cond)
	}
	return q.ToSql()
}

// Delete builds a "DELETE FROM <table> WHERE <preds>" statement.
func (s Schema) Delete(preds []Predicate) (string, []any, error) {
	q := builder.Delete(s.Table)
	for _, p := range preds {
		cond, err := s.condition(p)
		if err != nil {
			return "", nil, err
		}
		q = q.Where(cond)
	}
	return q.ToSql()
}

// Insert builds an "INSERT INTO <table>(data) VALUES(?)" statement.
func (s Schema) Insert(data []byte) (string, []any, error) {
	return builder.Insert(s.Table).Columns("data").Values(string(data)).ToSql()
}

// Update builds an "UPDATE <table> SET data = ? WHERE id = ?" statement
// for writing back a merged document.
func (s Schema) Update(id int64, data []byte) (string, []any, error) {
	return builder.Update(s.Table).Set("data", string(data)).Where(squirrel.Eq{"id": id}).ToSql()
}

// PatternCondition builds the regex-search WHERE clause for
// search_pattern, always a full scan via the REGEXP operator.
func (s Schema) PatternCondition(field, pattern string) (string, []any) {
	col := sqlite.JSONExtractExpr("data", field)
	return sqlite.RegexOperatorExpr(col), []any{pattern}
}
