package sqlite

import (
	"fmt"
	"strings"
)

// This file is the SQL dialect shim proper: the narrow set of
// engine-specific fragments (JSON extraction syntax, virtual generated
// column declarations, the REGEXP operator) that the query compiler and
// collection layer build statements out of. Nothing outside this
// package should need to know that "$.foo" is how SQLite spells a JSON
// path, or that a generated column needs the VIRTUAL keyword.

// JSONPath returns the SQLite JSON path expression for a top-level key,
// e.g. "email" -> "$.email".
func JSONPath(field string) string {
	return "$." + field
}

// JSONExtractExpr returns the SQL expression that extracts field from
// the given JSON column, e.g. json_extract(data, '$.email').
func JSONExtractExpr(column, field string) string {
	return fmt.Sprintf("json_extract(%s, '%s')", column, JSONPath(field))
}

// VirtualColumnDDL returns the column definition fragment for a
// generated virtual column mirroring a JSON path, used by CREATE TABLE.
// The column is declared VIRTUAL: computed on read, no storage cost;
// only its index materializes values.
func VirtualColumnDDL(field, sourceColumn string) string {
	return fmt.Sprintf("%s GENERATED ALWAYS AS (%s) VIRTUAL", QuoteIdent(field), JSONExtractExpr(sourceColumn, field))
}

// IndexName returns the canonical name of the B-tree index on an
// indexed field's generated column for the given table.
func IndexName(table, field string) string {
	return fmt.Sprintf("idx_%s_%s", table, field)
}

// TableName returns the canonical table name backing a collection.
func TableName(collection string) string {
	return "collection_" + collection
}

// QuoteIdent quotes a SQL identifier, doubling any embedded quote
// characters. strata only ever feeds it names already validated against
// the [A-Za-z0-9_]+ rule (see core/document.ValidFieldName /
// ValidCollectionName), but quoting defensively costs nothing.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// RegexOperatorExpr returns the boolean expression for a pattern match
// against a JSON-extracted field. SQLite's core parser recognizes
// "x REGEXP y" and rewrites it to a call to a scalar function named
// "regexp(y, x)"; that function (internal/regexfn.Match) is registered
// by driver_purego.go for modernc and by the ConnectHook in
// contrib/sqlite-external for mattn. There is no indexed form: regex
// search is always a full scan.
func RegexOperatorExpr(column string) string {
	return column + " REGEXP ?"
}
