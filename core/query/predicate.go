// Package query translates field/operator/value predicates into
// parameterised SQL statements, routing each condition to a collection's
// generated column when the field is indexed and to a json_extract
// expression otherwise.
package query

import (
	"fmt"

	strataerrors "github.com/stratadb/strata/core/errors"
)

// Op is a predicate operator, the "lookup operator" suffix on a
// Django-style filter key.
type Op string

const (
	// OpEq is equality, the default when no __op suffix is present.
	OpEq Op = "eq"
	OpGt Op = "gt"
	OpGte Op = "gte"
	OpLt Op = "lt"
	OpLte Op = "lte"
	OpNe Op = "ne"
	OpIn Op = "in"
	OpLike Op = "like"
	OpIsNull Op = "isnull"
)

// indexableOps is the set of operators that can route to a generated
// column when the field is indexed; "like" and pattern search never can.
var indexableOps = map[Op]bool{
	OpEq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpNe: true, OpIn: true, OpIsNull: true,
}

// CanIndex reports whether op is eligible for generated-column routing.
func CanIndex(op Op) bool {
	return indexableOps[op]
}

// Predicate is a single (field, operator, value) condition.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// ParseLookupKey splits a filter key of the form "<field>__<op>" into
// its field and operator. A key with no "__" suffix is equality.
// Unrecognised operators fail with ErrUnknownLookup.
func ParseLookupKey(key string) (field string, op Op, err error) {
	field, opStr, ok := splitLookup(key)
	if !ok {
		return key, OpEq, nil
	}

	switch Op(opStr) {
	case OpGt, OpGte, OpLt, OpLte, OpNe, OpIn, OpLike, OpIsNull:
		return field, Op(opStr), nil
	default:
		return "", "", &strataerrors.LookupError{Key: key, Op: opStr}
	}
}

// splitLookup finds the last "__" separator in key, since field names
// themselves may legally contain underscores (e.g. "user_id__gte").
// It splits on any "__" found, known operator or not; ParseLookupKey is
// responsible for rejecting an unrecognised suffix, so a typo like
// "age__bogus" fails loudly instead of silently falling back to an
// equality match on the literal key.
func splitLookup(key string) (field, op string, ok bool) {
	for i := len(key) - 2; i >= 0; i-- {
		if key[i] == '_' && key[i+1] == '_' && i+2 < len(key) {
			return key[:i], key[i+2:], true
		}
	}
	return key, "", false
}

// FiltersToPredicates converts a Django-style filter map (field or
// field__op -> value) into an ordered predicate list. Map iteration
// order is not guaranteed by Go, but conjunctions are commutative so
// this does not affect query semantics; callers needing stable SQL
// text for caching should sort the input keys themselves.
func FiltersToPredicates(filters map[string]any) ([]Predicate, error) {
	preds := make([]Predicate, 0, len(filters))
	for key, value := range filters {
		field, op, err := ParseLookupKey(key)
		if err != nil {
			return nil, err
		}
		preds = append(preds, Predicate{Field: field, Op: op, Value: value})
	}
	return preds, nil
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s__%s=%v", p.Field, p.Op, p.Value)
}
