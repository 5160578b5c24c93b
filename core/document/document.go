// Package document defines the document value type strata stores: a
// finite JSON-compatible mapping, its identifier, and the validation
// rules collection and field names must satisfy.
package document

import (
	"encoding/json"
	"regexp"

	strataerrors "github.com/stratadb/strata/core/errors"
)

// Document is a JSON-compatible mapping. Keys are field names; values
// are null, bool, int64/float64, string, []any, or map[string]any.
// The persisted identifier is carried out-of-band in ID, never as a
// map key.
type Document map[string]any

// ID is the 64-bit, monotonically assigned primary identifier a
// collection attaches to a document on insert and surfaces on
// retrieval. It is never part of the document payload.
type ID int64

// Record pairs a document with the identifier its collection assigned.
type Record struct {
	ID       ID
	Document Document
}

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidFieldName reports whether name is a non-empty string of
// [A-Za-z0-9_], the only field names a collection can index or a
// lookup expression can address.
func ValidFieldName(name string) bool {
	return name != "" && identPattern.MatchString(name)
}

// ValidCollectionName reports whether name is a non-empty string of
// [A-Za-z0-9_].
func ValidCollectionName(name string) bool {
	return name != "" && identPattern.MatchString(name)
}

// Marshal serializes a document to canonical JSON for storage in the
// table's data column. Fails with ErrInvalidDocument if doc contains a
// value json.Marshal cannot encode.
func Marshal(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, &strataerrors.DocumentError{Reason: err.Error(), Err: err}
	}
	return data, nil
}

// Unmarshal parses a stored JSON blob back into a Document.
func Unmarshal(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &strataerrors.DocumentError{Reason: err.Error(), Err: err}
	}
	return doc, nil
}

// Validate checks that doc is a well-formed document: every key must
// be a valid field name, per spec §3's restriction to simple top-level
// keys for indexing purposes. Nested values are not restricted beyond
// being JSON-compatible, which Marshal already enforces.
func Validate(doc Document) error {
	for key := range doc {
		if !ValidFieldName(key) {
			return &strataerrors.FieldError{Field: key, Reason: "field names must match [A-Za-z0-9_]+"}
		}
	}
	return nil
}

// Clone returns a deep-enough copy of doc suitable for merge patches:
// top-level keys are copied into a new map, but nested values are
// shared by reference since update's merge semantics never mutate
// nested structures in place (see Merge).
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge applies patch onto base using a shallow, top-level merge:
// every key in patch overwrites the corresponding key in base (or is
// added if absent). Nested mappings in patch values are not
// recursively merged — data below the top level stays an opaque blob.
func Merge(base, patch Document) Document {
	out := base.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}
