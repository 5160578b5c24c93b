// Package errors provides strata's closed error taxonomy: a small set
// of sentinel errors plus typed structs carrying context (sentinel +
// Unwrap + Wrap/Wrapf/Is/As helpers). Not every failure is one of
// these: strata also returns plain wrapped errors (fmt.Errorf with
// context), and driver errors other than busy/locked pass through
// untranslated.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per closed taxonomy entry.
var (
	// ErrInvalidDocument: a non-mapping or non-serialisable value was
	// given to insert/update.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrInvalidField: an empty/invalid key name, or a null value where
	// disallowed.
	ErrInvalidField = errors.New("invalid field")
	// ErrIndexSchemaMismatch: a collection was reopened with a different
	// indexed field set than its existing table.
	ErrIndexSchemaMismatch = errors.New("index schema mismatch")
	// ErrInvalidTransactionState: begin while in a transaction, or
	// commit/rollback/savepoint while idle.
	ErrInvalidTransactionState = errors.New("invalid transaction state")
	// ErrDatabaseLocked: the engine reported busy after the configured
	// timeout elapsed.
	ErrDatabaseLocked = errors.New("database locked")
	// ErrDatabaseNotBound: an ODM operation ran with no database bound.
	ErrDatabaseNotBound = errors.New("database not bound")
	// ErrUnsavedInstance: delete was called on an ODM instance with no
	// assigned id.
	ErrUnsavedInstance = errors.New("unsaved instance")
	// ErrMissingRelation: a required ForeignKey's target was absent.
	ErrMissingRelation = errors.New("missing relation")
	// ErrInvalidAssignment: nil was assigned to a non-optional
	// relationship.
	ErrInvalidAssignment = errors.New("invalid assignment")
	// ErrUnknownLookup: a filter key used an unrecognised "__op" suffix.
	ErrUnknownLookup = errors.New("unknown lookup")
	// ErrMissingPredicate: DeleteMany ran with no filters.
	ErrMissingPredicate = errors.New("missing predicate")
	// ErrSerializationError: structural coercion between a document and
	// a typed instance failed.
	ErrSerializationError = errors.New("serialization error")
	// ErrUnsupportedOperation: direct assignment to a RelatedSet or
	// ManyToMany descriptor.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// DocumentError reports ErrInvalidDocument with the offending value's
// context.
type DocumentError struct {
	Collection string
	Reason     string
	Err        error
}

func (e *DocumentError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("invalid document for collection %q: %s", e.Collection, e.Reason)
	}
	return fmt.Sprintf("invalid document: %s", e.Reason)
}

func (e *DocumentError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidDocument, e.Err}
	}
	return []error{ErrInvalidDocument}
}

// FieldError reports ErrInvalidField for a specific field name.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidField, e.Err}
	}
	return []error{ErrInvalidField}
}

// SchemaMismatchError reports ErrIndexSchemaMismatch with the wanted and
// actual indexed-field sets.
type SchemaMismatchError struct {
	Collection string
	Wanted     []string
	Actual     []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("collection %q: indexed fields %v do not match existing table's %v", e.Collection, e.Wanted, e.Actual)
}

func (e *SchemaMismatchError) Unwrap() error {
	return ErrIndexSchemaMismatch
}

// TransactionStateError reports ErrInvalidTransactionState with the
// attempted operation and the state it was attempted in.
type TransactionStateError struct {
	Operation string
	State     string
}

func (e *TransactionStateError) Error() string {
	return fmt.Sprintf("cannot %s: transaction is %s", e.Operation, e.State)
}

func (e *TransactionStateError) Unwrap() error {
	return ErrInvalidTransactionState
}

// LockedError reports ErrDatabaseLocked with the operation that timed
// out waiting on the engine's busy signal.
type LockedError struct {
	Operation string
	Err       error
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("database locked during %s", e.Operation)
}

func (e *LockedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDatabaseLocked, e.Err}
	}
	return []error{ErrDatabaseLocked}
}

// RelationError reports ErrMissingRelation for a ForeignKey lookup.
type RelationError struct {
	Model        string
	RelatedField string
	Value        any
}

func (e *RelationError) Error() string {
	return fmt.Sprintf("%s with %s=%v not found", e.Model, e.RelatedField, e.Value)
}

func (e *RelationError) Unwrap() error {
	return ErrMissingRelation
}

// LookupError reports ErrUnknownLookup for an unrecognised filter
// suffix.
type LookupError struct {
	Key string
	Op  string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("unknown lookup operator %q in filter key %q", e.Op, e.Key)
}

func (e *LookupError) Unwrap() error {
	return ErrUnknownLookup
}

// SerializationFailure reports ErrSerializationError for a single field
// coercion failure.
type SerializationFailure struct {
	Model string
	Field string
	Err   error
}

func (e *SerializationFailure) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Model, e.Field, e.Err)
}

func (e *SerializationFailure) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSerializationError, e.Err}
	}
	return []error{ErrSerializationError}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
