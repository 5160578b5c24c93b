package odm

import (
	"context"
	"reflect"

	"go.uber.org/multierr"

	"github.com/stratadb/strata/core/collection"
	"github.com/stratadb/strata/core/document"
	strataerrors "github.com/stratadb/strata/core/errors"
	"github.com/stratadb/strata/core/query"
)

// ForeignKey configures a lazy, cached many-to-one relationship field.
// Go has no descriptor protocol, so the transparent "order.user"
// attribute access of a dynamic ODM is exposed instead as an explicit
// Load/Set pair that a declared type calls from its own accessor
// method.
type ForeignKey[T any] struct {
	fkField      string
	relatedField string
	optional     bool
}

// NewForeignKey declares a foreign key on fkField (the document field
// storing the local scalar value, e.g. "user_id"), resolved against the
// same-named field on the related model by default. Use RelatedField to
// target a different field, such as "id" for the related row's primary
// key.
func NewForeignKey[T any](fkField string) ForeignKey[T] {
	return ForeignKey[T]{fkField: fkField, relatedField: fkField}
}

// RelatedField overrides the target field queried on the related
// model; by default it is the fk field's own name.
func (fk ForeignKey[T]) RelatedField(name string) ForeignKey[T] {
	fk.relatedField = name
	return fk
}

// Optional allows a nil fk value to resolve to a nil related instance
// instead of failing with ErrMissingRelation.
func (fk ForeignKey[T]) Optional() ForeignKey[T] {
	fk.optional = true
	return fk
}

func (ForeignKey[T]) isRelationField() {}

// Load resolves the related instance for fkValue (the owning
// instance's local scalar field, which may be a pointer for an
// optional relation), consulting and populating owner's cache slot
// cacheKey so a second call issues no query.
func (fk ForeignKey[T]) Load(owner *Model, cacheKey string, fkValue any) (*T, error) {
	if cached, ok := owner.cached(cacheKey); ok {
		return cached.(*T), nil
	}

	value, isNil := derefAny(fkValue)
	if isNil {
		if fk.optional {
			owner.setCached(cacheKey, (*T)(nil))
			return nil, nil
		}
		return nil, strataerrors.ErrMissingRelation
	}

	related, err := fk.lookup(value)
	if err != nil {
		return nil, err
	}
	if related == nil {
		if fk.optional {
			owner.setCached(cacheKey, (*T)(nil))
			return nil, nil
		}
		return nil, &strataerrors.RelationError{Model: typeName[T](), RelatedField: fk.relatedField, Value: value}
	}

	owner.setCached(cacheKey, related)
	return related, nil
}

func (fk ForeignKey[T]) lookup(value any) (*T, error) {
	if fk.relatedField == "id" {
		id, ok := toInt64(value)
		if !ok {
			return nil, &strataerrors.FieldError{Field: "id", Reason: "foreign key value is not an integer id"}
		}
		return GetByID[T](id)
	}
	return Get[T](map[string]any{fk.relatedField: value})
}

// Set assigns related to owner's cache slot and returns the scalar
// value the caller must write into its own fk field (Go structs can't
// be mutated by field-name string alone without more reflection than
// this contract needs). Passing nil is only valid when fk is Optional.
func (fk ForeignKey[T]) Set(owner *Model, cacheKey string, related *T) (any, error) {
	if related == nil {
		if !fk.optional {
			return nil, strataerrors.ErrInvalidAssignment
		}
		owner.setCached(cacheKey, (*T)(nil))
		return nil, nil
	}

	var value any
	if fk.relatedField == "id" {
		value = modelOf(related).ID()
	} else {
		v, err := fieldValueByDocumentName(related, fk.relatedField)
		if err != nil {
			return nil, err
		}
		value = v
	}
	owner.setCached(cacheKey, related)
	return value, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// RelatedSet is the reverse side of a ForeignKey: every T whose fkField
// equals the owning instance's local key value.
type RelatedSet[T any] struct {
	fkField string
}

// NewRelatedSet declares a one-to-many reverse manager keyed on
// fkField, the document field name on T that stores the owner's key.
func NewRelatedSet[T any](fkField string) RelatedSet[T] {
	return RelatedSet[T]{fkField: fkField}
}

func (RelatedSet[T]) isRelationField() {}

// All returns every T whose fkField equals localValue.
func (rs RelatedSet[T]) All(localValue any, limit int) ([]*T, error) {
	return Filter[T](map[string]any{rs.fkField: localValue}, limit, 0)
}

// Filter ANDs extra lookup-key filters onto the fkField predicate.
func (rs RelatedSet[T]) Filter(localValue any, filters map[string]any, limit int) ([]*T, error) {
	merged := make(map[string]any, len(filters)+1)
	for k, v := range filters {
		merged[k] = v
	}
	merged[rs.fkField] = localValue
	return Filter[T](merged, limit, 0)
}

// Count returns the number of related T instances.
func (rs RelatedSet[T]) Count(localValue any) (int64, error) {
	return Count[T](map[string]any{rs.fkField: localValue})
}

// Add sets obj's fkField to localValue and saves it.
func (rs RelatedSet[T]) Add(localValue any, obj *T) error {
	if err := setFieldByDocumentName(obj, rs.fkField, localValue); err != nil {
		return err
	}
	return Save[T](obj)
}

// Remove nulls obj's fkField and saves it; requires the field be a
// nullable (pointer) type.
func (rs RelatedSet[T]) Remove(localValue any, obj *T) error {
	if err := setFieldByDocumentName(obj, rs.fkField, nil); err != nil {
		return err
	}
	return Save[T](obj)
}

// Clear applies Remove to every current member, aggregating any
// per-row failures rather than stopping at the first.
func (rs RelatedSet[T]) Clear(localValue any) error {
	members, err := rs.All(localValue, 0)
	if err != nil {
		return err
	}
	var errs error
	for _, m := range members {
		if err := rs.Remove(localValue, m); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// ManyToMany is a set-valued relationship materialised through a
// junction collection storing {localKey, remoteKey} documents,
// indexed on both.
type ManyToMany[T any] struct {
	through   string
	localKey  string
	remoteKey string
}

// NewManyToMany declares a many-to-many relationship backed by the
// named junction collection.
func NewManyToMany[T any](through, localKey, remoteKey string) ManyToMany[T] {
	return ManyToMany[T]{through: through, localKey: localKey, remoteKey: remoteKey}
}

func (ManyToMany[T]) isRelationField() {}

func (m ManyToMany[T]) junction() (*collection.Collection, error) {
	db, err := currentDB()
	if err != nil {
		return nil, err
	}
	return db.Collection(m.through, []string{m.localKey, m.remoteKey})
}

// All returns every related T linked to localValue, resolving each
// junction row's remoteKey value as the related document's id.
func (m ManyToMany[T]) All(localValue any) ([]*T, error) {
	jc, err := m.junction()
	if err != nil {
		return nil, err
	}
	links, err := jc.Search(context.Background(), m.localKey, localValue, 0, 0)
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(links))
	for _, link := range links {
		id, ok := toInt64(link.Document[m.remoteKey])
		if !ok {
			return nil, &strataerrors.FieldError{Field: m.remoteKey, Reason: "junction value is not an integer id"}
		}
		related, err := GetByID[T](id)
		if err != nil {
			return nil, err
		}
		if related != nil {
			out = append(out, related)
		}
	}
	return out, nil
}

// Count returns the number of junction rows for localValue.
func (m ManyToMany[T]) Count(localValue any) (int64, error) {
	jc, err := m.junction()
	if err != nil {
		return 0, err
	}
	return jc.Count(context.Background(), []query.Predicate{{Field: m.localKey, Op: query.OpEq, Value: localValue}})
}

// Add links localValue to remoteValue, idempotently.
func (m ManyToMany[T]) Add(localValue, remoteValue any) error {
	jc, err := m.junction()
	if err != nil {
		return err
	}
	existing, err := jc.SearchOptimized(context.Background(), map[string]any{m.localKey: localValue, m.remoteKey: remoteValue}, 1, 0)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	_, err = jc.Insert(context.Background(), document.Document{m.localKey: localValue, m.remoteKey: remoteValue})
	return err
}

// Remove unlinks localValue from remoteValue.
func (m ManyToMany[T]) Remove(localValue, remoteValue any) error {
	jc, err := m.junction()
	if err != nil {
		return err
	}
	_, err = jc.DeleteWhere(context.Background(), []query.Predicate{
		{Field: m.localKey, Op: query.OpEq, Value: localValue},
		{Field: m.remoteKey, Op: query.OpEq, Value: remoteValue},
	})
	return err
}

// Clear removes every junction row for localValue.
func (m ManyToMany[T]) Clear(localValue any) error {
	jc, err := m.junction()
	if err != nil {
		return err
	}
	_, err = jc.Remove(context.Background(), m.localKey, localValue)
	return err
}

func derefAny(v any) (any, bool) {
	if v == nil {
		return nil, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, true
		}
		return rv.Elem().Interface(), false
	}
	return v, false
}

func typeName[T any]() string {
	var zero T
	return reflect.TypeOf(zero).Name()
}

func fieldValueByDocumentName(instance any, docName string) (any, error) {
	v := reflect.ValueOf(instance)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if document.FieldName(field) != docName {
			continue
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				return nil, nil
			}
			return fv.Elem().Interface(), nil
		}
		return fv.Interface(), nil
	}
	return nil, &strataerrors.FieldError{Field: docName, Reason: "no such field on " + t.Name()}
}

func setFieldByDocumentName(instance any, docName string, value any) error {
	v := reflect.ValueOf(instance)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if document.FieldName(field) != docName {
			continue
		}
		fv := v.Field(i)

		if value == nil {
			if fv.Kind() != reflect.Ptr {
				return &strataerrors.FieldError{Field: docName, Reason: "foreign key field must be a pointer type to support remove/clear"}
			}
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}

		rv := reflect.ValueOf(value)
		if fv.Kind() == reflect.Ptr {
			ptr := reflect.New(fv.Type().Elem())
			ptr.Elem().Set(rv.Convert(fv.Type().Elem()))
			fv.Set(ptr)
			return nil
		}
		fv.Set(rv.Convert(fv.Type()))
		return nil
	}
	return &strataerrors.FieldError{Field: docName, Reason: "no such field on " + t.Name()}
}
