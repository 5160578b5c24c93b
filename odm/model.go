// Package odm is strata's declarative object-document mapping layer:
// a Model base type, reflection-driven serialization of typed fields,
// collection-name derivation by pluralization, and lazy, cache-backed
// relationship descriptors (ForeignKey, RelatedSet, ManyToMany) over
// the core/collection storage layer.
package odm

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/stratadb/strata/core/database"
	strataerrors "github.com/stratadb/strata/core/errors"
)

// Model is the base type every declared document type embeds. It
// carries the instance's assigned id and a per-instance relationship
// cache, since Go has no descriptor protocol to hang per-attribute
// cache slots on automatically.
type Model struct {
	id       int64
	hasID    bool
	mu       sync.Mutex
	relCache map[string]any
}

// HasID reports whether the instance has been assigned an id by
// insert (or loaded from storage).
func (m *Model) HasID() bool { return m.hasID }

// ID returns the instance's assigned id, or zero if unset.
func (m *Model) ID() int64 { return m.id }

func (m *Model) setID(id int64) { m.id = id; m.hasID = true }
func (m *Model) clearID()       { m.id = 0; m.hasID = false }

func (m *Model) cached(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.relCache == nil {
		return nil, false
	}
	v, ok := m.relCache[key]
	return v, ok
}

func (m *Model) setCached(key string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.relCache == nil {
		m.relCache = make(map[string]any)
	}
	m.relCache[key] = v
}

// Meta is a document type's class-side configuration: an explicit
// collection name and its indexed fields. A type that does not
// implement ModelMeta gets both derived by reflection.
type Meta struct {
	CollectionName string
	IndexedFields  []string
}

// ModelMeta lets a document type override derived collection naming
// and indexing. Implement it on the pointer receiver alongside Model.
type ModelMeta interface {
	ModelMeta() Meta
}

// relationField marks a struct field as a relationship descriptor
// (ForeignKey, RelatedSet, ManyToMany) so serialization skips it;
// relationship descriptors are never persisted fields.
type relationField interface {
	isRelationField()
}

var relationFieldType = reflect.TypeOf((*relationField)(nil)).Elem()
var modelType = reflect.TypeOf(Model{})

// boundDB is the process-wide database binding every class-level ODM
// operation reads from.
var boundDB atomic.Pointer[database.Database]

// Bind associates db with every declared model for the life of the
// process (or until Unbind/a later Bind call).
func Bind(db *database.Database) {
	boundDB.Store(db)
}

// Unbind clears the process-wide database binding.
func Unbind() {
	boundDB.Store(nil)
}

// currentDB returns the bound database, failing with ErrDatabaseNotBound
// if none has been set.
func currentDB() (*database.Database, error) {
	db := boundDB.Load()
	if db == nil {
		return nil, strataerrors.ErrDatabaseNotBound
	}
	return db, nil
}
