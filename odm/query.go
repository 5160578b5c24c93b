package odm

import (
	"context"
	"iter"

	"github.com/stratadb/strata/core/collection"
	"github.com/stratadb/strata/core/document"
	strataerrors "github.com/stratadb/strata/core/errors"
	"github.com/stratadb/strata/core/query"
)

// paginationChunkSize is the page size FilterSeq and AllSeq fetch
// internally per round trip.
const paginationChunkSize = 100

// collectionFor resolves the storage collection backing T, opening it
// against the bound database on first use.
func collectionFor[T any]() (*collection.Collection, Meta, error) {
	db, err := currentDB()
	if err != nil {
		return nil, Meta{}, err
	}
	var zero T
	meta := metaOf(&zero)
	coll, err := db.Collection(meta.CollectionName, meta.IndexedFields)
	if err != nil {
		return nil, Meta{}, err
	}
	return coll, meta, nil
}

// Get returns the single instance matching filters, or nil if none
// match. It is the single-row variant of Filter with limit=1.
func Get[T any](filters map[string]any) (*T, error) {
	results, err := Filter[T](filters, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// GetByID returns the instance with the given id, or nil if absent.
func GetByID[T any](id int64) (*T, error) {
	coll, _, err := collectionFor[T]()
	if err != nil {
		return nil, err
	}
	rec, ok, err := coll.GetByID(context.Background(), document.ID(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return fromDocument[T](rec.Document, int64(rec.ID))
}

// Filter applies Django-style lookup-key filters and returns every
// matching instance in ascending id order. limit <= 0 means no cap:
// without a limit argument, both Filter and All return every matching
// row, fetched eagerly in one round trip. Use FilterSeq for the
// paginated form, which fetches in chunks of 100 as the caller
// consumes them.
func Filter[T any](filters map[string]any, limit, offset int) ([]*T, error) {
	coll, _, err := collectionFor[T]()
	if err != nil {
		return nil, err
	}
	preds, err := query.FiltersToPredicates(filters)
	if err != nil {
		return nil, err
	}
	recs, err := coll.Filter(context.Background(), preds, limit, offset)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](recs)
}

// All returns every instance of T in ascending id order.
func All[T any](limit, offset int) ([]*T, error) {
	return Filter[T](nil, limit, offset)
}

// FilterSeq is the paginated counterpart to Filter: rather than loading
// every matching row up front, it returns a lazy sequence that fetches
// rows in pages of paginationChunkSize as the caller ranges over it.
// Range stops early, without fetching further pages, as soon as the
// caller's yield returns false.
func FilterSeq[T any](filters map[string]any) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		coll, _, err := collectionFor[T]()
		if err != nil {
			yield(nil, err)
			return
		}
		preds, err := query.FiltersToPredicates(filters)
		if err != nil {
			yield(nil, err)
			return
		}

		offset := 0
		for {
			recs, err := coll.Filter(context.Background(), preds, paginationChunkSize, offset)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(recs) == 0 {
				return
			}
			for _, rec := range recs {
				inst, err := fromDocument[T](rec.Document, int64(rec.ID))
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(inst, nil) {
					return
				}
			}
			if len(recs) < paginationChunkSize {
				return
			}
			offset += paginationChunkSize
		}
	}
}

// AllSeq is the paginated counterpart to All, fetching every instance
// of T in pages of paginationChunkSize.
func AllSeq[T any]() iter.Seq2[*T, error] {
	return FilterSeq[T](nil)
}

func decodeAll[T any](recs []document.Record) ([]*T, error) {
	out := make([]*T, 0, len(recs))
	for _, rec := range recs {
		inst, err := fromDocument[T](rec.Document, int64(rec.ID))
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// Count returns the number of instances matching filters.
func Count[T any](filters map[string]any) (int64, error) {
	coll, _, err := collectionFor[T]()
	if err != nil {
		return 0, err
	}
	preds, err := query.FiltersToPredicates(filters)
	if err != nil {
		return 0, err
	}
	return coll.Count(context.Background(), preds)
}

// InsertMany batch-inserts instances and assigns each its id in
// input order.
func InsertMany[T any](instances []*T) error {
	coll, _, err := collectionFor[T]()
	if err != nil {
		return err
	}
	docs := make([]document.Document, len(instances))
	for i, inst := range instances {
		doc, err := toDocument(inst)
		if err != nil {
			return err
		}
		docs[i] = doc
	}
	ids, err := coll.InsertMany(context.Background(), docs)
	if err != nil {
		return err
	}
	for i, inst := range instances {
		modelOf(inst).setID(int64(ids[i]))
	}
	return nil
}

// DeleteMany removes every instance matching filters. At least one
// filter is required; empty filters fail with ErrMissingPredicate to
// prevent accidental mass deletion.
func DeleteMany[T any](filters map[string]any) (int64, error) {
	if len(filters) == 0 {
		return 0, strataerrors.ErrMissingPredicate
	}
	coll, _, err := collectionFor[T]()
	if err != nil {
		return 0, err
	}
	preds, err := query.FiltersToPredicates(filters)
	if err != nil {
		return 0, err
	}
	return coll.DeleteWhere(context.Background(), preds)
}

// Save inserts instance if it has no id, or replaces the existing
// row's data if it does.
func Save[T any](instance *T) error {
	coll, _, err := collectionFor[T]()
	if err != nil {
		return err
	}
	doc, err := toDocument(instance)
	if err != nil {
		return err
	}
	m := modelOf(instance)

	if !m.HasID() {
		id, err := coll.Insert(context.Background(), doc)
		if err != nil {
			return err
		}
		m.setID(int64(id))
		return nil
	}

	return coll.Replace(context.Background(), document.ID(m.ID()), doc)
}

// Delete removes instance's row. Fails with ErrUnsavedInstance if it
// has no id.
func Delete[T any](instance *T) error {
	m := modelOf(instance)
	if !m.HasID() {
		return strataerrors.ErrUnsavedInstance
	}
	coll, _, err := collectionFor[T]()
	if err != nil {
		return err
	}
	if err := coll.RemoveByID(context.Background(), document.ID(m.ID())); err != nil {
		return err
	}
	m.clearID()
	return nil
}
