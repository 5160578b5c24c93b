package odm

import "context"

// Transaction runs fn within a transaction on the bound database,
// committing on a nil return and rolling back otherwise. This is how
// ODM code participates in transactions alongside direct collection or
// legacy document calls on the same handle.
func Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	db, err := currentDB()
	if err != nil {
		return err
	}
	return db.Txn().Transaction(ctx, fn)
}

// Begin starts a transaction on the bound database. It fails with
// ErrInvalidTransactionState if one is already open; use Transaction
// for nesting, which degrades to a savepoint.
func Begin(ctx context.Context) (context.Context, error) {
	db, err := currentDB()
	if err != nil {
		return ctx, err
	}
	return db.Txn().Begin(ctx)
}

// Commit commits the bound database's open transaction.
func Commit(ctx context.Context) error {
	db, err := currentDB()
	if err != nil {
		return err
	}
	return db.Txn().Commit(ctx)
}

// Rollback rolls back the bound database's open transaction.
func Rollback(ctx context.Context) error {
	db, err := currentDB()
	if err != nil {
		return err
	}
	return db.Txn().Rollback(ctx)
}
