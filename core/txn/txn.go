// Package txn implements the transaction/savepoint state machine a
// database handle uses to serialize writes: idle/in_transaction state,
// a monotonic savepoint counter, and transparent nested-transaction
// degradation to savepoints.
package txn

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"

	strataerrors "github.com/stratadb/strata/core/errors"
	"github.com/stratadb/strata/internal/logging"
)

// State is the controller's current transaction state.
type State string

const (
	// Idle: no transaction is open; every write auto-commits.
	Idle State = "idle"
	// InTransaction: a transaction is open; writes defer commit.
	InTransaction State = "in_transaction"
)

// Controller multiplexes begin/commit/rollback/savepoint operations
// across every collection sharing one database handle. Exactly one
// writer may hold it in InTransaction at a time; callers serialize
// access externally (core/database holds the single *sql.DB
// connection this controller drives).
type Controller struct {
	mu       sync.Mutex
	db       *sql.DB
	state    State
	spCount  int
	spStack  []string
	spID     string // uuid minted at the top-level BEGIN, threaded through logging
}

// New creates a controller bound to db, starting Idle.
func New(db *sql.DB) *Controller {
	return &Controller{db: db, state: Idle}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InTransaction reports whether the controller currently holds an open
// top-level transaction.
func (c *Controller) InTransaction() bool {
	return c.State() == InTransaction
}

// Begin opens a top-level transaction. Fails with
// ErrInvalidTransactionState if one is already open.
func (c *Controller) Begin(ctx context.Context) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == InTransaction {
		return ctx, &strataerrors.TransactionStateError{Operation: "begin", State: string(InTransaction)}
	}

	if _, err := c.db.ExecContext(ctx, "BEGIN"); err != nil {
		return ctx, translateBusy(err, "begin")
	}

	c.state = InTransaction
	c.spCount = 0
	c.spStack = nil
	c.spID = uuid.NewString()

	ctx = logging.WithTransactionID(ctx, c.spID)
	logging.TransactionEvent(ctx, "begin", string(c.state))
	return ctx, nil
}

// Commit closes the top-level transaction. Fails with
// ErrInvalidTransactionState if idle.
func (c *Controller) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != InTransaction {
		return &strataerrors.TransactionStateError{Operation: "commit", State: string(Idle)}
	}

	if _, err := c.db.ExecContext(ctx, "COMMIT"); err != nil {
		return translateBusy(err, "commit")
	}

	logging.TransactionEvent(ctx, "commit", string(InTransaction))
	c.state = Idle
	c.spStack = nil
	c.spID = ""
	return nil
}

// Rollback aborts the top-level transaction. Fails with
// ErrInvalidTransactionState if idle.
func (c *Controller) Rollback(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != InTransaction {
		return &strataerrors.TransactionStateError{Operation: "rollback", State: string(Idle)}
	}

	if _, err := c.db.ExecContext(ctx, "ROLLBACK"); err != nil {
		return translateBusy(err, "rollback")
	}

	logging.TransactionEvent(ctx, "rollback", string(InTransaction))
	c.state = Idle
	c.spStack = nil
	c.spID = ""
	return nil
}

// Savepoint pushes a named savepoint on the stack. If name is empty, a
// fresh "sp_<n>" name is allocated from the monotonic counter. Requires
// InTransaction.
func (c *Controller) Savepoint(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != InTransaction {
		return "", &strataerrors.TransactionStateError{Operation: "savepoint", State: string(Idle)}
	}

	if name == "" {
		c.spCount++
		name = fmt.Sprintf("sp_%d", c.spCount)
	}

	if _, err := c.db.ExecContext(ctx, "SAVEPOINT "+quoteSavepoint(name)); err != nil {
		return "", translateBusy(err, "savepoint")
	}

	c.spStack = append(c.spStack, name)
	logging.TransactionEvent(ctx, "savepoint", string(InTransaction), "name", name)
	return name, nil
}

// RollbackTo unwinds to the named savepoint, popping it and every
// savepoint pushed above it.
func (c *Controller) RollbackTo(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != InTransaction {
		return &strataerrors.TransactionStateError{Operation: "rollback_to", State: string(Idle)}
	}

	if _, err := c.db.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+quoteSavepoint(name)); err != nil {
		return translateBusy(err, "rollback_to")
	}

	c.popTo(name)
	logging.TransactionEvent(ctx, "rollback_to", string(InTransaction), "name", name)
	return nil
}

// Release commits the named savepoint, popping it and everything above
// it from the stack.
func (c *Controller) Release(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != InTransaction {
		return &strataerrors.TransactionStateError{Operation: "release", State: string(Idle)}
	}

	if _, err := c.db.ExecContext(ctx, "RELEASE SAVEPOINT "+quoteSavepoint(name)); err != nil {
		return translateBusy(err, "release")
	}

	c.popTo(name)
	logging.TransactionEvent(ctx, "release", string(InTransaction), "name", name)
	return nil
}

// popTo removes name and everything pushed after it from the stack.
// Must be called with c.mu held.
func (c *Controller) popTo(name string) {
	for i, n := range c.spStack {
		if n == name {
			c.spStack = c.spStack[:i]
			return
		}
	}
}

// Transaction runs fn within a transaction scope with guaranteed
// release: on normal return it commits (or releases the savepoint),
// on any error or panic it rolls back (or rolls back to the
// savepoint) and re-panics/returns the error. If a transaction is
// already open, this transparently degrades to a nested savepoint,
// enabling syntactically nested transaction scopes.
func (c *Controller) Transaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if c.InTransaction() {
		return c.nestedSavepoint(ctx, fn)
	}

	ctx, err = c.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = c.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := c.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	return c.Commit(ctx)
}

func (c *Controller) nestedSavepoint(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	name, err := c.Savepoint(ctx, "")
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = c.RollbackTo(ctx, name)
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := c.RollbackTo(ctx, name); rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint also failed: %v)", err, rbErr)
		}
		return err
	}

	return c.Release(ctx, name)
}

// AutoExec runs a single write statement with auto-commit semantics:
// if the controller is Idle, it wraps the statement in its own
// top-level transaction; if InTransaction, it executes directly and
// defers commit to the caller's scope. This lets every Collection
// write method check transaction state without duplicating the branch
// at every call site.
func (c *Controller) AutoExec(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.InTransaction() {
		return fn(ctx)
	}
	return c.Transaction(ctx, fn)
}

func quoteSavepoint(name string) string {
	return `"` + name + `"`
}

// translateBusy maps the engine's busy/locked signal onto
// ErrDatabaseLocked; every other driver error passes through wrapped
// with the attempted operation for context.
func translateBusy(err error, operation string) error {
	if err == nil {
		return nil
	}
	if isBusyError(err) {
		return &strataerrors.LockedError{Operation: operation, Err: err}
	}
	return fmt.Errorf("txn: %s: %w", operation, err)
}
