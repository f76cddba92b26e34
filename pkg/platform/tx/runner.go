package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// Runner executes a function inside a transaction boundary. The SQL
// implementation opens a real transaction and threads it through context so
// every store touched by fn, including the audit ledger, joins it. The noop
// implementation backs in-memory stores, whose mutations are atomic already.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner runs functions inside database/sql transactions at the
// database's default isolation level (read committed on PostgreSQL).
type SQLRunner struct {
	db *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

// RunInTx is reentrant: a call made with a transaction already in context
// joins it instead of opening a second, independently committing one, so a
// multi-step operation wrapped in one outer RunInTx stays atomic.
//
// Callbacks registered through OnCommit inside fn run only after the
// outermost transaction commits; a rollback discards them.
func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	ctx, hooks := collectHooks(WithTx(ctx, dbTx))
	if err := fn(ctx); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	hooks.run()
	return nil
}

// NoopRunner satisfies Runner without a database. It still honors OnCommit
// semantics: hooks wait for the outermost RunInTx to succeed.
type NoopRunner struct{}

func (NoopRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := hooksFrom(ctx); ok {
		return fn(ctx)
	}

	ctx, hooks := collectHooks(ctx)
	if err := fn(ctx); err != nil {
		return err
	}
	hooks.run()
	return nil
}
