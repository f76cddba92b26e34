package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context so watched stores and the change
// capture engine share one transaction boundary: an audit row commits and
// rolls back together with the mutation that produced it.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

type hooksCtxKey struct{}

var hooksKey = hooksCtxKey{}

// commitHooks accumulates callbacks that must not observe a transaction
// before it commits. It is touched only from the transaction's own
// goroutine.
type commitHooks struct {
	fns []func()
}

func (h *commitHooks) run() {
	for _, fn := range h.fns {
		fn()
	}
}

// collectHooks installs a fresh hook collector for one Runner-managed
// transaction.
func collectHooks(ctx context.Context) (context.Context, *commitHooks) {
	h := &commitHooks{}
	return context.WithValue(ctx, hooksKey, h), h
}

func hooksFrom(ctx context.Context) (*commitHooks, bool) {
	h, ok := ctx.Value(hooksKey).(*commitHooks)
	return h, ok
}

// OnCommit defers fn until the enclosing Runner transaction commits; a
// rollback discards it. Outside any Runner transaction fn runs immediately,
// since the caller's write is already durable.
func OnCommit(ctx context.Context, fn func()) {
	if h, ok := hooksFrom(ctx); ok {
		h.fns = append(h.fns, fn)
		return
	}
	fn()
}
