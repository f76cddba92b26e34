package auditoria

import "context"

// Store is an append-only audit ledger for one domain group. There is no
// update path; rows leave only through retention jobs outside this service.
type Store interface {
	// Append persists one row and writes the ledger-assigned ID back into
	// registro.
	Append(ctx context.Context, registro *RegistroAuditoria) error
	// ListByTabla returns rows for one watched table, newest first.
	ListByTabla(ctx context.Context, tabla string, limit, offset int) ([]RegistroAuditoria, error)
	CountByTabla(ctx context.Context, tabla string) (int64, error)
}
