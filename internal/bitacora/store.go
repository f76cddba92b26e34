package bitacora

import "context"

// Store persists access log entries. Save fails with the conflict sentinel
// when the natural key (ClienteID, RegistradoEn) already exists; the
// service turns that into idempotent success.
type Store interface {
	Save(ctx context.Context, r *Registro) error
	ListByCliente(ctx context.Context, clienteID string, limit, offset int) ([]*Registro, error)
}
