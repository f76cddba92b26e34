package notificaciones

import "context"

// Store persists notifications. Save assigns the ID; listing is newest
// first so the client's bell menu reads naturally.
type Store interface {
	Save(ctx context.Context, n *Notificacion) error
	GetByID(ctx context.Context, id int64) (*Notificacion, error)
	ListByDestinatario(ctx context.Context, destinatarioID string, limit, offset int) ([]*Notificacion, error)
	CountNoLeidas(ctx context.Context, destinatarioID string) (int, error)
	MarkLeida(ctx context.Context, id int64, destinatarioID string) error
}
