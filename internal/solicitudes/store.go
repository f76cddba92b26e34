package solicitudes

import (
	"context"

	"gesservorconv/pkg/domain"
)

// Store persists solicitudes and their propuestas. The at-most-one-actual
// rule is a storage constraint: SavePropuesta with Actual set while another
// actual row exists for the same solicitud fails with the conflict
// sentinel.
type Store interface {
	SaveSolicitud(ctx context.Context, s *Solicitud) error
	UpdateSolicitud(ctx context.Context, s *Solicitud) error
	GetSolicitud(ctx context.Context, id domain.SolicitudID) (*Solicitud, error)
	ListByComitente(ctx context.Context, comitenteID domain.ComitenteID, limit, offset int) ([]*Solicitud, error)

	SavePropuesta(ctx context.Context, p *Propuesta) error
	UpdatePropuesta(ctx context.Context, p *Propuesta) error
	GetPropuesta(ctx context.Context, id domain.PropuestaID) (*Propuesta, error)
	GetPropuestaActual(ctx context.Context, solicitudID domain.SolicitudID) (*Propuesta, error)
	ListPropuestas(ctx context.Context, solicitudID domain.SolicitudID) ([]*Propuesta, error)
}
