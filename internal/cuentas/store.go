package cuentas

import (
	"context"

	"gesservorconv/pkg/domain"
)

// Store persists the three account entities. Get reads are also the gate's
// fresh re-fetch, so implementations must hit current storage state, never
// a cache.
type Store interface {
	SaveComitente(ctx context.Context, c *Comitente) error
	UpdateComitente(ctx context.Context, c *Comitente) error
	GetComitente(ctx context.Context, id domain.ComitenteID) (*Comitente, error)

	SaveResponsable(ctx context.Context, r *ResponsableTecnico) error
	UpdateResponsable(ctx context.Context, r *ResponsableTecnico) error
	GetResponsable(ctx context.Context, id domain.ResponsableID) (*ResponsableTecnico, error)

	SaveSecretario(ctx context.Context, s *Secretario) error
	UpdateSecretario(ctx context.Context, s *Secretario) error
	GetSecretario(ctx context.Context, id domain.SecretarioID) (*Secretario, error)
}
