package bitacora

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mssola/useragent"

	dErrors "gesservorconv/pkg/domain-errors"
	"gesservorconv/pkg/platform/sentinel"
)

// Service records client access entries. The browser description is
// derived server-side from the User-Agent header; a duplicate natural key
// means the client retried and succeeds silently.
type Service struct {
	store  Store
	logger *slog.Logger
	clock  func() time.Time
}

type Option func(*Service)

// WithClock sets the fallback timestamp source for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, logger: logger, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registrar stores one access entry. registradoEn of zero means "now";
// usuarioID empty means unauthenticated.
func (s *Service) Registrar(ctx context.Context, clienteID string, registradoEn time.Time, userAgent, usuarioID, mensaje string) (*Registro, error) {
	if clienteID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "cliente id is required")
	}
	if registradoEn.IsZero() {
		registradoEn = s.clock()
	}

	r := &Registro{
		ClienteID:    clienteID,
		RegistradoEn: registradoEn,
		Navegador:    DescribirNavegador(userAgent),
		Mensaje:      mensaje,
	}
	if usuarioID != "" {
		r.UsuarioID = &usuarioID
	}

	if err := s.store.Save(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Same client, same instant: a retry, not a new access.
			s.logger.DebugContext(ctx, "duplicate bitacora entry ignored",
				"cliente_id", clienteID,
			)
			return r, nil
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "save bitacora entry", err)
	}
	return r, nil
}

// Listar returns a client's entries, newest first.
func (s *Service) Listar(ctx context.Context, clienteID string, limit, offset int) ([]*Registro, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.ListByCliente(ctx, clienteID, limit, offset)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list bitacora", err)
	}
	return items, nil
}

// DescribirNavegador reduces a raw User-Agent to the short label stored
// and shown in listings.
func DescribirNavegador(rawUA string) string {
	if rawUA == "" {
		return "desconocido"
	}
	ua := useragent.New(rawUA)
	nombre, version := ua.Browser()
	if nombre == "" {
		return "desconocido"
	}
	if ua.OS() != "" {
		return fmt.Sprintf("%s %s (%s)", nombre, version, ua.OS())
	}
	return fmt.Sprintf("%s %s", nombre, version)
}
