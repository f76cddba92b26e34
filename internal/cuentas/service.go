package cuentas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"gesservorconv/internal/auditoria"
	"gesservorconv/internal/enlaces"
	"gesservorconv/internal/notificaciones"
	"gesservorconv/internal/platform/metrics"
	"gesservorconv/internal/platform/middleware"
	"gesservorconv/internal/realtime"
	"gesservorconv/pkg/cuit"
	"gesservorconv/pkg/domain"
	dErrors "gesservorconv/pkg/domain-errors"
	"gesservorconv/pkg/platform/sentinel"
	txcontext "gesservorconv/pkg/platform/tx"
)

// Emisor issues a stored-plus-live notification. Satisfied by the
// notification service.
type Emisor interface {
	Emitir(ctx context.Context, destinatarioID string, tipo realtime.Evento, titulo, cuerpo, enlace string) (*notificaciones.Notificacion, error)
}

// Capturista appends an audit row for a mutation on a watched table.
// Satisfied by the capture engine.
type Capturista interface {
	Capturar(ctx context.Context, tabla string, op auditoria.Operacion, anteriores, nuevos map[string]string) error
}

// Service stores account entities through the change-audit engine and runs
// the eligibility gate on their enablement flag.
//
// The gate observes transitions, it does not own them: on every update it
// re-fetches the stored row by primary key with a fresh read, and fires only
// when that stored flag was false and the incoming value is true. A row that
// does not yet exist is a first save, never a transition. Notification
// issuance is best effort and decoupled from the domain write.
type Service struct {
	store   Store
	captura Capturista
	emisor  Emisor
	runner  txcontext.Runner
	enlaces enlaces.Builder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(
	store Store,
	captura Capturista,
	emisor Emisor,
	runner txcontext.Runner,
	links enlaces.Builder,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		store:   store,
		captura: captura,
		emisor:  emisor,
		runner:  runner,
		enlaces: links,
		logger:  logger,
		metrics: m,
	}
}

// GuardarComitente creates or updates a comitente. An enablement
// transition (stored false, incoming true) fires the "Comitente
// habilitado" notification after the save commits.
func (s *Service) GuardarComitente(ctx context.Context, c *Comitente) error {
	if c.RazonSocial == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "razon social is required")
	}
	if !cuit.EsValidoCUIT(c.CUIT) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid CUIT")
	}
	if c.ID.IsNil() {
		c.ID = domain.ComitenteID(uuid.New())
	}

	previo, err := s.store.GetComitente(ctx, c.ID)
	esAlta := errors.Is(err, sentinel.ErrNotFound)
	if err != nil && !esAlta {
		return dErrors.Wrap(dErrors.CodeInternal, "load stored comitente", err)
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if esAlta {
			if err := s.store.SaveComitente(ctx, c); err != nil {
				return err
			}
			return s.captura.Capturar(ctx, TablaComitentes, auditoria.OperacionInsert, nil, c.Snapshot())
		}
		anteriores := previo.Snapshot()
		if err := s.store.UpdateComitente(ctx, c); err != nil {
			return err
		}
		return s.captura.Capturar(ctx, TablaComitentes, auditoria.OperacionUpdate, anteriores, c.Snapshot())
	})
	if err != nil {
		return traducirStore("save comitente", err)
	}

	if !esAlta && !previo.Habilitado && c.Habilitado {
		s.notificar(ctx, c.UsuarioID, realtime.EventoComitenteHabilitado,
			"Comitente habilitado",
			"Su cuenta de comitente fue habilitada para operar.",
			s.enlaces.PerfilComitente())
	}
	return nil
}

// GuardarResponsable creates or updates a responsable técnico, with the
// same gate over its enablement flag.
func (s *Service) GuardarResponsable(ctx context.Context, r *ResponsableTecnico) error {
	if r.Nombre == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "nombre is required")
	}
	if !cuit.EsValidoCUIL(r.CUIL) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid CUIL")
	}
	if r.ID.IsNil() {
		r.ID = domain.ResponsableID(uuid.New())
	}

	previo, err := s.store.GetResponsable(ctx, r.ID)
	esAlta := errors.Is(err, sentinel.ErrNotFound)
	if err != nil && !esAlta {
		return dErrors.Wrap(dErrors.CodeInternal, "load stored responsable", err)
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if esAlta {
			if err := s.store.SaveResponsable(ctx, r); err != nil {
				return err
			}
			return s.captura.Capturar(ctx, TablaResponsables, auditoria.OperacionInsert, nil, r.Snapshot())
		}
		anteriores := previo.Snapshot()
		if err := s.store.UpdateResponsable(ctx, r); err != nil {
			return err
		}
		return s.captura.Capturar(ctx, TablaResponsables, auditoria.OperacionUpdate, anteriores, r.Snapshot())
	})
	if err != nil {
		return traducirStore("save responsable", err)
	}

	if !esAlta && !previo.Habilitado && r.Habilitado {
		s.notificar(ctx, r.UsuarioID, realtime.EventoResponsableHabilitado,
			"Responsable Técnico habilitado",
			"Su cuenta de responsable técnico fue habilitada para operar.",
			s.enlaces.PerfilResponsable())
	}
	return nil
}

// GuardarSecretario creates or updates a secretario. The flag gates
// workflow operations only; no notification exists for it.
func (s *Service) GuardarSecretario(ctx context.Context, sec *Secretario) error {
	if sec.Nombre == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "nombre is required")
	}
	if sec.ID.IsNil() {
		sec.ID = domain.SecretarioID(uuid.New())
	}

	previo, err := s.store.GetSecretario(ctx, sec.ID)
	esAlta := errors.Is(err, sentinel.ErrNotFound)
	if err != nil && !esAlta {
		return dErrors.Wrap(dErrors.CodeInternal, "load stored secretario", err)
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if esAlta {
			if err := s.store.SaveSecretario(ctx, sec); err != nil {
				return err
			}
			return s.captura.Capturar(ctx, TablaSecretarios, auditoria.OperacionInsert, nil, sec.Snapshot())
		}
		anteriores := previo.Snapshot()
		if err := s.store.UpdateSecretario(ctx, sec); err != nil {
			return err
		}
		return s.captura.Capturar(ctx, TablaSecretarios, auditoria.OperacionUpdate, anteriores, sec.Snapshot())
	})
	if err != nil {
		return traducirStore("save secretario", err)
	}
	return nil
}

// AsociarComitente binds a comitente to a portal user and tells the user.
func (s *Service) AsociarComitente(ctx context.Context, comitenteID domain.ComitenteID, usuarioID domain.UsuarioID) error {
	c, err := s.asociarComitente(ctx, comitenteID, usuarioID)
	if err != nil {
		return err
	}
	s.notificar(ctx, usuarioID, realtime.EventoComitenteAsociado,
		"Comitente asociado",
		fmt.Sprintf("Se asoció el comitente %s a su cuenta.", c.RazonSocial),
		s.enlaces.PerfilComitente())
	return nil
}

// AsociarComitentes binds several comitentes to one user and issues a
// single summary notification. The batch is all or nothing: one
// transaction covers every association and its audit row, so a failure
// midway leaves no comitente bound.
func (s *Service) AsociarComitentes(ctx context.Context, comitenteIDs []domain.ComitenteID, usuarioID domain.UsuarioID) error {
	if len(comitenteIDs) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one comitente is required")
	}
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		for _, id := range comitenteIDs {
			if _, err := s.asociarComitente(ctx, id, usuarioID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notificar(ctx, usuarioID, realtime.EventoComitentesAsociados,
		"Comitentes asociados",
		fmt.Sprintf("Se asociaron %d comitentes a su cuenta.", len(comitenteIDs)),
		s.enlaces.PerfilComitente())
	return nil
}

// AsociarResponsable binds a responsable técnico to a portal user.
func (s *Service) AsociarResponsable(ctx context.Context, responsableID domain.ResponsableID, usuarioID domain.UsuarioID) error {
	r, err := s.store.GetResponsable(ctx, responsableID)
	if err != nil {
		return traducirStore("load responsable", err)
	}

	anteriores := r.Snapshot()
	r.UsuarioID = usuarioID
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateResponsable(ctx, r); err != nil {
			return err
		}
		return s.captura.Capturar(ctx, TablaResponsables, auditoria.OperacionUpdate, anteriores, r.Snapshot())
	})
	if err != nil {
		return traducirStore("associate responsable", err)
	}

	s.notificar(ctx, usuarioID, realtime.EventoResponsableTecnicoAsociado,
		"Responsable Técnico asociado",
		fmt.Sprintf("Se asoció el responsable técnico %s a su cuenta.", r.Nombre),
		s.enlaces.PerfilResponsable())
	return nil
}

// ObtenerComitente loads one comitente.
func (s *Service) ObtenerComitente(ctx context.Context, id domain.ComitenteID) (*Comitente, error) {
	c, err := s.store.GetComitente(ctx, id)
	if err != nil {
		return nil, traducirStore("load comitente", err)
	}
	return c, nil
}

// ObtenerResponsable loads one responsable técnico.
func (s *Service) ObtenerResponsable(ctx context.Context, id domain.ResponsableID) (*ResponsableTecnico, error) {
	r, err := s.store.GetResponsable(ctx, id)
	if err != nil {
		return nil, traducirStore("load responsable", err)
	}
	return r, nil
}

// ObtenerSecretario loads one secretario.
func (s *Service) ObtenerSecretario(ctx context.Context, id domain.SecretarioID) (*Secretario, error) {
	sec, err := s.store.GetSecretario(ctx, id)
	if err != nil {
		return nil, traducirStore("load secretario", err)
	}
	return sec, nil
}

func (s *Service) asociarComitente(ctx context.Context, comitenteID domain.ComitenteID, usuarioID domain.UsuarioID) (*Comitente, error) {
	c, err := s.store.GetComitente(ctx, comitenteID)
	if err != nil {
		return nil, traducirStore("load comitente", err)
	}

	anteriores := c.Snapshot()
	c.UsuarioID = usuarioID
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateComitente(ctx, c); err != nil {
			return err
		}
		return s.captura.Capturar(ctx, TablaComitentes, auditoria.OperacionUpdate, anteriores, c.Snapshot())
	})
	if err != nil {
		return nil, traducirStore("associate comitente", err)
	}
	return c, nil
}

// notificar issues best-effort: a failed notification never unwinds the
// account write that triggered it.
func (s *Service) notificar(ctx context.Context, usuarioID domain.UsuarioID, tipo realtime.Evento, titulo, cuerpo, enlace string) {
	if s.emisor == nil || usuarioID.IsNil() {
		return
	}
	if _, err := s.emisor.Emitir(ctx, usuarioID.String(), tipo, titulo, cuerpo, enlace); err != nil {
		if s.metrics != nil {
			s.metrics.NotificationFailures.Inc()
		}
		s.logger.WarnContext(ctx, "account notification not issued",
			"tipo", tipo,
			"usuario_id", usuarioID.String(),
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
}

func traducirStore(op string, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(dErrors.CodeNotFound, op, err)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(dErrors.CodeConflict, op, err)
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(dErrors.CodeConflict, op, err)
	default:
		return dErrors.Wrap(dErrors.CodeInternal, op, err)
	}
}
