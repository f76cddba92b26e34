package solicitudes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"gesservorconv/internal/auditoria"
	"gesservorconv/internal/cuentas"
	"gesservorconv/internal/enlaces"
	"gesservorconv/internal/notificaciones"
	"gesservorconv/internal/platform/metrics"
	"gesservorconv/internal/platform/middleware"
	"gesservorconv/internal/realtime"
	"gesservorconv/pkg/domain"
	dErrors "gesservorconv/pkg/domain-errors"
	"gesservorconv/pkg/platform/sentinel"
	txcontext "gesservorconv/pkg/platform/tx"
)

var tracer = otel.Tracer("gesservorconv/solicitudes")

// Cuentas is the read side of the accounts service the workflow consults
// for eligibility. Satisfied by the accounts store.
type Cuentas interface {
	GetComitente(ctx context.Context, id domain.ComitenteID) (*cuentas.Comitente, error)
	GetResponsable(ctx context.Context, id domain.ResponsableID) (*cuentas.ResponsableTecnico, error)
	GetSecretario(ctx context.Context, id domain.SecretarioID) (*cuentas.Secretario, error)
}

// Emisor issues a stored-plus-live notification.
type Emisor interface {
	Emitir(ctx context.Context, destinatarioID string, tipo realtime.Evento, titulo, cuerpo, enlace string) (*notificaciones.Notificacion, error)
}

// Capturista appends an audit row for a mutation on a watched table.
type Capturista interface {
	Capturar(ctx context.Context, tabla string, op auditoria.Operacion, anteriores, nuevos map[string]string) error
}

// Service runs the request/proposal/decision workflow: a comitente raises
// a solicitud, a secretario assigns a responsable técnico, the responsable
// presents propuestas, the comitente decides, and the secretario closes
// out. Every mutation is a watched write: the audit row commits in the
// same transaction, and the notifications it triggers are best effort.
type Service struct {
	store   Store
	cuentas Cuentas
	captura Capturista
	emisor  Emisor
	runner  txcontext.Runner
	enlaces enlaces.Builder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(
	store Store,
	accounts Cuentas,
	captura Capturista,
	emisor Emisor,
	runner txcontext.Runner,
	links enlaces.Builder,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		store:   store,
		cuentas: accounts,
		captura: captura,
		emisor:  emisor,
		runner:  runner,
		enlaces: links,
		logger:  logger,
		metrics: m,
	}
}

// CrearSolicitud opens a new request for an enabled comitente.
func (s *Service) CrearSolicitud(ctx context.Context, comitenteID domain.ComitenteID, titulo, descripcion string) (*Solicitud, error) {
	ctx, span := tracer.Start(ctx, "solicitudes.Crear")
	defer span.End()

	if titulo == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "titulo is required")
	}
	comitente, err := s.cuentas.GetComitente(ctx, comitenteID)
	if err != nil {
		return nil, traducirStore("load comitente", err)
	}
	if !comitente.Habilitado {
		return nil, dErrors.New(dErrors.CodeForbidden, "comitente is not habilitado")
	}

	sol := &Solicitud{
		ID:          domain.SolicitudID(uuid.New()),
		ComitenteID: comitenteID,
		Titulo:      titulo,
		Descripcion: descripcion,
		Estado:      SolicitudPendiente,
	}
	span.SetAttributes(attribute.String("solicitud_id", sol.ID.String()))

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.SaveSolicitud(ctx, sol); err != nil {
			return err
		}
		return s.captura.Capturar(ctx, TablaSolicitudes, auditoria.OperacionInsert, nil, sol.Snapshot())
	})
	if err != nil {
		return nil, traducirStore("create solicitud", err)
	}
	return sol, nil
}

// AsignarResponsable lets an enabled secretario put a responsable técnico
// on the request. The responsable's user is told through the dispatcher's
// association event.
func (s *Service) AsignarResponsable(ctx context.Context, solicitudID domain.SolicitudID, responsableID domain.ResponsableID, secretarioID domain.SecretarioID) error {
	ctx, span := tracer.Start(ctx, "solicitudes.AsignarResponsable")
	span.SetAttributes(attribute.String("solicitud_id", solicitudID.String()))
	defer span.End()

	if err := s.requiereSecretarioHabilitado(ctx, secretarioID); err != nil {
		return err
	}
	responsable, err := s.cuentas.GetResponsable(ctx, responsableID)
	if err != nil {
		return traducirStore("load responsable", err)
	}
	sol, err := s.store.GetSolicitud(ctx, solicitudID)
	if err != nil {
		return traducirStore("load solicitud", err)
	}
	if sol.Estado != SolicitudPendiente && sol.Estado != SolicitudEnNegociacion {
		return estadoInvalido(sol.Estado, "asignar responsable")
	}

	anteriores := sol.Snapshot()
	sol.ResponsableID = responsableID
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateSolicitud(ctx, sol); err != nil {
			return err
		}
		return s.captura.Capturar(ctx, TablaSolicitudes, auditoria.OperacionUpdate, anteriores, sol.Snapshot())
	})
	if err != nil {
		return traducirStore("assign responsable", err)
	}

	s.notificar(ctx, responsable.UsuarioID, realtime.EventoResponsableTecnicoAsociado,
		"Responsable Técnico asociado",
		fmt.Sprintf("Se le asignó la solicitud %q.", sol.Titulo),
		s.enlaces.Solicitud(sol.ID))
	return nil
}

// PresentarPropuesta records a new actual proposal from the assigned,
// enabled responsable, demoting the previous actual one, and asks the
// comitente for a decision.
func (s *Service) PresentarPropuesta(ctx context.Context, solicitudID domain.SolicitudID, responsableID domain.ResponsableID, descripcion string, montoCentavos int64, plazoDias int) (*Propuesta, error) {
	ctx, span := tracer.Start(ctx, "solicitudes.PresentarPropuesta")
	span.SetAttributes(attribute.String("solicitud_id", solicitudID.String()))
	defer span.End()

	if descripcion == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "descripcion is required")
	}
	if montoCentavos <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "monto must be positive")
	}
	if plazoDias <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "plazo must be positive")
	}

	responsable, err := s.cuentas.GetResponsable(ctx, responsableID)
	if err != nil {
		return nil, traducirStore("load responsable", err)
	}
	if !responsable.Habilitado {
		return nil, dErrors.New(dErrors.CodeForbidden, "responsable is not habilitado")
	}

	sol, err := s.store.GetSolicitud(ctx, solicitudID)
	if err != nil {
		return nil, traducirStore("load solicitud", err)
	}
	if sol.Estado != SolicitudPendiente && sol.Estado != SolicitudEnNegociacion {
		return nil, estadoInvalido(sol.Estado, "presentar propuesta")
	}
	if sol.ResponsableID != responsableID {
		return nil, dErrors.New(dErrors.CodeForbidden, "solicitud is not assigned to this responsable")
	}

	propuesta := &Propuesta{
		ID:            domain.PropuestaID(uuid.New()),
		SolicitudID:   solicitudID,
		ResponsableID: responsableID,
		Descripcion:   descripcion,
		MontoCentavos: montoCentavos,
		PlazoDias:     plazoDias,
		Actual:        true,
		Estado:        PropuestaPendiente,
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		// Demote first: the partial unique index leaves no window for a
		// second actual row.
		previa, err := s.store.GetPropuestaActual(ctx, solicitudID)
		if err == nil {
			anteriores := previa.Snapshot()
			previa.Actual = false
			if err := s.store.UpdatePropuesta(ctx, previa); err != nil {
				return err
			}
			if err := s.captura.Capturar(ctx, TablaPropuestas, auditoria.OperacionUpdate, anteriores, previa.Snapshot()); err != nil {
				return err
			}
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}

		if err := s.store.SavePropuesta(ctx, propuesta); err != nil {
			return err
		}
		if err := s.captura.Capturar(ctx, TablaPropuestas, auditoria.OperacionInsert, nil, propuesta.Snapshot()); err != nil {
			return err
		}

		if sol.Estado != SolicitudEnNegociacion {
			anteriores := sol.Snapshot()
			sol.Estado = SolicitudEnNegociacion
			if err := s.store.UpdateSolicitud(ctx, sol); err != nil {
				return err
			}
			return s.captura.Capturar(ctx, TablaSolicitudes, auditoria.OperacionUpdate, anteriores, sol.Snapshot())
		}
		return nil
	})
	if err != nil {
		return nil, traducirStore("present propuesta", err)
	}

	comitente, err := s.cuentas.GetComitente(ctx, sol.ComitenteID)
	if err != nil {
		s.logger.WarnContext(ctx, "comitente not loaded for propuesta notification",
			"solicitud_id", sol.ID.String(),
			"error", err,
		)
		return propuesta, nil
	}
	s.notificar(ctx, comitente.UsuarioID, realtime.EventoPropuestaComitente,
		"Nueva propuesta",
		fmt.Sprintf("La solicitud %q tiene una propuesta que requiere su decisión.", sol.Titulo),
		s.enlaces.Solicitud(sol.ID))
	return propuesta, nil
}

// DecidirPropuesta records the comitente's decision on the actual
// proposal. Accepting moves the solicitud to aceptada and pins the output
// document kind; rejecting leaves the negotiation open.
func (s *Service) DecidirPropuesta(ctx context.Context, solicitudID domain.SolicitudID, propuestaID domain.PropuestaID, comitenteID domain.ComitenteID, aceptar bool, resultado Resultado) error {
	ctx, span := tracer.Start(ctx, "solicitudes.DecidirPropuesta")
	span.SetAttributes(
		attribute.String("solicitud_id", solicitudID.String()),
		attribute.Bool("aceptar", aceptar),
	)
	defer span.End()

	sol, err := s.store.GetSolicitud(ctx, solicitudID)
	if err != nil {
		return traducirStore("load solicitud", err)
	}
	if sol.ComitenteID != comitenteID {
		return dErrors.New(dErrors.CodeForbidden, "solicitud does not belong to this comitente")
	}
	if sol.Estado != SolicitudEnNegociacion {
		return estadoInvalido(sol.Estado, "decidir propuesta")
	}

	propuesta, err := s.store.GetPropuesta(ctx, propuestaID)
	if err != nil {
		return traducirStore("load propuesta", err)
	}
	if propuesta.SolicitudID != solicitudID || !propuesta.Actual {
		return dErrors.New(dErrors.CodeConflict, "propuesta is not the actual one for this solicitud")
	}
	if propuesta.Estado != PropuestaPendiente {
		return dErrors.New(dErrors.CodeConflict, "propuesta was already decided")
	}
	if aceptar && !ResultadoValido(resultado) {
		return dErrors.New(dErrors.CodeInvalidInput, "resultado must be convenio or orden_servicio")
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		anterioresPropuesta := propuesta.Snapshot()
		if aceptar {
			propuesta.Estado = PropuestaAceptada
		} else {
			propuesta.Estado = PropuestaRechazada
			propuesta.Actual = false
		}
		if err := s.store.UpdatePropuesta(ctx, propuesta); err != nil {
			return err
		}
		if err := s.captura.Capturar(ctx, TablaPropuestas, auditoria.OperacionUpdate, anterioresPropuesta, propuesta.Snapshot()); err != nil {
			return err
		}

		if !aceptar {
			return nil
		}
		anterioresSolicitud := sol.Snapshot()
		sol.Estado = SolicitudAceptada
		sol.Resultado = resultado
		if err := s.store.UpdateSolicitud(ctx, sol); err != nil {
			return err
		}
		return s.captura.Capturar(ctx, TablaSolicitudes, auditoria.OperacionUpdate, anterioresSolicitud, sol.Snapshot())
	})
	if err != nil {
		return traducirStore("decide propuesta", err)
	}
	return nil
}

// Finalizar closes an accepted solicitud.
func (s *Service) Finalizar(ctx context.Context, solicitudID domain.SolicitudID, secretarioID domain.SecretarioID) error {
	ctx, span := tracer.Start(ctx, "solicitudes.Finalizar")
	span.SetAttributes(attribute.String("solicitud_id", solicitudID.String()))
	defer span.End()

	if err := s.requiereSecretarioHabilitado(ctx, secretarioID); err != nil {
		return err
	}
	sol, err := s.store.GetSolicitud(ctx, solicitudID)
	if err != nil {
		return traducirStore("load solicitud", err)
	}
	if sol.Estado != SolicitudAceptada {
		return estadoInvalido(sol.Estado, "finalizar")
	}
	return s.cambiarEstado(ctx, sol, SolicitudFinalizada, "finalize solicitud")
}

// Cancelar aborts a solicitud that has not been finalized.
func (s *Service) Cancelar(ctx context.Context, solicitudID domain.SolicitudID, secretarioID domain.SecretarioID) error {
	ctx, span := tracer.Start(ctx, "solicitudes.Cancelar")
	span.SetAttributes(attribute.String("solicitud_id", solicitudID.String()))
	defer span.End()

	if err := s.requiereSecretarioHabilitado(ctx, secretarioID); err != nil {
		return err
	}
	sol, err := s.store.GetSolicitud(ctx, solicitudID)
	if err != nil {
		return traducirStore("load solicitud", err)
	}
	switch sol.Estado {
	case SolicitudPendiente, SolicitudEnNegociacion, SolicitudAceptada:
	default:
		return estadoInvalido(sol.Estado, "cancelar")
	}
	return s.cambiarEstado(ctx, sol, SolicitudCancelada, "cancel solicitud")
}

// ObtenerSolicitud loads one solicitud with its proposals.
func (s *Service) ObtenerSolicitud(ctx context.Context, id domain.SolicitudID) (*Solicitud, []*Propuesta, error) {
	sol, err := s.store.GetSolicitud(ctx, id)
	if err != nil {
		return nil, nil, traducirStore("load solicitud", err)
	}
	propuestas, err := s.store.ListPropuestas(ctx, id)
	if err != nil {
		return nil, nil, traducirStore("load propuestas", err)
	}
	return sol, propuestas, nil
}

// ListarPorComitente returns a comitente's solicitudes, newest first.
func (s *Service) ListarPorComitente(ctx context.Context, comitenteID domain.ComitenteID, limit, offset int) ([]*Solicitud, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.ListByComitente(ctx, comitenteID, limit, offset)
	if err != nil {
		return nil, traducirStore("list solicitudes", err)
	}
	return items, nil
}

func (s *Service) cambiarEstado(ctx context.Context, sol *Solicitud, estado EstadoSolicitud, op string) error {
	anteriores := sol.Snapshot()
	sol.Estado = estado
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateSolicitud(ctx, sol); err != nil {
			return err
		}
		return s.captura.Capturar(ctx, TablaSolicitudes, auditoria.OperacionUpdate, anteriores, sol.Snapshot())
	})
	if err != nil {
		return traducirStore(op, err)
	}
	return nil
}

func (s *Service) requiereSecretarioHabilitado(ctx context.Context, secretarioID domain.SecretarioID) error {
	secretario, err := s.cuentas.GetSecretario(ctx, secretarioID)
	if err != nil {
		return traducirStore("load secretario", err)
	}
	if !secretario.Habilitado {
		return dErrors.New(dErrors.CodeForbidden, "secretario is not habilitado")
	}
	return nil
}

func (s *Service) notificar(ctx context.Context, usuarioID domain.UsuarioID, tipo realtime.Evento, titulo, cuerpo, enlace string) {
	if s.emisor == nil || usuarioID.IsNil() {
		return
	}
	if _, err := s.emisor.Emitir(ctx, usuarioID.String(), tipo, titulo, cuerpo, enlace); err != nil {
		if s.metrics != nil {
			s.metrics.NotificationFailures.Inc()
		}
		s.logger.WarnContext(ctx, "workflow notification not issued",
			"tipo", tipo,
			"usuario_id", usuarioID.String(),
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
}

func estadoInvalido(estado EstadoSolicitud, op string) error {
	return dErrors.New(dErrors.CodeConflict,
		fmt.Sprintf("cannot %s while solicitud is %s", op, estado))
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
