package notificaciones

import (
	"context"
	"errors"
	"log/slog"

	"gesservorconv/internal/platform/metrics"
	"gesservorconv/internal/platform/middleware"
	"gesservorconv/internal/realtime"
	dErrors "gesservorconv/pkg/domain-errors"
	"gesservorconv/pkg/platform/sentinel"
)

// Service issues notifications and serves the recipient's catch-up reads.
//
// Emitir persists first and pushes second: the stored row is the contract,
// the live push is best effort. A dead websocket or Redis outage degrades
// to "the user sees it on next load", never to a failed business operation.
type Service struct {
	store   Store
	broker  realtime.Broker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(store Store, broker realtime.Broker, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, broker: broker, logger: logger, metrics: m}
}

// Emitir stores a notification for the recipient and pushes it to their
// live sessions. The returned notification carries the assigned ID.
func (s *Service) Emitir(ctx context.Context, destinatarioID string, tipo realtime.Evento, titulo, cuerpo, enlace string) (*Notificacion, error) {
	if destinatarioID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "notification recipient is required")
	}
	if titulo == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "notification title is required")
	}

	n := &Notificacion{
		DestinatarioID: destinatarioID,
		Tipo:           string(tipo),
		Titulo:         titulo,
		Cuerpo:         cuerpo,
		Enlace:         enlace,
	}
	if err := s.store.Save(ctx, n); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "save notification", err)
	}
	if s.metrics != nil {
		s.metrics.NotificationsIssued.Inc()
	}

	if s.broker != nil {
		mensaje := realtime.Mensaje{
			Tipo:    tipo,
			ID:      n.ID,
			Title:   n.Titulo,
			Message: n.Cuerpo,
			Link:    n.Enlace,
		}
		if err := s.broker.Publish(ctx, destinatarioID, mensaje); err != nil {
			if s.metrics != nil {
				s.metrics.NotificationFailures.Inc()
			}
			s.logger.WarnContext(ctx, "realtime delivery failed, notification stored",
				"notificacion_id", n.ID,
				"tipo", tipo,
				"error", err,
				"request_id", middleware.GetRequestID(ctx),
			)
		}
	}
	return n, nil
}

// List returns the recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, destinatarioID string, limit, offset int) ([]*Notificacion, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.ListByDestinatario(ctx, destinatarioID, limit, offset)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list notifications", err)
	}
	return items, nil
}

// CountNoLeidas returns the recipient's unread badge count.
func (s *Service) CountNoLeidas(ctx context.Context, destinatarioID string) (int, error) {
	count, err := s.store.CountNoLeidas(ctx, destinatarioID)
	if err != nil {
		return 0, dErrors.Wrap(dErrors.CodeInternal, "count unread notifications", err)
	}
	return count, nil
}

// MarcarLeida marks one of the recipient's notifications as read.
func (s *Service) MarcarLeida(ctx context.Context, id int64, destinatarioID string) error {
	if err := s.store.MarkLeida(ctx, id, destinatarioID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(dErrors.CodeNotFound, "notification not found", err)
		}
		return dErrors.Wrap(dErrors.CodeInternal, "mark notification read", err)
	}
	return nil
}
