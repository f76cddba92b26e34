package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gesservorconv/internal/notificaciones"
	"gesservorconv/internal/platform/metrics"
	"gesservorconv/internal/platform/middleware"
	"gesservorconv/internal/transport/http/shared"
	dErrors "gesservorconv/pkg/domain-errors"
)

// Service defines the notification operations the handler needs.
type Service interface {
	List(ctx context.Context, destinatarioID string, limit, offset int) ([]*notificaciones.Notificacion, error)
	CountNoLeidas(ctx context.Context, destinatarioID string) (int, error)
	MarcarLeida(ctx context.Context, id int64, destinatarioID string) error
}

// Handler serves the recipient-facing notification endpoints. Every route
// is scoped to the authenticated user; there is no cross-user read.
type Handler struct {
	logger        *slog.Logger
	notificacione Service
	metrics       *metrics.Metrics
	jwtValidator  middleware.JWTValidator
}

func New(svc Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:        logger,
		notificacione: svc,
		metrics:       m,
		jwtValidator:  jwtValidator,
	}
}

// Register registers the notification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(30 * time.Second))
		router.Use(middleware.LatencyMiddleware(h.metrics))
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		router.Get("/notificaciones", h.handleList)
		router.Get("/notificaciones/no-leidas", h.handleCountNoLeidas)
		router.Post("/notificaciones/{id}/leida", h.handleMarcarLeida)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	usuarioID := middleware.GetUsuarioID(ctx)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.notificacione.List(ctx, usuarioID, limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list notifications",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	if items == nil {
		items = []*notificaciones.Notificacion{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"notificaciones": items})
}

func (h *Handler) handleCountNoLeidas(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	usuarioID := middleware.GetUsuarioID(ctx)

	count, err := h.notificacione.CountNoLeidas(ctx, usuarioID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to count unread notifications",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"no_leidas": count})
}

func (h *Handler) handleMarcarLeida(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	usuarioID := middleware.GetUsuarioID(ctx)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid notification id"))
		return
	}

	if err := h.notificacione.MarcarLeida(ctx, id, usuarioID); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to mark notification read",
				"request_id", middleware.GetRequestID(ctx),
				"notificacion_id", id,
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
