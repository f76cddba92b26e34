package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gesservorconv/internal/auditoria"
	"gesservorconv/internal/platform/metrics"
	"gesservorconv/internal/platform/middleware"
	"gesservorconv/internal/transport/http/shared"
	dErrors "gesservorconv/pkg/domain-errors"
)

// RolSecretario is the only role allowed to read the ledgers.
const RolSecretario = "secretario"

// Lector reads one domain's audit ledger.
type Lector interface {
	ListByTabla(ctx context.Context, tabla string, limit, offset int) ([]auditoria.RegistroAuditoria, error)
	CountByTabla(ctx context.Context, tabla string) (int64, error)
}

// Handler serves the audit read path: per watched table, newest first,
// paginated. There is no write surface; rows only enter through the
// capture engine.
type Handler struct {
	logger       *slog.Logger
	ledgers      map[string]Lector
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New builds the handler over the watched-table-to-ledger bindings, the
// same shape the capture registry uses.
func New(ledgers map[string]Lector, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		ledgers:      ledgers,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the audit routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(30 * time.Second))
		router.Use(middleware.LatencyMiddleware(h.metrics))
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		router.Get("/auditoria/{tabla}", h.handleListar)
	})
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if middleware.GetRol(ctx) != RolSecretario {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "secretario role required"))
		return
	}

	tabla := chi.URLParam(r, "tabla")
	ledger, ok := h.ledgers[tabla]
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "table is not watched"))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	registros, err := ledger.ListByTabla(ctx, tabla, limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit rows",
			"request_id", middleware.GetRequestID(ctx),
			"tabla", tabla,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list audit rows"))
		return
	}
	total, err := ledger.CountByTabla(ctx, tabla)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to count audit rows",
			"request_id", middleware.GetRequestID(ctx),
			"tabla", tabla,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to count audit rows"))
		return
	}

	if registros == nil {
		registros = []auditoria.RegistroAuditoria{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"tabla":     tabla,
		"total":     total,
		"registros": registros,
	})
}
