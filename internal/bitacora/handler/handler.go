package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gesservorconv/internal/bitacora"
	"gesservorconv/internal/platform/metrics"
	"gesservorconv/internal/platform/middleware"
	"gesservorconv/internal/transport/http/shared"
	dErrors "gesservorconv/pkg/domain-errors"
)

// Service defines the access log operations the handler needs.
type Service interface {
	Registrar(ctx context.Context, clienteID string, registradoEn time.Time, userAgent, usuarioID, mensaje string) (*bitacora.Registro, error)
	Listar(ctx context.Context, clienteID string, limit, offset int) ([]*bitacora.Registro, error)
}

// Handler serves the access log. Writes accept anonymous clients (the
// usuario reference is nullable); an authenticated caller is attributed
// when a valid token is present.
type Handler struct {
	logger       *slog.Logger
	bitacora     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(svc Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		bitacora:     svc,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the access log routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(15 * time.Second))
		router.Use(middleware.LatencyMiddleware(h.metrics))

		router.Post("/bitacora", h.handleRegistrar)
		router.With(middleware.RequireAuth(h.jwtValidator, h.logger)).Get("/bitacora", h.handleListar)
	})
}

type registrarRequest struct {
	ClienteID    string    `json:"cliente_id"`
	RegistradoEn time.Time `json:"registrado_en,omitempty"`
	Mensaje      string    `json:"mensaje"`
}

func (h *Handler) handleRegistrar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registrarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	// Attribution is opportunistic: anonymous access is legal here.
	var usuarioID string
	if claims, err := middleware.ClaimsFromRequest(h.jwtValidator, r); err == nil {
		usuarioID = claims.UsuarioID
	}

	registro, err := h.bitacora.Registrar(ctx, req.ClienteID, req.RegistradoEn,
		r.UserAgent(), usuarioID, req.Mensaje)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to record bitacora entry",
				"request_id", middleware.GetRequestID(ctx),
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]string{"id": registro.ID.String()})
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clienteID := r.URL.Query().Get("cliente_id")
	if clienteID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "cliente_id is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.bitacora.Listar(ctx, clienteID, limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list bitacora",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	if items == nil {
		items = []*bitacora.Registro{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"bitacora": items})
}
