package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gesservorconv/internal/cuentas"
	"gesservorconv/internal/platform/metrics"
	"gesservorconv/internal/platform/middleware"
	"gesservorconv/internal/transport/http/shared"
	"gesservorconv/pkg/domain"
	dErrors "gesservorconv/pkg/domain-errors"
)

// RolSecretario guards account maintenance; the flag-bearing entities are
// administered, not self-served.
const RolSecretario = "secretario"

// Service defines the account operations the handler needs.
type Service interface {
	GuardarComitente(ctx context.Context, c *cuentas.Comitente) error
	GuardarResponsable(ctx context.Context, r *cuentas.ResponsableTecnico) error
	GuardarSecretario(ctx context.Context, s *cuentas.Secretario) error
	ObtenerComitente(ctx context.Context, id domain.ComitenteID) (*cuentas.Comitente, error)
	ObtenerResponsable(ctx context.Context, id domain.ResponsableID) (*cuentas.ResponsableTecnico, error)
	AsociarComitente(ctx context.Context, comitenteID domain.ComitenteID, usuarioID domain.UsuarioID) error
	AsociarComitentes(ctx context.Context, comitenteIDs []domain.ComitenteID, usuarioID domain.UsuarioID) error
	AsociarResponsable(ctx context.Context, responsableID domain.ResponsableID, usuarioID domain.UsuarioID) error
}

type Handler struct {
	logger       *slog.Logger
	cuentas      Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(svc Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		cuentas:      svc,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the account routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(30 * time.Second))
		router.Use(middleware.ContentTypeJSON)
		router.Use(middleware.LatencyMiddleware(h.metrics))
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		router.Put("/cuentas/comitentes", h.handleGuardarComitente)
		router.Get("/cuentas/comitentes/{id}", h.handleObtenerComitente)
		router.Post("/cuentas/comitentes/{id}/asociar", h.handleAsociarComitente)
		router.Post("/cuentas/comitentes/asociar", h.handleAsociarComitentes)
		router.Put("/cuentas/responsables", h.handleGuardarResponsable)
		router.Get("/cuentas/responsables/{id}", h.handleObtenerResponsable)
		router.Post("/cuentas/responsables/{id}/asociar", h.handleAsociarResponsable)
		router.Put("/cuentas/secretarios", h.handleGuardarSecretario)
	})
}

type comitenteRequest struct {
	ID                       string `json:"id,omitempty"`
	UsuarioID                string `json:"usuario_id,omitempty"`
	RazonSocial              string `json:"razon_social"`
	CUIT                     uint64 `json:"cuit"`
	Habilitado               bool   `json:"habilitado"`
	HabilitadoOrganizaciones []bool `json:"habilitado_organizaciones,omitempty"`
}

type responsableRequest struct {
	ID                       string `json:"id,omitempty"`
	UsuarioID                string `json:"usuario_id,omitempty"`
	Nombre                   string `json:"nombre"`
	CUIL                     uint64 `json:"cuil"`
	Habilitado               bool   `json:"habilitado"`
	HabilitadoOrganizaciones []bool `json:"habilitado_organizaciones,omitempty"`
}

type secretarioRequest struct {
	ID         string `json:"id,omitempty"`
	UsuarioID  string `json:"usuario_id,omitempty"`
	Nombre     string `json:"nombre"`
	Habilitado bool   `json:"habilitado"`
}

type asociarRequest struct {
	UsuarioID    string   `json:"usuario_id"`
	ComitenteIDs []string `json:"comitente_ids,omitempty"`
}

func (h *Handler) handleGuardarComitente(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requiereSecretario(w, r) {
		return
	}

	var req comitenteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	c := &cuentas.Comitente{
		RazonSocial:              req.RazonSocial,
		CUIT:                     req.CUIT,
		Habilitado:               req.Habilitado,
		HabilitadoOrganizaciones: req.HabilitadoOrganizaciones,
	}
	if req.ID != "" {
		id, err := domain.ParseComitenteID(req.ID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		c.ID = id
	}
	if req.UsuarioID != "" {
		usuarioID, err := domain.ParseUsuarioID(req.UsuarioID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		c.UsuarioID = usuarioID
	}

	if err := h.cuentas.GuardarComitente(ctx, c); err != nil {
		h.logFallo(ctx, "failed to save comitente", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"id": c.ID.String()})
}

func (h *Handler) handleObtenerComitente(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseComitenteID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	c, err := h.cuentas.ObtenerComitente(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"id":                        c.ID.String(),
		"usuario_id":                c.UsuarioID.String(),
		"razon_social":              c.RazonSocial,
		"cuit":                      c.CUIT,
		"habilitado":                c.Habilitado,
		"habilitado_organizaciones": c.HabilitadoOrganizaciones,
	})
}

func (h *Handler) handleAsociarComitente(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requiereSecretario(w, r) {
		return
	}

	comitenteID, err := domain.ParseComitenteID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	usuarioID, ok := h.decodeUsuario(w, r)
	if !ok {
		return
	}

	if err := h.cuentas.AsociarComitente(ctx, comitenteID, usuarioID); err != nil {
		h.logFallo(ctx, "failed to associate comitente", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAsociarComitentes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requiereSecretario(w, r) {
		return
	}

	var req asociarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	usuarioID, err := domain.ParseUsuarioID(req.UsuarioID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	ids := make([]domain.ComitenteID, 0, len(req.ComitenteIDs))
	for _, raw := range req.ComitenteIDs {
		id, err := domain.ParseComitenteID(raw)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		ids = append(ids, id)
	}

	if err := h.cuentas.AsociarComitentes(ctx, ids, usuarioID); err != nil {
		h.logFallo(ctx, "failed to associate comitentes", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGuardarResponsable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requiereSecretario(w, r) {
		return
	}

	var req responsableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	resp := &cuentas.ResponsableTecnico{
		Nombre:                   req.Nombre,
		CUIL:                     req.CUIL,
		Habilitado:               req.Habilitado,
		HabilitadoOrganizaciones: req.HabilitadoOrganizaciones,
	}
	if req.ID != "" {
		id, err := domain.ParseResponsableID(req.ID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		resp.ID = id
	}
	if req.UsuarioID != "" {
		usuarioID, err := domain.ParseUsuarioID(req.UsuarioID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		resp.UsuarioID = usuarioID
	}

	if err := h.cuentas.GuardarResponsable(ctx, resp); err != nil {
		h.logFallo(ctx, "failed to save responsable", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"id": resp.ID.String()})
}

func (h *Handler) handleObtenerResponsable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseResponsableID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp, err := h.cuentas.ObtenerResponsable(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"id":                        resp.ID.String(),
		"usuario_id":                resp.UsuarioID.String(),
		"nombre":                    resp.Nombre,
		"cuil":                      resp.CUIL,
		"habilitado":                resp.Habilitado,
		"habilitado_organizaciones": resp.HabilitadoOrganizaciones,
	})
}

func (h *Handler) handleAsociarResponsable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requiereSecretario(w, r) {
		return
	}

	responsableID, err := domain.ParseResponsableID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	usuarioID, ok := h.decodeUsuario(w, r)
	if !ok {
		return
	}

	if err := h.cuentas.AsociarResponsable(ctx, responsableID, usuarioID); err != nil {
		h.logFallo(ctx, "failed to associate responsable", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGuardarSecretario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requiereSecretario(w, r) {
		return
	}

	var req secretarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	sec := &cuentas.Secretario{
		Nombre:     req.Nombre,
		Habilitado: req.Habilitado,
	}
	if req.ID != "" {
		id, err := domain.ParseSecretarioID(req.ID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		sec.ID = id
	}
	if req.UsuarioID != "" {
		usuarioID, err := domain.ParseUsuarioID(req.UsuarioID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		sec.UsuarioID = usuarioID
	}

	if err := h.cuentas.GuardarSecretario(ctx, sec); err != nil {
		h.logFallo(ctx, "failed to save secretario", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"id": sec.ID.String()})
}

func (h *Handler) decodeUsuario(w http.ResponseWriter, r *http.Request) (domain.UsuarioID, bool) {
	var req asociarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return domain.UsuarioID{}, false
	}
	usuarioID, err := domain.ParseUsuarioID(req.UsuarioID)
	if err != nil {
		shared.WriteError(w, err)
		return domain.UsuarioID{}, false
	}
	return usuarioID, true
}

func (h *Handler) requiereSecretario(w http.ResponseWriter, r *http.Request) bool {
	if middleware.GetRol(r.Context()) != RolSecretario {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "secretario role required"))
		return false
	}
	return true
}

func (h *Handler) logFallo(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
}
