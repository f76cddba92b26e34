package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gesservorconv/internal/platform/metrics"
	"gesservorconv/internal/platform/middleware"
	"gesservorconv/internal/solicitudes"
	"gesservorconv/internal/transport/http/shared"
	"gesservorconv/pkg/domain"
	dErrors "gesservorconv/pkg/domain-errors"
)

const (
	RolComitente   = "comitente"
	RolResponsable = "responsable_tecnico"
	RolSecretario  = "secretario"
)

// Service defines the workflow operations the handler needs.
type Service interface {
	CrearSolicitud(ctx context.Context, comitenteID domain.ComitenteID, titulo, descripcion string) (*solicitudes.Solicitud, error)
	AsignarResponsable(ctx context.Context, solicitudID domain.SolicitudID, responsableID domain.ResponsableID, secretarioID domain.SecretarioID) error
	PresentarPropuesta(ctx context.Context, solicitudID domain.SolicitudID, responsableID domain.ResponsableID, descripcion string, montoCentavos int64, plazoDias int) (*solicitudes.Propuesta, error)
	DecidirPropuesta(ctx context.Context, solicitudID domain.SolicitudID, propuestaID domain.PropuestaID, comitenteID domain.ComitenteID, aceptar bool, resultado solicitudes.Resultado) error
	Finalizar(ctx context.Context, solicitudID domain.SolicitudID, secretarioID domain.SecretarioID) error
	Cancelar(ctx context.Context, solicitudID domain.SolicitudID, secretarioID domain.SecretarioID) error
	ObtenerSolicitud(ctx context.Context, id domain.SolicitudID) (*solicitudes.Solicitud, []*solicitudes.Propuesta, error)
	ListarPorComitente(ctx context.Context, comitenteID domain.ComitenteID, limit, offset int) ([]*solicitudes.Solicitud, error)
}

type Handler struct {
	logger       *slog.Logger
	workflow     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(svc Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		workflow:     svc,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the workflow routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(30 * time.Second))
		router.Use(middleware.LatencyMiddleware(h.metrics))
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		router.Post("/solicitudes", h.handleCrear)
		router.Get("/solicitudes", h.handleListar)
		router.Get("/solicitudes/{id}", h.handleObtener)
		router.Post("/solicitudes/{id}/responsable", h.handleAsignarResponsable)
		router.Post("/solicitudes/{id}/propuestas", h.handlePresentarPropuesta)
		router.Post("/solicitudes/{id}/propuestas/{propuestaID}/decision", h.handleDecidirPropuesta)
		router.Post("/solicitudes/{id}/finalizar", h.handleFinalizar)
		router.Post("/solicitudes/{id}/cancelar", h.handleCancelar)
	})
}

type crearRequest struct {
	ComitenteID string `json:"comitente_id"`
	Titulo      string `json:"titulo"`
	Descripcion string `json:"descripcion"`
}

type asignarRequest struct {
	ResponsableID string `json:"responsable_id"`
	SecretarioID  string `json:"secretario_id"`
}

type propuestaRequest struct {
	ResponsableID string `json:"responsable_id"`
	Descripcion   string `json:"descripcion"`
	MontoCentavos int64  `json:"monto_centavos"`
	PlazoDias     int    `json:"plazo_dias"`
}

type decisionRequest struct {
	ComitenteID string `json:"comitente_id"`
	Aceptar     bool   `json:"aceptar"`
	Resultado   string `json:"resultado,omitempty"`
}

type cierreRequest struct {
	SecretarioID string `json:"secretario_id"`
}

func (h *Handler) handleCrear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requiereRol(w, r, RolComitente) {
		return
	}

	var req crearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	comitenteID, err := domain.ParseComitenteID(req.ComitenteID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	sol, err := h.workflow.CrearSolicitud(ctx, comitenteID, req.Titulo, req.Descripcion)
	if err != nil {
		h.logFallo(ctx, "failed to create solicitud", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, solicitudJSON(sol))
}

func (h *Handler) handleListar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	comitenteID, err := domain.ParseComitenteID(r.URL.Query().Get("comitente_id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.workflow.ListarPorComitente(ctx, comitenteID, limit, offset)
	if err != nil {
		h.logFallo(ctx, "failed to list solicitudes", err)
		shared.WriteError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, sol := range items {
		out = append(out, solicitudJSON(sol))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"solicitudes": out})
}

func (h *Handler) handleObtener(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseSolicitudID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	sol, propuestas, err := h.workflow.ObtenerSolicitud(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cuerpo := solicitudJSON(sol)
	listado := make([]map[string]any, 0, len(propuestas))
	for _, p := range propuestas {
		listado = append(listado, propuestaJSON(p))
	}
	cuerpo["propuestas"] = listado
	shared.WriteJSON(w, http.StatusOK, cuerpo)
}

func (h *Handler) handleAsignarResponsable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requiereRol(w, r, RolSecretario) {
		return
	}

	id, err := domain.ParseSolicitudID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req asignarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	responsableID, err := domain.ParseResponsableID(req.ResponsableID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	secretarioID, err := domain.ParseSecretarioID(req.SecretarioID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.workflow.AsignarResponsable(ctx, id, responsableID, secretarioID); err != nil {
		h.logFallo(ctx, "failed to assign responsable", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePresentarPropuesta(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requiereRol(w, r, RolResponsable) {
		return
	}

	id, err := domain.ParseSolicitudID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req propuestaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	responsableID, err := domain.ParseResponsableID(req.ResponsableID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	propuesta, err := h.workflow.PresentarPropuesta(ctx, id, responsableID, req.Descripcion, req.MontoCentavos, req.PlazoDias)
	if err != nil {
		h.logFallo(ctx, "failed to present propuesta", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, propuestaJSON(propuesta))
}

func (h *Handler) handleDecidirPropuesta(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.requiereRol(w, r, RolComitente) {
		return
	}

	id, err := domain.ParseSolicitudID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	propuestaID, err := domain.ParsePropuestaID(chi.URLParam(r, "propuestaID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	comitenteID, err := domain.ParseComitenteID(req.ComitenteID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	err = h.workflow.DecidirPropuesta(ctx, id, propuestaID, comitenteID, req.Aceptar, solicitudes.Resultado(req.Resultado))
	if err != nil {
		h.logFallo(ctx, "failed to decide propuesta", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFinalizar(w http.ResponseWriter, r *http.Request) {
	h.cerrar(w, r, h.workflow.Finalizar, "failed to finalize solicitud")
}

func (h *Handler) handleCancelar(w http.ResponseWriter, r *http.Request) {
	h.cerrar(w, r, h.workflow.Cancelar, "failed to cancel solicitud")
}

func (h *Handler) cerrar(w http.ResponseWriter, r *http.Request, op func(context.Context, domain.SolicitudID, domain.SecretarioID) error, msg string) {
	ctx := r.Context()
	if !h.requiereRol(w, r, RolSecretario) {
		return
	}

	id, err := domain.ParseSolicitudID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req cierreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	secretarioID, err := domain.ParseSecretarioID(req.SecretarioID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := op(ctx, id, secretarioID); err != nil {
		h.logFallo(ctx, msg, err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func solicitudJSON(sol *solicitudes.Solicitud) map[string]any {
	cuerpo := map[string]any{
		"id":           sol.ID.String(),
		"comitente_id": sol.ComitenteID.String(),
		"titulo":       sol.Titulo,
		"descripcion":  sol.Descripcion,
		"estado":       string(sol.Estado),
		"creada_en":    sol.CreadaEn,
	}
	if !sol.ResponsableID.IsNil() {
		cuerpo["responsable_id"] = sol.ResponsableID.String()
	}
	if sol.Resultado != "" {
		cuerpo["resultado"] = string(sol.Resultado)
	}
	return cuerpo
}

func propuestaJSON(p *solicitudes.Propuesta) map[string]any {
	return map[string]any{
		"id":             p.ID.String(),
		"solicitud_id":   p.SolicitudID.String(),
		"responsable_id": p.ResponsableID.String(),
		"descripcion":    p.Descripcion,
		"monto_centavos": p.MontoCentavos,
		"plazo_dias":     p.PlazoDias,
		"actual":         p.Actual,
		"estado":         string(p.Estado),
		"creada_en":      p.CreadaEn,
	}
}

func (h *Handler) requiereRol(w http.ResponseWriter, r *http.Request, rol string) bool {
	if middleware.GetRol(r.Context()) != rol {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, rol+" role required"))
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
