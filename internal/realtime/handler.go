package realtime

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"gesservorconv/internal/platform/middleware"
)

// Handler upgrades authenticated requests into live notification channels.
type Handler struct {
	hub       *Hub
	validator middleware.JWTValidator
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

func NewHandler(hub *Hub, validator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		hub:       hub,
		validator: validator,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/ws/notificaciones", h.Serve)
}

// Serve authenticates the caller and joins their connection to the group
// keyed by their user ID. Anonymous sessions are refused before the
// upgrade, with a plain 401, so the client library sees a failed handshake
// rather than an immediately closed socket.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, err := middleware.ClaimsFromRequest(h.validator, r)
	if err != nil {
		h.logger.WarnContext(ctx, "anonymous realtime connection refused",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		h.logger.WarnContext(ctx, "websocket upgrade failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		return
	}

	cliente := NewCliente(h.hub, conn, claims.UsuarioID, h.logger)
	h.hub.Join(cliente.grupo, cliente)

	go cliente.writePump()
	go cliente.readPump()
}
