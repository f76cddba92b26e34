package testutil

import (
	"context"
	"net/http"

	"gesservorconv/internal/platform/middleware"
)

// WithUsuario adds an authenticated user to the request context, simulating
// what the auth middleware does after validating a bearer token.
func WithUsuario(req *http.Request, usuarioID, rol string) *http.Request {
	ctx := req.Context()
	if usuarioID != "" {
		ctx = context.WithValue(ctx, middleware.ContextKeyUsuarioID, usuarioID)
	}
	if rol != "" {
		ctx = context.WithValue(ctx, middleware.ContextKeyRol, rol)
	}
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
