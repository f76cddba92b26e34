package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// ErrMissingToken signals an anonymous request on an authenticated route.
var ErrMissingToken = errors.New("missing bearer token")

// JWTValidator defines the interface for validating bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	UsuarioID string
	Rol       string
}

type contextKeyUsuarioID struct{}
type contextKeyRol struct{}

var (
	ContextKeyUsuarioID = contextKeyUsuarioID{}
	ContextKeyRol       = contextKeyRol{}
)

// GetUsuarioID retrieves the authenticated user ID from the context.
func GetUsuarioID(ctx context.Context) string {
	usuarioID, ok := ctx.Value(ContextKeyUsuarioID).(string)
	if !ok {
		return ""
	}
	return usuarioID
}

// GetRol retrieves the authenticated role name from the context.
func GetRol(ctx context.Context) string {
	rol, ok := ctx.Value(ContextKeyRol).(string)
	if !ok {
		return ""
	}
	return rol
}

// RequireAuth rejects requests without a valid bearer token and injects the
// authenticated user into the request context. Authentication itself is an
// external collaborator; this layer only validates what it is handed.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims, err := ClaimsFromRequest(validator, r)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}

			ctx = context.WithValue(ctx, ContextKeyUsuarioID, claims.UsuarioID)
			ctx = context.WithValue(ctx, ContextKeyRol, claims.Rol)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromRequest extracts and validates the bearer token on a request.
// Shared by RequireAuth and the websocket upgrade path, which must refuse
// anonymous sessions before upgrading.
func ClaimsFromRequest(validator JWTValidator, r *http.Request) (*JWTClaims, error) {
	authHeader := r.Header.Get("Authorization")
	const bearerPrefix = "Bearer "
	token, ok := strings.CutPrefix(authHeader, bearerPrefix)
	if !ok || token == "" {
		// Browsers cannot set headers on websocket dials; accept the token
		// as a query parameter there.
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil, ErrMissingToken
	}
	return validator.ValidateToken(token)
}
