// Package httptransport assembles the public HTTP surface: every domain
// handler mounts its own routes, plus the operational endpoints.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registrar is anything that can mount routes on the root router. All
// domain handlers satisfy it.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter mounts the domain handlers, the websocket endpoint, and the
// operational routes.
func NewRouter(handlers ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}
