package bitacora

import (
	"time"

	"github.com/google/uuid"
)

// Registro is one client-facing access log entry. Unlike the domain audit
// ledger it records what the client did, not what the data did; the
// natural key (ClienteID, RegistradoEn) makes client-side retries
// idempotent.
type Registro struct {
	ID           uuid.UUID `json:"id"`
	ClienteID    string    `json:"cliente_id"`
	RegistradoEn time.Time `json:"registrado_en"`
	Navegador    string    `json:"navegador"`
	UsuarioID    *string   `json:"usuario_id,omitempty"`
	Mensaje      string    `json:"mensaje"`
}
