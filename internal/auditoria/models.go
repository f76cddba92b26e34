package auditoria

import "time"

// Operacion is the row-level mutation kind observed by the capture engine.
type Operacion string

const (
	OperacionInsert Operacion = "INSERT"
	OperacionUpdate Operacion = "UPDATE"
	OperacionDelete Operacion = "DELETE"
)

// Audit domains. Each watched table routes to exactly one domain table, so
// account mutations and workflow mutations live in separate ledgers.
const (
	TablaCuentas     = "auditoria_cuentas"
	TablaSolicitudes = "auditoria_solicitudes"
	TablaSistema     = "auditoria_sistema"
)

// RegistroAuditoria is one append-only ledger row: the before/after field
// snapshot of a single mutated row in a watched table.
//
// Exactly one of ValoresAnteriores/ValoresNuevos is nil for INSERT and
// DELETE; both are present for UPDATE; never both nil (CHECK constraint in
// PostgreSQL, validated by every store).
type RegistroAuditoria struct {
	ID                int64             `json:"id"`
	Tabla             string            `json:"tabla"`
	CapturadoEn       time.Time         `json:"capturado_en"`
	ValoresAnteriores map[string]string `json:"valores_anteriores,omitempty"`
	ValoresNuevos     map[string]string `json:"valores_nuevos,omitempty"`
}

// Valida enforces the ledger invariant shared by all store implementations.
func (r RegistroAuditoria) Valida() bool {
	return r.ValoresAnteriores != nil || r.ValoresNuevos != nil
}
