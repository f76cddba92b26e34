package auditoria

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"gesservorconv/internal/platform/metrics"
	txcontext "gesservorconv/pkg/platform/tx"
)

var tracer = otel.Tracer("gesservorconv/auditoria")

// Capturador routes row-level mutations on watched tables to their domain
// ledger. It replaces the database triggers of the original design with an
// explicit interceptor invoked by the storage layer's write path, inside the
// same transaction as the mutation (via the tx-in-context helper), so the
// trigger semantics survive: one audit row per mutating statement, committed
// or rolled back together with it.
type Capturador struct {
	mu       sync.RWMutex
	bindings map[string]Store
	metrics  *metrics.Metrics
	clock    func() time.Time
	export   chan<- RegistroAuditoria
}

// CapturadorOption configures a Capturador.
type CapturadorOption func(*Capturador)

// WithClock sets the capture timestamp source for tests.
func WithClock(clock func() time.Time) CapturadorOption {
	return func(c *Capturador) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithExportChannel mirrors committed rows onto a channel for the Kafka
// export worker. The mirror fires once the transaction carrying the row
// commits. Sends are non-blocking; a full channel drops the mirror, never
// the ledger write.
func WithExportChannel(ch chan<- RegistroAuditoria) CapturadorOption {
	return func(c *Capturador) {
		c.export = ch
	}
}

func NewCapturador(m *metrics.Metrics, opts ...CapturadorOption) *Capturador {
	c := &Capturador{
		bindings: make(map[string]Store),
		metrics:  m,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registrar binds a watched table to its domain audit store. Watching a new
// table is exactly this one call plus the store construction.
func (c *Capturador) Registrar(tabla string, store Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[tabla] = store
}

// Capturar appends one audit row for a mutation on a watched table.
//
// Nullability follows the operation: INSERT carries only new values, DELETE
// only old values, UPDATE both. Absent columns are omitted from the maps,
// never recorded as empty entries — callers build snapshots explicitly.
func (c *Capturador) Capturar(ctx context.Context, tabla string, op Operacion, anteriores, nuevos map[string]string) error {
	ctx, span := tracer.Start(ctx, "auditoria.Capturar")
	span.SetAttributes(
		attribute.String("tabla", tabla),
		attribute.String("operacion", string(op)),
	)
	defer span.End()

	c.mu.RLock()
	store, ok := c.bindings[tabla]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("table %q is not registered for audit capture", tabla)
	}

	registro := RegistroAuditoria{
		Tabla:       tabla,
		CapturadoEn: c.clock(),
	}
	switch op {
	case OperacionInsert:
		registro.ValoresNuevos = nuevos
	case OperacionDelete:
		registro.ValoresAnteriores = anteriores
	case OperacionUpdate:
		registro.ValoresAnteriores = anteriores
		registro.ValoresNuevos = nuevos
	default:
		return fmt.Errorf("unknown capture operation %q", op)
	}

	if err := store.Append(ctx, &registro); err != nil {
		return fmt.Errorf("capture %s on %s: %w", op, tabla, err)
	}
	if c.metrics != nil {
		c.metrics.AuditRowsCaptured.WithLabelValues(tabla).Inc()
	}
	if c.export != nil {
		// The mirror waits for the surrounding transaction: a rolled-back
		// mutation must never reach downstream consumers. By then Append
		// has filled in the ledger-assigned ID.
		txcontext.OnCommit(ctx, func() {
			select {
			case c.export <- registro:
			default:
			}
		})
	}
	return nil
}
