package realtime

import (
	"context"
	"log/slog"
	"sync"

	"gesservorconv/internal/platform/metrics"
)

// Hub is the in-process broker: it tracks which live connections belong to
// which user group and fans published messages out to them.
//
// Each connection moves through a small lifecycle: it joins a group after
// authentication, receives every message published to that group while
// joined, and on close is removed and loses any in-flight deliveries. There
// is no replay; a connection that joins late catches up through the
// notification store.
type Hub struct {
	mu      sync.RWMutex
	grupos  map[string]map[*Cliente]bool
	entrada chan envio
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// envio pairs a serialized message with its destination group.
type envio struct {
	grupo   string
	payload []byte
}

func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		grupos:  make(map[string]map[*Cliente]bool),
		entrada: make(chan envio, 256),
		logger:  logger,
		metrics: m,
	}
}

// Run pumps published messages to their groups until ctx is cancelled.
// A single pump goroutine preserves per-group publish order end to end:
// messages enter per-connection send buffers in the order they were
// published.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-h.entrada:
			h.entregar(e)
		}
	}
}

// Publish implements Broker. It never blocks the caller beyond the buffered
// hand-off to the pump goroutine.
func (h *Hub) Publish(ctx context.Context, grupo string, mensaje Mensaje) error {
	payload := mensaje.Serializa()
	if payload == nil {
		return nil
	}
	select {
	case h.entrada <- envio{grupo: grupo, payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join registers a connection under its user group.
func (h *Hub) Join(grupo string, c *Cliente) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.grupos[grupo] == nil {
		h.grupos[grupo] = make(map[*Cliente]bool)
	}
	h.grupos[grupo][c] = true
}

// Leave removes a connection from its group and closes its send buffer,
// discarding whatever was still queued for it.
//
// The send buffer is closed only here, under the write lock, while the pump
// sends only under the read lock: a connection dropping in the middle of a
// fan-out can never race a send against the close.
func (h *Hub) Leave(grupo string, c *Cliente) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clientes, ok := h.grupos[grupo]
	if !ok || !clientes[c] {
		return
	}
	delete(clientes, c)
	if len(clientes) == 0 {
		delete(h.grupos, grupo)
	}
	close(c.salida)
}

// entregar fans one message out to its group. The read lock is held across
// the sends themselves, which keeps Leave's close of the send buffer from
// interleaving with them. Sends are non-blocking, so holding the lock for
// the whole fan-out stalls nobody.
func (h *Hub) entregar(e envio) {
	h.mu.RLock()
	var lentos []*Cliente
	for c := range h.grupos[e.grupo] {
		select {
		case c.salida <- e.payload:
			if h.metrics != nil {
				h.metrics.RealtimeDeliveries.Inc()
			}
		default:
			lentos = append(lentos, c)
		}
	}
	h.mu.RUnlock()

	// Slow consumers: drop them rather than stall every other connection
	// in the group. Removal takes the write lock, so it waits until the
	// fan-out has released the read lock.
	for _, c := range lentos {
		h.logger.Warn("dropping slow realtime connection", "grupo", e.grupo)
		h.Leave(e.grupo, c)
	}
}
