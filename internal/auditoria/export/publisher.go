// Package export ships committed audit rows to Kafka for downstream SIEM and
// analytics consumers. Export is observability only: a lost record never
// affects the ledger, which remains the durable source of truth.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"gesservorconv/internal/auditoria"
)

// Publisher produces audit rows to a Kafka topic, fire-and-forget.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// payload mirrors RegistroAuditoria with stable JSON field names for
// consumers outside this repo.
type payload struct {
	ID                int64             `json:"id"`
	Tabla             string            `json:"tabla"`
	CapturadoEn       time.Time         `json:"capturado_en"`
	ValoresAnteriores map[string]string `json:"valores_anteriores,omitempty"`
	ValoresNuevos     map[string]string `json:"valores_nuevos,omitempty"`
}

// Publish produces one record keyed by watched table, so per-table ordering
// survives partitioning. Errors are logged, never returned: export is
// best-effort by contract.
func (p *Publisher) Publish(ctx context.Context, registro auditoria.RegistroAuditoria) {
	encoded, err := json.Marshal(payload{
		ID:                registro.ID,
		Tabla:             registro.Tabla,
		CapturadoEn:       registro.CapturadoEn,
		ValoresAnteriores: registro.ValoresAnteriores,
		ValoresNuevos:     registro.ValoresNuevos,
	})
	if err != nil {
		p.logger.WarnContext(ctx, "audit export marshal failed", "error", err)
		return
	}

	p.client.Produce(ctx, &kgo.Record{
		Topic: p.topic,
		Key:   []byte(registro.Tabla),
		Value: encoded,
	}, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("audit export produce failed", "error", err, "tabla", registro.Tabla)
		}
	})
}

// Close flushes pending records and releases the client.
func (p *Publisher) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("audit export flush failed", "error", err)
	}
	p.client.Close()
}
