package export

import (
	"context"

	"gesservorconv/internal/auditoria"
)

// Sink abstracts the publisher so the worker stays testable without Kafka.
type Sink interface {
	Publish(ctx context.Context, registro auditoria.RegistroAuditoria)
}

// Worker drains captured audit rows from a channel and hands them to the
// sink. The channel is fed non-blockingly by the capture engine, so a slow
// or absent Kafka never backs up the write path.
type Worker struct {
	sink  Sink
	inbox <-chan auditoria.RegistroAuditoria
}

func NewWorker(sink Sink, inbox <-chan auditoria.RegistroAuditoria) *Worker {
	return &Worker{sink: sink, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case registro := <-w.inbox:
			w.sink.Publish(ctx, registro)
		}
	}
}
