package export

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gesservorconv/internal/auditoria"
)

type sinkEspia struct {
	mu       sync.Mutex
	recibido []auditoria.RegistroAuditoria
}

func (s *sinkEspia) Publish(_ context.Context, registro auditoria.RegistroAuditoria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recibido = append(s.recibido, registro)
}

func (s *sinkEspia) registros() []auditoria.RegistroAuditoria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]auditoria.RegistroAuditoria(nil), s.recibido...)
}

func TestWorker_DrainsInboxInOrder(t *testing.T) {
	sink := &sinkEspia{}
	inbox := make(chan auditoria.RegistroAuditoria, 8)
	worker := NewWorker(sink, inbox)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	for i := int64(1); i <= 3; i++ {
		inbox <- auditoria.RegistroAuditoria{
			ID:            i,
			Tabla:         "comitentes",
			ValoresNuevos: map[string]string{"habilitado": "true"},
		}
	}

	require.Eventually(t, func() bool {
		return len(sink.registros()) == 3
	}, time.Second, 10*time.Millisecond)

	registros := sink.registros()
	for i, r := range registros {
		assert.EqualValues(t, i+1, r.ID, "inbox order must survive the hand-off")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
