package notificaciones

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gesservorconv/internal/realtime"
	dErrors "gesservorconv/pkg/domain-errors"
)

type brokerEspia struct {
	publicados []realtime.Mensaje
	grupos     []string
	fallar     bool
}

func (b *brokerEspia) Publish(_ context.Context, grupo string, mensaje realtime.Mensaje) error {
	if b.fallar {
		return errors.New("broker down")
	}
	b.grupos = append(b.grupos, grupo)
	b.publicados = append(b.publicados, mensaje)
	return nil
}

func TestEmitir_PersistsThenPushes(t *testing.T) {
	broker := &brokerEspia{}
	svc := NewService(NewInMemoryStore(), broker, slog.New(slog.DiscardHandler), nil)

	n, err := svc.Emitir(context.Background(), "user-1", realtime.EventoComitenteHabilitado,
		"Comitente habilitado", "Su cuenta fue habilitada para operar.", "/cuentas/perfil")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.NotZero(t, n.ID)
	assert.False(t, n.Leida())

	require.Len(t, broker.publicados, 1)
	assert.Equal(t, []string{"user-1"}, broker.grupos)
	assert.Equal(t, n.ID, broker.publicados[0].ID)
	assert.Equal(t, realtime.EventoComitenteHabilitado, broker.publicados[0].Tipo)
	assert.Equal(t, "Comitente habilitado", broker.publicados[0].Title)
}

func TestEmitir_BrokerFailureDoesNotFailOperation(t *testing.T) {
	store := NewInMemoryStore()
	svc := NewService(store, &brokerEspia{fallar: true}, slog.New(slog.DiscardHandler), nil)

	n, err := svc.Emitir(context.Background(), "user-1", realtime.EventoPropuestaComitente,
		"Nueva propuesta", "Hay una propuesta para revisar.", "")
	require.NoError(t, err)

	// The stored row is the durable contract regardless of the push.
	guardada, err := store.GetByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nueva propuesta", guardada.Titulo)
}

func TestEmitir_RejectsEmptyRecipientAndTitle(t *testing.T) {
	svc := NewService(NewInMemoryStore(), &brokerEspia{}, slog.New(slog.DiscardHandler), nil)

	_, err := svc.Emitir(context.Background(), "", realtime.EventoComitenteAsociado, "Titulo", "", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = svc.Emitir(context.Background(), "user-1", realtime.EventoComitenteAsociado, "", "", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestList_NewestFirstScopedToRecipient(t *testing.T) {
	svc := NewService(NewInMemoryStore(), &brokerEspia{}, slog.New(slog.DiscardHandler), nil)
	ctx := context.Background()

	primera, err := svc.Emitir(ctx, "user-1", realtime.EventoComitenteAsociado, "Primera", "", "")
	require.NoError(t, err)
	segunda, err := svc.Emitir(ctx, "user-1", realtime.EventoComitenteAsociado, "Segunda", "", "")
	require.NoError(t, err)
	_, err = svc.Emitir(ctx, "user-2", realtime.EventoComitenteAsociado, "Ajena", "", "")
	require.NoError(t, err)

	items, err := svc.List(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, segunda.ID, items[0].ID)
	assert.Equal(t, primera.ID, items[1].ID)
}

func TestMarcarLeida_IdempotentAndScoped(t *testing.T) {
	store := NewInMemoryStore()
	svc := NewService(store, &brokerEspia{}, slog.New(slog.DiscardHandler), nil)
	ctx := context.Background()

	n, err := svc.Emitir(ctx, "user-1", realtime.EventoResponsableHabilitado,
		"Responsable Técnico habilitado", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.MarcarLeida(ctx, n.ID, "user-1"))
	leida, err := store.GetByID(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, leida.LeidaEn)
	primeraVez := *leida.LeidaEn

	// A second mark succeeds and keeps the original timestamp.
	require.NoError(t, svc.MarcarLeida(ctx, n.ID, "user-1"))
	leida, err = store.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, primeraVez, *leida.LeidaEn)

	// Another user's mark reads as not found.
	err = svc.MarcarLeida(ctx, n.ID, "user-2")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	count, err := svc.CountNoLeidas(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
