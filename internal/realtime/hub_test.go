package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gesservorconv/internal/platform/middleware"
)

func testHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(slog.New(slog.DiscardHandler), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, cancel
}

func recibir(t *testing.T, c *Cliente) Mensaje {
	t.Helper()
	select {
	case payload := <-c.salida:
		var m Mensaje
		require.NoError(t, json.Unmarshal(payload, &m))
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a realtime message")
		return Mensaje{}
	}
}

func sinMensajes(t *testing.T, c *Cliente) {
	t.Helper()
	select {
	case payload := <-c.salida:
		t.Fatalf("expected no message, got %s", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_AllSessionsOfUserReceiveInOrder(t *testing.T) {
	hub, cancel := testHub(t)
	defer cancel()

	sesionA := NewCliente(hub, nil, "user-1", slog.New(slog.DiscardHandler))
	sesionB := NewCliente(hub, nil, "user-1", slog.New(slog.DiscardHandler))
	hub.Join("user-1", sesionA)
	hub.Join("user-1", sesionB)

	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, hub.Publish(ctx, "user-1", Mensaje{
			Tipo:  EventoPropuestaComitente,
			ID:    i,
			Title: "Nueva propuesta",
		}))
	}

	for _, sesion := range []*Cliente{sesionA, sesionB} {
		for i := int64(1); i <= 3; i++ {
			m := recibir(t, sesion)
			assert.Equal(t, i, m.ID)
			assert.Equal(t, EventoPropuestaComitente, m.Tipo)
		}
	}
}

func TestHub_OtherUsersHearNothing(t *testing.T) {
	hub, cancel := testHub(t)
	defer cancel()

	destinatario := NewCliente(hub, nil, "user-1", slog.New(slog.DiscardHandler))
	otro := NewCliente(hub, nil, "user-2", slog.New(slog.DiscardHandler))
	hub.Join("user-1", destinatario)
	hub.Join("user-2", otro)

	require.NoError(t, hub.Publish(context.Background(), "user-1", Mensaje{
		Tipo:  EventoComitenteHabilitado,
		Title: "Comitente habilitado",
	}))

	m := recibir(t, destinatario)
	assert.Equal(t, EventoComitenteHabilitado, m.Tipo)
	sinMensajes(t, otro)
}

func TestHub_LateJoinGetsNoReplay(t *testing.T) {
	hub, cancel := testHub(t)
	defer cancel()

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, "user-1", Mensaje{
		Tipo: EventoComitenteAsociado,
		ID:   1,
	}))

	// Let the pump drain the publish before the session exists.
	time.Sleep(50 * time.Millisecond)

	tardio := NewCliente(hub, nil, "user-1", slog.New(slog.DiscardHandler))
	hub.Join("user-1", tardio)
	sinMensajes(t, tardio)

	// Only messages published after the join arrive.
	require.NoError(t, hub.Publish(ctx, "user-1", Mensaje{
		Tipo: EventoComitenteAsociado,
		ID:   2,
	}))
	m := recibir(t, tardio)
	assert.Equal(t, int64(2), m.ID)
}

func TestHub_LeaveDiscardsQueued(t *testing.T) {
	hub, cancel := testHub(t)
	defer cancel()

	sesion := NewCliente(hub, nil, "user-1", slog.New(slog.DiscardHandler))
	hub.Join("user-1", sesion)
	hub.Leave("user-1", sesion)

	// The send buffer is closed on leave; a second leave is a no-op.
	_, open := <-sesion.salida
	assert.False(t, open)
	hub.Leave("user-1", sesion)
}

// Sessions disconnecting in the middle of a fan-out must never crash the
// pump: closing a send buffer is serialized against deliveries into it.
func TestHub_ChurnDuringFanoutDoesNotPanic(t *testing.T) {
	hub, cancel := testHub(t)
	defer cancel()
	ctx := context.Background()

	publicado := make(chan struct{})
	go func() {
		defer close(publicado)
		for i := int64(0); i < 500; i++ {
			_ = hub.Publish(ctx, "user-1", Mensaje{
				Tipo: EventoPropuestaComitente,
				ID:   i,
			})
		}
	}()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				c := NewCliente(hub, nil, "user-1", slog.New(slog.DiscardHandler))
				hub.Join("user-1", c)
				hub.Leave("user-1", c)
			}
		}()
	}
	wg.Wait()
	<-publicado
}

type validadorFalso struct{}

func (validadorFalso) ValidateToken(token string) (*middleware.JWTClaims, error) {
	if token != "valido" {
		return nil, middleware.ErrMissingToken
	}
	return &middleware.JWTClaims{UsuarioID: "user-1", Rol: "comitente"}, nil
}

func TestHandler_RefusesAnonymousBeforeUpgrade(t *testing.T) {
	hub, cancel := testHub(t)
	defer cancel()

	handler := NewHandler(hub, validadorFalso{}, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodGet, "/ws/notificaciones", nil)
	rec := httptest.NewRecorder()
	handler.Serve(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
