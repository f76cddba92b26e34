package cuentas

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gesservorconv/internal/auditoria"
	"gesservorconv/internal/enlaces"
	"gesservorconv/internal/notificaciones"
	"gesservorconv/internal/realtime"
	"gesservorconv/pkg/domain"
	dErrors "gesservorconv/pkg/domain-errors"
	txcontext "gesservorconv/pkg/platform/tx"
)

type emision struct {
	destinatario string
	tipo         realtime.Evento
	titulo       string
	enlace       string
}

type emisorEspia struct {
	emitidas []emision
}

func (e *emisorEspia) Emitir(_ context.Context, destinatarioID string, tipo realtime.Evento, titulo, _, enlace string) (*notificaciones.Notificacion, error) {
	e.emitidas = append(e.emitidas, emision{
		destinatario: destinatarioID,
		tipo:         tipo,
		titulo:       titulo,
		enlace:       enlace,
	})
	return &notificaciones.Notificacion{ID: int64(len(e.emitidas))}, nil
}

type entorno struct {
	svc       *Service
	emisor    *emisorEspia
	auditoria *auditoria.InMemoryStore
}

func nuevoEntorno(t *testing.T) *entorno {
	t.Helper()

	ledger := auditoria.NewInMemoryStore()
	captura := auditoria.NewCapturador(nil)
	captura.Registrar(TablaComitentes, ledger)
	captura.Registrar(TablaResponsables, ledger)
	captura.Registrar(TablaSecretarios, ledger)

	emisor := &emisorEspia{}
	svc := NewService(
		NewInMemoryStore(),
		captura,
		emisor,
		txcontext.NoopRunner{},
		enlaces.New("https", "portal.example.org"),
		slog.New(slog.DiscardHandler),
		nil,
	)
	return &entorno{svc: svc, emisor: emisor, auditoria: ledger}
}

func responsableDePrueba(habilitado bool) *ResponsableTecnico {
	return &ResponsableTecnico{
		UsuarioID:                domain.UsuarioID(uuid.New()),
		Nombre:                   "Ana Gómez",
		CUIL:                     20123456786,
		Habilitado:               habilitado,
		HabilitadoOrganizaciones: []bool{false, false},
	}
}

func TestGate_ResponsableDisabledToEnabledFiresOnce(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()

	r := responsableDePrueba(false)
	require.NoError(t, e.svc.GuardarResponsable(ctx, r))
	assert.Empty(t, e.emisor.emitidas, "first save must not notify")

	r.Habilitado = true
	require.NoError(t, e.svc.GuardarResponsable(ctx, r))
	require.Len(t, e.emisor.emitidas, 1)
	assert.Equal(t, "Responsable Técnico habilitado", e.emisor.emitidas[0].titulo)
	assert.Equal(t, realtime.EventoResponsableHabilitado, e.emisor.emitidas[0].tipo)
	assert.Equal(t, r.UsuarioID.String(), e.emisor.emitidas[0].destinatario)
	assert.Equal(t, "https://portal.example.org/cuentas/responsable-tecnico", e.emisor.emitidas[0].enlace)

	// Saving true over true is not a transition.
	require.NoError(t, e.svc.GuardarResponsable(ctx, r))
	assert.Len(t, e.emisor.emitidas, 1)
}

func TestGate_FirstSaveAlreadyEnabledDoesNotFire(t *testing.T) {
	e := nuevoEntorno(t)

	r := responsableDePrueba(true)
	require.NoError(t, e.svc.GuardarResponsable(context.Background(), r))
	assert.Empty(t, e.emisor.emitidas)
}

func TestGate_ComitenteTransitionUsesItsOwnTitle(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()

	c := &Comitente{
		UsuarioID:   domain.UsuarioID(uuid.New()),
		RazonSocial: "Aceros del Sur S.A.",
		CUIT:        30123456781,
	}
	require.NoError(t, e.svc.GuardarComitente(ctx, c))

	c.Habilitado = true
	require.NoError(t, e.svc.GuardarComitente(ctx, c))
	require.Len(t, e.emisor.emitidas, 1)
	assert.Equal(t, "Comitente habilitado", e.emisor.emitidas[0].titulo)
	assert.Equal(t, realtime.EventoComitenteHabilitado, e.emisor.emitidas[0].tipo)
}

func TestGate_OrganizationalFlagsDoNotFire(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()

	r := responsableDePrueba(false)
	require.NoError(t, e.svc.GuardarResponsable(ctx, r))

	r.HabilitadoOrganizaciones = []bool{true, true}
	require.NoError(t, e.svc.GuardarResponsable(ctx, r))
	assert.Empty(t, e.emisor.emitidas)
}

func TestGuardarComitente_RejectsInvalidCUIT(t *testing.T) {
	e := nuevoEntorno(t)

	c := &Comitente{RazonSocial: "Aceros del Sur S.A.", CUIT: 30123456782}
	err := e.svc.GuardarComitente(context.Background(), c)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestGuardar_WritesOneAuditRowPerMutation(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()

	r := responsableDePrueba(false)
	require.NoError(t, e.svc.GuardarResponsable(ctx, r))
	r.Habilitado = true
	require.NoError(t, e.svc.GuardarResponsable(ctx, r))

	count, err := e.auditoria.CountByTabla(ctx, TablaResponsables)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	registros, err := e.auditoria.ListByTabla(ctx, TablaResponsables, 10, 0)
	require.NoError(t, err)
	require.Len(t, registros, 2)
	// Newest first: the update carries both images, the insert only new.
	assert.NotNil(t, registros[0].ValoresAnteriores)
	assert.Equal(t, "false", registros[0].ValoresAnteriores["habilitado"])
	assert.Equal(t, "true", registros[0].ValoresNuevos["habilitado"])
	assert.Nil(t, registros[1].ValoresAnteriores)
}

type enTx struct{}

// runnerContable counts outermost transaction boundaries and lets nested
// calls join, mirroring the SQL runner's reentrancy.
type runnerContable struct {
	transacciones int
}

func (r *runnerContable) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(enTx{}) != nil {
		return fn(ctx)
	}
	r.transacciones++
	return fn(context.WithValue(ctx, enTx{}, true))
}

// A batch association is atomic: every comitente joins one transaction, and
// a failure midway notifies nobody.
func TestAsociarComitentes_BatchIsOneTransaction(t *testing.T) {
	runner := &runnerContable{}
	captura := auditoria.NewCapturador(nil)
	captura.Registrar(TablaComitentes, auditoria.NewInMemoryStore())
	emisor := &emisorEspia{}
	svc := NewService(
		NewInMemoryStore(),
		captura,
		emisor,
		runner,
		enlaces.New("https", "portal.example.org"),
		slog.New(slog.DiscardHandler),
		nil,
	)

	ctx := context.Background()
	usuario := domain.UsuarioID(uuid.New())
	primero := &Comitente{RazonSocial: "Laboratorio Norte", CUIT: 30123456781}
	segundo := &Comitente{RazonSocial: "Vialidad Este", CUIT: 34123456787}
	require.NoError(t, svc.GuardarComitente(ctx, primero))
	require.NoError(t, svc.GuardarComitente(ctx, segundo))

	t.Run("the whole batch shares one transaction", func(t *testing.T) {
		antes := runner.transacciones
		require.NoError(t, svc.AsociarComitentes(ctx, []domain.ComitenteID{primero.ID, segundo.ID}, usuario))
		assert.Equal(t, antes+1, runner.transacciones)
		assert.Len(t, emisor.emitidas, 1)
	})

	t.Run("a failure midway notifies nobody", func(t *testing.T) {
		emitidas := len(emisor.emitidas)
		err := svc.AsociarComitentes(ctx, []domain.ComitenteID{primero.ID, domain.ComitenteID(uuid.New())}, usuario)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
		assert.Len(t, emisor.emitidas, emitidas)
	})
}

func TestAsociaciones_FireTheirEventKinds(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()
	usuario := domain.UsuarioID(uuid.New())

	primero := &Comitente{RazonSocial: "Laboratorio Norte", CUIT: 30123456781}
	segundo := &Comitente{RazonSocial: "Vialidad Este", CUIT: 34123456787}
	require.NoError(t, e.svc.GuardarComitente(ctx, primero))
	require.NoError(t, e.svc.GuardarComitente(ctx, segundo))

	require.NoError(t, e.svc.AsociarComitente(ctx, primero.ID, usuario))
	require.NoError(t, e.svc.AsociarComitentes(ctx, []domain.ComitenteID{primero.ID, segundo.ID}, usuario))

	r := responsableDePrueba(false)
	require.NoError(t, e.svc.GuardarResponsable(ctx, r))
	require.NoError(t, e.svc.AsociarResponsable(ctx, r.ID, usuario))

	var tipos []realtime.Evento
	for _, em := range e.emisor.emitidas {
		tipos = append(tipos, em.tipo)
	}
	assert.Equal(t, []realtime.Evento{
		realtime.EventoComitenteAsociado,
		realtime.EventoComitentesAsociados,
		realtime.EventoResponsableTecnicoAsociado,
	}, tipos)
}
