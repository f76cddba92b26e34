package solicitudes

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gesservorconv/internal/auditoria"
	"gesservorconv/internal/cuentas"
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
}

type emisorEspia struct {
	emitidas []emision
}

func (e *emisorEspia) Emitir(_ context.Context, destinatarioID string, tipo realtime.Evento, titulo, _, _ string) (*notificaciones.Notificacion, error) {
	e.emitidas = append(e.emitidas, emision{destinatario: destinatarioID, tipo: tipo, titulo: titulo})
	return &notificaciones.Notificacion{ID: int64(len(e.emitidas))}, nil
}

type entorno struct {
	svc         *Service
	emisor      *emisorEspia
	ledger      *auditoria.InMemoryStore
	comitente   *cuentas.Comitente
	responsable *cuentas.ResponsableTecnico
	secretario  *cuentas.Secretario
}

func nuevoEntorno(t *testing.T) *entorno {
	t.Helper()
	ctx := context.Background()

	accounts := cuentas.NewInMemoryStore()
	comitente := &cuentas.Comitente{
		ID:          domain.ComitenteID(uuid.New()),
		UsuarioID:   domain.UsuarioID(uuid.New()),
		RazonSocial: "Aceros del Sur S.A.",
		CUIT:        30123456781,
		Habilitado:  true,
	}
	responsable := &cuentas.ResponsableTecnico{
		ID:         domain.ResponsableID(uuid.New()),
		UsuarioID:  domain.UsuarioID(uuid.New()),
		Nombre:     "Ana Gómez",
		CUIL:       20123456786,
		Habilitado: true,
	}
	secretario := &cuentas.Secretario{
		ID:         domain.SecretarioID(uuid.New()),
		UsuarioID:  domain.UsuarioID(uuid.New()),
		Nombre:     "Luis Paz",
		Habilitado: true,
	}
	require.NoError(t, accounts.SaveComitente(ctx, comitente))
	require.NoError(t, accounts.SaveResponsable(ctx, responsable))
	require.NoError(t, accounts.SaveSecretario(ctx, secretario))

	ledger := auditoria.NewInMemoryStore()
	captura := auditoria.NewCapturador(nil)
	captura.Registrar(TablaSolicitudes, ledger)
	captura.Registrar(TablaPropuestas, ledger)

	emisor := &emisorEspia{}
	svc := NewService(
		NewInMemoryStore(),
		accounts,
		captura,
		emisor,
		txcontext.NoopRunner{},
		enlaces.New("https", "portal.example.org"),
		slog.New(slog.DiscardHandler),
		nil,
	)
	return &entorno{
		svc:         svc,
		emisor:      emisor,
		ledger:      ledger,
		comitente:   comitente,
		responsable: responsable,
		secretario:  secretario,
	}
}

func (e *entorno) solicitudEnNegociacion(t *testing.T) (*Solicitud, *Propuesta) {
	t.Helper()
	ctx := context.Background()

	sol, err := e.svc.CrearSolicitud(ctx, e.comitente.ID, "Ensayo de materiales", "Ensayo de tracción sobre muestras.")
	require.NoError(t, err)
	require.NoError(t, e.svc.AsignarResponsable(ctx, sol.ID, e.responsable.ID, e.secretario.ID))
	propuesta, err := e.svc.PresentarPropuesta(ctx, sol.ID, e.responsable.ID, "Diez ensayos", 150000_00, 30)
	require.NoError(t, err)
	return sol, propuesta
}

func TestCrearSolicitud_RequiresHabilitadoComitente(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()

	sol, err := e.svc.CrearSolicitud(ctx, e.comitente.ID, "Ensayo de materiales", "")
	require.NoError(t, err)
	assert.Equal(t, SolicitudPendiente, sol.Estado)

	deshabilitado := &cuentas.Comitente{
		ID:          domain.ComitenteID(uuid.New()),
		RazonSocial: "Vialidad Este",
		CUIT:        34123456787,
		Habilitado:  false,
	}
	accounts := e.svc.cuentas.(*cuentas.InMemoryStore)
	require.NoError(t, accounts.SaveComitente(ctx, deshabilitado))

	_, err = e.svc.CrearSolicitud(ctx, deshabilitado.ID, "Otro ensayo", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestPresentarPropuesta_DemotesPreviousActual(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()
	sol, primera := e.solicitudEnNegociacion(t)

	segunda, err := e.svc.PresentarPropuesta(ctx, sol.ID, e.responsable.ID, "Quince ensayos", 200000_00, 45)
	require.NoError(t, err)

	todas, err := e.svc.store.ListPropuestas(ctx, sol.ID)
	require.NoError(t, err)
	require.Len(t, todas, 2)

	actual, err := e.svc.store.GetPropuestaActual(ctx, sol.ID)
	require.NoError(t, err)
	assert.Equal(t, segunda.ID, actual.ID)

	demotada, err := e.svc.store.GetPropuesta(ctx, primera.ID)
	require.NoError(t, err)
	assert.False(t, demotada.Actual)
}

func TestPresentarPropuesta_NotifiesComitenteAndMovesState(t *testing.T) {
	e := nuevoEntorno(t)
	sol, _ := e.solicitudEnNegociacion(t)

	actual, err := e.svc.store.GetSolicitud(context.Background(), sol.ID)
	require.NoError(t, err)
	assert.Equal(t, SolicitudEnNegociacion, actual.Estado)

	var propuestaEvents []emision
	for _, em := range e.emisor.emitidas {
		if em.tipo == realtime.EventoPropuestaComitente {
			propuestaEvents = append(propuestaEvents, em)
		}
	}
	require.Len(t, propuestaEvents, 1)
	assert.Equal(t, e.comitente.UsuarioID.String(), propuestaEvents[0].destinatario)
	assert.Equal(t, "Nueva propuesta", propuestaEvents[0].titulo)
}

func TestPresentarPropuesta_RequiresAssignedHabilitadoResponsable(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()

	sol, err := e.svc.CrearSolicitud(ctx, e.comitente.ID, "Ensayo de materiales", "")
	require.NoError(t, err)

	// Not assigned yet.
	_, err = e.svc.PresentarPropuesta(ctx, sol.ID, e.responsable.ID, "Diez ensayos", 1000, 10)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	// Assigned but disabled.
	require.NoError(t, e.svc.AsignarResponsable(ctx, sol.ID, e.responsable.ID, e.secretario.ID))
	accounts := e.svc.cuentas.(*cuentas.InMemoryStore)
	e.responsable.Habilitado = false
	require.NoError(t, accounts.UpdateResponsable(ctx, e.responsable))

	_, err = e.svc.PresentarPropuesta(ctx, sol.ID, e.responsable.ID, "Diez ensayos", 1000, 10)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestDecidirPropuesta_AcceptPinsResultado(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()
	sol, propuesta := e.solicitudEnNegociacion(t)

	require.NoError(t, e.svc.DecidirPropuesta(ctx, sol.ID, propuesta.ID, e.comitente.ID, true, ResultadoConvenio))

	actual, err := e.svc.store.GetSolicitud(ctx, sol.ID)
	require.NoError(t, err)
	assert.Equal(t, SolicitudAceptada, actual.Estado)
	assert.Equal(t, ResultadoConvenio, actual.Resultado)

	decidida, err := e.svc.store.GetPropuesta(ctx, propuesta.ID)
	require.NoError(t, err)
	assert.Equal(t, PropuestaAceptada, decidida.Estado)

	// A decided proposal cannot be decided again.
	err = e.svc.DecidirPropuesta(ctx, sol.ID, propuesta.ID, e.comitente.ID, false, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestDecidirPropuesta_RejectKeepsNegotiationOpen(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()
	sol, propuesta := e.solicitudEnNegociacion(t)

	require.NoError(t, e.svc.DecidirPropuesta(ctx, sol.ID, propuesta.ID, e.comitente.ID, false, ""))

	actual, err := e.svc.store.GetSolicitud(ctx, sol.ID)
	require.NoError(t, err)
	assert.Equal(t, SolicitudEnNegociacion, actual.Estado)

	rechazada, err := e.svc.store.GetPropuesta(ctx, propuesta.ID)
	require.NoError(t, err)
	assert.Equal(t, PropuestaRechazada, rechazada.Estado)
	assert.False(t, rechazada.Actual)

	// The responsable can come back with a new proposal.
	_, err = e.svc.PresentarPropuesta(ctx, sol.ID, e.responsable.ID, "Oferta revisada", 120000_00, 20)
	require.NoError(t, err)
}

func TestDecidirPropuesta_OnlyOwningComitente(t *testing.T) {
	e := nuevoEntorno(t)
	sol, propuesta := e.solicitudEnNegociacion(t)

	otro := domain.ComitenteID(uuid.New())
	err := e.svc.DecidirPropuesta(context.Background(), sol.ID, propuesta.ID, otro, true, ResultadoConvenio)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestDecidirPropuesta_AcceptRequiresValidResultado(t *testing.T) {
	e := nuevoEntorno(t)
	sol, propuesta := e.solicitudEnNegociacion(t)

	err := e.svc.DecidirPropuesta(context.Background(), sol.ID, propuesta.ID, e.comitente.ID, true, "contrato")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestFinalizarYCancelar_FollowTheStateMachine(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()
	sol, propuesta := e.solicitudEnNegociacion(t)

	// Finalizing before acceptance is a state violation.
	err := e.svc.Finalizar(ctx, sol.ID, e.secretario.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	require.NoError(t, e.svc.DecidirPropuesta(ctx, sol.ID, propuesta.ID, e.comitente.ID, true, ResultadoOrdenServicio))
	require.NoError(t, e.svc.Finalizar(ctx, sol.ID, e.secretario.ID))

	actual, err := e.svc.store.GetSolicitud(ctx, sol.ID)
	require.NoError(t, err)
	assert.Equal(t, SolicitudFinalizada, actual.Estado)

	// A finalized solicitud cannot be cancelled.
	err = e.svc.Cancelar(ctx, sol.ID, e.secretario.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestCancelar_RequiresHabilitadoSecretario(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()
	sol, _ := e.solicitudEnNegociacion(t)

	accounts := e.svc.cuentas.(*cuentas.InMemoryStore)
	e.secretario.Habilitado = false
	require.NoError(t, accounts.UpdateSecretario(ctx, e.secretario))

	err := e.svc.Cancelar(ctx, sol.ID, e.secretario.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestWorkflow_EveryMutationLeavesAnAuditRow(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()
	sol, propuesta := e.solicitudEnNegociacion(t)
	require.NoError(t, e.svc.DecidirPropuesta(ctx, sol.ID, propuesta.ID, e.comitente.ID, true, ResultadoConvenio))

	// Create, assign, move to negotiation, accept: four solicitud rows.
	countSolicitudes, err := e.ledger.CountByTabla(ctx, TablaSolicitudes)
	require.NoError(t, err)
	assert.EqualValues(t, 4, countSolicitudes)

	// Insert plus acceptance update: two propuesta rows.
	countPropuestas, err := e.ledger.CountByTabla(ctx, TablaPropuestas)
	require.NoError(t, err)
	assert.EqualValues(t, 2, countPropuestas)
}
