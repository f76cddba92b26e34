package handler

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"gesservorconv/internal/auditoria"
	"gesservorconv/internal/cuentas"
	"gesservorconv/internal/enlaces"
	jwttoken "gesservorconv/internal/jwt_token"
	dErrors "gesservorconv/pkg/domain-errors"
	txcontext "gesservorconv/pkg/platform/tx"
	"gesservorconv/pkg/testutil"
)

const cuitValido = 30123456781

func montar(t *testing.T) (http.Handler, *jwttoken.JWTService) {
	t.Helper()
	log := slog.New(slog.DiscardHandler)

	captura := auditoria.NewCapturador(nil)
	captura.Registrar(cuentas.TablaComitentes, auditoria.NewInMemoryStore())
	captura.Registrar(cuentas.TablaResponsables, auditoria.NewInMemoryStore())
	captura.Registrar(cuentas.TablaSecretarios, auditoria.NewInMemoryStore())

	svc := cuentas.NewService(cuentas.NewInMemoryStore(), captura, nil,
		txcontext.NoopRunner{}, enlaces.New("https", "portal.example"), log, nil)

	jwtService := jwttoken.NewJWTService("test-signing-key", "gesservorconv", "gesservorconv")
	router := chi.NewRouter()
	New(svc, log, nil, jwtService).Register(router)
	return router, jwtService
}

func conRol(t *testing.T, jwtService *jwttoken.JWTService, req *http.Request, rol string) *http.Request {
	t.Helper()
	token, err := jwtService.GenerateAccessToken(uuid.New(), rol, time.Minute)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestGuardarComitente_SecretarioOnly(t *testing.T) {
	router, jwtService := montar(t)

	cuerpo := map[string]any{"razon_social": "ACME SA", "cuit": cuitValido}

	t.Run("comitente role is refused", func(t *testing.T) {
		req := conRol(t, jwtService, testutil.NewJSONRequest(t, http.MethodPut, "/cuentas/comitentes", cuerpo), "comitente")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})

	t.Run("secretario role saves and gets an id back", func(t *testing.T) {
		req := conRol(t, jwtService, testutil.NewJSONRequest(t, http.MethodPut, "/cuentas/comitentes", cuerpo), "secretario")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONHasKey(t, rr, "id")

		resp := testutil.UnmarshalResponse[map[string]string](t, rr)
		id := (*resp)["id"]

		leer := conRol(t, jwtService, testutil.NewRequest(t, http.MethodGet, "/cuentas/comitentes/"+id), "comitente")
		rrLeer := testutil.DoRequest(router, leer)
		testutil.AssertStatusOK(t, rrLeer)
		testutil.AssertJSONContains(t, rrLeer, "razon_social", "ACME SA")
	})

	t.Run("invalid CUIT is rejected", func(t *testing.T) {
		malo := map[string]any{"razon_social": "ACME SA", "cuit": 30123456782}
		req := conRol(t, jwtService, testutil.NewJSONRequest(t, http.MethodPut, "/cuentas/comitentes", malo), "secretario")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})
}

func TestAsociarComitente_ValidatesUsuario(t *testing.T) {
	router, jwtService := montar(t)

	alta := conRol(t, jwtService, testutil.NewJSONRequest(t, http.MethodPut, "/cuentas/comitentes",
		map[string]any{"razon_social": "ACME SA", "cuit": cuitValido}), "secretario")
	rr := testutil.DoRequest(router, alta)
	testutil.AssertStatusOK(t, rr)
	id := (*testutil.UnmarshalResponse[map[string]string](t, rr))["id"]

	t.Run("nil usuario id is refused", func(t *testing.T) {
		req := conRol(t, jwtService, testutil.NewJSONRequest(t, http.MethodPost, "/cuentas/comitentes/"+id+"/asociar",
			map[string]any{"usuario_id": uuid.Nil.String()}), "secretario")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	t.Run("valid usuario id associates", func(t *testing.T) {
		req := conRol(t, jwtService, testutil.NewJSONRequest(t, http.MethodPost, "/cuentas/comitentes/"+id+"/asociar",
			map[string]any{"usuario_id": uuid.NewString()}), "secretario")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusNoContent)
	})
}
