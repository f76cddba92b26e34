//go:build integration

package auditoria

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gesservorconv/pkg/platform/sentinel"
	txcontext "gesservorconv/pkg/platform/tx"
	"gesservorconv/pkg/testutil/containers"
)

func TestPostgresLedger(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	store, err := NewPostgres(pg.DB, TablaCuentas)
	require.NoError(t, err)

	limpiar := func(t *testing.T) {
		t.Helper()
		require.NoError(t, pg.TruncateAll(ctx))
	}

	t.Run("append and list newest first", func(t *testing.T) {
		limpiar(t)

		base := time.Now().UTC().Truncate(time.Millisecond)
		var previo int64
		for i := 0; i < 3; i++ {
			registro := RegistroAuditoria{
				Tabla:         "comitentes",
				CapturadoEn:   base.Add(time.Duration(i) * time.Second),
				ValoresNuevos: map[string]string{"razon_social": "ACME"},
			}
			require.NoError(t, store.Append(ctx, &registro))
			assert.Greater(t, registro.ID, previo, "append must hand back the assigned id")
			previo = registro.ID
		}
		require.NoError(t, store.Append(ctx, &RegistroAuditoria{
			Tabla:             "secretarios",
			CapturadoEn:       base,
			ValoresAnteriores: map[string]string{"habilitado": "true"},
		}))

		registros, err := store.ListByTabla(ctx, "comitentes", 10, 0)
		require.NoError(t, err)
		require.Len(t, registros, 3, "rows for other tables must not leak in")
		assert.True(t, registros[0].CapturadoEn.After(registros[1].CapturadoEn))
		assert.True(t, registros[1].CapturadoEn.After(registros[2].CapturadoEn))

		total, err := store.CountByTabla(ctx, "comitentes")
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
	})

	t.Run("nullability survives the round trip", func(t *testing.T) {
		limpiar(t)

		require.NoError(t, store.Append(ctx, &RegistroAuditoria{
			Tabla:         "comitentes",
			ValoresNuevos: map[string]string{"habilitado": "false"},
		}))
		require.NoError(t, store.Append(ctx, &RegistroAuditoria{
			Tabla:             "comitentes",
			ValoresAnteriores: map[string]string{"habilitado": "false"},
			ValoresNuevos:     map[string]string{"habilitado": "true"},
		}))

		registros, err := store.ListByTabla(ctx, "comitentes", 10, 0)
		require.NoError(t, err)
		require.Len(t, registros, 2)

		// Newest first: the update row, then the insert row.
		assert.NotNil(t, registros[0].ValoresAnteriores)
		assert.NotNil(t, registros[0].ValoresNuevos)
		assert.Nil(t, registros[1].ValoresAnteriores)
		assert.Equal(t, "false", registros[1].ValoresNuevos["habilitado"])
	})

	t.Run("row with neither side is rejected", func(t *testing.T) {
		err := store.Append(ctx, &RegistroAuditoria{Tabla: "comitentes"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, sentinel.ErrInvalidState))
	})

	t.Run("ledger write rolls back with the mutation", func(t *testing.T) {
		limpiar(t)

		runner := txcontext.NewSQLRunner(pg.DB)
		fallo := errors.New("mutation failed")
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			if err := store.Append(ctx, &RegistroAuditoria{
				Tabla:         "comitentes",
				ValoresNuevos: map[string]string{"razon_social": "ACME"},
			}); err != nil {
				return err
			}
			return fallo
		})
		require.ErrorIs(t, err, fallo)

		total, err := store.CountByTabla(ctx, "comitentes")
		require.NoError(t, err)
		assert.Zero(t, total, "rolled-back capture must leave no ledger row")
	})

	t.Run("unknown audit table is refused at construction", func(t *testing.T) {
		_, err := NewPostgres(pg.DB, "auditoria_inventada")
		require.Error(t, err)
	})
}
