//go:build integration

package bitacora

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gesservorconv/pkg/platform/sentinel"
	"gesservorconv/pkg/testutil/containers"
)

func TestPostgresStore_NaturalKey(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()
	store := NewPostgres(pg.DB)

	momento := time.Now().UTC().Truncate(time.Millisecond)
	usuario := "e5a1f1f0-13a8-44a3-9ccc-2a9d6fbb8f01"

	require.NoError(t, store.Save(ctx, &Registro{
		ClienteID:    "cliente-7",
		RegistradoEn: momento,
		Navegador:    "Chrome 120.0.0.0 (Windows 10)",
		UsuarioID:    &usuario,
		Mensaje:      "ingreso al portal",
	}))

	t.Run("same client and instant conflicts", func(t *testing.T) {
		err := store.Save(ctx, &Registro{
			ClienteID:    "cliente-7",
			RegistradoEn: momento,
			Navegador:    "Firefox 121.0 (Linux x86_64)",
			Mensaje:      "reintento",
		})
		require.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("same instant for another client is fine", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, &Registro{
			ClienteID:    "cliente-8",
			RegistradoEn: momento,
			Navegador:    "desconocido",
			Mensaje:      "ingreso al portal",
		}))
	})

	t.Run("list keeps the nullable usuario and newest first", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, &Registro{
			ClienteID:    "cliente-7",
			RegistradoEn: momento.Add(time.Minute),
			Navegador:    "desconocido",
			Mensaje:      "segunda visita",
		}))

		items, err := store.ListByCliente(ctx, "cliente-7", 10, 0)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "segunda visita", items[0].Mensaje)
		assert.Nil(t, items[0].UsuarioID)
		require.NotNil(t, items[1].UsuarioID)
		assert.Equal(t, usuario, *items[1].UsuarioID)
	})
}
