package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRunner_OnCommitSemantics(t *testing.T) {
	runner := NoopRunner{}
	ctx := context.Background()

	t.Run("hooks wait for the outermost call, in registration order", func(t *testing.T) {
		var orden []string
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			OnCommit(ctx, func() { orden = append(orden, "hook externo") })
			orden = append(orden, "fn externo")
			// A nested call joins the outer boundary instead of committing
			// on its own.
			return runner.RunInTx(ctx, func(ctx context.Context) error {
				OnCommit(ctx, func() { orden = append(orden, "hook anidado") })
				orden = append(orden, "fn anidado")
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"fn externo", "fn anidado", "hook externo", "hook anidado"}, orden)
	})

	t.Run("a failed run discards its hooks", func(t *testing.T) {
		corrido := false
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			OnCommit(ctx, func() { corrido = true })
			return errors.New("no commit")
		})
		require.Error(t, err)
		assert.False(t, corrido)
	})
}

func TestOnCommit_OutsideAnyTransactionRunsImmediately(t *testing.T) {
	corrido := false
	OnCommit(context.Background(), func() { corrido = true })
	assert.True(t, corrido)
}
