package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"lbx/config"
	"lbx/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustBalance(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.StatePersist = true
	cfg.StateFile = filepath.Join(t.TempDir(), "lbx-state.json")
	config.SetTestConfig(cfg)
	t.Cleanup(config.ResetConfig)

	ctx := context.Background()

	t.Run("persists across runs", func(t *testing.T) {
		balance, err := AdjustBalance(ctx, "alice", "25", "")
		require.NoError(t, err)
		assert.Equal(t, int64(25), balance)

		balance, err = AdjustBalance(ctx, "ALICE", "-40", "chargeback")
		require.NoError(t, err)
		assert.Equal(t, int64(-15), balance)
	})

	t.Run("rejects non-integer delta", func(t *testing.T) {
		_, err := AdjustBalance(ctx, "alice", "1.5", "")
		assert.True(t, errors.Is(err, service.ErrInvalidAmount))
	})

	t.Run("rejects empty account", func(t *testing.T) {
		_, err := AdjustBalance(ctx, "  ", "5", "")
		assert.True(t, errors.Is(err, service.ErrInvalidAccount))
	})
}
