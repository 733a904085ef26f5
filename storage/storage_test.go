package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"lbx/config"
	"lbx/models"
	"lbx/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachable(context.Context, *config.Config) (*Storage, error) {
	return nil, errors.New("connection refused")
}

func stubConnectors(t *testing.T) {
	t.Helper()
	origPostgres, origMongo := connectPostgres, connectMongo
	connectPostgres, connectMongo = unreachable, unreachable
	t.Cleanup(func() {
		connectPostgres, connectMongo = origPostgres, origMongo
	})
}

func TestOpen_Memory(t *testing.T) {
	cfg := config.NewTestConfig()

	store, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close(context.Background())

	assert.Equal(t, ModeMemory, store.Mode)
	assert.False(t, store.Fallback)
	assert.False(t, store.Durable())

	account, err := store.Accounts.GetOrCreate(context.Background(), "ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)

	require.NotNil(t, store.EventRules)
	rules, err := store.EventRules.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rules)

	require.NotNil(t, store.RechargeOrders)
	orders, err := store.RechargeOrders.List(context.Background(), "", "", 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOpen_UnreachableWithoutFallback(t *testing.T) {
	stubConnectors(t)

	for _, driver := range []string{config.StorageDriverPostgres, config.StorageDriverMongo} {
		t.Run(driver, func(t *testing.T) {
			cfg := config.NewTestConfig()
			cfg.StorageDriver = driver

			store, err := Open(context.Background(), cfg)
			assert.Nil(t, store)
			assert.ErrorIs(t, err, service.ErrStorageUnavailable)
		})
	}
}

func TestOpen_FallbackToMemory(t *testing.T) {
	stubConnectors(t)

	cfg := config.NewTestConfig()
	cfg.StorageDriver = config.StorageDriverPostgres
	cfg.AllowMemoryFallback = true

	store, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close(context.Background())

	assert.Equal(t, ModeMemory, store.Mode)
	assert.True(t, store.Fallback)
}

func TestOpen_FallbackPersistsToFirstWritableCandidate(t *testing.T) {
	stubConnectors(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "lbx.json")

	cfg := config.NewTestConfig()
	cfg.StorageDriver = config.StorageDriverMongo
	cfg.AllowMemoryFallback = true
	cfg.StatePersist = true
	cfg.StateFile = "/proc/lbx-not-writable/state.json, " + path

	ctx := context.Background()
	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, ModeFile, store.Mode)
	assert.True(t, store.Durable())

	_, err = store.Accounts.ApplyDelta(ctx, "ALICE", models.LedgerEntry{Delta: 25, Reason: models.ReasonAdminAdjust}, false)
	require.NoError(t, err)
	require.NoError(t, store.Close(ctx))

	reopened, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close(ctx)

	account, err := reopened.Accounts.GetOrCreate(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(25), account.Balance)
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.StorageDriver = "sqlite"

	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
