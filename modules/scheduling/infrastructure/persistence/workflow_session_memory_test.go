package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/mobsched/modules/scheduling/services"
)

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore()
	store.now = func() time.Time { return now }
	tenant := uuid.New()
	state := services.NewWorkflow(services.SaveRequest{Kind: services.FlowSaveCrew, TenantID: tenant, TargetID: uuid.New()})

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, tenant, state, time.Minute))
		got, err := store.Get(ctx, tenant, state.ID)
		require.NoError(t, err)
		require.Equal(t, state.ID, got.ID)

		_, err = store.Get(ctx, uuid.New(), state.ID)
		require.ErrorIs(t, err, services.ErrSessionNotFound, "sessions are scoped by tenant")
	})

	t.Run("lock is exclusive until released", func(t *testing.T) {
		unlock, err := store.Lock(ctx, tenant, state.ID, time.Minute)
		require.NoError(t, err)
		_, err = store.Lock(ctx, tenant, state.ID, time.Minute)
		require.ErrorIs(t, err, services.ErrSessionBusy)
		unlock()
		unlock2, err := store.Lock(ctx, tenant, state.ID, time.Minute)
		require.NoError(t, err)
		unlock2()
	})

	t.Run("stale lock expires", func(t *testing.T) {
		_, err := store.Lock(ctx, tenant, state.ID, time.Second)
		require.NoError(t, err)
		now = now.Add(2 * time.Second)
		unlock, err := store.Lock(ctx, tenant, state.ID, time.Second)
		require.NoError(t, err)
		unlock()
	})

	t.Run("session expires after ttl", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, tenant, state, time.Minute))
		now = now.Add(time.Minute)
		_, err := store.Get(ctx, tenant, state.ID)
		require.ErrorIs(t, err, services.ErrSessionNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, tenant, state, time.Minute))
		require.NoError(t, store.Delete(ctx, tenant, state.ID))
		_, err := store.Get(ctx, tenant, state.ID)
		require.ErrorIs(t, err, services.ErrSessionNotFound)
	})
}
