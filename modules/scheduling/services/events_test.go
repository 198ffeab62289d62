package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/pkg/eventbus"
)

type recordedEvent struct {
	tenant uuid.UUID
	event  any
}

type fakeRecorder struct {
	events []recordedEvent
	err    error
}

func (r *fakeRecorder) Record(_ context.Context, tenantID uuid.UUID, event any) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, recordedEvent{tenant: tenantID, event: event})
	return nil
}

type pingEvent struct{ n int }

func TestWriteTx(t *testing.T) {
	tenant := uuid.New()

	t.Run("nested writes publish after the outermost one", func(t *testing.T) {
		bus := eventbus.NewEventPublisher(nil)
		var seen []int
		bus.Subscribe(func(e *pingEvent) { seen = append(seen, e.n) })
		sink := eventSink{bus: bus}

		_, err := writeTx(context.Background(), NoTx, sink, tenant, func(txCtx context.Context) (struct{}, []any, error) {
			_, err := writeTx(txCtx, NoTx, sink, tenant, func(context.Context) (struct{}, []any, error) {
				return struct{}{}, []any{&pingEvent{n: 1}}, nil
			})
			require.NoError(t, err)
			require.Empty(t, seen, "inner write must not publish before the outer commit")
			return struct{}{}, []any{&pingEvent{n: 2}}, nil
		})
		require.NoError(t, err)
		require.Equal(t, []int{1, 2}, seen)
	})

	t.Run("failed outer write drops nested events", func(t *testing.T) {
		bus := eventbus.NewEventPublisher(nil)
		published := 0
		bus.Subscribe(func(*pingEvent) { published++ })
		sink := eventSink{bus: bus}
		boom := errors.New("boom")

		_, err := writeTx(context.Background(), NoTx, sink, tenant, func(txCtx context.Context) (struct{}, []any, error) {
			_, _ = writeTx(txCtx, NoTx, sink, tenant, func(context.Context) (struct{}, []any, error) {
				return struct{}{}, []any{&pingEvent{n: 1}}, nil
			})
			return struct{}{}, nil, boom
		})
		require.ErrorIs(t, err, boom)
		require.Zero(t, published)
	})

	t.Run("recorder takes over delivery", func(t *testing.T) {
		bus := eventbus.NewEventPublisher(nil)
		published := 0
		bus.Subscribe(func(*pingEvent) { published++ })
		rec := &fakeRecorder{}

		_, err := writeTx(context.Background(), NoTx, eventSink{bus: bus, recorder: rec}, tenant, func(context.Context) (int, []any, error) {
			return 1, []any{&pingEvent{n: 7}}, nil
		})
		require.NoError(t, err)
		require.Zero(t, published)
		require.Len(t, rec.events, 1)
		require.Equal(t, tenant, rec.events[0].tenant)
	})

	t.Run("recorder failure fails the write", func(t *testing.T) {
		rec := &fakeRecorder{err: errors.New("outbox down")}
		_, err := writeTx(context.Background(), NoTx, eventSink{recorder: rec}, tenant, func(context.Context) (int, []any, error) {
			return 1, []any{&pingEvent{n: 7}}, nil
		})
		require.Error(t, err)
	})
}

func TestSchedulingService_EventRecorder(t *testing.T) {
	repo := newMemRepo()
	tenant := uuid.New()
	job := uuid.New()
	repo.jobs[job] = mobilization.Job{TenantID: tenant, ID: job, Name: "Pipeline", StartDate: day(10, 0), EndDate: day(12, 0)}
	m := repo.addMobilization(tenant, job, nil, nil, day(10, 8), 8)

	bus := eventbus.NewEventPublisher(nil)
	published := 0
	bus.Subscribe(func(*mobilization.MobilizationDeletedEvent) { published++ })
	rec := &fakeRecorder{}
	svc := NewSchedulingService(repo.repos(), bus, SchedulingOptions{
		Tx:     NoTx,
		Now:    func() time.Time { return fixedNow },
		Events: rec,
	})

	require.NoError(t, svc.DeleteMobilization(context.Background(), tenant, m.ID))
	require.Zero(t, published)
	require.Len(t, rec.events, 1)
	ev, ok := rec.events[0].event.(*mobilization.MobilizationDeletedEvent)
	require.True(t, ok)
	require.Equal(t, m.ID, ev.MobilizationID)
	require.Equal(t, fixedNow, ev.OccurredAt)
}
