package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/mobsched/pkg/eventbus"
)

// EventRecorder stores domain events inside the write transaction, for a
// relay to deliver after commit.
type EventRecorder interface {
	Record(ctx context.Context, tenantID uuid.UUID, event any) error
}

type eventSink struct {
	bus      eventbus.EventBus
	recorder EventRecorder
}

func (s eventSink) record(txCtx context.Context, tenantID uuid.UUID, events []any) error {
	if s.recorder == nil {
		return nil
	}
	for _, e := range events {
		if err := s.recorder.Record(txCtx, tenantID, e); err != nil {
			return mapPgErrorToServiceError(err)
		}
	}
	return nil
}

// publish is a no-op when a recorder is set: the relay owns delivery then.
func (s eventSink) publish(ctx context.Context, events []any) {
	if s.recorder != nil || s.bus == nil {
		return
	}
	for _, e := range events {
		s.bus.Publish(e)
		logWithFields(ctx, logrus.DebugLevel, "scheduling event published", logrus.Fields{"event": e})
	}
}

type pendingEventsKey struct{}

type pendingEvents struct {
	events []any
}

// writeTx runs fn in the tenant transaction and handles the events it
// returns. Nested writes hand their events to the outermost writeTx, which
// publishes everything once the shared transaction has committed.
func writeTx[T any](ctx context.Context, run TxRunner, sink eventSink, tenantID uuid.UUID, fn func(txCtx context.Context) (T, []any, error)) (T, error) {
	pending, nested := ctx.Value(pendingEventsKey{}).(*pendingEvents)
	if !nested {
		pending = &pendingEvents{}
		ctx = context.WithValue(ctx, pendingEventsKey{}, pending)
	}
	out, err := inTx(ctx, run, tenantID, func(txCtx context.Context) (T, error) {
		res, events, err := fn(txCtx)
		if err != nil {
			return res, err
		}
		if err := sink.record(txCtx, tenantID, events); err != nil {
			var zero T
			return zero, err
		}
		pending.events = append(pending.events, events...)
		return res, nil
	})
	if err != nil || nested {
		return out, err
	}
	sink.publish(ctx, pending.events)
	return out, nil
}
