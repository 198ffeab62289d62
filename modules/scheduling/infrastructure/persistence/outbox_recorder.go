package persistence

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/pkg/composables"
	"github.com/fieldcrew/mobsched/pkg/outbox"
)

var OutboxTable = pgx.Identifier{"scheduling_outbox"}

const (
	TopicResourcesAssigned   = "scheduling.resources_assigned.v1"
	TopicResourceRemoved     = "scheduling.resource_removed.v1"
	TopicCrewSaved           = "scheduling.crew_saved.v1"
	TopicMobilizationDeleted = "scheduling.mobilization_deleted.v1"
	TopicTimesheetRecorded   = "scheduling.timesheet_recorded.v1"
)

var ErrUnknownEvent = errors.New("unknown scheduling event")

// EventTopic returns the outbox topic and idempotency key of a scheduling
// event.
func EventTopic(event any) (string, uuid.UUID, error) {
	switch e := event.(type) {
	case *mobilization.ResourcesAssignedEvent:
		return TopicResourcesAssigned, e.EventID, nil
	case *mobilization.ResourceRemovedEvent:
		return TopicResourceRemoved, e.EventID, nil
	case *mobilization.CrewSavedEvent:
		return TopicCrewSaved, e.EventID, nil
	case *mobilization.MobilizationDeletedEvent:
		return TopicMobilizationDeleted, e.EventID, nil
	case *mobilization.TimesheetRecordedEvent:
		return TopicTimesheetRecorded, e.EventID, nil
	default:
		return "", uuid.Nil, errors.Wrapf(ErrUnknownEvent, "%T", event)
	}
}

// DecodeEvent rebuilds the pointer event the relay publishes on the bus.
func DecodeEvent(topic string, payload json.RawMessage) (any, error) {
	var event any
	switch topic {
	case TopicResourcesAssigned:
		event = &mobilization.ResourcesAssignedEvent{}
	case TopicResourceRemoved:
		event = &mobilization.ResourceRemovedEvent{}
	case TopicCrewSaved:
		event = &mobilization.CrewSavedEvent{}
	case TopicMobilizationDeleted:
		event = &mobilization.MobilizationDeletedEvent{}
	case TopicTimesheetRecorded:
		event = &mobilization.TimesheetRecordedEvent{}
	default:
		return nil, errors.Wrap(ErrUnknownEvent, topic)
	}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, errors.Wrapf(err, "decode %s", topic)
	}
	return event, nil
}

// OutboxRecorder writes events to scheduling_outbox through the transaction
// in ctx.
type OutboxRecorder struct {
	publisher outbox.Publisher
}

func NewOutboxRecorder() *OutboxRecorder {
	return &OutboxRecorder{publisher: outbox.NewPublisher()}
}

func (r *OutboxRecorder) Record(ctx context.Context, tenantID uuid.UUID, event any) error {
	topic, eventID, err := EventTopic(event)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "encode %s", topic)
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = r.publisher.Enqueue(ctx, tx, OutboxTable, outbox.Message{
		TenantID: tenantID,
		Topic:    topic,
		EventID:  eventID,
		Payload:  payload,
	})
	return err
}
