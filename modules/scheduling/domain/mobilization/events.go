package mobilization

import (
	"time"

	"github.com/google/uuid"
)

// Events are published on the event bus after the surrounding transaction commits.

type ResourcesAssignedEvent struct {
	EventID        uuid.UUID    `json:"event_id"`
	TenantID       uuid.UUID    `json:"tenant_id"`
	RequestID      string       `json:"request_id,omitempty"`
	MobilizationID uuid.UUID    `json:"mobilization_id"`
	ResourceType   ResourceType `json:"resource_type"`
	ResourceIDs    []uuid.UUID  `json:"resource_ids"`
	Created        int          `json:"created"`
	Skipped        int          `json:"skipped"`
	OccurredAt     time.Time    `json:"occurred_at"`
}

type ResourceRemovedEvent struct {
	EventID         uuid.UUID   `json:"event_id"`
	TenantID        uuid.UUID   `json:"tenant_id"`
	RequestID       string      `json:"request_id,omitempty"`
	ResourceID      uuid.UUID   `json:"resource_id"`
	MobilizationIDs []uuid.UUID `json:"mobilization_ids"`
	OccurredAt      time.Time   `json:"occurred_at"`
}

type CrewSavedEvent struct {
	EventID    uuid.UUID   `json:"event_id"`
	TenantID   uuid.UUID   `json:"tenant_id"`
	RequestID  string      `json:"request_id,omitempty"`
	CrewID     uuid.UUID   `json:"crew_id"`
	Added      []uuid.UUID `json:"added"`
	Removed    []uuid.UUID `json:"removed"`
	Created    int         `json:"created"`
	Skipped    int         `json:"skipped"`
	OccurredAt time.Time   `json:"occurred_at"`
}

type MobilizationDeletedEvent struct {
	EventID        uuid.UUID `json:"event_id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	RequestID      string    `json:"request_id,omitempty"`
	MobilizationID uuid.UUID `json:"mobilization_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type TimesheetRecordedEvent struct {
	EventID    uuid.UUID   `json:"event_id"`
	TenantID   uuid.UUID   `json:"tenant_id"`
	RequestID  string      `json:"request_id,omitempty"`
	EntryIDs   []uuid.UUID `json:"entry_ids"`
	Updated    bool        `json:"updated"`
	OccurredAt time.Time   `json:"occurred_at"`
}
