package mobilization

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ListFilter struct {
	From       time.Time
	To         time.Time
	ResourceID *uuid.UUID
	JobID      *uuid.UUID
}

type MobilizationRepository interface {
	Create(ctx context.Context, m Mobilization) (Mobilization, error)
	Update(ctx context.Context, m Mobilization) (Mobilization, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (Mobilization, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Mobilization, error)
	// ListFutureInGroup returns mobilizations of groupID starting after after.
	ListFutureInGroup(ctx context.Context, tenantID, groupID uuid.UUID, after time.Time) ([]Mobilization, error)
	// ListFutureForCrew returns mobilizations of crewID starting after after.
	ListFutureForCrew(ctx context.Context, tenantID, crewID uuid.UUID, after time.Time) ([]Mobilization, error)
}

type AssignmentRepository interface {
	ListByMobilization(ctx context.Context, tenantID, mobilizationID uuid.UUID) ([]ResourceAssignment, error)
	Exists(ctx context.Context, tenantID, mobilizationID, resourceID uuid.UUID) (bool, error)
	Insert(ctx context.Context, a ResourceAssignment) error
	Delete(ctx context.Context, tenantID, mobilizationID, resourceID uuid.UUID) (bool, error)
	DeleteByMobilization(ctx context.Context, tenantID, mobilizationID uuid.UUID) error
	// BookingsFor lists every assignment of the given resources together with
	// the mobilization window.
	BookingsFor(ctx context.Context, tenantID uuid.UUID, resourceIDs []uuid.UUID) ([]Booking, error)
}

// CrewMembership is one contact's membership of one crew.
type CrewMembership struct {
	ContactID uuid.UUID `json:"contact_id"`
	CrewID    uuid.UUID `json:"crew_id"`
	CrewName  string    `json:"crew_name"`
}

type CrewRepository interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (Crew, error)
	Save(ctx context.Context, crew Crew) error
	MembershipsOf(ctx context.Context, tenantID uuid.UUID, contactIDs []uuid.UUID) ([]CrewMembership, error)
}

type JobRepository interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (Job, error)
}

type TimesheetRepository interface {
	Insert(ctx context.Context, e TimesheetEntry) error
	Update(ctx context.Context, e TimesheetEntry) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (TimesheetEntry, error)
	CountByMobilization(ctx context.Context, tenantID, mobilizationID uuid.UUID) (int, error)
	ListByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]TimesheetEntry, error)
}
