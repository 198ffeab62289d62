package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Mobilization struct {
	TenantID  uuid.UUID
	ID        uuid.UUID
	JobID     uuid.UUID
	JobName   pgtype.Text
	GroupID   pgtype.UUID
	CrewID    pgtype.UUID
	Status    string
	StartsAt  time.Time
	EndsAt    time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Assignment struct {
	TenantID       uuid.UUID
	ID             uuid.UUID
	MobilizationID uuid.UUID
	ResourceID     uuid.UUID
	ResourceType   string
	CrewID         pgtype.UUID
	CreatedAt      time.Time
}

type Booking struct {
	ResourceID     uuid.UUID
	ResourceName   string
	MobilizationID uuid.UUID
	StartsAt       time.Time
	EndsAt         time.Time
	JobName        string
	CrewName       string
}

type Crew struct {
	TenantID uuid.UUID
	ID       uuid.UUID
	Name     string
	LeaderID pgtype.UUID
}

type Job struct {
	TenantID  uuid.UUID
	ID        uuid.UUID
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

type TimesheetEntry struct {
	TenantID       uuid.UUID
	ID             uuid.UUID
	ContactID      uuid.UUID
	MobilizationID uuid.UUID
	JobID          uuid.UUID
	CostCode       string
	ClockIn        time.Time
	ClockOut       time.Time
	PerDiem        int16
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
