package persistence

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/domain/timewindow"
	"github.com/fieldcrew/mobsched/modules/scheduling/infrastructure/persistence/models"
)

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgNullUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil || *id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgUUID(*id)
}

func pgUUIDs(ids []uuid.UUID) []pgtype.UUID {
	out := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		out = append(out, pgUUID(id))
	}
	return out
}

func pgTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func uuidPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}

func toDomainMobilization(m models.Mobilization) mobilization.Mobilization {
	return mobilization.Mobilization{
		TenantID:  m.TenantID,
		ID:        m.ID,
		JobID:     m.JobID,
		JobName:   m.JobName.String,
		GroupID:   uuidPtr(m.GroupID),
		CrewID:    uuidPtr(m.CrewID),
		Status:    m.Status,
		Window:    timewindow.Window{Start: m.StartsAt.UTC(), End: m.EndsAt.UTC()},
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func toDomainAssignment(a models.Assignment) mobilization.ResourceAssignment {
	return mobilization.ResourceAssignment{
		TenantID:       a.TenantID,
		ID:             a.ID,
		MobilizationID: a.MobilizationID,
		ResourceID:     a.ResourceID,
		ResourceType:   mobilization.ResourceType(a.ResourceType),
		CrewID:         uuidPtr(a.CrewID),
		WasAssigned:    true,
		CreatedAt:      a.CreatedAt.UTC(),
	}
}

func toDomainBooking(b models.Booking) mobilization.Booking {
	return mobilization.Booking{
		ResourceID:     b.ResourceID,
		ResourceName:   b.ResourceName,
		MobilizationID: b.MobilizationID,
		Window:         timewindow.Window{Start: b.StartsAt.UTC(), End: b.EndsAt.UTC()},
		JobName:        b.JobName,
		CrewName:       b.CrewName,
	}
}

func toDomainCrew(c models.Crew, members []uuid.UUID) mobilization.Crew {
	return mobilization.Crew{
		TenantID: c.TenantID,
		ID:       c.ID,
		Name:     c.Name,
		LeaderID: uuidPtr(c.LeaderID),
		Members:  members,
	}
}

func toDomainJob(j models.Job) mobilization.Job {
	return mobilization.Job{
		TenantID:  j.TenantID,
		ID:        j.ID,
		Name:      j.Name,
		StartDate: j.StartDate.UTC(),
		EndDate:   j.EndDate.UTC(),
	}
}

func toDomainTimesheet(e models.TimesheetEntry) mobilization.TimesheetEntry {
	return mobilization.TimesheetEntry{
		TenantID:       e.TenantID,
		ID:             e.ID,
		ContactID:      e.ContactID,
		MobilizationID: e.MobilizationID,
		JobID:          e.JobID,
		CostCode:       e.CostCode,
		ClockIn:        e.ClockIn.UTC(),
		ClockOut:       e.ClockOut.UTC(),
		PerDiem:        int(e.PerDiem),
		Notes:          e.Notes,
		CreatedAt:      e.CreatedAt.UTC(),
		UpdatedAt:      e.UpdatedAt.UTC(),
	}
}
