package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/infrastructure/persistence/models"
	"github.com/fieldcrew/mobsched/pkg/composables"
)

const timesheetSelect = `
SELECT tenant_id, id, contact_id, mobilization_id, job_id, cost_code, clock_in, clock_out,
       per_diem, notes, created_at, updated_at
FROM scheduling_timesheet_entries
`

type TimesheetRepository struct{}

func NewTimesheetRepository() mobilization.TimesheetRepository {
	return &TimesheetRepository{}
}

func scanTimesheet(row pgx.Row) (models.TimesheetEntry, error) {
	var e models.TimesheetEntry
	err := row.Scan(
		&e.TenantID, &e.ID, &e.ContactID, &e.MobilizationID, &e.JobID, &e.CostCode,
		&e.ClockIn, &e.ClockOut, &e.PerDiem, &e.Notes, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func (r *TimesheetRepository) Insert(ctx context.Context, e mobilization.TimesheetEntry) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO scheduling_timesheet_entries
    (tenant_id, id, contact_id, mobilization_id, job_id, cost_code, clock_in, clock_out, per_diem, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`, pgUUID(e.TenantID), pgUUID(e.ID), pgUUID(e.ContactID), pgUUID(e.MobilizationID), pgUUID(e.JobID),
		e.CostCode, e.ClockIn, e.ClockOut, int16(e.PerDiem), e.Notes, e.CreatedAt, e.UpdatedAt); err != nil {
		return errors.Wrap(err, "insert timesheet entry")
	}
	return nil
}

func (r *TimesheetRepository) Update(ctx context.Context, e mobilization.TimesheetEntry) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
UPDATE scheduling_timesheet_entries
SET cost_code = $3, clock_in = $4, clock_out = $5, per_diem = $6, notes = $7, updated_at = $8
WHERE tenant_id = $1 AND id = $2
`, pgUUID(e.TenantID), pgUUID(e.ID), e.CostCode, e.ClockIn, e.ClockOut, int16(e.PerDiem), e.Notes, e.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "update timesheet entry")
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *TimesheetRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (mobilization.TimesheetEntry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return mobilization.TimesheetEntry{}, err
	}
	e, err := scanTimesheet(tx.QueryRow(ctx, timesheetSelect+`WHERE tenant_id = $1 AND id = $2`, pgUUID(tenantID), pgUUID(id)))
	if err != nil {
		return mobilization.TimesheetEntry{}, errors.Wrap(err, "get timesheet entry")
	}
	return toDomainTimesheet(e), nil
}

func (r *TimesheetRepository) CountByMobilization(ctx context.Context, tenantID, mobilizationID uuid.UUID) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := tx.QueryRow(ctx, `
SELECT count(*) FROM scheduling_timesheet_entries WHERE tenant_id = $1 AND mobilization_id = $2
`, pgUUID(tenantID), pgUUID(mobilizationID)).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count timesheet entries")
	}
	return n, nil
}

func (r *TimesheetRepository) ListByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]mobilization.TimesheetEntry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, timesheetSelect+`WHERE tenant_id = $1 AND job_id = $2 ORDER BY clock_in, id`, pgUUID(tenantID), pgUUID(jobID))
	if err != nil {
		return nil, errors.Wrap(err, "list timesheet entries")
	}
	defer rows.Close()

	out := make([]mobilization.TimesheetEntry, 0)
	for rows.Next() {
		e, err := scanTimesheet(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan timesheet entry")
		}
		out = append(out, toDomainTimesheet(e))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate timesheet entries")
	}
	return out, nil
}
