package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/infrastructure/persistence/models"
	"github.com/fieldcrew/mobsched/pkg/composables"
)

type AssignmentRepository struct{}

func NewAssignmentRepository() mobilization.AssignmentRepository {
	return &AssignmentRepository{}
}

func (r *AssignmentRepository) ListByMobilization(ctx context.Context, tenantID, mobilizationID uuid.UUID) ([]mobilization.ResourceAssignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT tenant_id, id, mobilization_id, resource_id, resource_type, crew_id, created_at
FROM scheduling_mobilization_assignments
WHERE tenant_id = $1 AND mobilization_id = $2
ORDER BY created_at, id
`, pgUUID(tenantID), pgUUID(mobilizationID))
	if err != nil {
		return nil, errors.Wrap(err, "list assignments")
	}
	defer rows.Close()

	out := make([]mobilization.ResourceAssignment, 0)
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.TenantID, &a.ID, &a.MobilizationID, &a.ResourceID, &a.ResourceType, &a.CrewID, &a.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan assignment")
		}
		out = append(out, toDomainAssignment(a))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate assignments")
	}
	return out, nil
}

func (r *AssignmentRepository) Exists(ctx context.Context, tenantID, mobilizationID, resourceID uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, `
SELECT EXISTS (
    SELECT 1 FROM scheduling_mobilization_assignments
    WHERE tenant_id = $1 AND mobilization_id = $2 AND resource_id = $3
)`, pgUUID(tenantID), pgUUID(mobilizationID), pgUUID(resourceID)).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check assignment")
	}
	return exists, nil
}

func (r *AssignmentRepository) Insert(ctx context.Context, a mobilization.ResourceAssignment) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO scheduling_mobilization_assignments (tenant_id, id, mobilization_id, resource_id, resource_type, crew_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, pgUUID(a.TenantID), pgUUID(a.ID), pgUUID(a.MobilizationID), pgUUID(a.ResourceID),
		string(a.ResourceType), pgNullUUID(a.CrewID), pgTimestamptz(a.CreatedAt)); err != nil {
		return errors.Wrap(err, "insert assignment")
	}
	return nil
}

func (r *AssignmentRepository) Delete(ctx context.Context, tenantID, mobilizationID, resourceID uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, `
DELETE FROM scheduling_mobilization_assignments
WHERE tenant_id = $1 AND mobilization_id = $2 AND resource_id = $3
`, pgUUID(tenantID), pgUUID(mobilizationID), pgUUID(resourceID))
	if err != nil {
		return false, errors.Wrap(err, "delete assignment")
	}
	return tag.RowsAffected() > 0, nil
}

func (r *AssignmentRepository) DeleteByMobilization(ctx context.Context, tenantID, mobilizationID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
DELETE FROM scheduling_mobilization_assignments WHERE tenant_id = $1 AND mobilization_id = $2
`, pgUUID(tenantID), pgUUID(mobilizationID)); err != nil {
		return errors.Wrap(err, "delete mobilization assignments")
	}
	return nil
}

// BookingsFor skips cancelled mobilizations; they no longer hold anyone.
func (r *AssignmentRepository) BookingsFor(ctx context.Context, tenantID uuid.UUID, resourceIDs []uuid.UUID) ([]mobilization.Booking, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT a.resource_id, COALESCE(r.name, ''), a.mobilization_id, m.starts_at, m.ends_at,
       j.name, COALESCE(c.name, '')
FROM scheduling_mobilization_assignments a
JOIN scheduling_mobilizations m ON m.id = a.mobilization_id
JOIN scheduling_jobs j ON j.id = m.job_id
LEFT JOIN scheduling_resources r ON r.id = a.resource_id
LEFT JOIN scheduling_crews c ON c.id = COALESCE(a.crew_id, m.crew_id)
WHERE a.tenant_id = $1 AND a.resource_id = ANY($2::uuid[]) AND m.status <> 'cancelled'
ORDER BY m.starts_at, a.mobilization_id
`, pgUUID(tenantID), pgUUIDs(resourceIDs))
	if err != nil {
		return nil, errors.Wrap(err, "list bookings")
	}
	defer rows.Close()

	out := make([]mobilization.Booking, 0)
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ResourceID, &b.ResourceName, &b.MobilizationID, &b.StartsAt, &b.EndsAt, &b.JobName, &b.CrewName); err != nil {
			return nil, errors.Wrap(err, "scan booking")
		}
		out = append(out, toDomainBooking(b))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate bookings")
	}
	return out, nil
}
