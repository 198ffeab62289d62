package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/infrastructure/persistence/models"
	"github.com/fieldcrew/mobsched/pkg/composables"
)

const mobilizationSelect = `
SELECT m.tenant_id, m.id, m.job_id, j.name, m.group_id, m.crew_id, m.status,
       m.starts_at, m.ends_at, m.created_at, m.updated_at
FROM scheduling_mobilizations m
JOIN scheduling_jobs j ON j.id = m.job_id
`

type MobilizationRepository struct{}

func NewMobilizationRepository() mobilization.MobilizationRepository {
	return &MobilizationRepository{}
}

func scanMobilization(row pgx.Row) (models.Mobilization, error) {
	var m models.Mobilization
	err := row.Scan(
		&m.TenantID, &m.ID, &m.JobID, &m.JobName, &m.GroupID, &m.CrewID, &m.Status,
		&m.StartsAt, &m.EndsAt, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

func collectMobilizations(rows pgx.Rows) ([]mobilization.Mobilization, error) {
	defer rows.Close()
	out := make([]mobilization.Mobilization, 0)
	for rows.Next() {
		m, err := scanMobilization(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan mobilization")
		}
		out = append(out, toDomainMobilization(m))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate mobilizations")
	}
	return out, nil
}

func (r *MobilizationRepository) Create(ctx context.Context, m mobilization.Mobilization) (mobilization.Mobilization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return mobilization.Mobilization{}, err
	}
	if err := tx.QueryRow(ctx, `
INSERT INTO scheduling_mobilizations (tenant_id, id, job_id, group_id, crew_id, status, starts_at, ends_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at
`, pgUUID(m.TenantID), pgUUID(m.ID), pgUUID(m.JobID), pgNullUUID(m.GroupID), pgNullUUID(m.CrewID),
		m.Status, m.Window.Start, m.Window.End,
	).Scan(&m.CreatedAt, &m.UpdatedAt); err != nil {
		return mobilization.Mobilization{}, errors.Wrap(err, "insert mobilization")
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}

func (r *MobilizationRepository) Update(ctx context.Context, m mobilization.Mobilization) (mobilization.Mobilization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return mobilization.Mobilization{}, err
	}
	if err := tx.QueryRow(ctx, `
UPDATE scheduling_mobilizations
SET group_id = $3, crew_id = $4, status = $5, starts_at = $6, ends_at = $7, updated_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING updated_at
`, pgUUID(m.TenantID), pgUUID(m.ID), pgNullUUID(m.GroupID), pgNullUUID(m.CrewID),
		m.Status, m.Window.Start, m.Window.End,
	).Scan(&m.UpdatedAt); err != nil {
		return mobilization.Mobilization{}, errors.Wrap(err, "update mobilization")
	}
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}

func (r *MobilizationRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (mobilization.Mobilization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return mobilization.Mobilization{}, err
	}
	m, err := scanMobilization(tx.QueryRow(ctx, mobilizationSelect+`WHERE m.tenant_id = $1 AND m.id = $2`, pgUUID(tenantID), pgUUID(id)))
	if err != nil {
		return mobilization.Mobilization{}, errors.Wrap(err, "get mobilization")
	}
	return toDomainMobilization(m), nil
}

func (r *MobilizationRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM scheduling_mobilizations WHERE tenant_id = $1 AND id = $2`, pgUUID(tenantID), pgUUID(id))
	if err != nil {
		return errors.Wrap(err, "delete mobilization")
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *MobilizationRepository) List(ctx context.Context, tenantID uuid.UUID, f mobilization.ListFilter) ([]mobilization.Mobilization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, mobilizationSelect+`
WHERE m.tenant_id = $1
  AND ($2::timestamptz IS NULL OR m.ends_at > $2)
  AND ($3::timestamptz IS NULL OR m.starts_at < $3)
  AND ($4::uuid IS NULL OR EXISTS (
        SELECT 1 FROM scheduling_mobilization_assignments a
        WHERE a.mobilization_id = m.id AND a.resource_id = $4))
  AND ($5::uuid IS NULL OR m.job_id = $5)
ORDER BY m.starts_at, m.id
`, pgUUID(tenantID), pgTimestamptz(f.From), pgTimestamptz(f.To), pgNullUUID(f.ResourceID), pgNullUUID(f.JobID))
	if err != nil {
		return nil, errors.Wrap(err, "list mobilizations")
	}
	return collectMobilizations(rows)
}

func (r *MobilizationRepository) ListFutureInGroup(ctx context.Context, tenantID, groupID uuid.UUID, after time.Time) ([]mobilization.Mobilization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, mobilizationSelect+`
WHERE m.tenant_id = $1 AND m.group_id = $2 AND m.starts_at > $3 AND m.status <> 'cancelled'
ORDER BY m.starts_at, m.id
`, pgUUID(tenantID), pgUUID(groupID), after.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "list future mobilizations in group")
	}
	return collectMobilizations(rows)
}

func (r *MobilizationRepository) ListFutureForCrew(ctx context.Context, tenantID, crewID uuid.UUID, after time.Time) ([]mobilization.Mobilization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, mobilizationSelect+`
WHERE m.tenant_id = $1 AND m.crew_id = $2 AND m.starts_at > $3 AND m.status <> 'cancelled'
ORDER BY m.starts_at, m.id
`, pgUUID(tenantID), pgUUID(crewID), after.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "list future mobilizations for crew")
	}
	return collectMobilizations(rows)
}
