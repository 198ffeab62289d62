package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/infrastructure/persistence/models"
	"github.com/fieldcrew/mobsched/pkg/composables"
)

type JobRepository struct{}

func NewJobRepository() mobilization.JobRepository {
	return &JobRepository{}
}

func (r *JobRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (mobilization.Job, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return mobilization.Job{}, err
	}
	var j models.Job
	if err := tx.QueryRow(ctx, `
SELECT tenant_id, id, name, start_date, end_date FROM scheduling_jobs WHERE tenant_id = $1 AND id = $2
`, pgUUID(tenantID), pgUUID(id)).Scan(&j.TenantID, &j.ID, &j.Name, &j.StartDate, &j.EndDate); err != nil {
		return mobilization.Job{}, errors.Wrap(err, "get job")
	}
	return toDomainJob(j), nil
}
