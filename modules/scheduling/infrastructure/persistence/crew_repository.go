package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/infrastructure/persistence/models"
	"github.com/fieldcrew/mobsched/pkg/composables"
)

type CrewRepository struct{}

func NewCrewRepository() mobilization.CrewRepository {
	return &CrewRepository{}
}

func (r *CrewRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (mobilization.Crew, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return mobilization.Crew{}, err
	}
	var c models.Crew
	if err := tx.QueryRow(ctx, `
SELECT tenant_id, id, name, leader_id FROM scheduling_crews WHERE tenant_id = $1 AND id = $2
`, pgUUID(tenantID), pgUUID(id)).Scan(&c.TenantID, &c.ID, &c.Name, &c.LeaderID); err != nil {
		return mobilization.Crew{}, errors.Wrap(err, "get crew")
	}

	rows, err := tx.Query(ctx, `
SELECT contact_id FROM scheduling_crew_members
WHERE tenant_id = $1 AND crew_id = $2
ORDER BY position, contact_id
`, pgUUID(tenantID), pgUUID(id))
	if err != nil {
		return mobilization.Crew{}, errors.Wrap(err, "list crew members")
	}
	defer rows.Close()
	members := make([]uuid.UUID, 0)
	for rows.Next() {
		var member uuid.UUID
		if err := rows.Scan(&member); err != nil {
			return mobilization.Crew{}, errors.Wrap(err, "scan crew member")
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return mobilization.Crew{}, errors.Wrap(err, "iterate crew members")
	}
	return toDomainCrew(c, members), nil
}

// Save upserts the crew row and replaces its member list in order.
func (r *CrewRepository) Save(ctx context.Context, crew mobilization.Crew) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO scheduling_crews (tenant_id, id, name, leader_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, leader_id = EXCLUDED.leader_id, updated_at = now()
`, pgUUID(crew.TenantID), pgUUID(crew.ID), crew.Name, pgNullUUID(crew.LeaderID)); err != nil {
		return errors.Wrap(err, "upsert crew")
	}
	if _, err := tx.Exec(ctx, `
DELETE FROM scheduling_crew_members WHERE tenant_id = $1 AND crew_id = $2
`, pgUUID(crew.TenantID), pgUUID(crew.ID)); err != nil {
		return errors.Wrap(err, "clear crew members")
	}
	if len(crew.Members) == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO scheduling_crew_members (tenant_id, crew_id, contact_id, position)
SELECT $1, $2, m.contact_id, m.ord::integer
FROM unnest($3::uuid[]) WITH ORDINALITY AS m(contact_id, ord)
`, pgUUID(crew.TenantID), pgUUID(crew.ID), pgUUIDs(crew.Members)); err != nil {
		return errors.Wrap(err, "insert crew members")
	}
	return nil
}

func (r *CrewRepository) MembershipsOf(ctx context.Context, tenantID uuid.UUID, contactIDs []uuid.UUID) ([]mobilization.CrewMembership, error) {
	if len(contactIDs) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT cm.contact_id, c.id, c.name
FROM scheduling_crew_members cm
JOIN scheduling_crews c ON c.id = cm.crew_id
WHERE cm.tenant_id = $1 AND cm.contact_id = ANY($2::uuid[])
ORDER BY c.name, c.id, cm.contact_id
`, pgUUID(tenantID), pgUUIDs(contactIDs))
	if err != nil {
		return nil, errors.Wrap(err, "list crew memberships")
	}
	defer rows.Close()

	out := make([]mobilization.CrewMembership, 0)
	for rows.Next() {
		var ms mobilization.CrewMembership
		if err := rows.Scan(&ms.ContactID, &ms.CrewID, &ms.CrewName); err != nil {
			return nil, errors.Wrap(err, "scan crew membership")
		}
		out = append(out, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate crew memberships")
	}
	return out, nil
}
