package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/pkg/composables"
)

type CrewSaveInput struct {
	CrewID                        uuid.UUID
	Name                          *string
	LeaderID                      *uuid.UUID
	ClearLeader                   bool
	MembersToAdd                  []uuid.UUID
	MembersToRemove               []uuid.UUID
	AssignToFutureMobilizations   bool
	RemoveFromFutureMobilizations bool
	// AssignmentsToSkip maps a contact to the future mobilizations it must not
	// be added to.
	AssignmentsToSkip map[uuid.UUID][]uuid.UUID
}

type CrewSaveResult struct {
	Status  string `json:"status"`
	Created int    `json:"mobilization_assignments_created"`
	Skipped int    `json:"mobilization_assignments_skipped"`
	Removed int    `json:"mobilization_assignments_removed"`
	Message string `json:"message,omitempty"`
}

// SaveCrew applies a membership edit and optionally propagates it to the
// crew's future mobilizations. The whole save is one transaction.
func (s *SchedulingService) SaveCrew(ctx context.Context, tenantID uuid.UUID, in CrewSaveInput) (CrewSaveResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return CrewSaveResult{}, err
	}
	if in.CrewID == uuid.Nil {
		return CrewSaveResult{}, invalidRequest("crew_id is required", nil)
	}
	added := uniqueIDs(in.MembersToAdd)
	removed := uniqueIDs(in.MembersToRemove)

	res, err := writeTx(ctx, s.opts.Tx, s.events, tenantID, func(txCtx context.Context) (CrewSaveResult, []any, error) {
		crew, err := s.repos.Crews.Get(txCtx, tenantID, in.CrewID)
		if err != nil {
			return CrewSaveResult{}, nil, notFoundAs(err, CodeNotFound, "crew not found")
		}
		updated, err := crew.ApplyChange(mobilization.CrewChange{
			Name:        in.Name,
			LeaderID:    in.LeaderID,
			ClearLeader: in.ClearLeader,
			Add:         added,
			Remove:      removed,
		})
		if err != nil {
			return CrewSaveResult{}, nil, invalidRequest(err.Error(), err)
		}
		if err := s.repos.Crews.Save(txCtx, updated); err != nil {
			return CrewSaveResult{}, nil, mapPgErrorToServiceError(err)
		}

		out := CrewSaveResult{Status: StatusSuccess}
		propagate := in.AssignToFutureMobilizations && len(added) > 0
		prune := in.RemoveFromFutureMobilizations && len(removed) > 0
		if !propagate && !prune {
			return out, []any{s.crewSavedEvent(ctx, tenantID, in.CrewID, added, removed, out)}, nil
		}
		future, err := s.repos.Mobilizations.ListFutureForCrew(txCtx, tenantID, crew.ID, s.now())
		if err != nil {
			return CrewSaveResult{}, nil, mapPgErrorToServiceError(err)
		}
		crewID := crew.ID
		for _, m := range future {
			if propagate {
				for _, contactID := range added {
					if skipped(in.AssignmentsToSkip, contactID, m.ID) {
						out.Skipped++
						continue
					}
					exists, err := s.repos.Assignments.Exists(txCtx, tenantID, m.ID, contactID)
					if err != nil {
						return CrewSaveResult{}, nil, mapPgErrorToServiceError(err)
					}
					if exists {
						out.Skipped++
						continue
					}
					if err := s.repos.Assignments.Insert(txCtx, mobilization.ResourceAssignment{
						TenantID:       tenantID,
						ID:             uuid.New(),
						MobilizationID: m.ID,
						ResourceID:     contactID,
						ResourceType:   mobilization.ResourceCrewMember,
						CrewID:         &crewID,
						CreatedAt:      s.now(),
					}); err != nil {
						return CrewSaveResult{}, nil, mapPgErrorToServiceError(err)
					}
					out.Created++
				}
			}
			if prune {
				for _, contactID := range removed {
					ok, err := s.repos.Assignments.Delete(txCtx, tenantID, m.ID, contactID)
					if err != nil {
						return CrewSaveResult{}, nil, mapPgErrorToServiceError(err)
					}
					if ok {
						out.Removed++
					}
				}
			}
		}
		return out, []any{s.crewSavedEvent(ctx, tenantID, in.CrewID, added, removed, out)}, nil
	})
	if err != nil {
		recordSave(string(FlowSaveCrew), "error")
		return CrewSaveResult{}, err
	}
	recordSave(string(FlowSaveCrew), res.Status)
	logWithFields(ctx, logrus.InfoLevel, "crew saved", logrus.Fields{
		"tenant_id": tenantID,
		"crew_id":   in.CrewID,
		"added":     len(added),
		"removed":   len(removed),
		"created":   res.Created,
		"skipped":   res.Skipped,
	})
	return res, nil
}

func (s *SchedulingService) crewSavedEvent(ctx context.Context, tenantID, crewID uuid.UUID, added, removed []uuid.UUID, res CrewSaveResult) *mobilization.CrewSavedEvent {
	return &mobilization.CrewSavedEvent{
		EventID:    uuid.New(),
		TenantID:   tenantID,
		RequestID:  composables.UseRequestID(ctx),
		CrewID:     crewID,
		Added:      added,
		Removed:    removed,
		Created:    res.Created,
		Skipped:    res.Skipped,
		OccurredAt: s.now(),
	}
}
