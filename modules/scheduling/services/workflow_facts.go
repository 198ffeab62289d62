package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/pkg/composables"
)

// The SchedulingService is both the FactSource and the executor of workflows.

func (s *SchedulingService) MembershipConflicts(ctx context.Context, req SaveRequest) ([]mobilization.CrewMembership, error) {
	adds := uniqueIDs(req.MembersToAdd)
	if len(adds) == 0 {
		return nil, nil
	}
	ctx = composables.WithTenantID(ctx, req.TenantID)

	targetCrew := map[uuid.UUID]uuid.UUID{}
	switch req.Kind {
	case FlowSaveCrew:
		for _, id := range adds {
			targetCrew[id] = req.TargetID
		}
	case FlowAssignResources:
		m, err := s.repos.Mobilizations.Get(ctx, req.TenantID, req.TargetID)
		if err != nil {
			return nil, notFoundAs(err, CodeNotFound, "mobilization not found")
		}
		for _, id := range adds {
			if crew := crewFor(req.ResourceCrew, id, m.CrewID); crew != nil {
				targetCrew[id] = *crew
			}
		}
	}
	if len(targetCrew) == 0 {
		return nil, nil
	}

	memberships, err := s.repos.Crews.MembershipsOf(ctx, req.TenantID, adds)
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	var out []mobilization.CrewMembership
	for _, ms := range memberships {
		target, ok := targetCrew[ms.ContactID]
		if ok && ms.CrewID != target {
			out = append(out, ms)
		}
	}
	return out, nil
}

func (s *SchedulingService) futureMobilizations(ctx context.Context, req SaveRequest) ([]mobilization.Mobilization, error) {
	ctx = composables.WithTenantID(ctx, req.TenantID)
	switch req.Kind {
	case FlowSaveCrew:
		out, err := s.repos.Mobilizations.ListFutureForCrew(ctx, req.TenantID, req.TargetID, s.now())
		if err != nil {
			return nil, mapPgErrorToServiceError(err)
		}
		return out, nil
	case FlowAssignResources:
		m, err := s.repos.Mobilizations.Get(ctx, req.TenantID, req.TargetID)
		if err != nil {
			return nil, notFoundAs(err, CodeNotFound, "mobilization not found")
		}
		if m.GroupID == nil {
			return nil, nil
		}
		out, err := s.repos.Mobilizations.ListFutureInGroup(ctx, req.TenantID, *m.GroupID, m.Window.Start)
		if err != nil {
			return nil, mapPgErrorToServiceError(err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported flow: %q", req.Kind)
	}
}

func (s *SchedulingService) FutureMobilizationCount(ctx context.Context, req SaveRequest) (int, error) {
	future, err := s.futureMobilizations(ctx, req)
	if err != nil {
		return 0, err
	}
	return len(future), nil
}

func (s *SchedulingService) FutureOverlapConflicts(ctx context.Context, req SaveRequest) ([]mobilization.OverlapConflict, error) {
	future, err := s.futureMobilizations(ctx, req)
	if err != nil {
		return nil, err
	}
	ctx = composables.WithTenantID(ctx, req.TenantID)
	rt := req.ResourceType
	targets := future
	switch req.Kind {
	case FlowSaveCrew:
		rt = mobilization.ResourceCrewMember
	case FlowAssignResources:
		m, err := s.repos.Mobilizations.Get(ctx, req.TenantID, req.TargetID)
		if err != nil {
			return nil, notFoundAs(err, CodeNotFound, "mobilization not found")
		}
		targets = append([]mobilization.Mobilization{m}, future...)
	}
	return s.evaluateAgainst(ctx, req.TenantID, uniqueIDs(req.MembersToAdd), rt, targets, "workflow")
}

// ExecutePlan performs the save a workflow resolved to.
func (s *SchedulingService) ExecutePlan(ctx context.Context, plan SavePlan) (SaveResult, error) {
	req := plan.Base()
	assignFuture := false
	mode := OverlapModeNone
	var skip map[uuid.UUID][]uuid.UUID
	switch p := plan.(type) {
	case SimpleAssignment:
	case PropagatedAssignment:
		assignFuture = true
		mode = OverlapModeAll
	case SkipModeAssignment:
		assignFuture = true
		mode = OverlapModeSkip
		skip = p.Skip
	default:
		return SaveResult{}, fmt.Errorf("unsupported save plan %T", plan)
	}

	switch req.Kind {
	case FlowSaveCrew:
		res, err := s.SaveCrew(ctx, req.TenantID, CrewSaveInput{
			CrewID:                        req.TargetID,
			Name:                          req.CrewName,
			LeaderID:                      req.LeaderID,
			ClearLeader:                   req.ClearLeader,
			MembersToAdd:                  req.MembersToAdd,
			MembersToRemove:               req.MembersToRemove,
			AssignToFutureMobilizations:   assignFuture,
			RemoveFromFutureMobilizations: plan.RemoveFromFuture(),
			AssignmentsToSkip:             skip,
		})
		if err != nil {
			return SaveResult{}, err
		}
		return SaveResult{Status: res.Status, Created: res.Created, Skipped: res.Skipped, Removed: res.Removed, Message: res.Message}, nil

	case FlowAssignResources:
		// Additions and removals commit together.
		return writeTx(ctx, s.opts.Tx, s.events, req.TenantID, func(txCtx context.Context) (SaveResult, []any, error) {
			out := SaveResult{Status: StatusSuccess}
			if len(req.MembersToAdd) > 0 {
				res, err := s.AssignResourcesToJob(txCtx, req.TenantID, AssignResourcesInput{
					ResourceIDs:                 req.MembersToAdd,
					ResourceType:                req.ResourceType,
					MobilizationID:              req.TargetID,
					ResourceCrew:                req.ResourceCrew,
					AllowOverlap:                req.AllowOverlap,
					AssignToFutureMobilizations: assignFuture,
					OverlapMode:                 mode,
					SkipMap:                     skip,
				})
				if err != nil {
					return SaveResult{}, nil, err
				}
				out = SaveResult{Status: res.Status, Created: res.Created, Skipped: res.Skipped, Conflicts: res.Conflicts, Message: res.Message}
				if res.Status == StatusOverlap {
					return out, nil, nil
				}
			}
			for _, rid := range uniqueIDs(req.MembersToRemove) {
				res, err := s.RemoveResourceFromJob(txCtx, req.TenantID, RemoveResourceInput{
					ResourceID:     rid,
					ResourceType:   req.ResourceType,
					MobilizationID: req.TargetID,
					AllUpcoming:    plan.RemoveFromFuture(),
				})
				if err != nil && !isServiceError(err, CodeAssignmentNotFound) {
					return SaveResult{}, nil, err
				}
				out.Removed += len(res.MobilizationIDs)
			}
			return out, nil, nil
		})

	default:
		return SaveResult{}, fmt.Errorf("unsupported flow: %q", req.Kind)
	}
}
