package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/domain/timewindow"
	"github.com/fieldcrew/mobsched/pkg/composables"
	"github.com/fieldcrew/mobsched/pkg/eventbus"
)

const (
	StatusAssigned = "ASSIGNED"
	StatusOverlap  = "OVERLAP"
	StatusSuccess  = "SUCCESS"
	StatusError    = "ERROR"
)

type SchedulingRepositories struct {
	Mobilizations mobilization.MobilizationRepository
	Assignments   mobilization.AssignmentRepository
	Crews         mobilization.CrewRepository
	Jobs          mobilization.JobRepository
	Timesheets    mobilization.TimesheetRepository
}

type SchedulingOptions struct {
	CheckBatchOverlaps bool
	Tx                 TxRunner
	Now                func() time.Time
	// Events, when set, takes over event delivery through the outbox.
	Events EventRecorder
}

type SchedulingService struct {
	repos  SchedulingRepositories
	events eventSink
	opts   SchedulingOptions
}

func NewSchedulingService(repos SchedulingRepositories, publisher eventbus.EventBus, opts SchedulingOptions) *SchedulingService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SchedulingService{
		repos:  repos,
		events: eventSink{bus: publisher, recorder: opts.Events},
		opts:   opts,
	}
}

func (s *SchedulingService) now() time.Time {
	return s.opts.Now().UTC()
}

func (s *SchedulingService) overlapOptions() OverlapOptions {
	return OverlapOptions{IncludeBatch: s.opts.CheckBatchOverlaps}
}

type MobilizationInput struct {
	JobID   uuid.UUID
	GroupID *uuid.UUID
	CrewID  *uuid.UUID
	Status  string
	Start   time.Time
	End     time.Time
}

func (s *SchedulingService) CreateMobilization(ctx context.Context, tenantID uuid.UUID, in MobilizationInput) (mobilization.Mobilization, error) {
	if err := requireTenant(tenantID); err != nil {
		return mobilization.Mobilization{}, err
	}
	if in.Status == "" {
		in.Status = mobilization.StatusScheduled
	}
	m := mobilization.Mobilization{
		TenantID: tenantID,
		ID:       uuid.New(),
		JobID:    in.JobID,
		GroupID:  in.GroupID,
		CrewID:   in.CrewID,
		Status:   in.Status,
		Window:   timewindow.Window{Start: in.Start.UTC(), End: in.End.UTC()},
	}
	if err := m.Validate(); err != nil {
		return mobilization.Mobilization{}, invalidRequest(err.Error(), err)
	}

	created, err := inTx(ctx, s.opts.Tx, tenantID, func(txCtx context.Context) (mobilization.Mobilization, error) {
		job, err := s.repos.Jobs.Get(txCtx, tenantID, in.JobID)
		if err != nil {
			return mobilization.Mobilization{}, notFoundAs(err, CodeReferenceNotFound, "job not found")
		}
		m.JobName = job.Name
		out, err := s.repos.Mobilizations.Create(txCtx, m)
		if err != nil {
			return mobilization.Mobilization{}, mapPgErrorToServiceError(err)
		}
		return out, nil
	})
	if err != nil {
		return mobilization.Mobilization{}, err
	}
	logWithFields(ctx, logrus.InfoLevel, "mobilization created", logrus.Fields{
		"tenant_id":       tenantID,
		"mobilization_id": created.ID,
		"job_id":          created.JobID,
	})
	return created, nil
}

type MobilizationPatch struct {
	Start  *time.Time
	End    *time.Time
	Status *string
	// Admin allows edits of mobilizations referenced by timesheet entries.
	Admin bool
}

func (s *SchedulingService) UpdateMobilization(ctx context.Context, tenantID, id uuid.UUID, patch MobilizationPatch) (mobilization.Mobilization, error) {
	if err := requireTenant(tenantID); err != nil {
		return mobilization.Mobilization{}, err
	}
	return inTx(ctx, s.opts.Tx, tenantID, func(txCtx context.Context) (mobilization.Mobilization, error) {
		m, err := s.repos.Mobilizations.Get(txCtx, tenantID, id)
		if err != nil {
			return mobilization.Mobilization{}, notFoundAs(err, CodeNotFound, "mobilization not found")
		}
		if !patch.Admin {
			n, err := s.repos.Timesheets.CountByMobilization(txCtx, tenantID, id)
			if err != nil {
				return mobilization.Mobilization{}, mapPgErrorToServiceError(err)
			}
			if n > 0 {
				return mobilization.Mobilization{}, newServiceError(http.StatusConflict, CodeMobilizationLocked, "mobilization is referenced by timesheet entries", nil)
			}
		}
		if patch.Start != nil {
			m.Window.Start = patch.Start.UTC()
		}
		if patch.End != nil {
			m.Window.End = patch.End.UTC()
		}
		if patch.Status != nil {
			m.Status = *patch.Status
		}
		if err := m.Validate(); err != nil {
			return mobilization.Mobilization{}, invalidRequest(err.Error(), err)
		}
		out, err := s.repos.Mobilizations.Update(txCtx, m)
		if err != nil {
			return mobilization.Mobilization{}, mapPgErrorToServiceError(err)
		}
		return out, nil
	})
}

func (s *SchedulingService) DeleteMobilization(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	_, err := writeTx(ctx, s.opts.Tx, s.events, tenantID, func(txCtx context.Context) (struct{}, []any, error) {
		if _, err := s.repos.Mobilizations.Get(txCtx, tenantID, id); err != nil {
			return struct{}{}, nil, notFoundAs(err, CodeNotFound, "mobilization not found")
		}
		n, err := s.repos.Timesheets.CountByMobilization(txCtx, tenantID, id)
		if err != nil {
			return struct{}{}, nil, mapPgErrorToServiceError(err)
		}
		if n > 0 {
			return struct{}{}, nil, newServiceError(http.StatusConflict, CodeHasTimesheets, "mobilization has timesheet entries", nil)
		}
		if err := s.repos.Assignments.DeleteByMobilization(txCtx, tenantID, id); err != nil {
			return struct{}{}, nil, mapPgErrorToServiceError(err)
		}
		if err := s.repos.Mobilizations.Delete(txCtx, tenantID, id); err != nil {
			return struct{}{}, nil, mapPgErrorToServiceError(err)
		}
		return struct{}{}, []any{&mobilization.MobilizationDeletedEvent{
			EventID:        uuid.New(),
			TenantID:       tenantID,
			RequestID:      composables.UseRequestID(ctx),
			MobilizationID: id,
			OccurredAt:     s.now(),
		}}, nil
	})
	return err
}

func (s *SchedulingService) ListMobilizations(ctx context.Context, tenantID uuid.UUID, filter mobilization.ListFilter) ([]mobilization.Mobilization, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
		return nil, invalidRequest("to must be after from", nil)
	}
	out, err := s.repos.Mobilizations.List(composables.WithTenantID(ctx, tenantID), tenantID, filter)
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	return out, nil
}

type AssignResourceInput struct {
	ResourceID     uuid.UUID
	ResourceType   mobilization.ResourceType
	MobilizationID uuid.UUID
	CrewID         *uuid.UUID
	AllowOverlap   bool
}

type AssignResult struct {
	Status    string                         `json:"status"`
	Conflicts []mobilization.OverlapConflict `json:"conflicts,omitempty"`
}

// AssignResourceToMobilization binds one resource. It answers ASSIGNED when
// the binding already exists and OVERLAP when the resource is booked in an
// intersecting window and overlaps are not allowed; nothing is written then.
func (s *SchedulingService) AssignResourceToMobilization(ctx context.Context, tenantID uuid.UUID, in AssignResourceInput) (AssignResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return AssignResult{}, err
	}
	if in.ResourceID == uuid.Nil || in.MobilizationID == uuid.Nil {
		return AssignResult{}, invalidRequest("resource_id and mobilization_id are required", nil)
	}
	if _, err := mobilization.ParseResourceType(string(in.ResourceType)); err != nil {
		return AssignResult{}, invalidRequest(err.Error(), err)
	}

	res, err := writeTx(ctx, s.opts.Tx, s.events, tenantID, func(txCtx context.Context) (AssignResult, []any, error) {
		m, err := s.repos.Mobilizations.Get(txCtx, tenantID, in.MobilizationID)
		if err != nil {
			return AssignResult{}, nil, notFoundAs(err, CodeNotFound, "mobilization not found")
		}
		exists, err := s.repos.Assignments.Exists(txCtx, tenantID, m.ID, in.ResourceID)
		if err != nil {
			return AssignResult{}, nil, mapPgErrorToServiceError(err)
		}
		if exists {
			return AssignResult{Status: StatusAssigned}, nil, nil
		}
		bookings, err := s.repos.Assignments.BookingsFor(txCtx, tenantID, []uuid.UUID{in.ResourceID})
		if err != nil {
			return AssignResult{}, nil, mapPgErrorToServiceError(err)
		}
		conflicts := EvaluateOverlaps([]mobilization.Candidate{{
			ResourceID:     in.ResourceID,
			ResourceType:   in.ResourceType,
			MobilizationID: m.ID,
			Window:         m.Window,
		}}, IndexBookings(bookings), OverlapOptions{})
		recordOverlapConflicts("assign", len(conflicts))
		if len(conflicts) > 0 && !in.AllowOverlap {
			return AssignResult{Status: StatusOverlap, Conflicts: conflicts}, nil, nil
		}
		crewID := in.CrewID
		if crewID == nil {
			crewID = m.CrewID
		}
		if err := s.repos.Assignments.Insert(txCtx, mobilization.ResourceAssignment{
			TenantID:       tenantID,
			ID:             uuid.New(),
			MobilizationID: m.ID,
			ResourceID:     in.ResourceID,
			ResourceType:   in.ResourceType,
			CrewID:         crewID,
			CreatedAt:      s.now(),
		}); err != nil {
			return AssignResult{}, nil, mapPgErrorToServiceError(err)
		}
		return AssignResult{Status: StatusSuccess, Conflicts: conflicts}, []any{&mobilization.ResourcesAssignedEvent{
			EventID:        uuid.New(),
			TenantID:       tenantID,
			RequestID:      composables.UseRequestID(ctx),
			MobilizationID: in.MobilizationID,
			ResourceType:   in.ResourceType,
			ResourceIDs:    []uuid.UUID{in.ResourceID},
			Created:        1,
			OccurredAt:     s.now(),
		}}, nil
	})
	if err != nil {
		recordSave("assign_single", "error")
		return AssignResult{}, err
	}
	recordSave("assign_single", res.Status)
	return res, nil
}

type AssignResourcesInput struct {
	ResourceIDs    []uuid.UUID
	ResourceType   mobilization.ResourceType
	MobilizationID uuid.UUID
	// ResourceCrew maps a resource to the crew it is assigned under.
	ResourceCrew                map[uuid.UUID]uuid.UUID
	AllowOverlap                bool
	AssignToFutureMobilizations bool
	OverlapMode                 OverlapMode
	SkipMap                     map[uuid.UUID][]uuid.UUID
}

type BatchAssignResult struct {
	Status    string                         `json:"status"`
	Message   string                         `json:"message,omitempty"`
	Created   int                            `json:"mobilization_assignments_created"`
	Skipped   int                            `json:"mobilization_assignments_skipped"`
	Conflicts []mobilization.OverlapConflict `json:"conflicts,omitempty"`
}

// AssignResourcesToJob binds several resources to a mobilization and, when
// requested, to the later mobilizations of its group.
//
// OverlapMode decides what an overlap does. SKIP leaves out the pairs of
// SkipMap and any other overlapping pair, the target included unless
// AllowOverlap is set. ALL writes every future pair. With ALL or no mode an
// overlap on the target blocks the whole batch unless AllowOverlap is set,
// and with no mode so does an overlap on a future mobilization.
func (s *SchedulingService) AssignResourcesToJob(ctx context.Context, tenantID uuid.UUID, in AssignResourcesInput) (BatchAssignResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return BatchAssignResult{}, err
	}
	resourceIDs := uniqueIDs(in.ResourceIDs)
	if len(resourceIDs) == 0 {
		return BatchAssignResult{}, invalidRequest("resource_ids is required", nil)
	}
	if in.MobilizationID == uuid.Nil {
		return BatchAssignResult{}, invalidRequest("mobilization_id is required", nil)
	}
	if _, err := mobilization.ParseResourceType(string(in.ResourceType)); err != nil {
		return BatchAssignResult{}, invalidRequest(err.Error(), err)
	}
	if _, err := ParseOverlapMode(string(in.OverlapMode)); err != nil {
		return BatchAssignResult{}, invalidRequest(err.Error(), err)
	}

	res, err := writeTx(ctx, s.opts.Tx, s.events, tenantID, func(txCtx context.Context) (BatchAssignResult, []any, error) {
		target, err := s.repos.Mobilizations.Get(txCtx, tenantID, in.MobilizationID)
		if err != nil {
			return BatchAssignResult{}, nil, notFoundAs(err, CodeNotFound, "mobilization not found")
		}
		var future []mobilization.Mobilization
		if in.AssignToFutureMobilizations && target.GroupID != nil {
			future, err = s.repos.Mobilizations.ListFutureInGroup(txCtx, tenantID, *target.GroupID, target.Window.Start)
			if err != nil {
				return BatchAssignResult{}, nil, mapPgErrorToServiceError(err)
			}
		}
		bookings, err := s.repos.Assignments.BookingsFor(txCtx, tenantID, resourceIDs)
		if err != nil {
			return BatchAssignResult{}, nil, mapPgErrorToServiceError(err)
		}
		lookup := IndexBookings(bookings)

		targetConflicts := EvaluateOverlaps(candidatesFor(resourceIDs, in.ResourceType, target), lookup, OverlapOptions{})
		futureConflicts := EvaluateOverlaps(candidatesFor(resourceIDs, in.ResourceType, future...), lookup, s.overlapOptions())
		recordOverlapConflicts("assign_batch", len(targetConflicts)+len(futureConflicts))

		var blocking []mobilization.OverlapConflict
		switch in.OverlapMode {
		case OverlapModeNone:
			blocking = append(append(blocking, targetConflicts...), futureConflicts...)
		case OverlapModeAll:
			blocking = append(blocking, targetConflicts...)
		}
		if len(blocking) > 0 && !in.AllowOverlap {
			return BatchAssignResult{Status: StatusOverlap, Message: "one or more resources overlap an existing booking", Conflicts: blocking}, nil, nil
		}

		var skip map[uuid.UUID][]uuid.UUID
		if in.OverlapMode == OverlapModeSkip {
			skip = mergeSkipMaps(in.SkipMap, BuildSkipMap(futureConflicts))
			if !in.AllowOverlap {
				skip = mergeSkipMaps(skip, BuildSkipMap(targetConflicts))
			}
		}

		out := BatchAssignResult{Status: StatusSuccess}
		for _, m := range append([]mobilization.Mobilization{target}, future...) {
			for _, rid := range resourceIDs {
				if skipped(skip, rid, m.ID) {
					out.Skipped++
					continue
				}
				exists, err := s.repos.Assignments.Exists(txCtx, tenantID, m.ID, rid)
				if err != nil {
					return BatchAssignResult{}, nil, mapPgErrorToServiceError(err)
				}
				if exists {
					out.Skipped++
					continue
				}
				if err := s.repos.Assignments.Insert(txCtx, mobilization.ResourceAssignment{
					TenantID:       tenantID,
					ID:             uuid.New(),
					MobilizationID: m.ID,
					ResourceID:     rid,
					ResourceType:   in.ResourceType,
					CrewID:         crewFor(in.ResourceCrew, rid, m.CrewID),
					CreatedAt:      s.now(),
				}); err != nil {
					return BatchAssignResult{}, nil, mapPgErrorToServiceError(err)
				}
				out.Created++
			}
		}
		return out, []any{&mobilization.ResourcesAssignedEvent{
			EventID:        uuid.New(),
			TenantID:       tenantID,
			RequestID:      composables.UseRequestID(ctx),
			MobilizationID: in.MobilizationID,
			ResourceType:   in.ResourceType,
			ResourceIDs:    resourceIDs,
			Created:        out.Created,
			Skipped:        out.Skipped,
			OccurredAt:     s.now(),
		}}, nil
	})
	if err != nil {
		recordSave(string(FlowAssignResources), "error")
		return BatchAssignResult{}, err
	}
	recordSave(string(FlowAssignResources), res.Status)
	logWithFields(ctx, logrus.InfoLevel, "resources assigned", logrus.Fields{
		"tenant_id":       tenantID,
		"mobilization_id": in.MobilizationID,
		"status":          res.Status,
		"created":         res.Created,
		"skipped":         res.Skipped,
		"conflicts":       len(res.Conflicts),
	})
	return res, nil
}

type OverlapQuery struct {
	MobilizationID *uuid.UUID
	CrewID         *uuid.UUID
	ResourceIDs    []uuid.UUID
	// IncludeFuture extends a mobilization query to the later mobilizations
	// of its group.
	IncludeFuture bool
}

// GetMobilizationOverlapConflicts evaluates the resources against either one
// mobilization (optionally with its future group members) or every future
// mobilization of a crew.
func (s *SchedulingService) GetMobilizationOverlapConflicts(ctx context.Context, tenantID uuid.UUID, q OverlapQuery) ([]mobilization.OverlapConflict, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if (q.MobilizationID == nil) == (q.CrewID == nil) {
		return nil, invalidRequest("exactly one of mobilization_id or crew_id is required", nil)
	}
	resourceIDs := uniqueIDs(q.ResourceIDs)
	if len(resourceIDs) == 0 {
		return []mobilization.OverlapConflict{}, nil
	}
	txCtx := composables.WithTenantID(ctx, tenantID)

	var targets []mobilization.Mobilization
	if q.MobilizationID != nil {
		m, err := s.repos.Mobilizations.Get(txCtx, tenantID, *q.MobilizationID)
		if err != nil {
			return nil, notFoundAs(err, CodeNotFound, "mobilization not found")
		}
		targets = append(targets, m)
		if q.IncludeFuture && m.GroupID != nil {
			future, err := s.repos.Mobilizations.ListFutureInGroup(txCtx, tenantID, *m.GroupID, m.Window.Start)
			if err != nil {
				return nil, mapPgErrorToServiceError(err)
			}
			targets = append(targets, future...)
		}
	} else {
		future, err := s.repos.Mobilizations.ListFutureForCrew(txCtx, tenantID, *q.CrewID, s.now())
		if err != nil {
			return nil, mapPgErrorToServiceError(err)
		}
		targets = future
	}
	return s.evaluateAgainst(txCtx, tenantID, resourceIDs, "", targets, "query")
}

func (s *SchedulingService) evaluateAgainst(ctx context.Context, tenantID uuid.UUID, resourceIDs []uuid.UUID, rt mobilization.ResourceType, targets []mobilization.Mobilization, source string) ([]mobilization.OverlapConflict, error) {
	if len(targets) == 0 || len(resourceIDs) == 0 {
		return []mobilization.OverlapConflict{}, nil
	}
	bookings, err := s.repos.Assignments.BookingsFor(ctx, tenantID, resourceIDs)
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	conflicts := EvaluateOverlaps(candidatesFor(resourceIDs, rt, targets...), IndexBookings(bookings), s.overlapOptions())
	recordOverlapConflicts(source, len(conflicts))
	if conflicts == nil {
		conflicts = []mobilization.OverlapConflict{}
	}
	return conflicts, nil
}

type RemoveResourceInput struct {
	ResourceID     uuid.UUID
	ResourceType   mobilization.ResourceType
	MobilizationID uuid.UUID
	// AllUpcoming also removes the resource from later mobilizations of the group.
	AllUpcoming bool
}

type RemoveResult struct {
	MobilizationIDs []uuid.UUID `json:"mobilization_ids"`
}

func (s *SchedulingService) RemoveResourceFromJob(ctx context.Context, tenantID uuid.UUID, in RemoveResourceInput) (RemoveResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return RemoveResult{}, err
	}
	if in.ResourceID == uuid.Nil || in.MobilizationID == uuid.Nil {
		return RemoveResult{}, invalidRequest("resource_id and mobilization_id are required", nil)
	}
	if in.ResourceType != "" {
		if _, err := mobilization.ParseResourceType(string(in.ResourceType)); err != nil {
			return RemoveResult{}, invalidRequest(err.Error(), err)
		}
	}
	res, err := writeTx(ctx, s.opts.Tx, s.events, tenantID, func(txCtx context.Context) (RemoveResult, []any, error) {
		m, err := s.repos.Mobilizations.Get(txCtx, tenantID, in.MobilizationID)
		if err != nil {
			return RemoveResult{}, nil, notFoundAs(err, CodeNotFound, "mobilization not found")
		}
		targets := []mobilization.Mobilization{m}
		if in.AllUpcoming && m.GroupID != nil {
			future, err := s.repos.Mobilizations.ListFutureInGroup(txCtx, tenantID, *m.GroupID, m.Window.Start)
			if err != nil {
				return RemoveResult{}, nil, mapPgErrorToServiceError(err)
			}
			targets = append(targets, future...)
		}
		removed, err := s.removeFrom(txCtx, tenantID, in.ResourceID, targets)
		if err != nil {
			return RemoveResult{}, nil, err
		}
		if len(removed) == 0 {
			return RemoveResult{}, nil, newServiceError(http.StatusNotFound, CodeAssignmentNotFound, "resource is not assigned to the mobilization", nil)
		}
		return RemoveResult{MobilizationIDs: removed}, []any{&mobilization.ResourceRemovedEvent{
			EventID:         uuid.New(),
			TenantID:        tenantID,
			RequestID:       composables.UseRequestID(ctx),
			ResourceID:      in.ResourceID,
			MobilizationIDs: removed,
			OccurredAt:      s.now(),
		}}, nil
	})
	if err != nil {
		return RemoveResult{}, err
	}
	return res, nil
}

func (s *SchedulingService) removeFrom(ctx context.Context, tenantID, resourceID uuid.UUID, targets []mobilization.Mobilization) ([]uuid.UUID, error) {
	var removed []uuid.UUID
	for _, m := range targets {
		ok, err := s.repos.Assignments.Delete(ctx, tenantID, m.ID, resourceID)
		if err != nil {
			return nil, mapPgErrorToServiceError(err)
		}
		if ok {
			removed = append(removed, m.ID)
		}
	}
	return removed, nil
}

func candidatesFor(resourceIDs []uuid.UUID, rt mobilization.ResourceType, targets ...mobilization.Mobilization) []mobilization.Candidate {
	out := make([]mobilization.Candidate, 0, len(resourceIDs)*len(targets))
	for _, m := range targets {
		for _, rid := range resourceIDs {
			out = append(out, mobilization.Candidate{
				ResourceID:     rid,
				ResourceType:   rt,
				MobilizationID: m.ID,
				Window:         m.Window,
			})
		}
	}
	return out
}

func crewFor(resourceCrew map[uuid.UUID]uuid.UUID, resourceID uuid.UUID, fallback *uuid.UUID) *uuid.UUID {
	if id, ok := resourceCrew[resourceID]; ok && id != uuid.Nil {
		return &id
	}
	return fallback
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func mergeSkipMaps(a, b map[uuid.UUID][]uuid.UUID) map[uuid.UUID][]uuid.UUID {
	out := make(map[uuid.UUID][]uuid.UUID, len(a)+len(b))
	for _, m := range []map[uuid.UUID][]uuid.UUID{a, b} {
		for rid, mobs := range m {
			for _, mid := range mobs {
				if !skipped(out, rid, mid) {
					out[rid] = append(out[rid], mid)
				}
			}
		}
	}
	return out
}

func isServiceError(err error, code string) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Code == code
}
