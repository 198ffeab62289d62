package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionStore keeps workflow states between requests.
type SessionStore interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (WorkflowState, error)
	Put(ctx context.Context, tenantID uuid.UUID, state WorkflowState, ttl time.Duration) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	// Lock takes the in-flight lock of a session or fails with ErrSessionBusy.
	Lock(ctx context.Context, tenantID, id uuid.UUID, ttl time.Duration) (unlock func(), err error)
}

// PlanExecutor runs a resolved save.
type PlanExecutor interface {
	ExecutePlan(ctx context.Context, plan SavePlan) (SaveResult, error)
}

type WorkflowOptions struct {
	TTL         time.Duration
	SaveTimeout time.Duration
	Now         func() time.Time
}

type WorkflowService struct {
	store    SessionStore
	facts    FactSource
	executor PlanExecutor
	opts     WorkflowOptions
}

func NewWorkflowService(store SessionStore, facts FactSource, executor PlanExecutor, opts WorkflowOptions) *WorkflowService {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &WorkflowService{store: store, facts: facts, executor: executor, opts: opts}
}

// lockTTL bounds how long a crashed request can hold a session.
func (s *WorkflowService) lockTTL() time.Duration {
	return s.opts.SaveTimeout + 5*time.Second
}

// Start opens a workflow for req and advances it as far as it goes without a
// decision. A request that needs no decision is executed right away.
func (s *WorkflowService) Start(ctx context.Context, tenantID uuid.UUID, req SaveRequest) (WorkflowState, error) {
	if err := requireTenant(tenantID); err != nil {
		return WorkflowState{}, err
	}
	req.TenantID = tenantID
	req.MembersToAdd = uniqueIDs(req.MembersToAdd)
	req.MembersToRemove = uniqueIDs(req.MembersToRemove)
	if err := req.Validate(); err != nil {
		return WorkflowState{}, invalidRequest(err.Error(), err)
	}

	state := NewWorkflow(req)
	unlock, err := s.store.Lock(ctx, tenantID, state.ID, s.lockTTL())
	if err != nil {
		return WorkflowState{}, AsServiceError(err)
	}
	defer unlock()
	logWithFields(ctx, logrus.InfoLevel, "workflow started", logrus.Fields{
		"workflow_id": state.ID,
		"flow":        req.Kind,
		"target_id":   req.TargetID,
		"add":         len(req.MembersToAdd),
		"remove":      len(req.MembersToRemove),
	})
	return s.step(ctx, tenantID, state)
}

func (s *WorkflowService) Get(ctx context.Context, tenantID, id uuid.UUID) (WorkflowState, error) {
	if err := requireTenant(tenantID); err != nil {
		return WorkflowState{}, err
	}
	state, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return WorkflowState{}, AsServiceError(err)
	}
	return state, nil
}

// Resolve answers the pending prompt and resumes the workflow.
func (s *WorkflowService) Resolve(ctx context.Context, tenantID, id uuid.UUID, decision Decision) (WorkflowState, error) {
	return s.withSession(ctx, tenantID, id, func(state WorkflowState) (WorkflowState, error) {
		next, err := Resolve(state, decision)
		if err != nil {
			return state, newServiceError(http.StatusConflict, CodeWorkflowState, err.Error(), err)
		}
		logWithFields(ctx, logrus.InfoLevel, "workflow decision", logrus.Fields{
			"workflow_id": id,
			"stage":       state.Stage,
			"decision":    decision,
		})
		return s.step(ctx, tenantID, next)
	})
}

// Retry re-runs Execute after a failed save with the same decisions.
func (s *WorkflowService) Retry(ctx context.Context, tenantID, id uuid.UUID) (WorkflowState, error) {
	return s.withSession(ctx, tenantID, id, func(state WorkflowState) (WorkflowState, error) {
		if state.Stage != StageExecute || state.LastError == "" {
			return state, newServiceError(http.StatusConflict, CodeWorkflowState, "workflow has no failed save to retry", nil)
		}
		return s.step(ctx, tenantID, state)
	})
}

// Cancel discards the pending payload; the session is removed.
func (s *WorkflowService) Cancel(ctx context.Context, tenantID, id uuid.UUID) (WorkflowState, error) {
	var cancelled WorkflowState
	_, err := s.withSession(ctx, tenantID, id, func(state WorkflowState) (WorkflowState, error) {
		cancelled = Cancel(state)
		return cancelled, nil
	})
	if err != nil {
		return WorkflowState{}, err
	}
	if err := s.store.Delete(ctx, tenantID, id); err != nil {
		return WorkflowState{}, AsServiceError(err)
	}
	logWithFields(ctx, logrus.InfoLevel, "workflow cancelled", logrus.Fields{"workflow_id": id})
	return cancelled, nil
}

func (s *WorkflowService) withSession(ctx context.Context, tenantID, id uuid.UUID, fn func(WorkflowState) (WorkflowState, error)) (WorkflowState, error) {
	if err := requireTenant(tenantID); err != nil {
		return WorkflowState{}, err
	}
	unlock, err := s.store.Lock(ctx, tenantID, id, s.lockTTL())
	if err != nil {
		return WorkflowState{}, AsServiceError(err)
	}
	defer unlock()

	state, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return WorkflowState{}, AsServiceError(err)
	}
	return fn(state)
}

// step advances, executes when ready and persists. A failed save is stored
// with its error so it can be retried, and the error is returned as well.
// Overlaps reported by the save come back as an overlap prompt.
func (s *WorkflowService) step(ctx context.Context, tenantID uuid.UUID, state WorkflowState) (WorkflowState, error) {
	next, err := Advance(ctx, state, s.facts)
	if err != nil {
		return state, AsServiceError(err)
	}
	if next.Prompt != nil {
		logWithFields(ctx, logrus.InfoLevel, "workflow halted", logrus.Fields{
			"workflow_id": next.ID,
			"stage":       next.Stage,
		})
	}

	var execErr *ServiceError
	if next.Stage == StageExecute && next.Prompt == nil {
		next, execErr = s.execute(ctx, next)
	}
	next.UpdatedAt = s.opts.Now().UTC()
	if err := s.store.Put(ctx, tenantID, next, s.opts.TTL); err != nil {
		return next, AsServiceError(err)
	}
	if execErr != nil {
		return next, execErr
	}
	return next, nil
}

func (s *WorkflowService) execute(ctx context.Context, state WorkflowState) (WorkflowState, *ServiceError) {
	plan, err := Plan(state)
	if err != nil {
		return state, newServiceError(http.StatusConflict, CodeWorkflowState, err.Error(), err)
	}
	saveCtx, cancel := context.WithTimeout(ctx, s.opts.SaveTimeout)
	defer cancel()

	flow := string(state.Request.Kind)
	result, err := s.executor.ExecutePlan(saveCtx, plan)
	if err == nil && result.Status == StatusOverlap {
		recordSave("workflow_"+flow, result.Status)
		logWithFields(ctx, logrus.InfoLevel, "workflow save hit overlaps", logrus.Fields{
			"workflow_id": state.ID,
			"conflicts":   len(result.Conflicts),
		})
		return ReopenOverlap(state, result.Conflicts), nil
	}
	if err != nil {
		svcErr := AsServiceError(err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(saveCtx.Err(), context.DeadlineExceeded) {
			svcErr = newServiceError(http.StatusGatewayTimeout, CodeSaveTimeout, "save timed out", err)
		}
		failed := MarkFailed(state, svcErr.Code, svcErr)
		recordSave("workflow_"+flow, "error")
		logWithFields(ctx, logrus.WarnLevel, "workflow save failed", logrus.Fields{
			"workflow_id": state.ID,
			"code":        svcErr.Code,
			"error":       svcErr.Error(),
		})
		return failed, svcErr
	}

	recordSave("workflow_"+flow, result.Status)
	logWithFields(ctx, logrus.InfoLevel, "workflow save succeeded", logrus.Fields{
		"workflow_id": state.ID,
		"created":     result.Created,
		"skipped":     result.Skipped,
		"removed":     result.Removed,
	})
	return MarkSucceeded(state, result), nil
}
