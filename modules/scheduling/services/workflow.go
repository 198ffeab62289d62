package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
)

type Stage string

const (
	StageIdle             Stage = "idle"
	StageStart            Stage = "start"
	StageConflictCheck    Stage = "conflict_check"
	StageRemovalCheck     Stage = "removal_check"
	StagePropagationCheck Stage = "propagation_check"
	StageOverlapCheck     Stage = "overlap_check"
	StageExecute          Stage = "execute"
	StageDone             Stage = "done"
)

type FlowKind string

const (
	FlowAssignResources FlowKind = "assign_resources"
	FlowSaveCrew        FlowKind = "save_crew"
)

type OverlapMode string

const (
	OverlapModeNone OverlapMode = ""
	OverlapModeAll  OverlapMode = "ALL"
	OverlapModeSkip OverlapMode = "SKIP"
)

func ParseOverlapMode(raw string) (OverlapMode, error) {
	switch m := OverlapMode(raw); m {
	case OverlapModeNone, OverlapModeAll, OverlapModeSkip:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported overlap mode: %q", raw)
	}
}

type Decision string

const (
	DecisionAddAnyway        Decision = "add_anyway"
	DecisionAddAndSync       Decision = "add_and_sync"
	DecisionRemoveHereOnly   Decision = "remove_here_only"
	DecisionRemoveFromFuture Decision = "remove_from_future"
	DecisionPropagate        Decision = "propagate"
	DecisionDoNotPropagate   Decision = "do_not_propagate"
	DecisionAssignAll        Decision = "assign_all"
	DecisionSkipOverlaps     Decision = "skip_overlaps"
)

var stageDecisions = map[Stage][]Decision{
	StageConflictCheck:    {DecisionAddAnyway, DecisionAddAndSync},
	StageRemovalCheck:     {DecisionRemoveHereOnly, DecisionRemoveFromFuture},
	StagePropagationCheck: {DecisionPropagate, DecisionDoNotPropagate},
	StageOverlapCheck:     {DecisionAssignAll, DecisionSkipOverlaps},
}

var (
	ErrWorkflowIdle       = errors.New("workflow is idle")
	ErrWorkflowDone       = errors.New("workflow already completed")
	ErrNoPendingPrompt    = errors.New("workflow has no pending prompt")
	ErrDecisionNotAllowed = errors.New("decision not allowed at this stage")
	ErrNotReadyToExecute  = errors.New("workflow has not reached execute")
)

// SaveRequest is the payload assembled at Start. TargetID is the mobilization
// for FlowAssignResources and the crew for FlowSaveCrew.
type SaveRequest struct {
	Kind            FlowKind                  `json:"kind"`
	TenantID        uuid.UUID                 `json:"tenant_id"`
	TargetID        uuid.UUID                 `json:"target_id"`
	ResourceType    mobilization.ResourceType `json:"resource_type,omitempty"`
	MembersToAdd    []uuid.UUID               `json:"members_to_add"`
	MembersToRemove []uuid.UUID               `json:"members_to_remove"`
	// ResourceCrew maps an added resource to the crew it is assigned under.
	ResourceCrew map[uuid.UUID]uuid.UUID `json:"resource_crew,omitempty"`
	AllowOverlap bool                    `json:"allow_overlap,omitempty"`
	CrewName     *string                 `json:"crew_name,omitempty"`
	LeaderID     *uuid.UUID              `json:"leader_id,omitempty"`
	ClearLeader  bool                    `json:"clear_leader,omitempty"`
}

func (r SaveRequest) Validate() error {
	switch r.Kind {
	case FlowAssignResources:
		if _, err := mobilization.ParseResourceType(string(r.ResourceType)); err != nil {
			return err
		}
	case FlowSaveCrew:
	default:
		return fmt.Errorf("unsupported flow: %q", r.Kind)
	}
	if r.TenantID == uuid.Nil {
		return fmt.Errorf("tenant_id is required")
	}
	if r.TargetID == uuid.Nil {
		return fmt.Errorf("target_id is required")
	}
	removing := make(map[uuid.UUID]struct{}, len(r.MembersToRemove))
	for _, id := range r.MembersToRemove {
		removing[id] = struct{}{}
	}
	for _, id := range r.MembersToAdd {
		if _, ok := removing[id]; ok {
			return fmt.Errorf("resource %s is both added and removed", id)
		}
	}
	return nil
}

// Prompt describes the decision a halted checkpoint is waiting for.
type Prompt struct {
	Stage               Stage                          `json:"stage"`
	Options             []Decision                     `json:"options"`
	MembershipConflicts []mobilization.CrewMembership  `json:"membership_conflicts,omitempty"`
	Removals            []uuid.UUID                    `json:"removals,omitempty"`
	FutureMobilizations int                            `json:"future_mobilizations,omitempty"`
	Overlaps            []mobilization.OverlapConflict `json:"overlaps,omitempty"`
}

// SaveResult is what Execute reports back.
type SaveResult struct {
	Status    string                         `json:"status"`
	Created   int                            `json:"mobilization_assignments_created"`
	Skipped   int                            `json:"mobilization_assignments_skipped"`
	Removed   int                            `json:"removed"`
	Conflicts []mobilization.OverlapConflict `json:"conflicts,omitempty"`
	Message   string                         `json:"message,omitempty"`
}

// WorkflowState is the whole conflict-resolution context. The functions in
// this file take a state and return the next one; they never mutate the input.
type WorkflowState struct {
	ID                            uuid.UUID                 `json:"id"`
	Stage                         Stage                     `json:"stage"`
	Request                       SaveRequest               `json:"request"`
	AssignToFutureMobilizations   bool                      `json:"assign_to_future_mobilizations"`
	RemoveFromFutureMobilizations bool                      `json:"remove_from_future_mobilizations"`
	OverlapMode                   OverlapMode               `json:"overlap_mode,omitempty"`
	SkipMap                       map[uuid.UUID][]uuid.UUID `json:"skip_map,omitempty"`
	HasAcknowledgedConflicts      bool                      `json:"has_acknowledged_conflicts"`
	HasAcknowledgedRemoval        bool                      `json:"has_acknowledged_removal"`
	HasAcknowledgedPropagation    bool                      `json:"has_acknowledged_propagation"`
	HasAcknowledgedOverlap        bool                      `json:"has_acknowledged_overlap"`
	Prompt                        *Prompt                   `json:"prompt,omitempty"`
	Attempts                      int                       `json:"attempts"`
	LastError                     string                    `json:"last_error,omitempty"`
	LastErrorCode                 string                    `json:"last_error_code,omitempty"`
	Result                        *SaveResult               `json:"result,omitempty"`
	UpdatedAt                     time.Time                 `json:"updated_at"`
}

// FactSource answers the questions the checkpoints ask about the data layer.
type FactSource interface {
	// MembershipConflicts lists additions already bound to another crew.
	MembershipConflicts(ctx context.Context, req SaveRequest) ([]mobilization.CrewMembership, error)
	FutureMobilizationCount(ctx context.Context, req SaveRequest) (int, error)
	// FutureOverlapConflicts evaluates additions against the mobilizations
	// that would receive them: the future ones and, when assigning to a
	// mobilization, the target itself.
	FutureOverlapConflicts(ctx context.Context, req SaveRequest) ([]mobilization.OverlapConflict, error)
}

func NewWorkflow(req SaveRequest) WorkflowState {
	return WorkflowState{
		ID:      uuid.New(),
		Stage:   StageStart,
		Request: req,
	}
}

func (s WorkflowState) clone() WorkflowState {
	out := s
	out.Request = s.Request.clone()
	if s.SkipMap != nil {
		out.SkipMap = make(map[uuid.UUID][]uuid.UUID, len(s.SkipMap))
		for k, v := range s.SkipMap {
			out.SkipMap[k] = slices.Clone(v)
		}
	}
	if s.Prompt != nil {
		p := *s.Prompt
		p.Options = slices.Clone(s.Prompt.Options)
		p.MembershipConflicts = slices.Clone(s.Prompt.MembershipConflicts)
		p.Removals = slices.Clone(s.Prompt.Removals)
		p.Overlaps = slices.Clone(s.Prompt.Overlaps)
		out.Prompt = &p
	}
	if s.Result != nil {
		r := *s.Result
		r.Conflicts = slices.Clone(s.Result.Conflicts)
		out.Result = &r
	}
	return out
}

func (r SaveRequest) clone() SaveRequest {
	out := r
	out.MembersToAdd = slices.Clone(r.MembersToAdd)
	out.MembersToRemove = slices.Clone(r.MembersToRemove)
	out.ResourceCrew = maps.Clone(r.ResourceCrew)
	if r.CrewName != nil {
		name := *r.CrewName
		out.CrewName = &name
	}
	if r.LeaderID != nil {
		id := *r.LeaderID
		out.LeaderID = &id
	}
	return out
}

func halt(s WorkflowState, p Prompt) WorkflowState {
	p.Stage = s.Stage
	p.Options = slices.Clone(stageDecisions[s.Stage])
	s.Prompt = &p
	recordWorkflowPrompt(s.Stage)
	return s
}

// Advance walks the checkpoints in order until one needs a decision or the
// workflow reaches Execute. Acknowledged checkpoints are passed without
// asking again. On a fact lookup error the state is returned unchanged.
func Advance(ctx context.Context, state WorkflowState, facts FactSource) (WorkflowState, error) {
	switch state.Stage {
	case StageIdle:
		return state, ErrWorkflowIdle
	case StageDone:
		return state, ErrWorkflowDone
	}
	if state.Prompt != nil {
		return state, nil
	}

	s := state.clone()
	req := s.Request
	adding := len(req.MembersToAdd) > 0
	if s.Stage == StageStart {
		s.Stage = StageConflictCheck
	}

	for {
		switch s.Stage {
		case StageConflictCheck:
			if adding && !s.HasAcknowledgedConflicts {
				conflicts, err := facts.MembershipConflicts(ctx, req)
				if err != nil {
					return state, err
				}
				if len(conflicts) > 0 {
					return halt(s, Prompt{MembershipConflicts: conflicts}), nil
				}
			}
			s.Stage = StageRemovalCheck

		case StageRemovalCheck:
			if len(req.MembersToRemove) > 0 && !s.HasAcknowledgedRemoval {
				return halt(s, Prompt{Removals: append([]uuid.UUID(nil), req.MembersToRemove...)}), nil
			}
			s.Stage = StagePropagationCheck

		case StagePropagationCheck:
			if adding && !s.HasAcknowledgedPropagation {
				n, err := facts.FutureMobilizationCount(ctx, req)
				if err != nil {
					return state, err
				}
				if n > 0 {
					return halt(s, Prompt{FutureMobilizations: n}), nil
				}
			}
			s.Stage = StageOverlapCheck

		case StageOverlapCheck:
			if adding && s.AssignToFutureMobilizations && !s.HasAcknowledgedOverlap {
				conflicts, err := facts.FutureOverlapConflicts(ctx, req)
				if err != nil {
					return state, err
				}
				recordOverlapConflicts("workflow", len(conflicts))
				if len(conflicts) > 0 {
					return halt(s, Prompt{Overlaps: conflicts}), nil
				}
			}
			s.Stage = StageExecute

		case StageExecute:
			return s, nil

		default:
			return state, fmt.Errorf("unknown workflow stage: %q", s.Stage)
		}
	}
}

// Resolve records the decision for the pending prompt. The stage is left in
// place; the next Advance passes it because it is now acknowledged.
func Resolve(state WorkflowState, decision Decision) (WorkflowState, error) {
	if state.Prompt == nil {
		return state, ErrNoPendingPrompt
	}
	allowed := false
	for _, d := range stageDecisions[state.Stage] {
		if d == decision {
			allowed = true
			break
		}
	}
	if !allowed {
		return state, fmt.Errorf("%w: %q at %s", ErrDecisionNotAllowed, decision, state.Stage)
	}

	s := state.clone()
	switch decision {
	case DecisionAddAnyway:
		s.HasAcknowledgedConflicts = true
		s.AssignToFutureMobilizations = false
	case DecisionAddAndSync:
		// Syncing already answers the propagation question.
		s.HasAcknowledgedConflicts = true
		s.AssignToFutureMobilizations = true
		s.HasAcknowledgedPropagation = true
	case DecisionRemoveHereOnly:
		s.HasAcknowledgedRemoval = true
		s.RemoveFromFutureMobilizations = false
	case DecisionRemoveFromFuture:
		s.HasAcknowledgedRemoval = true
		s.RemoveFromFutureMobilizations = true
	case DecisionPropagate:
		s.HasAcknowledgedPropagation = true
		s.AssignToFutureMobilizations = true
	case DecisionDoNotPropagate:
		s.HasAcknowledgedPropagation = true
		s.AssignToFutureMobilizations = false
	case DecisionAssignAll:
		s.HasAcknowledgedOverlap = true
		s.OverlapMode = OverlapModeAll
		s.SkipMap = nil
		s.Request.AllowOverlap = true
	case DecisionSkipOverlaps:
		s.HasAcknowledgedOverlap = true
		s.OverlapMode = OverlapModeSkip
		s.SkipMap = BuildSkipMap(s.Prompt.Overlaps)
		s.Request.AllowOverlap = false
		if !s.AssignToFutureMobilizations {
			// Only the target receives additions, so an overlap there drops the resource.
			s.Request.MembersToAdd = withoutSkipped(s.Request.MembersToAdd, s.SkipMap, s.Request.TargetID)
		}
	}
	s.Prompt = nil
	return s, nil
}

// Cancel discards the payload and every decision.
func Cancel(state WorkflowState) WorkflowState {
	return WorkflowState{ID: state.ID, Stage: StageIdle}
}

// MarkSucceeded finishes the workflow and clears the acknowledgments.
func MarkSucceeded(state WorkflowState, result SaveResult) WorkflowState {
	s := state.clone()
	s.Stage = StageDone
	s.HasAcknowledgedConflicts = false
	s.HasAcknowledgedRemoval = false
	s.HasAcknowledgedPropagation = false
	s.HasAcknowledgedOverlap = false
	s.Prompt = nil
	s.LastError = ""
	s.LastErrorCode = ""
	s.Attempts++
	s.Result = &result
	return s
}

// ReopenOverlap turns overlaps reported by the save back into an overlap
// prompt. Earlier decisions are kept; the overlap answer is asked again.
func ReopenOverlap(state WorkflowState, conflicts []mobilization.OverlapConflict) WorkflowState {
	s := state.clone()
	s.Stage = StageOverlapCheck
	s.HasAcknowledgedOverlap = false
	s.OverlapMode = OverlapModeNone
	s.SkipMap = nil
	s.Request.AllowOverlap = false
	s.Attempts++
	s.LastError = ""
	s.LastErrorCode = ""
	s.Result = nil
	return halt(s, Prompt{Overlaps: slices.Clone(conflicts)})
}

func withoutSkipped(ids []uuid.UUID, skip map[uuid.UUID][]uuid.UUID, mobilizationID uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !skipped(skip, id, mobilizationID) {
			out = append(out, id)
		}
	}
	return out
}

// MarkFailed keeps every decision so the save can be retried as is.
func MarkFailed(state WorkflowState, code string, err error) WorkflowState {
	s := state.clone()
	s.Attempts++
	s.LastErrorCode = code
	if err != nil {
		s.LastError = err.Error()
	}
	return s
}

// SavePlan is the resolved payload handed to the executor. Exactly one of
// SimpleAssignment, PropagatedAssignment or SkipModeAssignment.
type SavePlan interface {
	Base() SaveRequest
	RemoveFromFuture() bool
	isSavePlan()
}

// SimpleAssignment touches only the target.
type SimpleAssignment struct {
	Request                       SaveRequest
	RemoveFromFutureMobilizations bool
}

// PropagatedAssignment also writes additions into every future mobilization.
type PropagatedAssignment struct {
	Request                       SaveRequest
	RemoveFromFutureMobilizations bool
}

// SkipModeAssignment propagates additions except for the pairs in Skip.
type SkipModeAssignment struct {
	Request                       SaveRequest
	RemoveFromFutureMobilizations bool
	Skip                          map[uuid.UUID][]uuid.UUID
}

func (p SimpleAssignment) Base() SaveRequest      { return p.Request }
func (p SimpleAssignment) RemoveFromFuture() bool { return p.RemoveFromFutureMobilizations }
func (SimpleAssignment) isSavePlan()              {}

func (p PropagatedAssignment) Base() SaveRequest      { return p.Request }
func (p PropagatedAssignment) RemoveFromFuture() bool { return p.RemoveFromFutureMobilizations }
func (PropagatedAssignment) isSavePlan()              {}

func (p SkipModeAssignment) Base() SaveRequest      { return p.Request }
func (p SkipModeAssignment) RemoveFromFuture() bool { return p.RemoveFromFutureMobilizations }
func (SkipModeAssignment) isSavePlan()              {}

// Plan turns a state at Execute into its save plan.
func Plan(state WorkflowState) (SavePlan, error) {
	if state.Stage != StageExecute {
		return nil, ErrNotReadyToExecute
	}
	switch {
	case !state.AssignToFutureMobilizations:
		return SimpleAssignment{Request: state.Request, RemoveFromFutureMobilizations: state.RemoveFromFutureMobilizations}, nil
	case state.OverlapMode == OverlapModeSkip:
		s := state.clone()
		return SkipModeAssignment{Request: s.Request, RemoveFromFutureMobilizations: s.RemoveFromFutureMobilizations, Skip: s.SkipMap}, nil
	default:
		return PropagatedAssignment{Request: state.Request, RemoveFromFutureMobilizations: state.RemoveFromFutureMobilizations}, nil
	}
}
