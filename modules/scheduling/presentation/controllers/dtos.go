package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
)

type createMobilizationRequest struct {
	JobID   uuid.UUID  `json:"job_id" validate:"required"`
	GroupID *uuid.UUID `json:"group_id"`
	CrewID  *uuid.UUID `json:"crew_id"`
	Status  string     `json:"status" validate:"omitempty,oneof=scheduled in_progress completed cancelled"`
	Start   time.Time  `json:"start" validate:"required"`
	End     time.Time  `json:"end" validate:"required,gtfield=Start"`
}

type updateMobilizationRequest struct {
	Start  *time.Time `json:"start"`
	End    *time.Time `json:"end"`
	Status *string    `json:"status" validate:"omitempty,oneof=scheduled in_progress completed cancelled"`
	Admin  bool       `json:"admin"`
}

type assignResourceRequest struct {
	ResourceID   uuid.UUID  `json:"resource_id" validate:"required"`
	ResourceType string     `json:"resource_type" validate:"required"`
	CrewID       *uuid.UUID `json:"crew_id"`
	AllowOverlap bool       `json:"allow_overlap"`
}

type assignResourcesRequest struct {
	ResourceIDs                 []uuid.UUID               `json:"resource_ids" validate:"required,min=1"`
	ResourceType                string                    `json:"resource_type" validate:"required"`
	ResourceMap                 map[uuid.UUID]uuid.UUID   `json:"resource_map"`
	AllowOverlap                bool                      `json:"allow_overlap"`
	AssignToFutureMobilizations bool                      `json:"assign_to_future_mobilizations"`
	OverlapMode                 string                    `json:"overlap_mode" validate:"omitempty,oneof=ALL SKIP"`
	AssignmentsToSkip           map[uuid.UUID][]uuid.UUID `json:"mobilization_assignments_to_skip"`
}

// batchAssignError keeps the batch response shape on failures.
type batchAssignError struct {
	Status  string            `json:"status"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type overlapsRequest struct {
	MobilizationID *uuid.UUID  `json:"mobilization_id"`
	CrewID         *uuid.UUID  `json:"crew_id"`
	ResourceIDs    []uuid.UUID `json:"resource_ids"`
	IncludeFuture  bool        `json:"include_future"`
}

type overlapsResponse struct {
	Conflicts []mobilization.OverlapConflict `json:"conflicts"`
	SkipMap   map[uuid.UUID][]uuid.UUID      `json:"skip_map"`
}

type saveCrewRequest struct {
	Name                          *string                   `json:"name" validate:"omitempty,min=1,max=255"`
	LeaderID                      *uuid.UUID                `json:"leader_id"`
	ClearLeader                   bool                      `json:"clear_leader"`
	MembersToAdd                  []uuid.UUID               `json:"members_to_add"`
	MembersToRemove               []uuid.UUID               `json:"members_to_remove"`
	AssignToFutureMobilizations   bool                      `json:"assign_to_future_mobilizations"`
	RemoveFromFutureMobilizations bool                      `json:"remove_from_future_mobilizations"`
	AssignmentsToSkip             map[uuid.UUID][]uuid.UUID `json:"mobilization_assignments_to_skip"`
}

type startWorkflowRequest struct {
	Kind            string                  `json:"kind" validate:"required,oneof=assign_resources save_crew"`
	TargetID        uuid.UUID               `json:"target_id" validate:"required"`
	ResourceType    string                  `json:"resource_type"`
	MembersToAdd    []uuid.UUID             `json:"members_to_add"`
	MembersToRemove []uuid.UUID             `json:"members_to_remove"`
	ResourceMap     map[uuid.UUID]uuid.UUID `json:"resource_map"`
	AllowOverlap    bool                    `json:"allow_overlap"`
	CrewName        *string                 `json:"crew_name"`
	LeaderID        *uuid.UUID              `json:"leader_id"`
	ClearLeader     bool                    `json:"clear_leader"`
}

type resolveWorkflowRequest struct {
	Decision string `json:"decision" validate:"required"`
}

type timesheetRequest struct {
	ContactID      uuid.UUID `json:"contact_id"`
	MobilizationID uuid.UUID `json:"mobilization_id"`
	JobID          uuid.UUID `json:"job_id"`
	CostCode       string    `json:"cost_code"`
	ClockIn        time.Time `json:"clock_in"`
	ClockOut       time.Time `json:"clock_out"`
	PerDiem        int       `json:"per_diem"`
	Notes          string    `json:"notes"`
}

func (t timesheetRequest) toEntry() mobilization.TimesheetEntry {
	return mobilization.TimesheetEntry{
		ContactID:      t.ContactID,
		MobilizationID: t.MobilizationID,
		JobID:          t.JobID,
		CostCode:       t.CostCode,
		ClockIn:        t.ClockIn,
		ClockOut:       t.ClockOut,
		PerDiem:        t.PerDiem,
		Notes:          t.Notes,
	}
}

type batchTimesheetsRequest struct {
	Entries []timesheetRequest `json:"entries" validate:"required,min=1"`
}

type patchTimesheetRequest struct {
	ClockIn  *time.Time `json:"clock_in"`
	ClockOut *time.Time `json:"clock_out"`
	CostCode *string    `json:"cost_code"`
	PerDiem  *int       `json:"per_diem"`
	Notes    *string    `json:"notes"`
}
