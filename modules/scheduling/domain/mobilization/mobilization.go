package mobilization

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/timewindow"
)

const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Mobilization is a scheduled time window for a job. Mobilizations that share
// a GroupID form a series; "future mobilizations" are the later members of
// the series, or the later mobilizations of the same crew.
type Mobilization struct {
	TenantID  uuid.UUID         `json:"tenant_id"`
	ID        uuid.UUID         `json:"id"`
	JobID     uuid.UUID         `json:"job_id"`
	JobName   string            `json:"job_name,omitempty"`
	GroupID   *uuid.UUID        `json:"group_id,omitempty"`
	CrewID    *uuid.UUID        `json:"crew_id,omitempty"`
	Status    string            `json:"status"`
	Window    timewindow.Window `json:"window"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (m Mobilization) Validate() error {
	if m.JobID == uuid.Nil {
		return fmt.Errorf("job_id is required")
	}
	if !ValidStatus(m.Status) {
		return fmt.Errorf("unsupported status: %q", m.Status)
	}
	return m.Window.Validate()
}

type ResourceType string

const (
	ResourceCrewMember    ResourceType = "CrewMember"
	ResourceSubContractor ResourceType = "SubContractor"
	ResourceAsset         ResourceType = "Asset"
	ResourceCrewMaster    ResourceType = "CrewMaster"
)

var resourceTypes = []ResourceType{ResourceCrewMember, ResourceSubContractor, ResourceAsset, ResourceCrewMaster}

// ParseResourceType is case-insensitive and accepts the snake_case spellings.
func ParseResourceType(raw string) (ResourceType, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "")
	for _, t := range resourceTypes {
		if strings.ToLower(string(t)) == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported resource type: %q", raw)
}

// ResourceAssignment binds one resource to one mobilization, optionally
// under a crew.
type ResourceAssignment struct {
	TenantID       uuid.UUID    `json:"tenant_id"`
	ID             uuid.UUID    `json:"id"`
	MobilizationID uuid.UUID    `json:"mobilization_id"`
	ResourceID     uuid.UUID    `json:"resource_id"`
	ResourceType   ResourceType `json:"resource_type"`
	CrewID         *uuid.UUID   `json:"crew_id,omitempty"`
	WasAssigned    bool         `json:"was_assigned"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Booking is an existing assignment of a resource, with the window of the
// mobilization it belongs to.
type Booking struct {
	ResourceID     uuid.UUID         `json:"resource_id"`
	ResourceName   string            `json:"resource_name,omitempty"`
	MobilizationID uuid.UUID         `json:"mobilization_id"`
	Window         timewindow.Window `json:"window"`
	JobName        string            `json:"job_name,omitempty"`
	CrewName       string            `json:"crew_name,omitempty"`
}

// Candidate is a proposed binding of a resource to a mobilization.
type Candidate struct {
	ResourceID     uuid.UUID         `json:"resource_id"`
	ResourceName   string            `json:"resource_name,omitempty"`
	ResourceType   ResourceType      `json:"resource_type"`
	MobilizationID uuid.UUID         `json:"mobilization_id"`
	Window         timewindow.Window `json:"window"`
}

// OverlapConflict is computed on demand and never persisted.
type OverlapConflict struct {
	ResourceID                uuid.UUID         `json:"contact_id"`
	ResourceName              string            `json:"contact_name,omitempty"`
	TargetMobilizationID      uuid.UUID         `json:"target_mobilization_id"`
	TargetWindow              timewindow.Window `json:"target_window"`
	ConflictingMobilizationID uuid.UUID         `json:"conflicting_mobilization_id"`
	ConflictingWindow         timewindow.Window `json:"conflicting_window"`
	ConflictingCrewName       string            `json:"conflicting_crew_name,omitempty"`
	ConflictingJobName        string            `json:"conflicting_job_name,omitempty"`
}
