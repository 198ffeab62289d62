package mobilization

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrCrewNameRequired   = errors.New("crew name is required")
	ErrLeaderNotMember    = errors.New("crew leader must be a crew member")
	ErrMemberAddAndRemove = errors.New("a contact cannot be added and removed in the same save")
)

type Crew struct {
	TenantID uuid.UUID   `json:"tenant_id"`
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	LeaderID *uuid.UUID  `json:"leader_id,omitempty"`
	Members  []uuid.UUID `json:"members"`
}

func (c *Crew) HasMember(id uuid.UUID) bool {
	for _, m := range c.Members {
		if m == id {
			return true
		}
	}
	return false
}

// CrewChange is a membership edit applied by ApplyChange.
type CrewChange struct {
	Name     *string
	LeaderID *uuid.UUID
	// ClearLeader removes the leader designation.
	ClearLeader bool
	Add         []uuid.UUID
	Remove      []uuid.UUID
}

// ApplyChange returns the crew after the change. A crew has at most one leader
// and the leader is always a member; removing the leader clears leadership.
// Additions of existing members and removals of non-members are ignored.
func (c Crew) ApplyChange(change CrewChange) (Crew, error) {
	removing := make(map[uuid.UUID]struct{}, len(change.Remove))
	for _, id := range change.Remove {
		removing[id] = struct{}{}
	}
	for _, id := range change.Add {
		if _, ok := removing[id]; ok {
			return Crew{}, ErrMemberAddAndRemove
		}
	}

	out := c
	if change.Name != nil {
		out.Name = strings.TrimSpace(*change.Name)
	}
	if out.Name == "" {
		return Crew{}, ErrCrewNameRequired
	}

	members := make([]uuid.UUID, 0, len(c.Members)+len(change.Add))
	seen := make(map[uuid.UUID]struct{}, len(c.Members)+len(change.Add))
	for _, id := range c.Members {
		if _, gone := removing[id]; gone {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	for _, id := range change.Add {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	out.Members = members

	switch {
	case change.ClearLeader:
		out.LeaderID = nil
	case change.LeaderID != nil:
		leader := *change.LeaderID
		out.LeaderID = &leader
	}
	if out.LeaderID != nil {
		if _, ok := seen[*out.LeaderID]; !ok {
			if _, removed := removing[*out.LeaderID]; removed && change.LeaderID == nil {
				out.LeaderID = nil
			} else {
				return Crew{}, ErrLeaderNotMember
			}
		}
	}
	return out, nil
}
