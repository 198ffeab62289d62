package services

import (
	"sort"

	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
)

// BookingLookup returns the existing bookings of one resource.
type BookingLookup func(resourceID uuid.UUID) []mobilization.Booking

// IndexBookings builds a lookup over a flat booking list.
func IndexBookings(bookings []mobilization.Booking) BookingLookup {
	byResource := make(map[uuid.UUID][]mobilization.Booking)
	for _, b := range bookings {
		byResource[b.ResourceID] = append(byResource[b.ResourceID], b)
	}
	for id := range byResource {
		list := byResource[id]
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].Window.Start.Equal(list[j].Window.Start) {
				return list[i].Window.Start.Before(list[j].Window.Start)
			}
			return list[i].MobilizationID.String() < list[j].MobilizationID.String()
		})
	}
	return func(resourceID uuid.UUID) []mobilization.Booking {
		return byResource[resourceID]
	}
}

type OverlapOptions struct {
	// IncludeBatch also flags two candidates of the same resource whose
	// target windows intersect each other.
	IncludeBatch bool
}

type conflictKey struct {
	resource, target, conflicting uuid.UUID
}

// EvaluateOverlaps returns one conflict per (resource, candidate mobilization,
// conflicting mobilization) whose windows intersect. Bookings on the
// candidate's own mobilization are ignored. Output follows candidate order,
// then booking start time.
func EvaluateOverlaps(candidates []mobilization.Candidate, lookup BookingLookup, opts OverlapOptions) []mobilization.OverlapConflict {
	var out []mobilization.OverlapConflict
	seen := make(map[conflictKey]struct{})
	add := func(c mobilization.OverlapConflict) {
		k := conflictKey{c.ResourceID, c.TargetMobilizationID, c.ConflictingMobilizationID}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}

	for i, cand := range candidates {
		if lookup != nil {
			for _, b := range lookup(cand.ResourceID) {
				if b.MobilizationID == cand.MobilizationID || !cand.Window.Intersects(b.Window) {
					continue
				}
				name := cand.ResourceName
				if name == "" {
					name = b.ResourceName
				}
				add(mobilization.OverlapConflict{
					ResourceID:                cand.ResourceID,
					ResourceName:              name,
					TargetMobilizationID:      cand.MobilizationID,
					TargetWindow:              cand.Window,
					ConflictingMobilizationID: b.MobilizationID,
					ConflictingWindow:         b.Window,
					ConflictingCrewName:       b.CrewName,
					ConflictingJobName:        b.JobName,
				})
			}
		}
		if !opts.IncludeBatch {
			continue
		}
		for j, other := range candidates {
			if i == j || other.ResourceID != cand.ResourceID || other.MobilizationID == cand.MobilizationID {
				continue
			}
			if !cand.Window.Intersects(other.Window) {
				continue
			}
			add(mobilization.OverlapConflict{
				ResourceID:                cand.ResourceID,
				ResourceName:              cand.ResourceName,
				TargetMobilizationID:      cand.MobilizationID,
				TargetWindow:              cand.Window,
				ConflictingMobilizationID: other.MobilizationID,
				ConflictingWindow:         other.Window,
			})
		}
	}
	return out
}

// BuildSkipMap groups conflicting target mobilizations by resource, keeping
// first-seen order and dropping duplicates.
func BuildSkipMap(conflicts []mobilization.OverlapConflict) map[uuid.UUID][]uuid.UUID {
	out := make(map[uuid.UUID][]uuid.UUID)
	seen := make(map[[2]uuid.UUID]struct{})
	for _, c := range conflicts {
		k := [2]uuid.UUID{c.ResourceID, c.TargetMobilizationID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out[c.ResourceID] = append(out[c.ResourceID], c.TargetMobilizationID)
	}
	return out
}

func skipped(skip map[uuid.UUID][]uuid.UUID, resourceID, mobilizationID uuid.UUID) bool {
	for _, id := range skip[resourceID] {
		if id == mobilizationID {
			return true
		}
	}
	return false
}
