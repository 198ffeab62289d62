package controllers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/domain/timewindow"
	"github.com/fieldcrew/mobsched/modules/scheduling/services"
)

// memRepo backs every repository port with maps, ignoring tenants except for
// lookups by id.
type memRepo struct {
	mu            sync.Mutex
	mobilizations map[uuid.UUID]mobilization.Mobilization
	assignments   []mobilization.ResourceAssignment
	crews         map[uuid.UUID]mobilization.Crew
	jobs          map[uuid.UUID]mobilization.Job
	timesheets    map[uuid.UUID]mobilization.TimesheetEntry
	names         map[uuid.UUID]string

	bookingCalls int
	failInsert   error
}

func newMemRepo() *memRepo {
	return &memRepo{
		mobilizations: map[uuid.UUID]mobilization.Mobilization{},
		crews:         map[uuid.UUID]mobilization.Crew{},
		jobs:          map[uuid.UUID]mobilization.Job{},
		timesheets:    map[uuid.UUID]mobilization.TimesheetEntry{},
		names:         map[uuid.UUID]string{},
	}
}

func (r *memRepo) repos() services.SchedulingRepositories {
	return services.SchedulingRepositories{
		Mobilizations: memMobilizations{r},
		Assignments:   memAssignments{r},
		Crews:         memCrews{r},
		Jobs:          memJobs{r},
		Timesheets:    memTimesheets{r},
	}
}

func (r *memRepo) addMobilization(tenantID, jobID uuid.UUID, group, crew *uuid.UUID, start time.Time, hours int) mobilization.Mobilization {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := mobilization.Mobilization{
		TenantID: tenantID,
		ID:       uuid.New(),
		JobID:    jobID,
		GroupID:  group,
		CrewID:   crew,
		Status:   mobilization.StatusScheduled,
		Window:   timewindow.Window{Start: start, End: start.Add(time.Duration(hours) * time.Hour)},
	}
	r.mobilizations[m.ID] = m
	return m
}

func (r *memRepo) assign(tenantID, mobID, resourceID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments = append(r.assignments, mobilization.ResourceAssignment{
		TenantID:       tenantID,
		ID:             uuid.New(),
		MobilizationID: mobID,
		ResourceID:     resourceID,
		ResourceType:   mobilization.ResourceCrewMember,
	})
}

func (r *memRepo) assigned(mobID, resourceID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.MobilizationID == mobID && a.ResourceID == resourceID {
			return true
		}
	}
	return false
}

type memMobilizations struct{ r *memRepo }

func (m memMobilizations) Create(_ context.Context, mob mobilization.Mobilization) (mobilization.Mobilization, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	m.r.mobilizations[mob.ID] = mob
	return mob, nil
}

func (m memMobilizations) Update(_ context.Context, mob mobilization.Mobilization) (mobilization.Mobilization, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	if _, ok := m.r.mobilizations[mob.ID]; !ok {
		return mobilization.Mobilization{}, pgx.ErrNoRows
	}
	m.r.mobilizations[mob.ID] = mob
	return mob, nil
}

func (m memMobilizations) Get(_ context.Context, tenantID, id uuid.UUID) (mobilization.Mobilization, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	mob, ok := m.r.mobilizations[id]
	if !ok || mob.TenantID != tenantID {
		return mobilization.Mobilization{}, pgx.ErrNoRows
	}
	return mob, nil
}

func (m memMobilizations) Delete(_ context.Context, _, id uuid.UUID) error {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	delete(m.r.mobilizations, id)
	return nil
}

func (m memMobilizations) List(_ context.Context, tenantID uuid.UUID, f mobilization.ListFilter) ([]mobilization.Mobilization, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	var out []mobilization.Mobilization
	for _, mob := range m.r.mobilizations {
		if mob.TenantID != tenantID {
			continue
		}
		if !f.From.IsZero() && !mob.Window.End.After(f.From) {
			continue
		}
		if !f.To.IsZero() && !mob.Window.Start.Before(f.To) {
			continue
		}
		out = append(out, mob)
	}
	sortMobs(out)
	return out, nil
}

func (m memMobilizations) ListFutureInGroup(_ context.Context, tenantID, groupID uuid.UUID, after time.Time) ([]mobilization.Mobilization, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	var out []mobilization.Mobilization
	for _, mob := range m.r.mobilizations {
		if mob.TenantID == tenantID && mob.GroupID != nil && *mob.GroupID == groupID && mob.Window.Start.After(after) {
			out = append(out, mob)
		}
	}
	sortMobs(out)
	return out, nil
}

func (m memMobilizations) ListFutureForCrew(_ context.Context, tenantID, crewID uuid.UUID, after time.Time) ([]mobilization.Mobilization, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	var out []mobilization.Mobilization
	for _, mob := range m.r.mobilizations {
		if mob.TenantID == tenantID && mob.CrewID != nil && *mob.CrewID == crewID && mob.Window.Start.After(after) {
			out = append(out, mob)
		}
	}
	sortMobs(out)
	return out, nil
}

func sortMobs(list []mobilization.Mobilization) {
	sort.Slice(list, func(i, j int) bool { return list[i].Window.Start.Before(list[j].Window.Start) })
}

type memAssignments struct{ r *memRepo }

func (a memAssignments) ListByMobilization(_ context.Context, _, mobID uuid.UUID) ([]mobilization.ResourceAssignment, error) {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	var out []mobilization.ResourceAssignment
	for _, as := range a.r.assignments {
		if as.MobilizationID == mobID {
			out = append(out, as)
		}
	}
	return out, nil
}

func (a memAssignments) Exists(_ context.Context, _, mobID, resourceID uuid.UUID) (bool, error) {
	return a.r.assigned(mobID, resourceID), nil
}

func (a memAssignments) Insert(_ context.Context, as mobilization.ResourceAssignment) error {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	if a.r.failInsert != nil {
		return a.r.failInsert
	}
	a.r.assignments = append(a.r.assignments, as)
	return nil
}

func (a memAssignments) Delete(_ context.Context, _, mobID, resourceID uuid.UUID) (bool, error) {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	for i, as := range a.r.assignments {
		if as.MobilizationID == mobID && as.ResourceID == resourceID {
			a.r.assignments = append(a.r.assignments[:i], a.r.assignments[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (a memAssignments) DeleteByMobilization(_ context.Context, _, mobID uuid.UUID) error {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	kept := a.r.assignments[:0]
	for _, as := range a.r.assignments {
		if as.MobilizationID != mobID {
			kept = append(kept, as)
		}
	}
	a.r.assignments = kept
	return nil
}

func (a memAssignments) BookingsFor(_ context.Context, _ uuid.UUID, resourceIDs []uuid.UUID) ([]mobilization.Booking, error) {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	a.r.bookingCalls++
	want := map[uuid.UUID]bool{}
	for _, id := range resourceIDs {
		want[id] = true
	}
	var out []mobilization.Booking
	for _, as := range a.r.assignments {
		if !want[as.ResourceID] {
			continue
		}
		mob := a.r.mobilizations[as.MobilizationID]
		out = append(out, mobilization.Booking{
			ResourceID:     as.ResourceID,
			ResourceName:   a.r.names[as.ResourceID],
			MobilizationID: as.MobilizationID,
			Window:         mob.Window,
		})
	}
	return out, nil
}

type memCrews struct{ r *memRepo }

func (c memCrews) Get(_ context.Context, _, id uuid.UUID) (mobilization.Crew, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	crew, ok := c.r.crews[id]
	if !ok {
		return mobilization.Crew{}, pgx.ErrNoRows
	}
	return crew, nil
}

func (c memCrews) Save(_ context.Context, crew mobilization.Crew) error {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	c.r.crews[crew.ID] = crew
	return nil
}

func (c memCrews) MembershipsOf(_ context.Context, _ uuid.UUID, contactIDs []uuid.UUID) ([]mobilization.CrewMembership, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	var out []mobilization.CrewMembership
	for _, id := range contactIDs {
		for _, crew := range c.r.crews {
			if crew.HasMember(id) {
				out = append(out, mobilization.CrewMembership{ContactID: id, CrewID: crew.ID, CrewName: crew.Name})
			}
		}
	}
	return out, nil
}

type memJobs struct{ r *memRepo }

func (j memJobs) Get(_ context.Context, _, id uuid.UUID) (mobilization.Job, error) {
	j.r.mu.Lock()
	defer j.r.mu.Unlock()
	job, ok := j.r.jobs[id]
	if !ok {
		return mobilization.Job{}, pgx.ErrNoRows
	}
	return job, nil
}

type memTimesheets struct{ r *memRepo }

func (t memTimesheets) Insert(_ context.Context, e mobilization.TimesheetEntry) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.timesheets[e.ID] = e
	return nil
}

func (t memTimesheets) Update(_ context.Context, e mobilization.TimesheetEntry) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if _, ok := t.r.timesheets[e.ID]; !ok {
		return pgx.ErrNoRows
	}
	t.r.timesheets[e.ID] = e
	return nil
}

func (t memTimesheets) Get(_ context.Context, _, id uuid.UUID) (mobilization.TimesheetEntry, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	e, ok := t.r.timesheets[id]
	if !ok {
		return mobilization.TimesheetEntry{}, pgx.ErrNoRows
	}
	return e, nil
}

func (t memTimesheets) CountByMobilization(_ context.Context, _, mobID uuid.UUID) (int, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	n := 0
	for _, e := range t.r.timesheets {
		if e.MobilizationID == mobID {
			n++
		}
	}
	return n, nil
}

func (t memTimesheets) ListByJob(_ context.Context, _, jobID uuid.UUID) ([]mobilization.TimesheetEntry, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	var out []mobilization.TimesheetEntry
	for _, e := range t.r.timesheets {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClockIn.Before(out[j].ClockIn) })
	return out, nil
}
