package mobilization

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/timewindow"
)

func TestParseResourceType(t *testing.T) {
	cases := map[string]ResourceType{
		"CrewMember":     ResourceCrewMember,
		"crew_member":    ResourceCrewMember,
		" subcontractor": ResourceSubContractor,
		"ASSET":          ResourceAsset,
		"crew_master":    ResourceCrewMaster,
	}
	for raw, want := range cases {
		got, err := ParseResourceType(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
	_, err := ParseResourceType("vehicle")
	require.Error(t, err)
}

func TestMobilization_Validate(t *testing.T) {
	start := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	m := Mobilization{
		JobID:  uuid.New(),
		Status: StatusScheduled,
		Window: timewindow.Window{Start: start, End: start.Add(10 * time.Hour)},
	}
	require.NoError(t, m.Validate())

	bad := m
	bad.JobID = uuid.Nil
	require.Error(t, bad.Validate())

	bad = m
	bad.Status = "pending"
	require.Error(t, bad.Validate())

	bad = m
	bad.Window.End = start
	require.ErrorIs(t, bad.Validate(), timewindow.ErrInvalidWindow)
}

func TestCrew_ApplyChange(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	base := Crew{ID: uuid.New(), Name: "North", LeaderID: &a, Members: []uuid.UUID{a, b}}

	t.Run("adds and removes members", func(t *testing.T) {
		out, err := base.ApplyChange(CrewChange{Add: []uuid.UUID{c, b}, Remove: []uuid.UUID{b}})
		require.ErrorIs(t, err, ErrMemberAddAndRemove)

		out, err = base.ApplyChange(CrewChange{Add: []uuid.UUID{c, a}, Remove: []uuid.UUID{b}})
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{a, c}, out.Members)
		require.Equal(t, a, *out.LeaderID)
		require.Equal(t, []uuid.UUID{a, b}, base.Members, "original crew is not mutated")
	})

	t.Run("removing the leader clears leadership", func(t *testing.T) {
		out, err := base.ApplyChange(CrewChange{Remove: []uuid.UUID{a}})
		require.NoError(t, err)
		require.Nil(t, out.LeaderID)
		require.Equal(t, []uuid.UUID{b}, out.Members)
	})

	t.Run("new leader must be a member", func(t *testing.T) {
		_, err := base.ApplyChange(CrewChange{LeaderID: &c})
		require.ErrorIs(t, err, ErrLeaderNotMember)

		out, err := base.ApplyChange(CrewChange{LeaderID: &c, Add: []uuid.UUID{c}})
		require.NoError(t, err)
		require.Equal(t, c, *out.LeaderID)
	})

	t.Run("clear leader", func(t *testing.T) {
		out, err := base.ApplyChange(CrewChange{ClearLeader: true})
		require.NoError(t, err)
		require.Nil(t, out.LeaderID)
	})

	t.Run("name is required", func(t *testing.T) {
		blank := "  "
		_, err := base.ApplyChange(CrewChange{Name: &blank})
		require.ErrorIs(t, err, ErrCrewNameRequired)
	})
}

func TestTimesheetEntry_Validate(t *testing.T) {
	job := Job{
		ID:        uuid.New(),
		StartDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
	}
	valid := func() TimesheetEntry {
		return TimesheetEntry{
			ContactID:      uuid.New(),
			MobilizationID: uuid.New(),
			JobID:          job.ID,
			CostCode:       "LAB-01",
			ClockIn:        time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC),
			ClockOut:       time.Date(2025, 3, 10, 17, 30, 0, 0, time.UTC),
			PerDiem:        1,
		}
	}

	require.NoError(t, valid().Validate(job, timewindow.ClockInStartOnly))
	require.Equal(t, 10*time.Hour+30*time.Minute, valid().Hours())

	t.Run("per diem must be 0 or 1", func(t *testing.T) {
		e := valid()
		e.PerDiem = 2
		require.Error(t, e.Validate(job, timewindow.ClockInStartOnly))
	})

	t.Run("missing cost code", func(t *testing.T) {
		e := valid()
		e.CostCode = ""
		require.Error(t, e.Validate(job, timewindow.ClockInStartOnly))
	})

	t.Run("clock-out must be strictly after clock-in", func(t *testing.T) {
		e := valid()
		e.ClockOut = e.ClockIn
		require.ErrorIs(t, e.Validate(job, timewindow.ClockInStartOnly), ErrClockOutNotAfterClockIn)
	})

	t.Run("clock-in on end date depends on policy", func(t *testing.T) {
		e := valid()
		e.ClockIn = time.Date(2025, 3, 12, 7, 0, 0, 0, time.UTC)
		e.ClockOut = time.Date(2025, 3, 12, 17, 0, 0, 0, time.UTC)
		require.ErrorIs(t, e.Validate(job, timewindow.ClockInStartOnly), ErrClockInOutsideJob)
		require.NoError(t, e.Validate(job, timewindow.ClockInStartOrEnd))
	})

	t.Run("overnight clock-out after the end date", func(t *testing.T) {
		e := valid()
		e.ClockIn = time.Date(2025, 3, 12, 20, 0, 0, 0, time.UTC)
		e.ClockOut = time.Date(2025, 3, 13, 4, 0, 0, 0, time.UTC)
		require.NoError(t, e.Validate(job, timewindow.ClockInStartOrEnd))

		e.ClockOut = time.Date(2025, 3, 14, 4, 0, 0, 0, time.UTC)
		require.ErrorIs(t, e.Validate(job, timewindow.ClockInStartOrEnd), ErrClockOutOutsideJob)
	})
}
