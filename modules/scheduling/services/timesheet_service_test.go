package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/domain/timewindow"
)

type timesheetFixture struct {
	repo   *memRepo
	tenant uuid.UUID
	job    uuid.UUID
	mob    mobilization.Mobilization
}

func newTimesheetFixture() *timesheetFixture {
	f := &timesheetFixture{repo: newMemRepo(), tenant: uuid.New(), job: uuid.New()}
	f.repo.jobs[f.job] = mobilization.Job{TenantID: f.tenant, ID: f.job, Name: "Substation", StartDate: day(10, 0), EndDate: day(12, 0)}
	f.mob = f.repo.addMobilization(f.tenant, f.job, nil, nil, day(10, 6), 12)
	return f
}

func (f *timesheetFixture) service(policy timewindow.ClockInPolicy) *TimesheetService {
	return NewTimesheetService(memTimesheets{f.repo}, memJobs{f.repo}, memMobilizations{f.repo}, nil, TimesheetOptions{
		ClockInPolicy: policy,
		Tx:            NoTx,
		Now:           func() time.Time { return fixedNow },
	})
}

func (f *timesheetFixture) entry(contact uuid.UUID, in, out time.Time) mobilization.TimesheetEntry {
	return mobilization.TimesheetEntry{
		ContactID:      contact,
		MobilizationID: f.mob.ID,
		JobID:          f.job,
		CostCode:       "CC-100",
		ClockIn:        in,
		ClockOut:       out,
	}
}

func TestCreateTimesheetRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("valid entry", func(t *testing.T) {
		f := newTimesheetFixture()
		got, err := f.service("").CreateTimesheetRecord(ctx, f.tenant, f.entry(uuid.New(), day(10, 7), day(10, 15)))
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, got.ID)
		require.Equal(t, f.tenant, got.TenantID)
		require.Equal(t, fixedNow, got.CreatedAt)
		require.Len(t, f.repo.timesheets, 1)
	})

	t.Run("overnight clock-out the day after the end date", func(t *testing.T) {
		f := newTimesheetFixture()
		_, err := f.service("").CreateTimesheetRecord(ctx, f.tenant, f.entry(uuid.New(), day(10, 20), day(13, 2)))
		require.NoError(t, err)

		_, err = f.service("").CreateTimesheetRecord(ctx, f.tenant, f.entry(uuid.New(), day(10, 20), day(14, 2)))
		requireServiceError(t, err, http.StatusUnprocessableEntity, CodeTimesheetInvalid)
	})

	t.Run("dates are taken in the sender's offset", func(t *testing.T) {
		f := newTimesheetFixture()
		mountain := time.FixedZone("MST", -7*60*60)
		in := time.Date(2025, 3, 10, 19, 0, 0, 0, mountain)
		got, err := f.service("").CreateTimesheetRecord(ctx, f.tenant, f.entry(uuid.New(), in, in.Add(4*time.Hour)))
		require.NoError(t, err)
		require.Equal(t, time.UTC, got.ClockIn.Location())
		require.True(t, in.Equal(got.ClockIn))
		require.Equal(t, time.UTC, f.repo.timesheets[got.ID].ClockOut.Location())

		tokyo := time.FixedZone("JST", 9*60*60)
		early := time.Date(2025, 3, 11, 1, 0, 0, 0, tokyo)
		_, err = f.service("").CreateTimesheetRecord(ctx, f.tenant, f.entry(uuid.New(), early, early.Add(2*time.Hour)))
		requireServiceError(t, err, http.StatusUnprocessableEntity, CodeTimesheetInvalid)
		require.ErrorIs(t, err, mobilization.ErrClockInOutsideJob)
		require.Equal(t, mobilization.ErrClockInOutsideJob.Error(), err.Error())
	})

	t.Run("clock-in policy", func(t *testing.T) {
		f := newTimesheetFixture()
		onEnd := f.entry(uuid.New(), day(12, 7), day(12, 15))

		_, err := f.service(timewindow.ClockInStartOnly).CreateTimesheetRecord(ctx, f.tenant, onEnd)
		requireServiceError(t, err, http.StatusUnprocessableEntity, CodeTimesheetInvalid)

		_, err = f.service(timewindow.ClockInStartOrEnd).CreateTimesheetRecord(ctx, f.tenant, onEnd)
		require.NoError(t, err)
	})

	t.Run("field validation", func(t *testing.T) {
		f := newTimesheetFixture()
		e := f.entry(uuid.New(), day(10, 7), day(10, 15))
		e.CostCode = ""
		_, err := f.service("").CreateTimesheetRecord(ctx, f.tenant, e)
		requireServiceError(t, err, http.StatusUnprocessableEntity, CodeTimesheetInvalid)
		require.Contains(t, err.Error(), "CostCode")

		e = f.entry(uuid.New(), day(10, 15), day(10, 7))
		_, err = f.service("").CreateTimesheetRecord(ctx, f.tenant, e)
		require.ErrorIs(t, err, mobilization.ErrClockOutNotAfterClockIn)
	})

	t.Run("mobilization of another job", func(t *testing.T) {
		f := newTimesheetFixture()
		other := f.repo.addMobilization(f.tenant, uuid.New(), nil, nil, day(10, 6), 4)
		e := f.entry(uuid.New(), day(10, 7), day(10, 9))
		e.MobilizationID = other.ID
		_, err := f.service("").CreateTimesheetRecord(ctx, f.tenant, e)
		require.ErrorIs(t, err, mobilization.ErrTimesheetMobilization)
	})

	t.Run("unknown job", func(t *testing.T) {
		f := newTimesheetFixture()
		e := f.entry(uuid.New(), day(10, 7), day(10, 9))
		e.JobID = uuid.New()
		_, err := f.service("").CreateTimesheetRecord(ctx, f.tenant, e)
		requireServiceError(t, err, http.StatusNotFound, CodeReferenceNotFound)
	})
}

func TestCreateTimesheetRecords_Batch(t *testing.T) {
	ctx := context.Background()
	f := newTimesheetFixture()
	contact := uuid.New()
	svc := f.service("")

	_, err := svc.CreateTimesheetRecords(ctx, f.tenant, []mobilization.TimesheetEntry{
		f.entry(contact, day(10, 7), day(10, 11)),
		f.entry(contact, day(10, 12), day(10, 15)),
	})
	requireServiceError(t, err, http.StatusUnprocessableEntity, CodeDuplicateJob)

	_, err = svc.CreateTimesheetRecords(ctx, f.tenant, []mobilization.TimesheetEntry{
		f.entry(contact, day(10, 7), day(10, 11)),
		f.entry(uuid.New(), day(11, 7), day(11, 11)),
	})
	requireServiceError(t, err, http.StatusUnprocessableEntity, CodeTimesheetInvalid)
	require.Empty(t, f.repo.timesheets, "nothing is written when one entry fails")

	out, err := svc.CreateTimesheetRecords(ctx, f.tenant, []mobilization.TimesheetEntry{
		f.entry(contact, day(10, 7), day(10, 11)),
		f.entry(uuid.New(), day(10, 7), day(10, 11)),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	_, err = svc.CreateTimesheetRecords(ctx, f.tenant, nil)
	requireServiceError(t, err, http.StatusBadRequest, CodeInvalidRequest)
}

func TestUpdateTimesheet(t *testing.T) {
	ctx := context.Background()
	f := newTimesheetFixture()
	svc := f.service("")
	created, err := svc.CreateTimesheetRecord(ctx, f.tenant, f.entry(uuid.New(), day(10, 7), day(10, 15)))
	require.NoError(t, err)

	out := day(13, 1)
	notes := "late pour"
	updated, err := svc.UpdateTimesheet(ctx, f.tenant, created.ID, TimesheetPatch{ClockOut: &out, Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, out, updated.ClockOut)
	require.Equal(t, "late pour", f.repo.timesheets[created.ID].Notes)

	tooLate := day(15, 1)
	_, err = svc.UpdateTimesheet(ctx, f.tenant, created.ID, TimesheetPatch{ClockOut: &tooLate})
	requireServiceError(t, err, http.StatusUnprocessableEntity, CodeTimesheetInvalid)
	require.Equal(t, out, f.repo.timesheets[created.ID].ClockOut)

	perDiem := 3
	_, err = svc.UpdateTimesheet(ctx, f.tenant, created.ID, TimesheetPatch{PerDiem: &perDiem})
	requireServiceError(t, err, http.StatusUnprocessableEntity, CodeTimesheetInvalid)

	mountain := time.FixedZone("MST", -7*60*60)
	lateIn := time.Date(2025, 3, 10, 18, 0, 0, 0, mountain)
	lateOut := lateIn.Add(4 * time.Hour)
	updated, err = svc.UpdateTimesheet(ctx, f.tenant, created.ID, TimesheetPatch{ClockIn: &lateIn, ClockOut: &lateOut})
	require.NoError(t, err)
	require.Equal(t, time.UTC, updated.ClockIn.Location())
	require.True(t, lateIn.Equal(f.repo.timesheets[created.ID].ClockIn))

	_, err = svc.UpdateTimesheet(ctx, f.tenant, uuid.New(), TimesheetPatch{})
	requireServiceError(t, err, http.StatusNotFound, CodeNotFound)
}

func TestSummarizeTimesheets(t *testing.T) {
	ctx := context.Background()
	f := newTimesheetFixture()
	a, b := uuid.New(), uuid.New()

	first := f.entry(a, day(10, 7), day(10, 15).Add(30*time.Minute))
	first.PerDiem = 1
	second := f.entry(a, day(10, 18), day(10, 18).Add(20*time.Minute))
	third := f.entry(b, day(10, 7), day(10, 9))
	for _, e := range []mobilization.TimesheetEntry{first, second, third} {
		e.ID = uuid.New()
		f.repo.timesheets[e.ID] = e
	}

	got, err := f.service("").SummarizeTimesheets(ctx, f.tenant, f.job)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byContact := map[uuid.UUID]TimesheetSummary{}
	for _, s := range got {
		byContact[s.ContactID] = s
	}
	require.True(t, decimal.RequireFromString("8.83").Equal(byContact[a].Hours), byContact[a].Hours.String())
	require.Equal(t, 2, byContact[a].Entries)
	require.Equal(t, 1, byContact[a].PerDiemDays)
	require.True(t, decimal.NewFromInt(2).Equal(byContact[b].Hours))

	_, err = f.service("").SummarizeTimesheets(ctx, f.tenant, uuid.Nil)
	requireServiceError(t, err, http.StatusBadRequest, CodeInvalidRequest)
}
