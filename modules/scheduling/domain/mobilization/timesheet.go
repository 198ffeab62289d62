package mobilization

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/timewindow"
	"github.com/fieldcrew/mobsched/pkg/constants"
)

var (
	ErrClockOutNotAfterClockIn = errors.New("clock-out must be after clock-in")
	ErrClockInOutsideJob       = errors.New("clock-in date is outside the job window")
	ErrClockOutOutsideJob      = errors.New("clock-out date is outside the job window")
	ErrTimesheetMobilization   = errors.New("mobilization does not belong to the job")
)

type TimesheetEntry struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	ID             uuid.UUID `json:"id"`
	ContactID      uuid.UUID `json:"contact_id" validate:"required"`
	MobilizationID uuid.UUID `json:"mobilization_id" validate:"required"`
	JobID          uuid.UUID `json:"job_id" validate:"required"`
	CostCode       string    `json:"cost_code" validate:"required,max=64"`
	ClockIn        time.Time `json:"clock_in" validate:"required"`
	ClockOut       time.Time `json:"clock_out" validate:"required"`
	PerDiem        int       `json:"per_diem" validate:"oneof=0 1"`
	Notes          string    `json:"notes,omitempty" validate:"max=2000"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks the entry on its own and against the job's date window.
func (e TimesheetEntry) Validate(job Job, policy timewindow.ClockInPolicy) error {
	if err := constants.Validate.Struct(e); err != nil {
		return err
	}
	if !e.ClockOut.After(e.ClockIn) {
		return ErrClockOutNotAfterClockIn
	}
	if !policy.ValidateClockIn(e.ClockIn, job.StartDate, job.EndDate) {
		return ErrClockInOutsideJob
	}
	if !timewindow.ValidateClockOut(e.ClockOut, job.StartDate, job.EndDate) {
		return ErrClockOutOutsideJob
	}
	return nil
}

// Normalized returns the entry with its clock times in UTC for storage.
func (e TimesheetEntry) Normalized() TimesheetEntry {
	e.ClockIn = e.ClockIn.UTC()
	e.ClockOut = e.ClockOut.UTC()
	return e
}

// Hours is the worked duration of the entry.
func (e TimesheetEntry) Hours() time.Duration {
	return e.ClockOut.Sub(e.ClockIn)
}
