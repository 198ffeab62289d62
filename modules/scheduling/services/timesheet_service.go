package services

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/domain/timewindow"
	"github.com/fieldcrew/mobsched/pkg/composables"
	"github.com/fieldcrew/mobsched/pkg/eventbus"
)

type TimesheetOptions struct {
	ClockInPolicy timewindow.ClockInPolicy
	Tx            TxRunner
	Now           func() time.Time
	Events        EventRecorder
}

type TimesheetService struct {
	timesheets    mobilization.TimesheetRepository
	jobs          mobilization.JobRepository
	mobilizations mobilization.MobilizationRepository
	events        eventSink
	opts          TimesheetOptions
}

func NewTimesheetService(
	timesheets mobilization.TimesheetRepository,
	jobs mobilization.JobRepository,
	mobilizations mobilization.MobilizationRepository,
	publisher eventbus.EventBus,
	opts TimesheetOptions,
) *TimesheetService {
	if opts.ClockInPolicy == "" {
		opts.ClockInPolicy = timewindow.ClockInStartOnly
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TimesheetService{
		timesheets:    timesheets,
		jobs:          jobs,
		mobilizations: mobilizations,
		events:        eventSink{bus: publisher, recorder: opts.Events},
		opts:          opts,
	}
}

func (s *TimesheetService) Policy() timewindow.ClockInPolicy {
	return s.opts.ClockInPolicy
}

// timesheetError turns a validation failure into a 422 with a readable message.
func timesheetError(err error) *ServiceError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return newServiceError(http.StatusUnprocessableEntity, CodeTimesheetInvalid, "invalid "+fe.Field()+": failed "+fe.Tag(), err)
	}
	return newServiceError(http.StatusUnprocessableEntity, CodeTimesheetInvalid, err.Error(), err)
}

// validate judges clock dates in the offset the caller sent them in.
func (s *TimesheetService) validate(ctx context.Context, tenantID uuid.UUID, e mobilization.TimesheetEntry) error {
	job, err := s.jobs.Get(ctx, tenantID, e.JobID)
	if err != nil {
		return notFoundAs(err, CodeReferenceNotFound, "job not found")
	}
	if err := e.Validate(job, s.opts.ClockInPolicy); err != nil {
		return timesheetError(err)
	}
	m, err := s.mobilizations.Get(ctx, tenantID, e.MobilizationID)
	if err != nil {
		return notFoundAs(err, CodeReferenceNotFound, "mobilization not found")
	}
	if m.JobID != e.JobID {
		return timesheetError(mobilization.ErrTimesheetMobilization)
	}
	return nil
}

func (s *TimesheetService) CreateTimesheetRecord(ctx context.Context, tenantID uuid.UUID, entry mobilization.TimesheetEntry) (mobilization.TimesheetEntry, error) {
	out, err := s.CreateTimesheetRecords(ctx, tenantID, []mobilization.TimesheetEntry{entry})
	if err != nil {
		return mobilization.TimesheetEntry{}, err
	}
	return out[0], nil
}

// CreateTimesheetRecords validates the whole batch before writing any entry.
// One contact may not be booked twice on the same job in a batch.
func (s *TimesheetService) CreateTimesheetRecords(ctx context.Context, tenantID uuid.UUID, entries []mobilization.TimesheetEntry) ([]mobilization.TimesheetEntry, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, invalidRequest("at least one entry is required", nil)
	}
	type contactJob struct{ contact, job uuid.UUID }
	seen := make(map[contactJob]struct{}, len(entries))
	for _, e := range entries {
		k := contactJob{e.ContactID, e.JobID}
		if _, dup := seen[k]; dup {
			return nil, newServiceError(http.StatusUnprocessableEntity, CodeDuplicateJob, "the same job is selected more than once for a contact", nil)
		}
		seen[k] = struct{}{}
	}

	now := s.opts.Now().UTC()
	out, err := writeTx(ctx, s.opts.Tx, s.events, tenantID, func(txCtx context.Context) ([]mobilization.TimesheetEntry, []any, error) {
		prepared := make([]mobilization.TimesheetEntry, 0, len(entries))
		for _, e := range entries {
			e.TenantID = tenantID
			e.ID = uuid.New()
			e.CreatedAt = now
			e.UpdatedAt = now
			if err := s.validate(txCtx, tenantID, e); err != nil {
				return nil, nil, err
			}
			prepared = append(prepared, e.Normalized())
		}
		for _, e := range prepared {
			if err := s.timesheets.Insert(txCtx, e); err != nil {
				return nil, nil, mapPgErrorToServiceError(err)
			}
		}
		ids := make([]uuid.UUID, 0, len(prepared))
		for _, e := range prepared {
			ids = append(ids, e.ID)
		}
		return prepared, []any{s.recordedEvent(ctx, tenantID, ids, false)}, nil
	})
	if err != nil {
		return nil, err
	}

	logWithFields(ctx, logrus.InfoLevel, "timesheet entries recorded", logrus.Fields{"tenant_id": tenantID, "count": len(out)})
	return out, nil
}

type TimesheetPatch struct {
	ClockIn  *time.Time
	ClockOut *time.Time
	CostCode *string
	PerDiem  *int
	Notes    *string
}

func (s *TimesheetService) UpdateTimesheet(ctx context.Context, tenantID, id uuid.UUID, patch TimesheetPatch) (mobilization.TimesheetEntry, error) {
	if err := requireTenant(tenantID); err != nil {
		return mobilization.TimesheetEntry{}, err
	}
	out, err := writeTx(ctx, s.opts.Tx, s.events, tenantID, func(txCtx context.Context) (mobilization.TimesheetEntry, []any, error) {
		e, err := s.timesheets.Get(txCtx, tenantID, id)
		if err != nil {
			return mobilization.TimesheetEntry{}, nil, notFoundAs(err, CodeNotFound, "timesheet entry not found")
		}
		if patch.ClockIn != nil {
			e.ClockIn = *patch.ClockIn
		}
		if patch.ClockOut != nil {
			e.ClockOut = *patch.ClockOut
		}
		if patch.CostCode != nil {
			e.CostCode = *patch.CostCode
		}
		if patch.PerDiem != nil {
			e.PerDiem = *patch.PerDiem
		}
		if patch.Notes != nil {
			e.Notes = *patch.Notes
		}
		e.UpdatedAt = s.opts.Now().UTC()
		if err := s.validate(txCtx, tenantID, e); err != nil {
			return mobilization.TimesheetEntry{}, nil, err
		}
		e = e.Normalized()
		if err := s.timesheets.Update(txCtx, e); err != nil {
			return mobilization.TimesheetEntry{}, nil, mapPgErrorToServiceError(err)
		}
		return e, []any{s.recordedEvent(ctx, tenantID, []uuid.UUID{e.ID}, true)}, nil
	})
	if err != nil {
		return mobilization.TimesheetEntry{}, err
	}
	return out, nil
}

func (s *TimesheetService) recordedEvent(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, updated bool) *mobilization.TimesheetRecordedEvent {
	return &mobilization.TimesheetRecordedEvent{
		EventID:    uuid.New(),
		TenantID:   tenantID,
		RequestID:  composables.UseRequestID(ctx),
		EntryIDs:   ids,
		Updated:    updated,
		OccurredAt: s.opts.Now().UTC(),
	}
}

type TimesheetSummary struct {
	ContactID   uuid.UUID       `json:"contact_id"`
	JobID       uuid.UUID       `json:"job_id"`
	Entries     int             `json:"entries"`
	Hours       decimal.Decimal `json:"hours"`
	PerDiemDays int             `json:"per_diem_days"`
}

// SummarizeTimesheets totals worked hours per contact for a job. Hours are
// rounded to two decimals after summing.
func (s *TimesheetService) SummarizeTimesheets(ctx context.Context, tenantID, jobID uuid.UUID) ([]TimesheetSummary, error) {
	entries, err := s.ListByJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	return Summarize(entries), nil
}

func (s *TimesheetService) ListByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]mobilization.TimesheetEntry, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if jobID == uuid.Nil {
		return nil, invalidRequest("job_id is required", nil)
	}
	entries, err := s.timesheets.ListByJob(composables.WithTenantID(ctx, tenantID), tenantID, jobID)
	if err != nil {
		return nil, mapPgErrorToServiceError(err)
	}
	return entries, nil
}

// EntryHours converts the worked duration of an entry to decimal hours.
func EntryHours(e mobilization.TimesheetEntry) decimal.Decimal {
	return decimal.NewFromInt(int64(e.Hours() / time.Second)).Div(decimal.NewFromInt(3600))
}

func Summarize(entries []mobilization.TimesheetEntry) []TimesheetSummary {
	type key struct{ contact, job uuid.UUID }
	byKey := make(map[key]*TimesheetSummary)
	order := make([]key, 0)
	for _, e := range entries {
		k := key{e.ContactID, e.JobID}
		sum, ok := byKey[k]
		if !ok {
			sum = &TimesheetSummary{ContactID: e.ContactID, JobID: e.JobID, Hours: decimal.Zero}
			byKey[k] = sum
			order = append(order, k)
		}
		sum.Entries++
		sum.Hours = sum.Hours.Add(EntryHours(e))
		sum.PerDiemDays += e.PerDiem
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].job != order[j].job {
			return order[i].job.String() < order[j].job.String()
		}
		return order[i].contact.String() < order[j].contact.String()
	})
	out := make([]TimesheetSummary, 0, len(order))
	for _, k := range order {
		sum := *byKey[k]
		sum.Hours = sum.Hours.Round(2)
		out = append(out, sum)
	}
	return out
}
