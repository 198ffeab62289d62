package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/infrastructure/persistence"
	"github.com/fieldcrew/mobsched/modules/scheduling/services"
	"github.com/fieldcrew/mobsched/pkg/composables"
	"github.com/fieldcrew/mobsched/pkg/configuration"
	"github.com/fieldcrew/mobsched/pkg/eventbus"
)

const (
	entriesSheet = "Entries"
	summarySheet = "Summary"
)

type exportOutput struct {
	Command    string    `json:"command"`
	JobID      uuid.UUID `json:"job_id"`
	Entries    int       `json:"entries"`
	Contacts   int       `json:"contacts"`
	Output     string    `json:"output"`
	DurationMS int64     `json:"duration_ms"`
}

func newTimesheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timesheets",
		Short: "Timesheet reporting",
	}
	cmd.AddCommand(newTimesheetsExportCmd())
	return cmd
}

func newTimesheetsExportCmd() *cobra.Command {
	var (
		tenantID string
		jobID    string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a job's timesheet entries and per-contact hours to XLSX",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(cmd, "job", "output"); err != nil {
				return err
			}
			jid, err := uuid.Parse(jobID)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --job: %w", err))
			}
			if tenantID == "" {
				tenantID = configuration.Use().DefaultTenantID
			}
			tid, err := uuid.Parse(tenantID)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --tenant: %w", err))
			}

			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			start := time.Now()
			ctx := composables.WithPool(cmd.Context(), pool)
			job, entries, err := loadJobTimesheets(ctx, tid, jid)
			if err != nil {
				return err
			}

			f, err := buildTimesheetWorkbook(job, entries)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := f.SaveAs(output); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			return writeJSON(cmd.OutOrStdout(), exportOutput{
				Command:    "timesheets export",
				JobID:      jid,
				Entries:    len(entries),
				Contacts:   len(services.Summarize(entries)),
				Output:     output,
				DurationMS: time.Since(start).Milliseconds(),
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant UUID (defaults to DEFAULT_TENANT_ID)")
	cmd.Flags().StringVar(&jobID, "job", "", "Job UUID (required)")
	cmd.Flags().StringVar(&output, "output", "", "Output .xlsx path (required)")
	return cmd
}

func loadJobTimesheets(ctx context.Context, tenantID, jobID uuid.UUID) (mobilization.Job, []mobilization.TimesheetEntry, error) {
	conf := configuration.Use()
	jobs := persistence.NewJobRepository()
	svc := services.NewTimesheetService(
		persistence.NewTimesheetRepository(),
		jobs,
		persistence.NewMobilizationRepository(),
		eventbus.NewEventPublisher(conf.Logger()),
		services.TimesheetOptions{},
	)

	job, err := jobs.Get(composables.WithTenantID(ctx, tenantID), tenantID, jobID)
	if err != nil {
		return job, nil, dbError(err)
	}
	entries, err := svc.ListByJob(ctx, tenantID, jobID)
	if err != nil {
		return job, nil, dbError(err)
	}
	return job, entries, nil
}

// dbError treats not-found and other client-side failures as validation.
func dbError(err error) error {
	if se := services.AsServiceError(err); se.Status < 500 {
		return withCode(exitValidation, se)
	}
	return withCode(exitDB, err)
}

// buildTimesheetWorkbook lays out one row per entry on the first sheet and
// per-contact totals on the second. Hours are decimal hours rounded to 2dp.
func buildTimesheetWorkbook(job mobilization.Job, entries []mobilization.TimesheetEntry) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", entriesSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	rows := [][]any{{"Job", "Contact ID", "Mobilization ID", "Cost Code", "Clock In", "Clock Out", "Hours", "Per Diem", "Notes"}}
	for _, e := range entries {
		rows = append(rows, []any{
			job.Name,
			e.ContactID.String(),
			e.MobilizationID.String(),
			e.CostCode,
			e.ClockIn.UTC().Format(time.RFC3339),
			e.ClockOut.UTC().Format(time.RFC3339),
			services.EntryHours(e).Round(2).InexactFloat64(),
			e.PerDiem,
			e.Notes,
		})
	}
	if err := writeRows(f, entriesSheet, rows, header); err != nil {
		f.Close()
		return nil, err
	}

	rows = [][]any{{"Job", "Contact ID", "Entries", "Hours", "Per Diem Days"}}
	for _, s := range services.Summarize(entries) {
		rows = append(rows, []any{job.Name, s.ContactID.String(), s.Entries, s.Hours.InexactFloat64(), s.PerDiemDays})
	}
	if err := writeRows(f, summarySheet, rows, header); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetRowStyle(sheet, 1, 1, headerStyle)
}
