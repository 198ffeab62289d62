package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/timewindow"
)

type clockCheckResult struct {
	Policy        timewindow.ClockInPolicy `json:"policy"`
	ClockInValid  *bool                    `json:"clock_in_valid,omitempty"`
	ClockOutValid *bool                    `json:"clock_out_valid,omitempty"`
	OrderValid    *bool                    `json:"order_valid,omitempty"`
}

func (r clockCheckResult) ok() bool {
	for _, v := range []*bool{r.ClockInValid, r.ClockOutValid, r.OrderValid} {
		if v != nil && !*v {
			return false
		}
	}
	return true
}

func newClockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Clock-in/out date rules",
	}
	cmd.AddCommand(newClockCheckCmd())
	return cmd
}

func newClockCheckCmd() *cobra.Command {
	var (
		clockIn  string
		clockOut string
		jobStart string
		jobEnd   string
		policy   string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate clock-in/out timestamps against a job's date window",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(cmd, "job-start"); err != nil {
				return err
			}
			p, err := timewindow.ParseClockInPolicy(policy)
			if err != nil {
				return withCode(exitUsage, err)
			}
			if clockIn == "" && clockOut == "" {
				return withCode(exitUsage, errors.New("one of --clock-in or --clock-out is required"))
			}

			res := clockCheckResult{Policy: p}
			if clockIn != "" {
				v := p.ValidateClockIn(clockIn, jobStart, jobEnd)
				res.ClockInValid = &v
			}
			if clockOut != "" {
				v := timewindow.ValidateClockOut(clockOut, jobStart, jobEnd)
				res.ClockOutValid = &v
			}
			if clockIn != "" && clockOut != "" {
				in, okIn := timewindow.ParseTimestamp(clockIn)
				out, okOut := timewindow.ParseTimestamp(clockOut)
				v := okIn && okOut && out.After(in)
				res.OrderValid = &v
			}

			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.ok() {
				return withCode(exitValidation, errors.New("clock check failed"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&clockIn, "clock-in", "", "Clock-in timestamp (ISO-8601)")
	cmd.Flags().StringVar(&clockOut, "clock-out", "", "Clock-out timestamp (ISO-8601)")
	cmd.Flags().StringVar(&jobStart, "job-start", "", "Job start date or timestamp (required)")
	cmd.Flags().StringVar(&jobEnd, "job-end", "", "Job end date or timestamp")
	cmd.Flags().StringVar(&policy, "policy", string(timewindow.ClockInStartOnly), "Clock-in policy: start_only or start_or_end")
	return cmd
}
