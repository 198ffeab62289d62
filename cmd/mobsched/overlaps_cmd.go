package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/services"
)

// overlapInput is the offline snapshot: existing bookings plus the candidate
// bindings to check against them.
type overlapInput struct {
	Bookings   []mobilization.Booking   `json:"bookings"`
	Candidates []mobilization.Candidate `json:"candidates"`
}

type skipMapLine struct {
	SkipMap map[uuid.UUID][]uuid.UUID `json:"skip_map"`
}

func newOverlapsCmd() *cobra.Command {
	var (
		input        string
		includeBatch bool
		withSkipMap  bool
	)

	cmd := &cobra.Command{
		Use:   "overlaps",
		Short: "Evaluate candidate bindings against existing bookings (JSON lines out)",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(cmd, "input"); err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return withCode(exitUsage, err)
				}
				defer f.Close()
				r = f
			}
			in, err := readOverlapInput(r)
			if err != nil {
				return err
			}

			conflicts := services.EvaluateOverlaps(in.Candidates, services.IndexBookings(in.Bookings), services.OverlapOptions{IncludeBatch: includeBatch})
			out := cmd.OutOrStdout()
			for _, c := range conflicts {
				if err := writeJSONLine(out, c); err != nil {
					return err
				}
			}
			if withSkipMap {
				return writeJSONLine(out, skipMapLine{SkipMap: services.BuildSkipMap(conflicts)})
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Bookings/candidates JSON file, - for stdin (required)")
	cmd.Flags().BoolVar(&includeBatch, "include-batch", true, "Also flag candidates of the same resource that overlap each other")
	cmd.Flags().BoolVar(&withSkipMap, "skip-map", false, "Print the resource -> mobilizations skip map as a final line")
	return cmd
}

func readOverlapInput(r io.Reader) (overlapInput, error) {
	var in overlapInput
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, withCode(exitValidation, fmt.Errorf("invalid input: %w", err))
	}
	for i, b := range in.Bookings {
		if b.ResourceID == uuid.Nil || b.MobilizationID == uuid.Nil {
			return in, withCode(exitValidation, fmt.Errorf("bookings[%d]: resource_id and mobilization_id are required", i))
		}
		if err := b.Window.Validate(); err != nil {
			return in, withCode(exitValidation, fmt.Errorf("bookings[%d]: %w", i, err))
		}
	}
	for i, c := range in.Candidates {
		if c.ResourceID == uuid.Nil || c.MobilizationID == uuid.Nil {
			return in, withCode(exitValidation, fmt.Errorf("candidates[%d]: resource_id and mobilization_id are required", i))
		}
		if err := c.Window.Validate(); err != nil {
			return in, withCode(exitValidation, fmt.Errorf("candidates[%d]: %w", i, err))
		}
	}
	return in, nil
}
