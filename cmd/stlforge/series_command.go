package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"stlforge/internal/dicom"
)

func newSeriesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "series <slice-dir>",
		Short: "Inspect the image series found in a slice directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			organizer := dicom.NewOrganizer(cfg.Conversion.MinSlices)
			result, err := organizer.Scan(cmd.Context(), args[0])
			if err != nil && !errors.Is(err, dicom.ErrNoValidSeries) {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Series) > 0 {
				rows := make([][]string, 0, len(result.Series))
				for _, series := range result.Series {
					summary := series.Summary()
					rows = append(rows, []string{
						summary.SeriesUID,
						displayName(summary.Modality),
						displayName(summary.BodyPart),
						fmt.Sprintf("%d", summary.SliceCount),
						fmt.Sprintf("%dx%d", summary.Rows, summary.Columns),
						fmt.Sprintf("%.2f mm", summary.SliceSpacing),
						orderingLabel(summary.OrderDegraded),
					})
				}
				renderTableTo(out,
					[]string{"Series", "Modality", "Body Part", "Slices", "Dimensions", "Spacing", "Ordering"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				)
			}

			for _, rejection := range result.Rejections {
				subject := rejection.Path
				if subject == "" {
					subject = "series " + rejection.SeriesUID
				}
				fmt.Fprintf(out, "rejected %s: %s\n", subject, rejection.Reason)
			}

			if len(result.Series) == 0 {
				return errors.New("no convertible series found")
			}
			return nil
		},
	}
}

var titleCaser = cases.Title(language.Und)

// displayName renders raw header values like "BODYPART" or "ct" for humans.
func displayName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	if len(value) <= 3 {
		return strings.ToUpper(value)
	}
	return titleCaser.String(strings.ToLower(value))
}

func orderingLabel(degraded bool) string {
	if degraded {
		return "filename (degraded)"
	}
	return "position"
}
