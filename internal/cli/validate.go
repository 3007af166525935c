package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tablebuilder/internal/compiler"
	"github.com/roach88/tablebuilder/internal/engine"
	"github.com/roach88/tablebuilder/internal/ir"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Check bool // resolve against the database and estimate the size
}

// ValidationResult is the JSON payload of the validate command.
type ValidationResult struct {
	Query     ir.ObservationQueryContext  `json:"query"`
	Checked   bool                        `json:"checked"`
	Estimated int                         `json:"estimated_cells,omitempty"`
	Crop      *engine.CropReport          `json:"crop,omitempty"`
	Cropped   *ir.ObservationQueryContext `json:"cropped_query,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <query-file>",
		Short: "Validate a query file without running it",
		Long: `Check a query file against the query schema and print it normalized.

With --check the query is also resolved against the database: every id
must exist, and the table size is estimated against the cell budget,
showing how the query would be cropped.

Example:
  tablebuilder validate ./queries/absence.cue
  tablebuilder validate ./queries/absence.yaml --check --db ./stats.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Check, "check", false, "resolve ids against the database and estimate the table size")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	q, err := compiler.LoadQuery(path)
	if err != nil {
		return f.Fail("invalid query", err)
	}
	result := ValidationResult{Query: q}

	if opts.Check {
		st, err := opts.openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		subject, err := engine.LoadSubject(cmd.Context(), st, q.SubjectID)
		if err != nil {
			return f.Fail("load subject", err)
		}
		cropper := engine.Cropper{MaxCells: opts.MaxTableCells}
		cropped, report, err := cropper.CropQuery(subject, q)
		if err != nil {
			return f.Fail("query does not resolve", err)
		}
		f.VerboseLog("Resolved query against subject %s", subject.Name)

		result.Checked = true
		result.Estimated = report.EstimatedCells
		result.Crop = &report
		if report.Cropped {
			result.Cropped = &cropped
		}
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	return f.Success(formatValidation(result))
}

func formatValidation(r ValidationResult) string {
	var b strings.Builder
	b.WriteString("Query is valid\n")
	if data, err := compiler.EncodeQuery(r.Query); err == nil {
		b.WriteString("\n")
		b.Write(data)
	}
	if r.Checked {
		fmt.Fprintf(&b, "\nEstimated cells: %d (budget %d)\n", r.Estimated, r.Crop.MaxCells)
		if r.Crop.Cropped {
			periods := make([]string, len(r.Crop.TimePeriods))
			for i, p := range r.Crop.TimePeriods {
				periods[i] = p.String()
			}
			fmt.Fprintf(&b, "Would be cropped to: %s\n", strings.Join(periods, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
