package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tablebuilder/internal/engine"
)

// NewMetaCommand creates the meta command.
func NewMetaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "meta <subject-id>",
		Short: "Show what can be selected from a subject",
		Long: `Show the filters, indicators, locations and time periods of a subject.

Example:
  tablebuilder meta absence --db ./stats.db
  tablebuilder meta absence --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeta(rootOpts, args[0], cmd)
		},
	}
}

func runMeta(opts *RootOptions, subjectID string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	logger := opts.newLogger(cmd.ErrOrStderr())

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	eng, _ := opts.newEngine(st, logger, nil)

	var meta *engine.SubjectMeta
	err = withRetry(cmd.Context(), opts.Retries, logger, func() error {
		var err error
		meta, err = eng.GetSubjectMeta(cmd.Context(), subjectID)
		return err
	})
	if err != nil {
		return f.Fail("subject meta failed", err)
	}

	if f.Format == "json" {
		return f.Success(meta)
	}
	return f.Success(formatSubjectMeta(meta))
}

// formatSubjectMeta renders subject meta as an indented outline.
func formatSubjectMeta(m *engine.SubjectMeta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", m.SubjectName, m.SubjectID)

	b.WriteString("\nFilters:\n")
	for _, flt := range m.Filters {
		fmt.Fprintf(&b, "  %s [%s]\n", flt.Label, flt.ID)
		for _, g := range flt.Groups {
			fmt.Fprintf(&b, "    %s\n", g.Label)
			for _, item := range g.Items {
				marker := ""
				if item.ID == flt.TotalItemID {
					marker = " (total)"
				}
				fmt.Fprintf(&b, "      %s [%s]%s\n", item.Label, item.ID, marker)
			}
		}
	}

	b.WriteString("\nIndicators:\n")
	for _, g := range m.Indicators {
		fmt.Fprintf(&b, "  %s\n", g.Label)
		for _, ind := range g.Indicators {
			fmt.Fprintf(&b, "    %s [%s]\n", ind.Label, ind.ID)
		}
	}

	b.WriteString("\nLocations:\n")
	for _, level := range m.Locations {
		fmt.Fprintf(&b, "  %s\n", level.Label)
		writeLocationOptions(&b, level.Options, "    ")
	}

	b.WriteString("\nTime periods:\n")
	for _, p := range m.TimePeriods.Options {
		fmt.Fprintf(&b, "  %s [%d_%s]\n", p.Label, p.Year, p.Code)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeLocationOptions(b *strings.Builder, options []engine.LocationOptionMeta, indent string) {
	for _, o := range options {
		if len(o.Options) > 0 {
			fmt.Fprintf(b, "%s%s\n", indent, o.Label)
			writeLocationOptions(b, o.Options, indent+"  ")
			continue
		}
		fmt.Fprintf(b, "%s%s [%s]\n", indent, o.Label, o.ID)
	}
}
