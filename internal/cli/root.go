package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/tablebuilder/internal/config"
	"github.com/roach88/tablebuilder/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose       bool
	Format        string // "json" | "text"
	Database      string
	MaxTableCells int
	Retries       int

	// Config is loaded from the environment before any command runs.
	// Flags that were set explicitly take precedence over it.
	Config config.Config

	// TokenGenerator allows overriding request tokens (for testing).
	// If nil, the engine default is used.
	TokenGenerator engine.TokenGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tablebuilder CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tablebuilder",
		Short: "Query statistical subjects and build tables",
		Long: `Query statistical subjects: select filter items, locations, time periods
and indicators, and get back the matching observations as a table.

Settings come from TABLEBUILDER_* environment variables; flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $TABLEBUILDER_DB)")
	cmd.PersistentFlags().IntVar(&opts.MaxTableCells, "max-table-cells", 0, "cell budget of one query (default $TABLEBUILDER_MAX_TABLE_CELLS)")
	cmd.PersistentFlags().IntVar(&opts.Retries, "retries", 0, "retries of a query when the store is unavailable (default $TABLEBUILDER_RETRIES)")

	cmd.AddCommand(NewMetaCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve loads the environment configuration and applies the flags the
// user set on top of it.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database = o.Database
	}
	if flags.Changed("max-table-cells") {
		cfg.MaxTableCells = o.MaxTableCells
	}
	if flags.Changed("retries") {
		cfg.Retries = o.Retries
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	o.Config = cfg
	o.Database = cfg.Database
	o.MaxTableCells = cfg.MaxTableCells
	o.Retries = cfg.Retries
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
