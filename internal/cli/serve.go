package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/tablebuilder/internal/api"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long: `Serve subject metadata and queries over HTTP until interrupted.

Endpoints:
  GET  /api/subjects/{id}/meta
  POST /api/subjects/{id}/query
  POST /api/subjects/{id}/query/csv
  GET  /metrics

Example:
  tablebuilder serve --db ./stats.db --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default $TABLEBUILDER_ADDR)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := opts.newLogger(cmd.ErrOrStderr())
	addr := opts.Addr
	if addr == "" {
		addr = opts.Config.Addr
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	eng, m := opts.newEngine(st, logger, reg)

	handler := api.NewRouter(api.New(eng, logger, m, reg))
	srv := api.NewServer(addr, handler)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("serving", "db", opts.Database, "addr", addr, "max_table_cells", opts.MaxTableCells)
	if err := api.Serve(ctx, srv, logger); err != nil {
		return WrapExitError(ExitCommandError, "server error", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
