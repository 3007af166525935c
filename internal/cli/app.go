package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/tablebuilder/internal/config"
	"github.com/roach88/tablebuilder/internal/engine"
	"github.com/roach88/tablebuilder/internal/metrics"
	"github.com/roach88/tablebuilder/internal/store"
)

// newLogger returns a text logger at the configured level. Logs always go
// to w (stderr) so they never mix with command output.
func (o *RootOptions) newLogger(w io.Writer) *slog.Logger {
	level, err := config.ParseLevel(o.Config.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStore opens an existing database. Commands that only read refuse to
// create an empty one by accident.
func (o *RootOptions) openStore() (*store.Store, error) {
	if _, err := os.Stat(o.Database); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", o.Database))
		}
		return nil, WrapExitError(ExitCommandError, "failed to stat database", err)
	}
	st, err := store.OpenWithOptions(o.Database, store.Options{MaxOpenConns: o.Config.MaxOpenConns})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// newEngine builds an engine over st from the resolved options. reg may be
// nil when nothing exposes the metrics.
func (o *RootOptions) newEngine(st *store.Store, logger *slog.Logger, reg prometheus.Registerer) (*engine.Engine, *metrics.Metrics) {
	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}
	opts := []engine.EngineOption{
		engine.WithMaxTableCells(o.MaxTableCells),
		engine.WithLogger(logger),
		engine.WithMetrics(m),
	}
	if o.TokenGenerator != nil {
		opts = append(opts, engine.WithTokenGenerator(o.TokenGenerator))
	}
	return engine.New(st, opts...), m
}

// withRetry runs op, retrying with exponential backoff while the store is
// unavailable. Every other error is returned at once.
func withRetry(ctx context.Context, retries int, logger *slog.Logger, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	attempt := 0
	return backoff.Retry(
		func() error {
			attempt++
			err := op()
			if err == nil {
				return nil
			}
			if !engine.IsStoreUnavailable(err) {
				return backoff.Permanent(err)
			}
			logger.Warn("store unavailable", "attempt", attempt, "error", err)
			return err
		},
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx),
	)
}
