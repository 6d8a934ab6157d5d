package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/medtrack/internal/config"
	"github.com/roach88/medtrack/internal/guardian"
	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/store"
	"github.com/roach88/medtrack/internal/tracker"
)

// session is what a command needs to talk to the tracker.
type session struct {
	cfg     config.Config
	out     *OutputFormatter
	logger  *slog.Logger
	backend *store.SQLiteBackend
	tracker *tracker.Tracker
	profile string
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadConfig resolves configuration and builds the stderr logger.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, nil, err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	level := cfg.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

// openBackend opens the configured database without loading the document.
func openBackend(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	out := newFormatter(opts, cmd)
	cfg, logger, err := loadConfig(opts, cmd)
	if err != nil {
		return nil, out.Fail(ExitCommandError, "load config", err)
	}
	backend, err := store.OpenSQLite(cfg.Database)
	if err != nil {
		return nil, out.Fail(ExitCommandError, "open database", err)
	}
	out.VerboseLog("Opened database: %s", cfg.Database)
	return &session{cfg: cfg, out: out, logger: logger, backend: backend, profile: opts.Profile}, nil
}

// openSession opens the database and loads the document.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	s, err := openBackend(opts, cmd)
	if err != nil {
		return nil, err
	}

	topts := []tracker.Option{
		tracker.WithLogger(s.logger),
		tracker.WithAppVersion(s.cfg.AppVersion),
	}
	if opts.Clock != nil {
		topts = append(topts, tracker.WithClock(opts.Clock))
	}
	if opts.IDs != nil {
		topts = append(topts, tracker.WithIDGenerator(opts.IDs))
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = guardian.LogNotifier{Logger: s.logger}
	}
	topts = append(topts, tracker.WithNotifier(notifier))

	tr, err := tracker.Open(ctx, s.backend, topts...)
	if err != nil {
		s.backend.Close()
		if store.IsCorruptionUnrecoverable(err) {
			return nil, s.out.Fail(ExitFailure, "load document (run 'medtrack reset --yes' to start over)", err)
		}
		return nil, s.out.Fail(ExitFailure, "load document", err)
	}
	s.tracker = tr

	if s.cfg.Timezone != "" {
		if err := tr.SetTimezone(ctx, s.cfg.Timezone); err != nil {
			s.backend.Close()
			return nil, s.out.Fail(ExitFailure, "apply timezone", err)
		}
	}
	return s, nil
}

func (s *session) Close() {
	if err := s.backend.Close(); err != nil {
		s.logger.Warn("close database", "error", err)
	}
}

// location is the zone civil dates and bare times are read in.
func (s *session) location() *time.Location {
	snap, err := s.tracker.Snapshot()
	if err != nil {
		return time.Local
	}
	return snap.Settings.Location()
}

// parseDate reads YYYY-MM-DD; empty means today.
func (s *session) parseDate(v string) (model.Date, error) {
	if v == "" {
		return s.tracker.Today(), nil
	}
	return model.ParseDate(v)
}

// parseAt reads an RFC 3339 instant or a bare HH:mm on today's date.
// Empty means now, returned as the zero time.
func (s *session) parseAt(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if strings.Contains(v, "T") {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse --at: %w", err)
		}
		return t, nil
	}
	tod, err := model.ParseTimeOfDay(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse --at: %w", err)
	}
	return tod.On(s.tracker.Today(), s.location()), nil
}
