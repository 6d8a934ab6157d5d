// Package tracker is the handle outer layers use to read and change the
// medication document.
//
// A Tracker owns one loaded document and the components that derive views
// from it. Reads are computed from the in-memory document on every call.
// Writes apply to a copy, persist it through the store and only then
// replace the in-memory document, so a failed write leaves both the
// in-memory and the stored document as they were.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/medtrack/internal/backup"
	"github.com/roach88/medtrack/internal/dose"
	"github.com/roach88/medtrack/internal/guardian"
	"github.com/roach88/medtrack/internal/inventory"
	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/store"
)

// Tracker is safe for concurrent use; writes are serialized.
type Tracker struct {
	mu    sync.Mutex
	store *store.Store
	state *model.AppState

	clock      model.Clock
	ids        model.IDGenerator
	logger     *slog.Logger
	notifier   guardian.Notifier
	appVersion string

	inventory *inventory.Handler
	recorder  *dose.Recorder
	guardian  *guardian.Detector
	importer  *backup.Importer
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the wall clock. Defaults to the system clock.
func WithClock(c model.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithIDGenerator sets the id source for events and entities.
// Defaults to UUIDv7.
func WithIDGenerator(g model.IDGenerator) Option {
	return func(t *Tracker) { t.ids = g }
}

// WithLogger sets the logger used by the tracker and its components.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithNotifier sets the guardian notification channel.
func WithNotifier(n guardian.Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// WithAppVersion sets the version written into exports.
func WithAppVersion(v string) Option {
	return func(t *Tracker) { t.appVersion = v }
}

// Open loads the document from backend and returns a ready Tracker.
// Load errors are returned unchanged so callers can inspect the
// store.StorageError kind.
func Open(ctx context.Context, backend store.Backend, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		clock:      model.SystemClock{},
		ids:        model.UUIDv7Generator{},
		logger:     slog.Default(),
		appVersion: model.AppVersion,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.store = store.New(backend, store.WithClock(t.clock), store.WithLogger(t.logger))
	st, err := t.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	t.state = st

	t.inventory = inventory.NewHandler(t.ids, t.logger)
	t.recorder = dose.NewRecorder(t.inventory, t.ids, t.clock, t.logger)
	t.guardian = guardian.NewDetector(t.recorder.Reconciler(), t.ids, t.notifier, t.logger)
	t.importer = backup.NewImporter(t.ids)
	return t, nil
}

// Store returns the underlying store.
func (t *Tracker) Store() *store.Store { return t.store }

// Now returns the tracker's current time.
func (t *Tracker) Now() time.Time { return t.clock.Now() }

// Snapshot returns a deep copy of the current document.
func (t *Tracker) Snapshot() (*model.AppState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.CloneState(t.state)
}

// ActiveProfileID returns the selected profile, "" when there is none.
func (t *Tracker) ActiveProfileID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.ActiveProfileID
}

// Today returns the current civil date in the document's time zone.
func (t *Tracker) Today() model.Date {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.DateOf(t.clock.Now().In(t.state.Settings.Location()))
}

// mutate applies fn to a copy of the document and persists the copy. The
// in-memory document is replaced only when fn and the save both succeed.
func (t *Tracker) mutate(ctx context.Context, fn func(st *model.AppState) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, err := model.CloneState(t.state)
	if err != nil {
		return fmt.Errorf("copy document: %w", err)
	}
	if err := fn(next); err != nil {
		return err
	}
	if err := t.store.Save(ctx, next); err != nil {
		return err
	}
	t.state = next
	return nil
}

// resolveProfile maps "" to the active profile and checks existence.
func resolveProfile(st *model.AppState, profileID string) (string, error) {
	if profileID == "" {
		profileID = st.ActiveProfileID
	}
	if _, ok := st.Profile(profileID); !ok {
		return "", fmt.Errorf("profile %q: %w", profileID, ErrUnknownProfile)
	}
	return profileID, nil
}
