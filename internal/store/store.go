package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/medtrack/internal/model"
)

// Storage keys.
const (
	KeyPrimary  = "medtrack.state"
	KeyChecksum = "medtrack.state.checksum"
	KeyBackup   = "medtrack.state.backup"
)

// Legacy keys written by builds that predate the single document: one
// JSON array per collection.
const (
	LegacyKeyMedications = "medtrack.medications"
	LegacyKeySchedules   = "medtrack.schedules"
	LegacyKeyEvents      = "medtrack.events"
	LegacyKeySettings    = "medtrack.settings"
)

// backupEnvelope is the value stored under KeyBackup. Data holds the exact
// bytes that were checksummed.
type backupEnvelope struct {
	Data      string    `json:"data"`
	Checksum  string    `json:"checksum"`
	WrittenAt time.Time `json:"writtenAt"`
}

// Store loads and saves the document through a Backend.
//
// A Store is an explicit handle: components that persist receive it from
// their caller, there is no package-level instance.
type Store struct {
	backend Backend
	clock   model.Clock
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for backup timestamps and default documents.
func WithClock(c model.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		clock:   model.SystemClock{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Load returns the persisted document.
//
// Missing data is never an error: a legacy layout is migrated, otherwise a
// default document is created. Corruption is repaired from the backup
// without surfacing an error. Only these are returned:
//   - KindCorruptionUnrecoverable: primary and backup both invalid
//   - KindSchemaTooNew: the document was written by a newer build
//   - KindBackendFailure: the backend could not be read
func (s *Store) Load(ctx context.Context) (*model.AppState, error) {
	raw, ok, err := s.backend.Get(ctx, KeyPrimary)
	if err != nil {
		return nil, newStorageError(KindBackendFailure, "read primary document", err)
	}
	if !ok {
		return s.loadAbsent(ctx)
	}

	sum, hasSum, err := s.backend.Get(ctx, KeyChecksum)
	if err != nil {
		return nil, newStorageError(KindBackendFailure, "read checksum", err)
	}

	if hasSum && !model.VerifyChecksum(raw, string(sum)) {
		s.logger.Warn("primary document failed checksum",
			"kind", KindCorruptionDetected,
			"stored", string(sum),
			"computed", model.Checksum(raw),
		)
		return s.recover(ctx)
	}

	st, migrated, err := DecodeDocument(raw)
	if err != nil {
		if errors.Is(err, ErrSchemaTooNew) {
			return nil, newStorageError(KindSchemaTooNew, "stored document is newer than this build", err)
		}
		s.logger.Warn("primary document failed to decode",
			"kind", KindCorruptionDetected,
			"error", err,
		)
		return s.recover(ctx)
	}

	switch {
	case migrated:
		s.logger.Info("document migrated", "schema_version", st.SchemaVersion)
		s.persistBestEffort(ctx, st, "persist migrated document")
	case !hasSum:
		// Written before checksums existed; stamp one now.
		s.logger.Warn("primary document has no checksum, accepting unverified")
		s.persistBestEffort(ctx, st, "stamp checksum")
	}
	return st, nil
}

// loadAbsent handles a missing primary document.
func (s *Store) loadAbsent(ctx context.Context) (*model.AppState, error) {
	doc, found, err := s.readLegacy(ctx)
	if err != nil {
		return nil, err
	}

	var st *model.AppState
	if found {
		if _, err := Migrate(doc); err != nil {
			return nil, newStorageError(KindCorruptionUnrecoverable, "migrate legacy layout", err)
		}
		st, err = FromDocument(doc)
		if err != nil {
			return nil, newStorageError(KindCorruptionUnrecoverable, "decode legacy layout", err)
		}
		s.logger.Info("legacy layout migrated",
			"medications", len(st.Medications),
			"schedules", len(st.Schedules),
			"events", len(st.Events),
		)
	} else {
		st = model.NewDefaultState(s.clock.Now())
		s.logger.Info("initialized default document", "profile_id", st.ActiveProfileID)
	}

	s.persistBestEffort(ctx, st, "persist initial document")
	return st, nil
}

// readLegacy assembles a v1 document from pre-schema keys.
func (s *Store) readLegacy(ctx context.Context) (Document, bool, error) {
	doc := Document{"schemaVersion": float64(1)}
	found := false

	collections := map[string]string{
		LegacyKeyMedications: "medications",
		LegacyKeySchedules:   "schedules",
		LegacyKeyEvents:      "events",
	}
	for key, field := range collections {
		raw, ok, err := s.backend.Get(ctx, key)
		if err != nil {
			return nil, false, newStorageError(KindBackendFailure, "read legacy "+field, err)
		}
		if !ok {
			continue
		}
		var items []any
		if err := json.Unmarshal(raw, &items); err != nil {
			s.logger.Warn("legacy collection unreadable, skipping", "key", key, "error", err)
			continue
		}
		doc[field] = items
		found = true
	}

	if raw, ok, err := s.backend.Get(ctx, LegacyKeySettings); err != nil {
		return nil, false, newStorageError(KindBackendFailure, "read legacy settings", err)
	} else if ok {
		var settings map[string]any
		if err := json.Unmarshal(raw, &settings); err == nil {
			doc["settings"] = settings
			found = true
		}
	}

	return doc, found, nil
}

// recover restores the document from the backup slot and rewrites the
// primary to match it.
func (s *Store) recover(ctx context.Context) (*model.AppState, error) {
	env, err := s.readBackup(ctx)
	if err != nil {
		s.logger.Error("backup unusable, document cannot be recovered", "error", err)
		return nil, newStorageError(KindCorruptionUnrecoverable, "primary and backup both invalid", err)
	}

	st, _, err := DecodeDocument([]byte(env.Data))
	if err != nil {
		s.logger.Error("backup failed to decode, document cannot be recovered", "error", err)
		return nil, newStorageError(KindCorruptionUnrecoverable, "primary and backup both invalid", err)
	}

	if err := s.Save(ctx, st); err != nil {
		return nil, err
	}
	s.logger.Warn("document recovered from backup", "backup_written_at", env.WrittenAt)
	return st, nil
}

func (s *Store) readBackup(ctx context.Context) (*backupEnvelope, error) {
	raw, ok, err := s.backend.Get(ctx, KeyBackup)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("no backup present")
	}
	var env backupEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode backup envelope: %w", err)
	}
	if !model.VerifyChecksum([]byte(env.Data), env.Checksum) {
		return nil, fmt.Errorf("backup failed checksum")
	}
	return &env, nil
}

// Save rewrites the whole document.
//
// Order matters and is fixed: validate the current primary, copy it to the
// backup slot if it verifies, write the new primary, write its checksum.
func (s *Store) Save(ctx context.Context, st *model.AppState) error {
	data, err := model.MarshalState(st)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	if err := s.backupCurrent(ctx); err != nil {
		return err
	}

	if err := s.backend.Set(ctx, KeyPrimary, data); err != nil {
		return newStorageError(KindBackendFailure, "write primary document", err)
	}
	if err := s.backend.Set(ctx, KeyChecksum, []byte(model.Checksum(data))); err != nil {
		return newStorageError(KindBackendFailure, "write checksum", err)
	}

	s.logger.Debug("document saved", "bytes", len(data), "events", len(st.Events))
	return nil
}

// backupCurrent copies a still-valid primary into the backup slot. An
// invalid or missing primary leaves the existing backup untouched.
func (s *Store) backupCurrent(ctx context.Context) error {
	old, ok, err := s.backend.Get(ctx, KeyPrimary)
	if err != nil {
		return newStorageError(KindBackendFailure, "read primary before backup", err)
	}
	if !ok {
		return nil
	}
	sum, hasSum, err := s.backend.Get(ctx, KeyChecksum)
	if err != nil {
		return newStorageError(KindBackendFailure, "read checksum before backup", err)
	}
	if !hasSum || !model.VerifyChecksum(old, string(sum)) {
		s.logger.Debug("current primary invalid, keeping previous backup")
		return nil
	}

	env, err := json.Marshal(backupEnvelope{
		Data:      string(old),
		Checksum:  model.Checksum(old),
		WrittenAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	if err := s.backend.Set(ctx, KeyBackup, env); err != nil {
		return newStorageError(KindBackendFailure, "write backup", err)
	}
	return nil
}

func (s *Store) persistBestEffort(ctx context.Context, st *model.AppState, what string) {
	if err := s.Save(ctx, st); err != nil {
		s.logger.Warn(what+" failed", "error", err)
	}
}

// ResetDestructive replaces the document with a fresh default one.
// Callers must obtain the user's confirmation first.
func (s *Store) ResetDestructive(ctx context.Context) (*model.AppState, error) {
	st := model.NewDefaultState(s.clock.Now())
	if err := s.Save(ctx, st); err != nil {
		return nil, err
	}
	s.logger.Warn("document reset to defaults")
	return st, nil
}

// Report describes the integrity of the stored slots.
type Report struct {
	PrimaryPresent  bool       `json:"primaryPresent"`
	PrimaryValid    bool       `json:"primaryValid"`
	SchemaVersion   int        `json:"schemaVersion,omitempty"`
	BackupPresent   bool       `json:"backupPresent"`
	BackupValid     bool       `json:"backupValid"`
	BackupWrittenAt *time.Time `json:"backupWrittenAt,omitempty"`
}

// Verify inspects the slots without modifying them. It returns a
// KindCorruptionDetected error when the primary does not verify.
func (s *Store) Verify(ctx context.Context) (Report, error) {
	var r Report

	raw, ok, err := s.backend.Get(ctx, KeyPrimary)
	if err != nil {
		return r, newStorageError(KindBackendFailure, "read primary document", err)
	}
	r.PrimaryPresent = ok
	if ok {
		sum, hasSum, err := s.backend.Get(ctx, KeyChecksum)
		if err != nil {
			return r, newStorageError(KindBackendFailure, "read checksum", err)
		}
		r.PrimaryValid = hasSum && model.VerifyChecksum(raw, string(sum))
		var doc Document
		if json.Unmarshal(raw, &doc) == nil && doc != nil {
			r.SchemaVersion = SchemaVersion(doc)
		}
	}

	if _, ok, err := s.backend.Get(ctx, KeyBackup); err != nil {
		return r, newStorageError(KindBackendFailure, "read backup", err)
	} else if ok {
		r.BackupPresent = true
		if env, err := s.readBackup(ctx); err == nil {
			r.BackupValid = true
			at := env.WrittenAt
			r.BackupWrittenAt = &at
		}
	}

	if r.PrimaryPresent && !r.PrimaryValid {
		return r, newStorageError(KindCorruptionDetected, "primary document failed checksum", nil)
	}
	return r, nil
}
