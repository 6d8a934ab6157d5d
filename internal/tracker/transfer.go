package tracker

import (
	"context"
	"fmt"

	"github.com/roach88/medtrack/internal/backup"
	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/store"
)

// Export renders the current document as an export envelope.
func (t *Tracker) Export() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap, err := model.CloneState(t.state)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return backup.Export(snap, t.appVersion, t.clock.Now())
}

// PreviewImport validates raw export bytes without changing anything.
func (t *Tracker) PreviewImport(raw []byte) (*backup.Candidate, error) {
	return backup.Validate(raw)
}

// ImportResult reports what an import changed.
type ImportResult struct {
	Strategy backup.Strategy `json:"strategy"`
	Preview  backup.Preview  `json:"preview"`
	// Added is set for merges.
	Added *model.Counts `json:"added,omitempty"`
}

// Import validates raw and applies it with strategy. A rejected candidate
// leaves the current document untouched.
func (t *Tracker) Import(ctx context.Context, raw []byte, strategy backup.Strategy) (*ImportResult, error) {
	c, err := backup.Validate(raw)
	if err != nil {
		return nil, err
	}
	res := &ImportResult{Strategy: strategy, Preview: c.Preview}

	switch strategy {
	case backup.StrategyReplace:
		err := t.mutate(ctx, func(st *model.AppState) error {
			next, err := t.importer.ImportReplace(st, c, t.clock.Now())
			if err != nil {
				return err
			}
			*st = *next
			return nil
		})
		if err != nil {
			return nil, err
		}
	case backup.StrategyMerge:
		err := t.mutate(ctx, func(st *model.AppState) error {
			next, added, err := t.importer.ImportMerge(st, c, t.clock.Now())
			if err != nil {
				return err
			}
			*st = *next
			res.Added = &added
			return nil
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("import: unknown strategy %q", strategy)
	}

	t.logger.Info("data imported",
		"strategy", string(strategy),
		"source_version", c.Preview.SourceVersion,
		"events", c.Preview.Counts.Events)
	return res, nil
}

// Verify reports the integrity of the stored slots.
func (t *Tracker) Verify(ctx context.Context) (store.Report, error) {
	return t.store.Verify(ctx)
}

// Reset replaces the document with a fresh default one. Callers must
// obtain the user's confirmation first.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, err := t.store.ResetDestructive(ctx)
	if err != nil {
		return err
	}
	t.state = st
	return nil
}
