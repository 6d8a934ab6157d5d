package backup

import (
	"fmt"
	"time"

	"github.com/roach88/medtrack/internal/model"
)

// Strategy names an import mode in the DATA_IMPORTED audit event.
type Strategy string

const (
	StrategyReplace Strategy = "replace"
	StrategyMerge   Strategy = "merge"
)

// Importer builds post-import documents.
type Importer struct {
	ids model.IDGenerator
}

// NewImporter creates an Importer.
func NewImporter(ids model.IDGenerator) *Importer {
	return &Importer{ids: ids}
}

// ImportReplace returns the candidate as the next document, discarding
// current, with a DATA_IMPORTED event appended to its log.
func (im *Importer) ImportReplace(current *model.AppState, c *Candidate, now time.Time) (*model.AppState, error) {
	next, err := model.CloneState(c.State)
	if err != nil {
		return nil, fmt.Errorf("import replace: %w", err)
	}
	prior := current.Counts()
	incoming := next.Counts()
	next.Append(im.auditEvent(next, StrategyReplace, prior, incoming, now))
	return next, nil
}

// ImportMerge returns current extended with every candidate entity whose
// id current does not already have. Existing entities are never updated,
// even when the candidate holds a newer version of them.
func (im *Importer) ImportMerge(current *model.AppState, c *Candidate, now time.Time) (*model.AppState, model.Counts, error) {
	next, err := model.CloneState(current)
	if err != nil {
		return nil, model.Counts{}, fmt.Errorf("import merge: %w", err)
	}
	in := c.State
	var added model.Counts

	next.Profiles, added.Profiles = mergeByID(next.Profiles, in.Profiles, func(p *model.Profile) string { return p.ID })
	next.Medications, added.Medications = mergeByID(next.Medications, in.Medications, func(m *model.Medication) string { return m.ID })
	next.Schedules, added.Schedules = mergeByID(next.Schedules, in.Schedules, func(s *model.Schedule) string { return s.ID })
	next.Inventory, added.Inventory = mergeByID(next.Inventory, in.Inventory, func(i *model.InventoryItem) string { return i.ID })
	next.Events, added.Events = mergeByID(next.Events, in.Events, func(e *model.Event) string { return e.ID })
	next.ShoppingList, added.ShoppingList = mergeByID(next.ShoppingList, in.ShoppingList, func(s *model.ShoppingItem) string { return s.ID })
	next.GuardianContacts, added.GuardianContacts = mergeByID(next.GuardianContacts, in.GuardianContacts, func(g *model.GuardianContact) string { return g.ID })
	next.Symptoms, added.Symptoms = mergeByID(next.Symptoms, in.Symptoms, func(s *model.SymptomEntry) string { return s.ID })
	next.Measurements, added.Measurements = mergeByID(next.Measurements, in.Measurements, func(m *model.MeasurementEntry) string { return m.ID })

	if next.ActiveProfileID == "" && len(next.Profiles) > 0 {
		next.ActiveProfileID = next.Profiles[0].ID
	}
	if err := model.Validate(next); err != nil {
		return nil, model.Counts{}, rejected(KindValidationFailed, err, "merged document: %v", err)
	}

	next.Append(im.auditEvent(next, StrategyMerge, current.Counts(), next.Counts(), now))
	return next, added, nil
}

func (im *Importer) auditEvent(st *model.AppState, strategy Strategy, prior, incoming model.Counts, now time.Time) model.Event {
	return model.Event{
		ID:        im.ids.NewID(),
		TS:        now,
		Type:      model.EventDataImported,
		ProfileID: st.ActiveProfileID,
		Metadata: map[string]any{
			model.MetaStrategy:    string(strategy),
			model.MetaPriorCounts: prior.AsMap(),
			model.MetaNewCounts:   incoming.AsMap(),
		},
	}
}

// mergeByID appends the items of src whose id is not in dst and returns
// how many were added. Duplicate ids within src are added once.
func mergeByID[T any](dst, src []T, id func(*T) string) ([]T, int) {
	seen := make(map[string]bool, len(dst))
	for i := range dst {
		seen[id(&dst[i])] = true
	}
	added := 0
	for i := range src {
		k := id(&src[i])
		if seen[k] {
			continue
		}
		seen[k] = true
		dst = append(dst, src[i])
		added++
	}
	return dst, added
}
