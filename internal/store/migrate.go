package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/medtrack/internal/model"
)

// Document is the raw JSON form migrations operate on. Working on the raw
// form keeps fields this build does not know about intact.
type Document = map[string]any

// migrationStep upgrades a document from version N to N+1 in place.
// Steps only add absent fields; re-running a step is a no-op.
type migrationStep func(doc Document)

var migrationSteps = map[int]migrationStep{
	1: migrateV1ToV2,
	2: migrateV2ToV3,
	3: migrateV3ToV4,
}

// SchemaVersion reads the version of a raw document. Documents that
// predate the field are version 1.
func SchemaVersion(doc Document) int {
	switch v := doc["schemaVersion"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, err := v.Int64()
		if err == nil {
			return int(n)
		}
	}
	return 1
}

// Migrate upgrades doc in place to model.CurrentSchemaVersion, running
// exactly one step per version. It returns the version doc started at.
func Migrate(doc Document) (from int, err error) {
	from = SchemaVersion(doc)
	if from > model.CurrentSchemaVersion {
		return from, fmt.Errorf("document version %d, supported %d: %w", from, model.CurrentSchemaVersion, ErrSchemaTooNew)
	}
	if from < 1 {
		return from, fmt.Errorf("invalid schema version %d", from)
	}

	for v := from; v < model.CurrentSchemaVersion; v++ {
		step, ok := migrationSteps[v]
		if !ok {
			return from, fmt.Errorf("no migration from version %d", v)
		}
		step(doc)
		doc["schemaVersion"] = float64(v + 1)
	}
	return from, nil
}

// DecodeDocument parses stored bytes, migrates them and decodes the result.
// migrated reports whether any step ran.
func DecodeDocument(data []byte) (st *model.AppState, migrated bool, err error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		return nil, false, fmt.Errorf("decode document: not an object")
	}

	from, err := Migrate(doc)
	if err != nil {
		return nil, false, err
	}

	st, err = FromDocument(doc)
	if err != nil {
		return nil, false, err
	}
	return st, from != model.CurrentSchemaVersion, nil
}

// FromDocument decodes a migrated raw document into an AppState.
func FromDocument(doc Document) (*model.AppState, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode migrated document: %w", err)
	}
	return model.UnmarshalState(data)
}

// migrateV1ToV2 introduces profiles. Single-user v1 data is assigned to
// the default profile.
func migrateV1ToV2(doc Document) {
	if _, ok := doc["profiles"]; !ok {
		doc["profiles"] = []any{map[string]any{
			"id":   model.DefaultProfileID,
			"name": "Me",
		}}
	}
	owner := model.DefaultProfileID
	if profiles, ok := doc["profiles"].([]any); ok && len(profiles) > 0 {
		if p, ok := profiles[0].(map[string]any); ok {
			if id, ok := p["id"].(string); ok && id != "" {
				owner = id
			}
		}
	}
	if _, ok := doc["activeProfileId"]; !ok {
		doc["activeProfileId"] = owner
	}
	for _, key := range []string{"medications", "schedules", "events"} {
		ensureArray(doc, key)
		forEachObject(doc, key, func(obj map[string]any) {
			setDefault(obj, "profileId", owner)
		})
	}
	ensureObject(doc, "settings")
}

// migrateV2ToV3 introduces inventory tracking.
func migrateV2ToV3(doc Document) {
	ensureArray(doc, "inventory")
	settings := ensureObject(doc, "settings")
	setDefault(settings, "autoDecrementInventory", true)
	setDefault(settings, "addLowStockToShoppingList", true)
}

// migrateV3ToV4 introduces guardian mode and the profile-scoped collections.
func migrateV3ToV4(doc Document) {
	forEachObject(doc, "profiles", func(p map[string]any) {
		setDefault(p, "guardianModeEnabled", false)
		setDefault(p, "graceWindowMinutes", float64(model.DefaultGraceWindowMinutes))
		setDefault(p, "followUpWindowMinutes", float64(model.DefaultFollowUpWindowMinutes))
	})
	for _, key := range []string{"shoppingList", "guardianContacts", "symptoms", "measurements"} {
		ensureArray(doc, key)
	}
}

func setDefault(obj map[string]any, key string, value any) {
	if _, ok := obj[key]; !ok {
		obj[key] = value
	}
}

func ensureArray(doc Document, key string) {
	if v, ok := doc[key]; !ok || v == nil {
		doc[key] = []any{}
	}
}

func ensureObject(doc Document, key string) map[string]any {
	if obj, ok := doc[key].(map[string]any); ok {
		return obj
	}
	obj := map[string]any{}
	doc[key] = obj
	return obj
}

func forEachObject(doc Document, key string, fn func(map[string]any)) {
	items, ok := doc[key].([]any)
	if !ok {
		return
	}
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			fn(obj)
		}
	}
}
