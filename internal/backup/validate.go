package backup

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/store"
)

//go:embed schema.cue
var schemaSource string

// maxReasons bounds how many schema violations a rejection lists.
const maxReasons = 5

// Preview summarises a validated candidate for confirmation.
type Preview struct {
	ExportDate    time.Time    `json:"exportDate"`
	AppVersion    string       `json:"appVersion"`
	SourceVersion int          `json:"sourceVersion"`
	Migrated      bool         `json:"migrated"`
	Counts        model.Counts `json:"counts"`
}

// Candidate is a foreign document that passed validation, already
// migrated to the current schema version.
type Candidate struct {
	State   *model.AppState
	Preview Preview
}

// Validate checks raw export bytes and returns the decoded candidate.
// Every rejection is an *ImportError.
func Validate(raw []byte) (*Candidate, error) {
	var env map[string]any
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, rejected(KindValidationFailed, err, "not a JSON export: %v", err)
	}
	if env == nil {
		return nil, rejected(KindValidationFailed, nil, "not a JSON export: top level is not an object")
	}
	data, ok := env["data"].(map[string]any)
	if !ok {
		return nil, rejected(KindValidationFailed, nil, "missing data object")
	}

	// The envelope and the document each carry a version; the higher one
	// decides, so a newer document cannot hide behind an older envelope.
	source := store.SchemaVersion(data)
	if v, ok := env["schemaVersion"].(float64); ok && int(v) > source {
		source = int(v)
	}
	if source > model.CurrentSchemaVersion {
		return nil, rejected(KindSchemaTooNew, store.ErrSchemaTooNew,
			"backup schema version %d is newer than supported version %d", source, model.CurrentSchemaVersion)
	}

	if _, err := store.Migrate(data); err != nil {
		if errors.Is(err, store.ErrSchemaTooNew) {
			return nil, rejected(KindSchemaTooNew, err, "%v", err)
		}
		return nil, rejected(KindValidationFailed, err, "migrate: %v", err)
	}
	env["schemaVersion"] = float64(model.CurrentSchemaVersion)

	if err := checkSchema(env); err != nil {
		return nil, err
	}

	st, err := store.FromDocument(data)
	if err != nil {
		return nil, rejected(KindValidationFailed, err, "decode: %v", err)
	}
	if err := model.Validate(st); err != nil {
		return nil, rejected(KindValidationFailed, err, "%v", err)
	}
	st.EnsureCollections()

	p := Preview{
		SourceVersion: source,
		Migrated:      source != model.CurrentSchemaVersion,
		Counts:        st.Counts(),
	}
	p.AppVersion, _ = env["appVersion"].(string)
	if s, ok := env["exportDate"].(string); ok {
		p.ExportDate, _ = time.Parse(time.RFC3339Nano, s)
	}
	return &Candidate{State: st, Preview: p}, nil
}

// checkSchema unifies the envelope with the embedded #Envelope definition.
func checkSchema(env map[string]any) error {
	buf, err := json.Marshal(env)
	if err != nil {
		return rejected(KindValidationFailed, err, "encode: %v", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile import schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Envelope"))

	doc := ctx.CompileBytes(buf, cue.Filename("import.json"))
	if err := doc.Err(); err != nil {
		return rejected(KindValidationFailed, err, "parse: %v", err)
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return rejected(KindValidationFailed, err, "%s", schemaReason(err))
	}
	return nil
}

func schemaReason(err error) string {
	errs := cueerrors.Errors(err)
	reasons := make([]string, 0, maxReasons)
	for i, e := range errs {
		if i == maxReasons {
			reasons = append(reasons, fmt.Sprintf("and %d more", len(errs)-maxReasons))
			break
		}
		msg := e.Error()
		if path := strings.Join(e.Path(), "."); path != "" && !strings.HasPrefix(msg, path) {
			msg = path + ": " + msg
		}
		reasons = append(reasons, msg)
	}
	if len(reasons) == 0 {
		return err.Error()
	}
	return strings.Join(reasons, "; ")
}
