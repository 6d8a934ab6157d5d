package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/medtrack/internal/model"
)

// Envelope is the export file format.
type Envelope struct {
	ExportDate    time.Time       `json:"exportDate"`
	AppVersion    string          `json:"appVersion"`
	SchemaVersion int             `json:"schemaVersion"`
	Data          *model.AppState `json:"data"`
}

// Export renders st as an indented export envelope.
func Export(st *model.AppState, appVersion string, now time.Time) ([]byte, error) {
	st.EnsureCollections()
	env := Envelope{
		ExportDate:    now.UTC(),
		AppVersion:    appVersion,
		SchemaVersion: st.SchemaVersion,
		Data:          st,
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return buf.Bytes(), nil
}
