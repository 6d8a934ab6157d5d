package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalState serializes the document in the form that is stored and
// checksummed. HTML escaping is disabled so the bytes match what other
// readers of the document produce for the same content.
func MarshalState(s *AppState) ([]byte, error) {
	s.EnsureCollections()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalJSON writes an empty ActiveProfileID as null. Decoding null
// leaves the field empty, so no UnmarshalJSON is needed.
func (s AppState) MarshalJSON() ([]byte, error) {
	type plain AppState
	var active *string
	if s.ActiveProfileID != "" {
		active = &s.ActiveProfileID
	}
	doc := struct {
		plain
		ActiveProfileID *string `json:"activeProfileId"`
	}{plain(s), active}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalState decodes a stored document.
func UnmarshalState(data []byte) (*AppState, error) {
	var s AppState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	s.EnsureCollections()
	return &s, nil
}

// CloneState returns a deep copy of s via its serialized form.
func CloneState(s *AppState) (*AppState, error) {
	data, err := MarshalState(s)
	if err != nil {
		return nil, err
	}
	return UnmarshalState(data)
}
