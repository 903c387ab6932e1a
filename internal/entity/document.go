package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DocumentID is the backend's opaque document identifier. JSON numbers and
// strings are both accepted; the kind is not part of the identity. On its
// own an id encodes as a number only in canonical integer form; WireID
// carries the kind it actually arrived in.
type DocumentID string

func (id DocumentID) String() string { return string(id) }

// IsZero reports whether the id is empty.
func (id DocumentID) IsZero() bool { return id == "" }

func (id *DocumentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = DocumentID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("document id: %w", err)
	}
	*id = DocumentID(n.String())
	return nil
}

func (id DocumentID) MarshalJSON() ([]byte, error) {
	return NewWireID(id).MarshalJSON()
}

func (id DocumentID) canonicalInt() bool {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil && strconv.FormatInt(n, 10) == string(id)
}

// WireID is a DocumentID with the JSON kind it arrived in.
type WireID struct {
	ID      DocumentID
	Numeric bool
}

// NewWireID guesses the kind of an id that was never decoded: canonical
// integers are numbers, everything else is a string.
func NewWireID(id DocumentID) WireID {
	return WireID{ID: id, Numeric: id.canonicalInt()}
}

func (w *WireID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if err := w.ID.UnmarshalJSON(data); err != nil {
		return err
	}
	w.Numeric = len(data) > 0 && data[0] != '"' && !bytes.Equal(data, []byte("null"))
	return nil
}

func (w WireID) MarshalJSON() ([]byte, error) {
	if w.Numeric && isJSONNumber(string(w.ID)) {
		return []byte(w.ID), nil
	}
	return json.Marshal(string(w.ID))
}

func isJSONNumber(s string) bool {
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}
	return json.Valid([]byte(s))
}

// Timestamp decodes RFC 3339 and the zone-less ISO timestamps the backend
// emits; zone-less values are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Document is a backend-persisted upload with its extracted and optionally edited data.
type Document struct {
	ID            DocumentID        `json:"id"`
	Filename      string            `json:"filename"`
	UploadTime    Timestamp         `json:"upload_time"`
	ExtractedData StructuredRecord  `json:"extracted_data"`
	EditedData    *StructuredRecord `json:"edited_data,omitempty"`
}

// Current returns the record the form should show: the edited data when
// present, else the extracted data.
func (d Document) Current() StructuredRecord {
	if d.EditedData != nil {
		return d.EditedData.Clone()
	}
	return d.ExtractedData.Clone()
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := d
	out.ExtractedData = d.ExtractedData.Clone()
	if d.EditedData != nil {
		edited := d.EditedData.Clone()
		out.EditedData = &edited
	}
	return out
}

// BatchResult is the backend's answer to an upload batch.
type BatchResult struct {
	DocIDs        []DocumentID                `json:"doc_ids"`
	ExtractedData map[string]StructuredRecord `json:"extracted_data"`
}
