package libscan

import (
	"encoding/json"
	"fmt"
)

// RefType says what kind of record a scanned code points at.
type RefType string

const (
	RefBorrowing RefType = "borrowing"
	RefBook      RefType = "book"
)

// Ref identifies the record behind a scanned code. The dashboard prints
// codes carrying a small JSON object, e.g. {"type":"borrowing","id":17}.
// The scanner itself reports payloads as opaque text; interpreting them is
// up to the caller, with ParseRef for the dashboard convention.
type Ref struct {
	Type RefType `json:"type"`
	ID   int64   `json:"id"`
}

// String returns a short human-readable form, e.g. "borrowing 17".
func (r Ref) String() string {
	return fmt.Sprintf("%s %d", r.Type, r.ID)
}

// ParseRef parses a scanned payload using the dashboard convention.
func ParseRef(payload string) (Ref, error) {
	var r Ref
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return Ref{}, fmt.Errorf("parsing payload: %v", err)
	}
	switch r.Type {
	case RefBorrowing, RefBook:
	default:
		return Ref{}, fmt.Errorf("unknown payload type %q", r.Type)
	}
	if r.ID <= 0 {
		return Ref{}, fmt.Errorf("payload id must be > 0, got %d", r.ID)
	}
	return r, nil
}
