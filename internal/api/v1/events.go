// Package v1 defines the wire types of the event-sourcing input API: the
// domain events the platform reports so charts can record deltas.
package v1

import (
	"fmt"
	"time"
)

// NoteEvent reports a note being created or deleted.
type NoteEvent struct {
	// ID is an optional client-supplied identifier used only for log
	// correlation; the ingest handler assigns one when absent.
	ID string `json:"id,omitempty"`

	// UserID is the note author. Required; it is the chart group key.
	UserID string `json:"user_id"`

	// NoteID identifies the note. Required.
	NoteID string `json:"note_id"`

	// ReplyToID is set when the note replies to another note.
	ReplyToID string `json:"reply_to_id,omitempty"`

	// RenoteOfID is set when the note reposts another note.
	RenoteOfID string `json:"renote_of_id,omitempty"`

	// Deleted marks a deletion event; the delta is applied with a negative
	// sign.
	Deleted bool `json:"deleted,omitempty"`

	// OccurredAt is informational only: deltas are always attributed to the
	// bucket of the server clock at commit time.
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// Validate ensures the event has all required attributes.
func (e *NoteEvent) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if e.NoteID == "" {
		return fmt.Errorf("note_id is required")
	}
	if e.ReplyToID != "" && e.RenoteOfID != "" {
		return fmt.Errorf("a note cannot be both a reply and a renote")
	}
	return nil
}

// DriveFileEvent reports a file being uploaded to or deleted from a user's
// drive.
type DriveFileEvent struct {
	ID     string `json:"id,omitempty"`
	UserID string `json:"user_id"`
	FileID string `json:"file_id"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	Deleted    bool      `json:"deleted,omitempty"`
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// Validate ensures the event has all required attributes.
func (e *DriveFileEvent) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if e.FileID == "" {
		return fmt.Errorf("file_id is required")
	}
	if e.Size < 0 {
		return fmt.Errorf("size must be non-negative")
	}
	return nil
}

// FederationEvent reports a remote instance joining or leaving the
// federation.
type FederationEvent struct {
	ID   string `json:"id,omitempty"`
	Host string `json:"host"`

	Removed    bool      `json:"removed,omitempty"`
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// Validate ensures the event has all required attributes.
func (e *FederationEvent) Validate() error {
	if e.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
