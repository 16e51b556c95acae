package domain

import (
	"strings"
	"time"
)

type NoteStatus string

const (
	NoteStatusVisible NoteStatus = "visible"
	NoteStatusHidden  NoteStatus = "hidden"
)

const (
	DocTypeNote = "note"
	DocTypeUser = "user"
)

type Note struct {
	ID          string        `json:"id"`
	Rev         string        `json:"_rev,omitempty"`
	Type        string        `json:"type"`
	OwnerID     string        `json:"owner_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      NoteStatus    `json:"status"`
	Changes     []ChangeEntry `json:"changes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChangeEntry is a snapshot of a note's content taken before it was overwritten.
type ChangeEntry struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

func (n *Note) IsHidden() bool {
	return n.Status == NoteStatusHidden
}

// Snapshot captures the note's current content as a history entry.
func (n *Note) Snapshot(at time.Time) ChangeEntry {
	return ChangeEntry{Title: n.Title, Description: n.Description, Timestamp: at}
}

// NoteContentRequest is the body of create, update and history-append calls.
type NoteContentRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// Normalize trims surrounding whitespace so blank content fails validation.
func (r *NoteContentRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
}

type NoteResponse struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      NoteStatus    `json:"status"`
	Changes     []ChangeEntry `json:"changes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewNoteResponse projects a note for the API. History is only included when
// withChanges is set.
func NewNoteResponse(n *Note, withChanges bool) *NoteResponse {
	resp := &NoteResponse{
		ID:          n.ID,
		OwnerID:     n.OwnerID,
		Title:       n.Title,
		Description: n.Description,
		Status:      n.Status,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
	if withChanges {
		resp.Changes = append([]ChangeEntry(nil), n.Changes...)
	}
	return resp
}
