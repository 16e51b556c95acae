package domain

import "time"

type NoteEventType string

const (
	NoteEventCreated         NoteEventType = "note_created"
	NoteEventUpdated         NoteEventType = "note_updated"
	NoteEventHistoryAppended NoteEventType = "note_history_appended"
	NoteEventDeleted         NoteEventType = "note_deleted"
)

// NoteEvent is pushed to the owner's open websocket connections after a note
// changes.
type NoteEvent struct {
	Type      NoteEventType `json:"type"`
	NoteID    string        `json:"note_id"`
	Title     string        `json:"title"`
	Status    NoteStatus    `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewNoteEvent(eventType NoteEventType, n *Note) *NoteEvent {
	return &NoteEvent{
		Type:      eventType,
		NoteID:    n.ID,
		Title:     n.Title,
		Status:    n.Status,
		Timestamp: n.UpdatedAt,
	}
}
