package websocket

import (
	"encoding/json"
	"time"

	"notevault-server/internal/domain"
)

type MessageType string

const (
	TypePing                MessageType = "ping"
	TypePong                MessageType = "pong"
	TypeError               MessageType = "error"
	TypeNoteCreated         MessageType = MessageType(domain.NoteEventCreated)
	TypeNoteUpdated         MessageType = MessageType(domain.NoteEventUpdated)
	TypeNoteHistoryAppended MessageType = MessageType(domain.NoteEventHistoryAppended)
	TypeNoteDeleted         MessageType = MessageType(domain.NoteEventDeleted)
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
