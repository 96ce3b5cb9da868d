package chat

import (
	"errors"
	"strings"
	"time"
)

// Message is a single utterance inside a room. The ID is assigned by the
// server; a message is never displayed before the server round-trip returns
// it. Edited and Deleted are one-way flags mutated in place by broadcast
// events; a deleted message keeps its slot in the room log as a tombstone.
type Message struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	Body       string    `json:"body"`
	ImageRef   string    `json:"image_ref,omitempty"`
	SentAt     time.Time `json:"sent_at"`
	Edited     bool      `json:"edited,omitempty"`
	Deleted    bool      `json:"deleted,omitempty"`
}

// NewMessage validates and normalizes a draft message before it is sent.
func NewMessage(m Message) (*Message, error) {
	if m.RoomID == "" || m.SenderID == "" {
		return nil, errors.New("room_id and sender_id are required")
	}

	m.Body = strings.TrimSpace(m.Body)
	if m.Body == "" && m.ImageRef == "" {
		return nil, errors.New("message must contain either body or image")
	}

	if m.SentAt.IsZero() {
		m.SentAt = time.Now()
	}

	return &m, nil
}
