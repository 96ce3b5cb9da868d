package chat

import (
	"errors"
	"time"
)

// RoomType distinguishes two-party rooms from group rooms.
type RoomType string

const (
	RoomDirect RoomType = "direct"
	RoomGroup  RoomType = "group"
)

// Room is a conversation scope. Participants are immutable after creation
// for direct rooms; group membership changes happen server-side and arrive
// through directory refreshes. LastMessage/LastMessageAt/MessageCount are
// denormalized previews maintained by the room directory.
type Room struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	Type          RoomType  `json:"type"`
	Participants  []string  `json:"participants"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessage   string    `json:"last_message,omitempty"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
	MessageCount  int       `json:"message_count"`
}

// NewRoom validates a room definition before a create call.
func NewRoom(r Room) (*Room, error) {
	if len(r.Participants) == 0 {
		return nil, errors.New("room requires at least one participant")
	}

	switch r.Type {
	case RoomDirect:
		if len(r.Participants) != 2 || r.Participants[0] == r.Participants[1] {
			return nil, errors.New("direct room requires exactly two distinct participants")
		}
	case RoomGroup:
	default:
		return nil, errors.New("unknown room type")
	}

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	return &r, nil
}
