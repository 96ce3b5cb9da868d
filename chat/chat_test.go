package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageTrimsAndStampsTime(t *testing.T) {
	m, err := NewMessage(Message{RoomID: "r", SenderID: "me", Body: "  hello  "})
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Body)
	assert.False(t, m.SentAt.IsZero())
}

func TestNewMessageImageOnly(t *testing.T) {
	m, err := NewMessage(Message{RoomID: "r", SenderID: "me", ImageRef: "https://img/x.jpg"})
	require.NoError(t, err)
	assert.Empty(t, m.Body)
}

func TestNewMessageRejections(t *testing.T) {
	cases := map[string]Message{
		"missing room":    {SenderID: "me", Body: "x"},
		"missing sender":  {RoomID: "r", Body: "x"},
		"empty payload":   {RoomID: "r", SenderID: "me"},
		"whitespace body": {RoomID: "r", SenderID: "me", Body: "   "},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewMessage(m)
			assert.Error(t, err)
		})
	}
}

func TestNewMessagePreservesExplicitTime(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m, err := NewMessage(Message{RoomID: "r", SenderID: "me", Body: "x", SentAt: at})
	require.NoError(t, err)
	assert.Equal(t, at, m.SentAt)
}

func TestNewRoomGroup(t *testing.T) {
	r, err := NewRoom(Room{
		Type:         RoomGroup,
		Name:         "Friday dinner",
		Participants: []string{"me", "u2", "u3"},
	})
	require.NoError(t, err)
	assert.False(t, r.CreatedAt.IsZero())
}

func TestNewRoomDirectRequiresTwoDistinct(t *testing.T) {
	_, err := NewRoom(Room{Type: RoomDirect, Participants: []string{"me", "u2"}})
	assert.NoError(t, err)

	_, err = NewRoom(Room{Type: RoomDirect, Participants: []string{"me"}})
	assert.Error(t, err)

	_, err = NewRoom(Room{Type: RoomDirect, Participants: []string{"me", "me"}})
	assert.Error(t, err)

	_, err = NewRoom(Room{Type: RoomDirect, Participants: []string{"me", "u2", "u3"}})
	assert.Error(t, err)
}

func TestNewRoomRejections(t *testing.T) {
	_, err := NewRoom(Room{Type: RoomGroup})
	assert.Error(t, err, "no participants")

	_, err = NewRoom(Room{Type: "channel", Participants: []string{"me"}})
	assert.Error(t, err, "unknown type")
}
