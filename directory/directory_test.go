package directory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablechat/chat"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func room(id string, lastAt time.Time) chat.Room {
	return chat.Room{
		ID:            id,
		Type:          chat.RoomGroup,
		Participants:  []string{"me", "u2"},
		CreatedAt:     t0.Add(-time.Hour),
		LastMessageAt: lastAt,
	}
}

func inbound(roomID, sender, body string, at time.Time) chat.Message {
	return chat.Message{ID: "m-" + roomID + body, RoomID: roomID, SenderID: sender, Body: body, SentAt: at}
}

func TestLoadStateMachine(t *testing.T) {
	d := New("me")

	state, err := d.State()
	assert.Equal(t, Idle, state)
	assert.NoError(t, err)

	d.BeginLoad()
	state, _ = d.State()
	assert.Equal(t, Loading, state)

	boom := errors.New("history unreachable")
	d.FailLoad(boom)
	state, err = d.State()
	assert.Equal(t, LoadFailed, state)
	assert.ErrorIs(t, err, boom)

	// A retry recovers; failure is not terminal.
	d.BeginLoad()
	d.CompleteLoad([]chat.Room{room("r1", t0)})
	state, err = d.State()
	assert.Equal(t, Loaded, state)
	assert.NoError(t, err)
	assert.Len(t, d.Rooms(), 1)
}

func TestRoomsOrderedByLastMessageDescending(t *testing.T) {
	d := New("me")
	d.CompleteLoad([]chat.Room{
		room("stale", t0.Add(-30*time.Minute)),
		room("fresh", t0),
		room("middle", t0.Add(-10*time.Minute)),
	})

	got := d.Rooms()
	require.Len(t, got, 3)
	assert.Equal(t, "fresh", got[0].ID)
	assert.Equal(t, "middle", got[1].ID)
	assert.Equal(t, "stale", got[2].ID)
}

func TestObserveBumpsPreviewAndOrder(t *testing.T) {
	d := New("me")
	d.CompleteLoad([]chat.Room{
		room("r1", t0),
		room("r2", t0.Add(-time.Minute)),
	})

	d.Observe(inbound("r2", "u2", "dinner?", t0.Add(time.Minute)))

	got := d.Rooms()
	assert.Equal(t, "r2", got[0].ID, "bumped room moves to the top")
	assert.Equal(t, "dinner?", got[0].LastMessage)
	assert.Equal(t, t0.Add(time.Minute), got[0].LastMessageAt)
	assert.Equal(t, 1, got[0].MessageCount)
}

func TestUnreadCountsKeyOnFocusAndSender(t *testing.T) {
	d := New("me")
	d.CompleteLoad([]chat.Room{room("r1", t0), room("r2", t0)})
	d.Focus("r1")

	d.Observe(inbound("r1", "u2", "hi", t0.Add(time.Second)))
	assert.Zero(t, d.Unread("r1"), "focused room accrues nothing")

	d.Observe(inbound("r2", "u2", "hello", t0.Add(time.Second)))
	d.Observe(inbound("r2", "u2", "anyone?", t0.Add(2*time.Second)))
	assert.Equal(t, 2, d.Unread("r2"))

	d.Observe(inbound("r2", "me", "own echo", t0.Add(3*time.Second)))
	assert.Equal(t, 2, d.Unread("r2"), "own messages never count as unread")

	d.Focus("r2")
	assert.Zero(t, d.Unread("r2"), "focusing resets the counter")
}

func TestUnfocusOnlyClearsMatchingRoom(t *testing.T) {
	d := New("me")
	d.Focus("r2")
	d.Unfocus("r1") // stale teardown from an older screen
	d.Observe(inbound("r2", "u2", "x", t0))
	assert.Zero(t, d.Unread("r2"), "r2 is still focused")

	d.Unfocus("r2")
	d.Observe(inbound("r2", "u2", "y", t0.Add(time.Second)))
	assert.Equal(t, 1, d.Unread("r2"))
}

func TestObserveUnknownRoomCreatesStub(t *testing.T) {
	d := New("me")
	d.Observe(inbound("new-room", "u2", "first contact", t0))

	got := d.Rooms()
	require.Len(t, got, 1)
	assert.Equal(t, "new-room", got[0].ID)
	assert.Equal(t, 1, d.Unread("new-room"))
}

func TestUnreadSurvivesRefreshButNotRemoval(t *testing.T) {
	d := New("me")
	d.CompleteLoad([]chat.Room{room("r1", t0), room("gone", t0)})
	d.Observe(inbound("r1", "u2", "a", t0.Add(time.Second)))
	d.Observe(inbound("gone", "u2", "b", t0.Add(time.Second)))

	d.CompleteLoad([]chat.Room{room("r1", t0.Add(time.Minute))})

	assert.Equal(t, 1, d.Unread("r1"), "refresh does not reset read position")
	assert.Zero(t, d.Unread("gone"), "rooms the server dropped take their counters")
}
