package client

import (
	"tablechat/chat"
	"tablechat/directory"
)

// Observers receive read-only projections: snapshots are copies and event
// streams are independent per subscriber, so no UI component ever touches
// the canonical collections.

// SubscribeMessages streams message lifecycle events (new, edited,
// deleted, backfill) across all rooms.
func (c *Client) SubscribeMessages() (<-chan chat.Event, func()) {
	return c.msgEvents.Subscribe()
}

// SubscribeTyping streams per-room typing-set changes.
func (c *Client) SubscribeTyping() (<-chan chat.TypingEvent, func()) {
	return c.typEvents.Subscribe()
}

// SubscribeConnection streams transport state transitions.
func (c *Client) SubscribeConnection() (<-chan chat.ConnectionEvent, func()) {
	return c.connEvents.Subscribe()
}

// SubscribeRooms streams room-directory snapshots, emitted on refresh and
// on preview bumps.
func (c *Client) SubscribeRooms() (<-chan chat.RoomsEvent, func()) {
	return c.roomEvents.Subscribe()
}

// ConnectionState reports the current transport state.
func (c *Client) ConnectionState() chat.ConnectionState {
	var state chat.ConnectionState
	_ = c.do(func() { state = c.connState })
	return state
}

// Rooms returns the directory snapshot, most recent conversation first.
func (c *Client) Rooms() []chat.Room {
	var out []chat.Room
	_ = c.do(func() { out = c.dir.Rooms() })
	return out
}

// RoomsState reports the directory load state machine's position and, on
// failure, the error behind the retry affordance.
func (c *Client) RoomsState() (directory.LoadState, error) {
	var (
		state directory.LoadState
		err   error
	)
	_ = c.do(func() { state, err = c.dir.State() })
	return state, err
}

// Unread reports the unread count for a room.
func (c *Client) Unread(roomID string) int {
	var n int
	_ = c.do(func() { n = c.dir.Unread(roomID) })
	return n
}

// Messages returns a room's ordered message snapshot without requiring a
// session (room-list previews, notifications).
func (c *Client) Messages(roomID string) []chat.Message {
	var out []chat.Message
	_ = c.do(func() {
		if log, ok := c.store.Peek(roomID); ok {
			out = log.Snapshot()
		}
	})
	return out
}
