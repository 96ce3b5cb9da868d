// Package directory maintains the user's room list: denormalized
// last-message previews, unread counters keyed on the focused room, and a
// load state machine for the backing fetch.
package directory

import (
	"sort"
	"time"

	"tablechat/chat"
)

// LoadState positions the directory fetch lifecycle.
type LoadState int

const (
	Idle LoadState = iota
	Loading
	Loaded
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "error"
	default:
		return "unknown"
	}
}

// Directory is loop-owned state; the client event loop is its sole owner.
// Unread counts survive refreshes: the server list carries previews, not
// the local user's read position.
type Directory struct {
	selfID  string
	state   LoadState
	lastErr error
	rooms   map[string]chat.Room
	unread  map[string]int
	focused string
}

// New constructs an empty directory for the given local user.
func New(selfID string) *Directory {
	return &Directory{
		selfID: selfID,
		rooms:  make(map[string]chat.Room),
		unread: make(map[string]int),
	}
}

// State reports the fetch lifecycle position and, in LoadFailed, the error
// that put it there. A failed load keeps the previous room list so the UI
// retains something to render next to the retry affordance.
func (d *Directory) State() (LoadState, error) {
	return d.state, d.lastErr
}

// BeginLoad marks a fetch in flight.
func (d *Directory) BeginLoad() {
	d.state = Loading
	d.lastErr = nil
}

// CompleteLoad installs a fetched room list.
func (d *Directory) CompleteLoad(rooms []chat.Room) {
	d.state = Loaded
	d.lastErr = nil
	d.rooms = make(map[string]chat.Room, len(rooms))
	for _, r := range rooms {
		d.rooms[r.ID] = r
	}
	// Rooms the server no longer lists take their counters with them.
	for id := range d.unread {
		if _, ok := d.rooms[id]; !ok {
			delete(d.unread, id)
		}
	}
}

// FailLoad records a fetch failure.
func (d *Directory) FailLoad(err error) {
	d.state = LoadFailed
	d.lastErr = err
}

// Observe folds an inbound message into the previews: bumps the room's
// last-message text/time and count, and increments the unread counter when
// the room is not focused and the sender is not the local user.
func (d *Directory) Observe(m chat.Message) {
	r, ok := d.rooms[m.RoomID]
	if !ok {
		// A message for a room the directory has not seen yet; track a
		// stub until the next refresh fills in participants.
		r = chat.Room{ID: m.RoomID, Type: chat.RoomGroup}
	}
	if !m.SentAt.Before(r.LastMessageAt) {
		r.LastMessage = m.Body
		r.LastMessageAt = m.SentAt
	}
	r.MessageCount++
	d.rooms[m.RoomID] = r

	if m.RoomID != d.focused && m.SenderID != d.selfID {
		d.unread[m.RoomID]++
	}
}

// Focus marks roomID as the foreground conversation and resets its unread
// counter. An empty id means nothing is focused.
func (d *Directory) Focus(roomID string) {
	d.focused = roomID
	if roomID != "" {
		delete(d.unread, roomID)
	}
}

// Unfocus clears the focused room if it is still roomID. Sessions call
// this on close; the guard keeps an older session's teardown from
// unfocusing a room the user has already re-entered.
func (d *Directory) Unfocus(roomID string) {
	if d.focused == roomID {
		d.focused = ""
	}
}

// Unread returns the unread counter for roomID.
func (d *Directory) Unread(roomID string) int {
	return d.unread[roomID]
}

// Rooms returns the room list ordered by last-message time descending,
// most recent conversation first. Rooms without any message yet sort by
// creation time among themselves, after the active ones.
func (d *Directory) Rooms() []chat.Room {
	out := make([]chat.Room, 0, len(d.rooms))
	for _, r := range d.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := sortKey(out[i]), sortKey(out[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortKey(r chat.Room) time.Time {
	if !r.LastMessageAt.IsZero() {
		return r.LastMessageAt
	}
	return r.CreatedAt
}
