// Package presence tracks ephemeral per-room, per-user typing state with
// automatic expiry.
package presence

import (
	"sort"
	"time"

	"tablechat/chat"
)

// DefaultTTL is how long a typing indicator stays alive without renewal.
const DefaultTTL = 3 * time.Second

// Scheduler defers f by d and returns a cancel function. The client
// injects a scheduler that posts f back onto its event loop so expiries
// serialize with message events; tests inject a manual one.
type Scheduler func(d time.Duration, f func()) (cancel func())

// AfterFunc is the production Scheduler, backed by time.AfterFunc.
func AfterFunc(d time.Duration, f func()) (cancel func()) {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

type entry struct {
	displayName string
	cancel      func()
}

// Tracker owns the typing map. Each true indicator schedules an expiry;
// a newer indicator for the same (room, user) cancels and replaces the
// pending timer, so the entry expires relative to the latest renewal. A
// false indicator clears immediately. Indicators from the local user are
// ignored; there is no self-typing display.
//
// Tracker is not safe for concurrent use; the client event loop is its
// sole owner.
type Tracker struct {
	selfID   string
	ttl      time.Duration
	schedule Scheduler
	onExpire func(roomID string)
	rooms    map[string]map[string]*entry
}

// NewTracker constructs a tracker for the given local user. A zero ttl
// falls back to DefaultTTL; a nil scheduler falls back to AfterFunc.
func NewTracker(selfID string, ttl time.Duration, schedule Scheduler) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if schedule == nil {
		schedule = AfterFunc
	}
	return &Tracker{
		selfID:   selfID,
		ttl:      ttl,
		schedule: schedule,
		rooms:    make(map[string]map[string]*entry),
	}
}

// Apply folds one indicator into the map and reports whether the room's
// visible typing set changed.
func (t *Tracker) Apply(ind chat.TypingIndicator) bool {
	if ind.UserID == "" || ind.RoomID == "" || ind.UserID == t.selfID {
		return false
	}

	if !ind.IsTyping {
		return t.clear(ind.RoomID, ind.UserID)
	}

	room := t.rooms[ind.RoomID]
	if room == nil {
		room = make(map[string]*entry)
		t.rooms[ind.RoomID] = room
	}

	changed := true
	if prev, ok := room[ind.UserID]; ok {
		prev.cancel()
		changed = prev.displayName != ind.DisplayName
	}

	roomID, userID := ind.RoomID, ind.UserID
	room[userID] = &entry{
		displayName: ind.DisplayName,
		cancel: t.schedule(t.ttl, func() {
			if t.clear(roomID, userID) && t.onExpire != nil {
				t.onExpire(roomID)
			}
		}),
	}
	return changed
}

// OnExpire registers a callback fired after a timer-driven expiry changes
// a room's typing set. Runs in whatever context the scheduler fires in.
func (t *Tracker) OnExpire(fn func(roomID string)) {
	t.onExpire = fn
}

// Expire clears a (room, user) entry; it is the callback target the
// scheduler fires. Already-cleared entries are a no-op, so an expiry
// racing a stop-typing event is harmless whichever lands first.
func (t *Tracker) Expire(roomID, userID string) bool {
	return t.clear(roomID, userID)
}

func (t *Tracker) clear(roomID, userID string) bool {
	room := t.rooms[roomID]
	e, ok := room[userID]
	if !ok {
		return false
	}
	e.cancel()
	delete(room, userID)
	if len(room) == 0 {
		delete(t.rooms, roomID)
	}
	return true
}

// DropRoom cancels every pending expiry for roomID and clears its entries.
// Called when the owning session closes, so no timer outlives the room.
func (t *Tracker) DropRoom(roomID string) {
	room := t.rooms[roomID]
	for _, e := range room {
		e.cancel()
	}
	delete(t.rooms, roomID)
}

// Typing returns the users currently typing in roomID, ordered by user id
// for stable rendering ("X, Y typing…" with an overflow count is the UI's
// call; the data shape supports it).
func (t *Tracker) Typing(roomID string) []chat.TypingIndicator {
	room := t.rooms[roomID]
	if len(room) == 0 {
		return nil
	}
	out := make([]chat.TypingIndicator, 0, len(room))
	for userID, e := range room {
		out = append(out, chat.TypingIndicator{
			RoomID:      roomID,
			UserID:      userID,
			DisplayName: e.displayName,
			IsTyping:    true,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
