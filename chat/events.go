package chat

// Event is the closed set of notifications the core publishes to UI
// observers. Each variant carries exactly what the corresponding server
// event carried, so observer dispatch can be an exhaustive type switch.
type Event interface {
	isEvent()
}

// MessageEvent announces a message appended to a room's log. Echoes of the
// local user's own sends are deduplicated before this is published.
type MessageEvent struct {
	Message Message
}

// MessageEditedEvent announces an in-place body mutation.
type MessageEditedEvent struct {
	RoomID    string
	MessageID string
	NewBody   string
}

// MessageDeletedEvent announces an in-place tombstone.
type MessageDeletedEvent struct {
	RoomID    string
	MessageID string
}

// BackfillEvent announces that a room's log was seeded from the history
// service; observers should re-read their message snapshot.
type BackfillEvent struct {
	RoomID string
	Count  int
}

// TypingEvent carries the full set of currently-typing users for a room,
// recomputed after every indicator change or expiry.
type TypingEvent struct {
	RoomID string
	Typing []TypingIndicator
}

// ConnectionEvent announces a transport state transition.
type ConnectionEvent struct {
	State ConnectionState
}

// RoomsEvent announces a refreshed room directory snapshot, ordered by
// last-message time descending.
type RoomsEvent struct {
	Rooms []Room
}

func (MessageEvent) isEvent()        {}
func (MessageEditedEvent) isEvent()  {}
func (MessageDeletedEvent) isEvent() {}
func (BackfillEvent) isEvent()       {}
func (TypingEvent) isEvent()         {}
func (ConnectionEvent) isEvent()     {}
func (RoomsEvent) isEvent()          {}
