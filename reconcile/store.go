package reconcile

// Store groups room logs by room id, creating them lazily. Like Log it is
// single-owner state for the client event loop.
type Store struct {
	rooms map[string]*Log
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{rooms: make(map[string]*Log)}
}

// Room returns the log for roomID, creating it on first use.
func (s *Store) Room(roomID string) *Log {
	l, ok := s.rooms[roomID]
	if !ok {
		l = NewLog()
		s.rooms[roomID] = l
	}
	return l
}

// Peek returns the log for roomID without creating it.
func (s *Store) Peek(roomID string) (*Log, bool) {
	l, ok := s.rooms[roomID]
	return l, ok
}

// Drop discards the log for roomID. Used when the local user leaves a room
// for good; rejoining refetches history.
func (s *Store) Drop(roomID string) {
	delete(s.rooms, roomID)
}
