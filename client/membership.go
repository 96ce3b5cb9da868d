package client

// roomSet tracks which rooms the client wants to be joined to, reference
// counted so two screens over the same room (list preview + open room)
// share one server-side membership. The set is the desired state replayed
// after every reconnect: server-side membership does not survive a
// transient connection, so a join queued while offline is realized by the
// replay and a leave queued while offline annihilates it before it ever
// reaches the wire.
//
// roomSet is loop-owned; the client event loop is its sole user.
type roomSet struct {
	counts map[string]int
	order  []string // active rooms in first-join order, for replay
}

func newRoomSet() *roomSet {
	return &roomSet{counts: make(map[string]int)}
}

// join adds a reference and reports whether the room just became active
// (i.e. a join command is owed to the server).
func (r *roomSet) join(roomID string) bool {
	r.counts[roomID]++
	if r.counts[roomID] > 1 {
		return false
	}
	r.order = append(r.order, roomID)
	return true
}

// leave drops a reference and reports whether the room just became
// inactive (i.e. a leave command is owed to the server).
func (r *roomSet) leave(roomID string) bool {
	n, ok := r.counts[roomID]
	if !ok {
		return false
	}
	if n > 1 {
		r.counts[roomID] = n - 1
		return false
	}
	r.remove(roomID)
	return true
}

// drop removes the room regardless of reference count and reports whether
// it was active.
func (r *roomSet) drop(roomID string) bool {
	if _, ok := r.counts[roomID]; !ok {
		return false
	}
	r.remove(roomID)
	return true
}

func (r *roomSet) remove(roomID string) {
	delete(r.counts, roomID)
	for i, id := range r.order {
		if id == roomID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *roomSet) isActive(roomID string) bool {
	return r.counts[roomID] > 0
}

// active returns the active rooms in first-join order.
func (r *roomSet) active() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
