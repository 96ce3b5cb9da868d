// Package reconcile merges messages arriving over independent delivery
// paths (direct send replies, broadcast echoes, history backfills) into a
// single per-room ordered collection without duplication or reordering.
package reconcile

import (
	"tablechat/chat"
)

// Log is the canonical ordered message collection for one room. Order is
// arrival order: the server is the ordering authority and the transport
// preserves per-room delivery order, so entries are never re-sorted.
// Entries are never removed: a delete is a tombstone flag, keeping slots
// and ids stable for every observer.
//
// Log is not safe for concurrent use; the client event loop is its sole
// owner.
type Log struct {
	entries []chat.Message
	index   map[string]int // message id -> position in entries
}

// NewLog returns an empty room log.
func NewLog() *Log {
	return &Log{index: make(map[string]int)}
}

// Append adds m at the end unless a message with the same id is already
// present. The duplicate case is the sender's own broadcast echo (or a
// re-delivered broadcast) and is discarded without touching order.
// It reports whether the entry was appended.
func (l *Log) Append(m chat.Message) bool {
	if _, ok := l.index[m.ID]; ok {
		return false
	}
	l.index[m.ID] = len(l.entries)
	l.entries = append(l.entries, m)
	return true
}

// Edit mutates the entry with the given id in place: body replaced, Edited
// set. Position and id are untouched. Unknown ids and tombstoned entries
// report false and change nothing.
func (l *Log) Edit(id, newBody string) bool {
	i, ok := l.index[id]
	if !ok || l.entries[i].Deleted {
		return false
	}
	l.entries[i].Body = newBody
	l.entries[i].Edited = true
	return true
}

// Delete tombstones the entry with the given id: Deleted set, body
// cleared, slot retained. Reports false for unknown ids. Idempotent.
func (l *Log) Delete(id string) bool {
	i, ok := l.index[id]
	if !ok {
		return false
	}
	l.entries[i].Deleted = true
	l.entries[i].Body = ""
	return true
}

// Seed installs a history backfill as the authoritative prefix of the log.
// Live messages that raced ahead of the fetch are kept after the backfill
// in their original relative order; ids present in both are taken from the
// backfill (it already reflects any edits the live path missed).
func (l *Log) Seed(history []chat.Message) {
	merged := make([]chat.Message, 0, len(history)+len(l.entries))
	index := make(map[string]int, len(history)+len(l.entries))

	for _, m := range history {
		if _, ok := index[m.ID]; ok {
			continue
		}
		index[m.ID] = len(merged)
		merged = append(merged, m)
	}
	for _, m := range l.entries {
		if _, ok := index[m.ID]; ok {
			continue
		}
		index[m.ID] = len(merged)
		merged = append(merged, m)
	}

	l.entries = merged
	l.index = index
}

// Get returns a copy of the entry with the given id.
func (l *Log) Get(id string) (chat.Message, bool) {
	i, ok := l.index[id]
	if !ok {
		return chat.Message{}, false
	}
	return l.entries[i], true
}

// Len reports the number of entries, tombstones included.
func (l *Log) Len() int {
	return len(l.entries)
}

// Snapshot returns a copy of the collection in arrival order. Callers own
// the returned slice; the canonical entries stay private to the log.
func (l *Log) Snapshot() []chat.Message {
	out := make([]chat.Message, len(l.entries))
	copy(out, l.entries)
	return out
}
