package chat

import "errors"

var (
	// ErrNotConnected is returned by commands that require a live
	// transport connection. Sends are not queued while offline; the
	// caller decides whether to retry.
	ErrNotConnected = errors.New("chat: not connected")

	// ErrClosed is returned once the client has been shut down.
	ErrClosed = errors.New("chat: client closed")

	// ErrRoomNotJoined is returned for room-scoped commands issued
	// against a room outside the active set.
	ErrRoomNotJoined = errors.New("chat: room not joined")

	// ErrRejected wraps a server-side command rejection; the reason is
	// attached by the caller-facing error message.
	ErrRejected = errors.New("chat: command rejected")
)
