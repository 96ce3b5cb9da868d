// Package transport owns the persistent connection to the chat server:
// dialing, the authentication handshake, automatic reconnection, and the
// translation of wire frames into a closed set of tagged events.
package transport

import (
	"context"

	"tablechat/chat"
)

// TokenFunc supplies the bearer token for a handshake. It is invoked on
// every dial, so reconnects pick up refreshed tokens.
type TokenFunc func(ctx context.Context) (string, error)

// Credentials associate a connection with an identity. The token rides the
// handshake as a bearer header; the user id is announced with a register
// frame once the socket is up.
type Credentials struct {
	UserID string
	Token  TokenFunc
}

// Reply is a server acknowledgment to a Call. Message is populated for
// send-message commands, where the server returns the canonical message
// carrying its assigned id.
type Reply struct {
	Message *chat.Message
}

// Transport is the connection-manager port. The websocket Socket is the
// production adapter; tests drive the client with an in-memory fake.
//
// Call suspends the caller until the server acknowledges or rejects the
// command. Cast is fire-and-forget for cheap idempotent signals (typing).
// Both fail fast with chat.ErrNotConnected while the link is down;
// deferral of membership commands is the client's job, not the socket's.
type Transport interface {
	Connect(ctx context.Context, creds Credentials) error
	Close() error
	Call(ctx context.Context, cmd Command) (*Reply, error)
	Cast(cmd Command) error
	Events() <-chan Inbound
}
