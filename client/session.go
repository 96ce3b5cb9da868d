package client

import (
	"context"
	"errors"
	"io"
	"sync"

	"tablechat/chat"
	"tablechat/transport"
)

// JoinRoom marks the room active, issues a join command, focuses the room
// for unread accounting, and starts a history backfill. It returns a
// Session whose Close deterministically reverses all of that. Repeated
// joins for the same room (screen re-entry) share one server-side
// membership and never issue duplicate join commands.
//
// While disconnected the join is deferred: the room enters the active set
// immediately and the command reaches the wire on the next (re)connect.
func (c *Client) JoinRoom(ctx context.Context, roomID string) (*Session, error) {
	if roomID == "" {
		return nil, errors.New("client: join: room id is required")
	}

	var first bool
	if err := c.do(func() {
		first = c.rooms.join(roomID)
		c.dir.Focus(roomID)
	}); err != nil {
		return nil, err
	}

	if first {
		callCtx, cancel := c.withTimeout(ctx)
		_, err := c.tr.Call(callCtx, transport.JoinRoom(roomID))
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, chat.ErrNotConnected):
			// Deferred; the reconnect replay issues the join.
		default:
			_ = c.do(func() {
				c.rooms.drop(roomID)
				c.dir.Unfocus(roomID)
			})
			return nil, err
		}
	}

	s := newSession(c, roomID)
	go c.backfill(roomID)
	return s, nil
}

// LeaveRoom force-leaves a room regardless of how many sessions reference
// it. A no-op if the room is not active. Prefer Session.Close for
// screen-scoped teardown.
func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return errors.New("client: leave: room id is required")
	}

	var wasActive bool
	if err := c.do(func() {
		wasActive = c.rooms.drop(roomID)
		if wasActive {
			c.typing.DropRoom(roomID)
			c.dir.Unfocus(roomID)
		}
	}); err != nil {
		return err
	}
	if !wasActive {
		return nil
	}
	return c.sendLeave(ctx, roomID)
}

// release drops one session's reference; the last one out turns off the
// lights: typing timers cancelled, focus cleared, leave command sent.
func (c *Client) release(roomID string) {
	var last bool
	if err := c.do(func() {
		last = c.rooms.leave(roomID)
		if last {
			c.typing.DropRoom(roomID)
		}
		c.dir.Unfocus(roomID)
	}); err != nil {
		return
	}
	if last {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CallTimeout)
			defer cancel()
			_ = c.sendLeave(ctx, roomID)
		}()
	}
}

// sendLeave issues the leave command. An offline leave is complete
// already: server-side membership will not survive the reconnect, and the
// room is out of the replay set.
func (c *Client) sendLeave(ctx context.Context, roomID string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.tr.Call(ctx, transport.LeaveRoom(roomID))
	if err != nil && !errors.Is(err, chat.ErrNotConnected) {
		c.log.Debug().Err(err).Str("room_id", roomID).Msg("leave command failed")
		return err
	}
	return nil
}

// Session is a scoped handle on one joined room. Events() carries only
// this room's message and typing events; Close cancels the subscription,
// the room's typing-expiry timers, and the server-side membership (when
// this is the last session on the room), so nothing for a torn-down
// screen fires afterwards.
type Session struct {
	client *Client
	roomID string
	out    chan chat.Event
	done   chan struct{}
	once   sync.Once
	unsubs []func()
}

func newSession(c *Client, roomID string) *Session {
	s := &Session{
		client: c,
		roomID: roomID,
		out:    make(chan chat.Event, eventStreamBuffer),
		done:   make(chan struct{}),
	}
	msgCh, cancelMsg := c.msgEvents.Subscribe()
	typCh, cancelTyp := c.typEvents.Subscribe()
	s.unsubs = []func(){cancelMsg, cancelTyp}
	go s.forward(msgCh, typCh)
	return s
}

// RoomID identifies the room this session is scoped to.
func (s *Session) RoomID() string {
	return s.roomID
}

// Events is the room-scoped event stream. Closed when the session closes.
func (s *Session) Events() <-chan chat.Event {
	return s.out
}

// Messages returns the room's current ordered message snapshot,
// tombstones included so the UI can render deleted-message placeholders
// in place.
func (s *Session) Messages() []chat.Message {
	var out []chat.Message
	_ = s.client.do(func() {
		if log, ok := s.client.store.Peek(s.roomID); ok {
			out = log.Snapshot()
		}
	})
	return out
}

// Typing returns who is currently typing in this room.
func (s *Session) Typing() []chat.TypingIndicator {
	var out []chat.TypingIndicator
	_ = s.client.do(func() {
		out = s.client.typing.Typing(s.roomID)
	})
	return out
}

// Send transmits a text message to this room.
func (s *Session) Send(ctx context.Context, body string) (*chat.Message, error) {
	return s.client.SendMessage(ctx, s.roomID, body)
}

// SendImage uploads image data and sends a message referencing it.
func (s *Session) SendImage(ctx context.Context, body, filename string, image io.Reader) (*chat.Message, error) {
	return s.client.SendImageMessage(ctx, s.roomID, body, filename, image)
}

// Edit replaces a message body in this room.
func (s *Session) Edit(ctx context.Context, messageID, newBody string) error {
	return s.client.EditMessage(ctx, s.roomID, messageID, newBody)
}

// Delete tombstones a message in this room.
func (s *Session) Delete(ctx context.Context, messageID string) error {
	return s.client.DeleteMessage(ctx, s.roomID, messageID)
}

// SetTyping signals the local user's typing state in this room.
func (s *Session) SetTyping(isTyping bool) error {
	return s.client.SetTyping(s.roomID, isTyping)
}

// Close tears the session down. Idempotent.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		for _, unsub := range s.unsubs {
			unsub()
		}
		s.client.release(s.roomID)
	})
}

func (s *Session) forward(msgCh <-chan chat.Event, typCh <-chan chat.TypingEvent) {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-msgCh:
			if !ok {
				return
			}
			if eventRoom(ev) == s.roomID {
				s.push(ev)
			}
		case ev, ok := <-typCh:
			if !ok {
				return
			}
			if ev.RoomID == s.roomID {
				s.push(ev)
			}
		}
	}
}

// push delivers without ever blocking the forwarder; a stalled consumer
// loses its oldest undrained event instead.
func (s *Session) push(ev chat.Event) {
	for {
		select {
		case s.out <- ev:
			return
		default:
			select {
			case <-s.out:
			default:
			}
		}
	}
}

func eventRoom(ev chat.Event) string {
	switch ev := ev.(type) {
	case chat.MessageEvent:
		return ev.Message.RoomID
	case chat.MessageEditedEvent:
		return ev.RoomID
	case chat.MessageDeletedEvent:
		return ev.RoomID
	case chat.BackfillEvent:
		return ev.RoomID
	case chat.TypingEvent:
		return ev.RoomID
	default:
		return ""
	}
}
