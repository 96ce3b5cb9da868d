package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"tablechat/chat"
	"tablechat/transport"
)

// SendMessage transmits a text message and suspends until the server
// assigns it a canonical id. The returned message is already appended to
// the room log; the later broadcast echo carrying the same id is
// discarded, so the collection holds exactly one entry per id. Sends
// while offline fail explicitly with chat.ErrNotConnected.
func (c *Client) SendMessage(ctx context.Context, roomID, body string) (*chat.Message, error) {
	return c.send(ctx, roomID, body, "")
}

// SendImageMessage uploads image data to the hosting service, then sends
// a message carrying the durable URL as its image reference.
func (c *Client) SendImageMessage(ctx context.Context, roomID, body, filename string, image io.Reader) (*chat.Message, error) {
	if c.uploader == nil {
		return nil, errors.New("client: no upload endpoint configured")
	}
	ref, err := c.uploader.Upload(ctx, filename, image)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, roomID, body, ref)
}

func (c *Client) send(ctx context.Context, roomID, body, imageRef string) (*chat.Message, error) {
	draft, err := chat.NewMessage(chat.Message{
		RoomID:   roomID,
		SenderID: c.identity.UserID,
		Body:     body,
		ImageRef: imageRef,
	})
	if err != nil {
		return nil, fmt.Errorf("client: send: %w", err)
	}

	var joined bool
	if err := c.do(func() { joined = c.rooms.isActive(roomID) }); err != nil {
		return nil, err
	}
	if !joined {
		return nil, chat.ErrRoomNotJoined
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	reply, err := c.tr.Call(ctx, transport.SendMessage(roomID, draft.Body, draft.ImageRef))
	if err != nil {
		return nil, err
	}
	if reply == nil || reply.Message == nil {
		return nil, errors.New("client: send reply carried no message")
	}

	m := *reply.Message
	_ = c.post(func() {
		if !c.store.Room(m.RoomID).Append(m) {
			// Broadcast echo beat the direct reply here; the log already
			// holds the entry.
			return
		}
		c.dir.Observe(m)
		c.msgEvents.Publish(chat.MessageEvent{Message: m})
		c.roomEvents.Publish(chat.RoomsEvent{Rooms: c.dir.Rooms()})
	})
	return &m, nil
}

// EditMessage replaces a message's body in place. The entry keeps its
// position and id; Edited is set. Rejections propagate to the caller and
// leave local state untouched.
func (c *Client) EditMessage(ctx context.Context, roomID, messageID, newBody string) error {
	if roomID == "" || messageID == "" {
		return errors.New("client: edit: room id and message id are required")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.tr.Call(ctx, transport.EditMessage(roomID, messageID, newBody)); err != nil {
		return err
	}
	return c.post(func() {
		if c.store.Room(roomID).Edit(messageID, newBody) {
			c.msgEvents.Publish(chat.MessageEditedEvent{
				RoomID:    roomID,
				MessageID: messageID,
				NewBody:   newBody,
			})
		}
	})
}

// DeleteMessage tombstones a message: the entry stays in the log with
// Deleted set and its body cleared, preserving order and ids for every
// observer.
func (c *Client) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	if roomID == "" || messageID == "" {
		return errors.New("client: delete: room id and message id are required")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.tr.Call(ctx, transport.DeleteMessage(roomID, messageID)); err != nil {
		return err
	}
	return c.post(func() {
		if c.store.Room(roomID).Delete(messageID) {
			c.msgEvents.Publish(chat.MessageDeletedEvent{
				RoomID:    roomID,
				MessageID: messageID,
			})
		}
	})
}

// SetTyping transmits a typing-presence signal. Cheap to call on every
// keystroke: true signals are coalesced per room so at most one frame per
// configured interval reaches the wire, and false signals always pass.
// Typing is ephemeral, so an offline call is a successful no-op.
func (c *Client) SetTyping(roomID string, isTyping bool) error {
	if roomID == "" {
		return errors.New("client: typing: room id is required")
	}
	if isTyping && !c.limiter(roomID).Allow() {
		return nil
	}
	if !isTyping {
		c.resetLimiter(roomID)
	}

	err := c.tr.Cast(transport.Typing(roomID, isTyping))
	if errors.Is(err, chat.ErrNotConnected) {
		return nil
	}
	return err
}

func (c *Client) limiter(roomID string) *rate.Limiter {
	c.limMu.Lock()
	defer c.limMu.Unlock()
	lim, ok := c.limiters[roomID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(c.cfg.TypingInterval), 1)
		c.limiters[roomID] = lim
	}
	return lim
}

// resetLimiter discards a room's limiter so the next true signal after a
// stop is transmitted immediately.
func (c *Client) resetLimiter(roomID string) {
	c.limMu.Lock()
	delete(c.limiters, roomID)
	c.limMu.Unlock()
}
