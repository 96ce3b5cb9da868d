// Package client is the realtime chat core: it owns the transport
// connection, reconciles message delivery paths, tracks typing presence
// and the room directory, and fans events out to UI observers.
//
// All mutable state is owned by a single event loop goroutine; transport
// events, command completions, and timer expiries are serialized onto it,
// so no two handlers for the same room ever run concurrently. Commands
// suspend their caller on the network round-trip, never the loop.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"tablechat/auth"
	"tablechat/chat"
	"tablechat/config"
	"tablechat/directory"
	"tablechat/fanout"
	"tablechat/history"
	"tablechat/media"
	"tablechat/presence"
	"tablechat/reconcile"
	"tablechat/transport"
)

const eventStreamBuffer = 64

// Client is an explicitly constructed chat core instance. Multiple
// independent instances may coexist; nothing is process-global.
type Client struct {
	cfg      config.Config
	identity auth.Identity
	tr       transport.Transport
	hist     *history.Client
	uploader *media.Uploader
	log      zerolog.Logger

	tasks     chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Loop-owned state; touched only from run().
	store     *reconcile.Store
	typing    *presence.Tracker
	dir       *directory.Directory
	rooms     *roomSet
	connState chat.ConnectionState

	msgEvents  *fanout.Broker[chat.Event]
	typEvents  *fanout.Broker[chat.TypingEvent]
	connEvents *fanout.Broker[chat.ConnectionEvent]
	roomEvents *fanout.Broker[chat.RoomsEvent]

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter

	sf singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTransport replaces the websocket transport. Tests drive the client
// with an in-memory fake through this.
func WithTransport(tr transport.Transport) Option {
	return func(c *Client) {
		if tr != nil {
			c.tr = tr
		}
	}
}

// WithHistory replaces the history service client.
func WithHistory(h *history.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.hist = h
		}
	}
}

// WithUploader replaces the image-hosting client.
func WithUploader(u *media.Uploader) Option {
	return func(c *Client) {
		if u != nil {
			c.uploader = u
		}
	}
}

// New constructs a Client. The event loop starts immediately; no network
// I/O happens until Connect.
func New(cfg *config.Config, identity auth.Identity, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("client: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      *cfg,
		identity: identity,
		log:      zerolog.Nop(),
		tasks:    make(chan func(), 256),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		store:    reconcile.NewStore(),
		dir:      directory.New(identity.UserID),
		rooms:    newRoomSet(),
		connState: chat.ConnectionState{
			Status: chat.Disconnected,
		},
		msgEvents:  fanout.NewBroker[chat.Event](eventStreamBuffer),
		typEvents:  fanout.NewBroker[chat.TypingEvent](eventStreamBuffer),
		connEvents: fanout.NewBroker[chat.ConnectionEvent](eventStreamBuffer),
		roomEvents: fanout.NewBroker[chat.RoomsEvent](eventStreamBuffer),
		limiters:   make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tr == nil {
		c.tr = transport.NewSocket(cfg.ServerURL,
			transport.WithLogger(c.log),
			transport.WithMaxBackoff(cfg.MaxBackoff))
	}
	if c.hist == nil {
		h, err := history.New(cfg.HistoryURL, cfg.Passcode, history.WithLogger(c.log))
		if err != nil {
			return nil, err
		}
		c.hist = h
	}
	if c.uploader == nil && cfg.UploadURL != "" {
		u, err := media.NewUploader(cfg.UploadURL, cfg.Passcode, media.WithLogger(c.log))
		if err != nil {
			return nil, err
		}
		c.uploader = u
	}

	// Expiries ride the loop like every other event, so an expiry firing
	// next to an incoming stop-typing cannot race it.
	c.typing = presence.NewTracker(identity.UserID, cfg.TypingTTL,
		func(d time.Duration, f func()) func() {
			return presence.AfterFunc(d, func() { _ = c.post(f) })
		})
	c.typing.OnExpire(c.publishTyping)

	go c.run()
	return c, nil
}

// Connect establishes the transport connection, authenticating with the
// identity's token source. Idempotent: calling while already connected or
// connecting is a no-op. The transport keeps reconnecting in the
// background after drops; active rooms are re-joined on every reconnect.
func (c *Client) Connect(ctx context.Context) error {
	return c.tr.Connect(ctx, transport.Credentials{
		UserID: c.identity.UserID,
		Token:  transport.TokenFunc(c.identity.Source.Token),
	})
}

// Close shuts the client down: transport closed, event loop stopped, all
// subscriptions terminated. Safe to call repeatedly.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.tr.Close()
		<-c.stopped
		c.msgEvents.Close()
		c.typEvents.Close()
		c.connEvents.Close()
		c.roomEvents.Close()
	})
	return nil
}

// post schedules f onto the event loop.
func (c *Client) post(f func()) error {
	select {
	case c.tasks <- f:
		return nil
	case <-c.done:
		return chat.ErrClosed
	}
}

// do schedules f onto the event loop and waits for it to finish.
func (c *Client) do(f func()) error {
	ran := make(chan struct{})
	if err := c.post(func() { f(); close(ran) }); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-c.stopped:
		return chat.ErrClosed
	}
}

func (c *Client) run() {
	defer close(c.stopped)
	events := c.tr.Events()
	for {
		select {
		case <-c.done:
			return
		case f := <-c.tasks:
			f()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.handle(ev)
		}
	}
}

// handle folds one transport event into loop-owned state. Reconciliation
// anomalies (duplicate ids, mutations for unknown ids, malformed frames)
// are logged and swallowed; they are expected under network jitter and
// must never surface to observers or crash the loop.
func (c *Client) handle(ev transport.Inbound) {
	switch ev := ev.(type) {
	case transport.StateChange:
		c.connState = ev.State
		c.connEvents.Publish(chat.ConnectionEvent{State: ev.State})
		if ev.State.Status == chat.Connected {
			active := c.rooms.active()
			go c.replayJoins(active)
			go func() { _, _ = c.RefreshRooms(context.Background()) }()
		}

	case transport.NewMessage:
		m := ev.Message
		if m.ID == "" || m.RoomID == "" {
			c.log.Debug().Msg("message without id discarded")
			return
		}
		if !c.store.Room(m.RoomID).Append(m) {
			c.log.Debug().Str("message_id", m.ID).Msg("duplicate delivery discarded")
			return
		}
		c.dir.Observe(m)
		c.msgEvents.Publish(chat.MessageEvent{Message: m})
		c.roomEvents.Publish(chat.RoomsEvent{Rooms: c.dir.Rooms()})

	case transport.MessageEdited:
		if !c.store.Room(ev.RoomID).Edit(ev.MessageID, ev.NewBody) {
			c.log.Debug().Str("message_id", ev.MessageID).Msg("edit for unknown message discarded")
			return
		}
		c.msgEvents.Publish(chat.MessageEditedEvent{
			RoomID:    ev.RoomID,
			MessageID: ev.MessageID,
			NewBody:   ev.NewBody,
		})

	case transport.MessageDeleted:
		if !c.store.Room(ev.RoomID).Delete(ev.MessageID) {
			c.log.Debug().Str("message_id", ev.MessageID).Msg("delete for unknown message discarded")
			return
		}
		c.msgEvents.Publish(chat.MessageDeletedEvent{
			RoomID:    ev.RoomID,
			MessageID: ev.MessageID,
		})

	case transport.UserTyping:
		if !c.rooms.isActive(ev.Indicator.RoomID) {
			// Room already left or never joined; nothing live to update.
			return
		}
		if c.typing.Apply(ev.Indicator) {
			c.publishTyping(ev.Indicator.RoomID)
		}
	}
}

func (c *Client) publishTyping(roomID string) {
	c.typEvents.Publish(chat.TypingEvent{
		RoomID: roomID,
		Typing: c.typing.Typing(roomID),
	})
}

// replayJoins re-issues join commands after a (re)connect, in first-join
// order. Failures are logged, not fatal: the room stays in the desired
// set and the next reconnect tries again.
func (c *Client) replayJoins(roomIDs []string) {
	for _, roomID := range roomIDs {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CallTimeout)
		_, err := c.tr.Call(ctx, transport.JoinRoom(roomID))
		cancel()
		if err != nil {
			c.log.Warn().Err(err).Str("room_id", roomID).Msg("join replay failed")
		}
	}
}

// backfill fetches a room's history and installs it as the authoritative
// prefix of the room log, keeping live messages that raced ahead of it.
func (c *Client) backfill(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CallTimeout)
	defer cancel()

	msgs, err := c.hist.GetMessages(ctx, roomID)
	if err != nil {
		c.log.Warn().Err(err).Str("room_id", roomID).Msg("history backfill failed")
		return
	}
	_ = c.post(func() {
		log := c.store.Room(roomID)
		log.Seed(msgs)
		c.msgEvents.Publish(chat.BackfillEvent{RoomID: roomID, Count: log.Len()})
	})
}

// RefreshRooms fetches the room directory. Concurrent callers (reconnect
// trigger, pull-to-refresh) collapse into one fetch. Returns the rooms
// ordered most-recent-conversation first.
func (c *Client) RefreshRooms(ctx context.Context) ([]chat.Room, error) {
	v, err, _ := c.sf.Do("rooms", func() (any, error) {
		if err := c.post(c.dir.BeginLoad); err != nil {
			return nil, err
		}

		rooms, err := c.hist.ListRooms(ctx, c.identity.UserID)
		if err != nil {
			_ = c.post(func() { c.dir.FailLoad(err) })
			return nil, fmt.Errorf("client: refresh rooms: %w", err)
		}

		var snapshot []chat.Room
		if err := c.do(func() {
			c.dir.CompleteLoad(rooms)
			snapshot = c.dir.Rooms()
			c.roomEvents.Publish(chat.RoomsEvent{Rooms: snapshot})
		}); err != nil {
			return nil, err
		}
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]chat.Room), nil
}

// CreateRoom creates a room on the history service and returns it with
// its server-assigned id. The new room shows up in the directory on the
// next refresh, which is triggered here.
func (c *Client) CreateRoom(ctx context.Context, room chat.Room) (*chat.Room, error) {
	room.CreatedBy = c.identity.UserID
	created, err := c.hist.CreateRoom(ctx, room)
	if err != nil {
		return nil, err
	}
	go func() { _, _ = c.RefreshRooms(context.Background()) }()
	return created, nil
}

// withTimeout bounds contexts that arrive without a deadline.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.CallTimeout)
}
