package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tablechat/chat"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 1 << 20 // 1MB payload cap

	handshakeTimeout = 10 * time.Second
	minBackoff       = time.Second
	defaultBackoff   = 30 * time.Second

	sendBuffer  = 128
	eventBuffer = 256
)

type callResult struct {
	reply *Reply
	err   error
}

// Socket is the websocket Transport adapter. It owns exactly one
// connection at a time and keeps redialing with exponential backoff until
// Close is called. Commands are correlated with their replies by frame id;
// everything else the server pushes is decoded into tagged Inbound events.
type Socket struct {
	url        string
	log        zerolog.Logger
	dialer     *websocket.Dialer
	maxBackoff time.Duration

	events    chan Inbound
	closed    chan struct{}
	closeOnce sync.Once
	ready     chan struct{}
	readyOnce sync.Once

	mu      sync.Mutex
	creds   Credentials
	status  chat.ConnectionStatus
	conn    *websocket.Conn
	send    chan []byte   // rebuilt on every (re)dial
	epoch   chan struct{} // closed when the current connection dies
	pending map[string]chan callResult
	started bool
}

// SocketOption customizes a Socket.
type SocketOption func(*Socket)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) SocketOption {
	return func(s *Socket) { s.log = log }
}

// WithMaxBackoff caps the reconnect delay.
func WithMaxBackoff(d time.Duration) SocketOption {
	return func(s *Socket) {
		if d > 0 {
			s.maxBackoff = d
		}
	}
}

// WithDialer replaces the websocket dialer (proxy/TLS tuning).
func WithDialer(d *websocket.Dialer) SocketOption {
	return func(s *Socket) {
		if d != nil {
			s.dialer = d
		}
	}
}

// NewSocket constructs a Socket for the given ws:// or wss:// URL. No I/O
// happens until Connect.
func NewSocket(url string, opts ...SocketOption) *Socket {
	s := &Socket{
		url:        url,
		log:        zerolog.Nop(),
		dialer:     &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		maxBackoff: defaultBackoff,
		events:     make(chan Inbound, eventBuffer),
		closed:     make(chan struct{}),
		ready:      make(chan struct{}),
		pending:    make(map[string]chan callResult),
		status:     chat.Disconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ensure interface compliance at compile time
var _ Transport = (*Socket)(nil)

// Connect starts the connection loop and blocks until the first successful
// handshake, context expiry, or Close. Calling it again while already
// connecting or connected is a no-op.
func (s *Socket) Connect(ctx context.Context, creds Credentials) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
	} else {
		s.started = true
		s.creds = creds
		s.mu.Unlock()
		go s.run()
	}

	select {
	case <-s.ready:
		return nil
	case <-s.closed:
		return chat.ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("transport: connect: %w", ctx.Err())
	}
}

// Events returns the inbound event stream. The channel is never closed;
// after Close no further events are delivered.
func (s *Socket) Events() <-chan Inbound {
	return s.events
}

// Call transmits cmd and suspends until the server acknowledges it,
// the context expires, or the connection drops.
func (s *Socket) Call(ctx context.Context, cmd Command) (*Reply, error) {
	s.mu.Lock()
	if s.status != chat.Connected {
		s.mu.Unlock()
		return nil, chat.ErrNotConnected
	}
	send, epoch := s.send, s.epoch
	s.mu.Unlock()
	return s.call(ctx, send, epoch, cmd)
}

// call is the status-free body of Call; the register handshake uses it
// before the socket is marked connected.
func (s *Socket) call(ctx context.Context, send chan []byte, epoch chan struct{}, cmd Command) (*Reply, error) {
	id := uuid.NewString()
	payload, err := encodeCommand(id, cmd)
	if err != nil {
		return nil, fmt.Errorf("transport: encode %s: %w", cmd.Type, err)
	}

	ch := make(chan callResult, 1)
	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()

	select {
	case send <- payload:
	case <-epoch:
		s.dropPending(id)
		return nil, chat.ErrNotConnected
	case <-s.closed:
		s.dropPending(id)
		return nil, chat.ErrClosed
	case <-ctx.Done():
		s.dropPending(id)
		return nil, fmt.Errorf("transport: %s: %w", cmd.Type, ctx.Err())
	}

	select {
	case res := <-ch:
		return res.reply, res.err
	case <-s.closed:
		s.dropPending(id)
		return nil, chat.ErrClosed
	case <-ctx.Done():
		s.dropPending(id)
		return nil, fmt.Errorf("transport: %s: %w", cmd.Type, ctx.Err())
	}
}

// Cast transmits cmd without waiting for a reply. When the send buffer is
// full the frame is dropped: casts carry ephemeral signals that the next
// cast supersedes.
func (s *Socket) Cast(cmd Command) error {
	s.mu.Lock()
	if s.status != chat.Connected {
		s.mu.Unlock()
		return chat.ErrNotConnected
	}
	send, epoch := s.send, s.epoch
	s.mu.Unlock()

	payload, err := encodeCommand("", cmd)
	if err != nil {
		return fmt.Errorf("transport: encode %s: %w", cmd.Type, err)
	}

	select {
	case send <- payload:
	case <-epoch:
		return chat.ErrNotConnected
	default:
		s.log.Debug().Str("type", cmd.Type).Msg("send buffer full, cast dropped")
	}
	return nil
}

// Close tears the connection down and stops the redial loop. Safe to call
// when already closed or never connected.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.Lock()
		conn := s.conn
		s.status = chat.Disconnected
		s.mu.Unlock()
		if conn != nil {
			deadline := time.Now().Add(writeWait)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown"), deadline)
			_ = conn.Close()
		}
	})
	return nil
}

func (s *Socket) run() {
	backoff := minBackoff
	for {
		select {
		case <-s.closed:
			return
		default:
		}

		clean := s.runOnce()
		select {
		case <-s.closed:
			return
		default:
		}

		if clean {
			backoff = minBackoff
		}
		s.log.Debug().Dur("backoff", backoff).Msg("reconnecting")
		select {
		case <-time.After(backoff):
		case <-s.closed:
			return
		}
		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

// runOnce dials, performs the register handshake, and pumps frames until
// the connection fails. It reports whether a session was established, so
// the redial loop can reset its backoff after a healthy run.
func (s *Socket) runOnce() bool {
	s.setState(chat.ConnectionState{Status: chat.Connecting})

	s.mu.Lock()
	creds := s.creds
	s.mu.Unlock()

	header := http.Header{}
	if creds.Token != nil {
		tokenCtx, tokenCancel := context.WithTimeout(context.Background(), handshakeTimeout)
		token, err := creds.Token(tokenCtx)
		tokenCancel()
		if err != nil {
			s.setState(chat.ConnectionState{Status: chat.ConnectionError, Reason: err.Error()})
			return false
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := s.dialer.Dial(s.url, header)
	if err != nil {
		s.setState(chat.ConnectionState{Status: chat.ConnectionError, Reason: err.Error()})
		return false
	}

	send := make(chan []byte, sendBuffer)
	epoch := make(chan struct{})
	s.mu.Lock()
	s.conn = conn
	s.send = send
	s.epoch = epoch
	s.mu.Unlock()

	go s.writePump(conn, send, epoch)
	teardown := func() {
		close(epoch)
		_ = conn.Close()
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	registered := make(chan error, 1)
	go func() {
		_, err := s.call(ctx, send, epoch, Register(creds.UserID))
		registered <- err
	}()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// The register reply arrives through the read loop, so reading must
	// start before the handshake can resolve.
	readErr := make(chan error, 1)
	go func() { readErr <- s.readLoop(conn) }()

	select {
	case err = <-registered:
	case err = <-readErr:
		if err == nil {
			err = fmt.Errorf("connection closed during handshake")
		}
	}
	cancel()
	if err != nil {
		teardown()
		s.failPending(chat.ErrNotConnected)
		s.setState(chat.ConnectionState{Status: chat.ConnectionError, Reason: err.Error()})
		return false
	}

	s.setState(chat.ConnectionState{Status: chat.Connected})
	s.readyOnce.Do(func() { close(s.ready) })

	err = <-readErr
	teardown()
	s.failPending(chat.ErrNotConnected)
	if err != nil {
		s.log.Debug().Err(err).Msg("connection lost")
	}
	s.setState(chat.ConnectionState{Status: chat.Disconnected})
	return true
}

func (s *Socket) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return err
		}

		var f wireFrame
		if err := json.Unmarshal(data, &f); err != nil {
			s.log.Debug().Err(err).Msg("malformed frame discarded")
			continue
		}

		switch f.Type {
		case frameAck:
			s.resolve(f.ID, callResult{reply: &Reply{Message: f.Message}})
		case frameError:
			res := callResult{err: fmt.Errorf("%w: %s: %s", chat.ErrRejected, f.Code, f.Error)}
			if !s.resolve(f.ID, res) {
				s.log.Debug().Str("code", f.Code).Str("error", f.Error).Msg("unsolicited error frame")
			}
		default:
			ev, err := decodeBroadcast(f)
			if err != nil {
				s.log.Debug().Err(err).Msg("unroutable frame discarded")
				continue
			}
			s.emit(ev)
		}
	}
}

func (s *Socket) writePump(conn *websocket.Conn, send chan []byte, epoch chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-epoch:
			return
		case <-s.closed:
			return
		case payload := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (s *Socket) setState(state chat.ConnectionState) {
	s.mu.Lock()
	s.status = state.Status
	s.mu.Unlock()
	s.emit(StateChange{State: state})
}

func (s *Socket) emit(ev Inbound) {
	select {
	case s.events <- ev:
	case <-s.closed:
	}
}

func (s *Socket) resolve(id string, res callResult) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	ch <- res
	return true
}

func (s *Socket) dropPending(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *Socket) failPending(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]chan callResult)
	s.mu.Unlock()
	for _, ch := range pending {
		ch <- callResult{err: err}
	}
}
