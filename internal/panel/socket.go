package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"lamp_control/internal/logger"

	"github.com/gorilla/websocket"
)

// SocketState is the lifecycle of one panel socket. There is no way back from Closed.
type SocketState int32

const (
	SocketConnecting SocketState = iota
	SocketOpen
	SocketClosed
)

func (s SocketState) String() string {
	switch s {
	case SocketConnecting:
		return "connecting"
	case SocketOpen:
		return "open"
	default:
		return "closed"
	}
}

const socketWriteWait = 10 * time.Second

// Socket owns one websocket to the relay. Sends are fire-and-forget: while the socket
// is not open they are dropped without error.
type Socket struct {
	url       string
	onMessage func([]byte)
	log       *logger.Logger

	state  atomic.Int32
	cancel context.CancelFunc

	mu   sync.Mutex // guards conn and serializes writes
	conn *websocket.Conn

	closeOnce sync.Once
	opened    chan struct{}
	done      chan struct{}
}

var panelDialer = &websocket.Dialer{Proxy: http.ProxyFromEnvironment}

// DialSocket starts connecting in the background and returns immediately. onMessage
// runs on the reader goroutine for every text frame, in arrival order. Cancelling ctx
// closes the socket.
func DialSocket(ctx context.Context, url string, onMessage func([]byte), log *logger.Logger) *Socket {
	if log == nil {
		log = logger.Nop()
	}
	dctx, cancel := context.WithCancel(ctx)
	s := &Socket{
		url:       url,
		onMessage: onMessage,
		log:       log,
		cancel:    cancel,
		opened:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.run(dctx)
	return s
}

func (s *Socket) run(ctx context.Context) {
	defer close(s.done)
	defer s.cancel()

	conn, resp, err := panelDialer.DialContext(ctx, s.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if s.setClosed() {
			s.log.Warnw("socket_dial_failed", "url", s.url, "err", err)
		}
		return
	}

	s.mu.Lock()
	if s.State() == SocketClosed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.state.Store(int32(SocketOpen))
	close(s.opened)
	s.mu.Unlock()
	s.log.Infow("socket_open", "url", s.url)

	// ctx also ends when run returns, so this never outlives the socket
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.State() != SocketClosed {
				s.log.Infow("socket_closed", "url", s.url, "err", err)
			}
			s.Close()
			return
		}
		if s.onMessage != nil {
			s.onMessage(data)
		}
	}
}

// State reports the current lifecycle state.
func (s *Socket) State() SocketState { return SocketState(s.state.Load()) }

// Opened is closed once the handshake succeeds.
func (s *Socket) Opened() <-chan struct{} { return s.opened }

// Done is closed once the background goroutine has exited.
func (s *Socket) Done() <-chan struct{} { return s.done }

// Send writes v as JSON if the socket is open. It reports whether the frame was written.
func (s *Socket) Send(v any) bool {
	if s.State() != SocketOpen {
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Errorw("socket_marshal_failed", "err", err)
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || s.State() != SocketOpen {
		return false
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		s.log.Warnw("socket_send_failed", "url", s.url, "err", err)
		s.closeLocked()
		return false
	}
	return true
}

// Close releases the socket. It is safe to call at any time, including while the
// dial is still in flight, and more than once.
func (s *Socket) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Socket) closeLocked() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(SocketClosed))
		s.cancel()
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// setClosed marks a failed dial; it reports false when Close already ran.
func (s *Socket) setClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	already := s.State() == SocketClosed
	s.closeLocked()
	return !already
}
