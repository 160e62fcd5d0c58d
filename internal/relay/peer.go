package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
)

type peerKind int

const (
	kindDevice peerKind = iota
	kindClient
	kindAdmin
)

// peer owns one websocket connection. gorilla allows a single concurrent writer,
// so every write goes through mu.
type peer struct {
	conn *websocket.Conn
	kind peerKind

	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newPeer(conn *websocket.Conn, kind peerKind) *peer {
	p := &peer{conn: conn, kind: kind, done: make(chan struct{})}
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go p.pingLoop()
	return p
}

func (p *peer) send(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := p.conn.WriteJSON(v); err != nil {
		p.close()
		return err
	}
	return nil
}

func (p *peer) pingLoop() {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-t.C:
			p.mu.Lock()
			err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			p.mu.Unlock()
			if err != nil {
				p.close()
				return
			}
		}
	}
}

// close is safe to call from any goroutine, any number of times.
func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}
