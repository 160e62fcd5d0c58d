package panel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"lamp_control/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeRelay accepts one panel socket at a time, records every frame it receives and
// can push frames back.
type fakeRelay struct {
	srv      *httptest.Server
	raw      chan string
	accepted chan struct{}

	mu    sync.Mutex
	conn  *websocket.Conn
	paths []string
}

func newFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()
	r := &fakeRelay{
		raw:      make(chan string, 256),
		accepted: make(chan struct{}, 8),
	}
	up := websocket.Upgrader{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := up.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.mu.Lock()
		r.conn = conn
		r.paths = append(r.paths, req.URL.RequestURI())
		r.mu.Unlock()
		r.accepted <- struct{}{}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			r.raw <- string(data)
		}
	}))
	t.Cleanup(func() {
		r.mu.Lock()
		if r.conn != nil {
			_ = r.conn.Close()
		}
		r.mu.Unlock()
		r.srv.Close()
	})
	return r
}

func (r *fakeRelay) url(path string) string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http") + path
}

func (r *fakeRelay) push(t *testing.T, v any) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotNil(t, r.conn, "no panel connected")
	require.NoError(t, r.conn.WriteJSON(v))
}

func (r *fakeRelay) pushRaw(t *testing.T, s string) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NoError(t, r.conn.WriteMessage(websocket.TextMessage, []byte(s)))
}

func (r *fakeRelay) requestedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func (r *fakeRelay) next(t *testing.T) models.Envelope {
	t.Helper()
	var env models.Envelope
	require.NoError(t, json.Unmarshal([]byte(r.nextRaw(t)), &env))
	return env
}

func (r *fakeRelay) nextRaw(t *testing.T) string {
	t.Helper()
	select {
	case s := <-r.raw:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("relay received nothing")
		return ""
	}
}

func (r *fakeRelay) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case s := <-r.raw:
		t.Fatalf("unexpected frame: %s", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func waitOpen(t *testing.T, s *Socket) {
	t.Helper()
	select {
	case <-s.Opened():
	case <-time.After(2 * time.Second):
		t.Fatalf("socket never opened, state=%s", s.State())
	}
}

func (r *fakeRelay) waitAccepted(t *testing.T) {
	t.Helper()
	select {
	case <-r.accepted:
	case <-time.After(2 * time.Second):
		t.Fatalf("relay never accepted a socket")
	}
}
