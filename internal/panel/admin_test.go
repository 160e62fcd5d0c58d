package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lamp_control/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrollback_KeepsMostRecent(t *testing.T) {
	sb := NewScrollback(DefaultScrollback)
	for i := 1; i <= 201; i++ {
		sb.Append(fmt.Sprintf("line %d", i))
	}
	lines := sb.Lines()
	require.Len(t, lines, 200)
	assert.Equal(t, "line 2", lines[0])
	assert.Equal(t, "line 201", lines[199])
}

func TestStaticGate(t *testing.T) {
	g := StaticGate{Secret: "admin"}
	_, err := g.Check(context.Background(), "admin")
	assert.NoError(t, err)
	_, err = g.Check(context.Background(), "Admin")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestAdminView_WrongSecretOpensNoSocket(t *testing.T) {
	relay := newFakeRelay(t)
	a := NewAdminView(relay.url("/ws/admin"), StaticGate{Secret: "admin"}, nil)

	err := a.Login(context.Background(), "guess")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, LoggedOut, a.State())
	assert.Nil(t, a.Socket())

	select {
	case <-relay.accepted:
		t.Fatalf("a socket was opened after a wrong secret")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAdminView_LoginStreamsLogs(t *testing.T) {
	relay := newFakeRelay(t)
	a := NewAdminView(relay.url("/ws/admin"), StaticGate{Secret: "admin"}, nil)
	t.Cleanup(a.Close)

	got := make(chan string, 512)
	a.OnLog(func(line string) { got <- line })

	require.ErrorIs(t, a.Login(context.Background(), "nope"), ErrAccessDenied)
	require.NoError(t, a.Login(context.Background(), "admin"))
	assert.Equal(t, LoggedIn, a.State())
	sock := a.Socket()
	require.NotNil(t, sock)
	waitOpen(t, sock)
	relay.waitAccepted(t)

	// a second login is a no-op and keeps the same socket
	require.NoError(t, a.Login(context.Background(), "admin"))
	assert.Same(t, sock, a.Socket())

	relay.push(t, models.Envelope{Type: models.TypeState, ID: "x"})
	relay.pushRaw(t, "garbage")
	for i := 1; i <= 201; i++ {
		relay.push(t, models.LogEnvelope(fmt.Sprintf("msg %d", i)))
	}
	for i := 1; i <= 201; i++ {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d log lines arrived", i-1)
		}
	}

	logs := a.Logs()
	require.Len(t, logs, 200)
	assert.Equal(t, "msg 2", logs[0])
	assert.Equal(t, "msg 201", logs[199])
	assert.Len(t, relay.requestedPaths(), 1)
}

func TestTokenGate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/sign-in" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var in signInRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.Header().Set("Content-Type", "application/json")
		if in.Username != "admin" || in.Password != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"tok-1"}`))
	}))
	defer srv.Close()

	g := TokenGate{RelayURL: srv.URL + "/", Username: "admin"}
	token, err := g.Check(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	_, err = g.Check(context.Background(), "wrong")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestTokenGate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := TokenGate{RelayURL: srv.URL}.Check(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAccessDenied))
}

type fixedGate struct{ token string }

func (g fixedGate) Check(context.Context, string) (string, error) { return g.token, nil }

func TestAdminView_TokenIsAttachedToLogSocket(t *testing.T) {
	relay := newFakeRelay(t)
	a := NewAdminView(relay.url("/ws/admin"), fixedGate{token: "abc"}, nil)
	t.Cleanup(a.Close)

	require.NoError(t, a.Login(context.Background(), "anything"))
	waitOpen(t, a.Socket())
	relay.waitAccepted(t)
	assert.Equal(t, []string{"/ws/admin?token=abc"}, relay.requestedPaths())
}

func TestAdminView_EmptyLogLinesAreSkipped(t *testing.T) {
	relay := newFakeRelay(t)
	a := NewAdminView(relay.url("/ws/admin"), StaticGate{Secret: "admin"}, nil)
	t.Cleanup(a.Close)

	got := make(chan string, 4)
	a.OnLog(func(line string) { got <- line })
	require.NoError(t, a.Login(context.Background(), "admin"))
	waitOpen(t, a.Socket())
	relay.waitAccepted(t)

	relay.pushRaw(t, `{"type":"log"}`)
	relay.push(t, models.LogEnvelope(""))
	relay.push(t, models.LogEnvelope("after"))

	select {
	case line := <-got:
		assert.Equal(t, "after", line)
	case <-time.After(2 * time.Second):
		t.Fatalf("log line not delivered")
	}
	assert.Equal(t, []string{"after"}, a.Logs())
}

// slowGate blocks until release is closed.
type slowGate struct {
	entered chan struct{}
	release chan struct{}
}

func newSlowGate() *slowGate {
	return &slowGate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *slowGate) Check(ctx context.Context, _ string) (string, error) {
	close(g.entered)
	select {
	case <-g.release:
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestAdminView_GateDoesNotHoldViewLock(t *testing.T) {
	relay := newFakeRelay(t)
	gate := newSlowGate()
	a := NewAdminView(relay.url("/ws/admin"), gate, nil)
	t.Cleanup(a.Close)

	errc := make(chan error, 1)
	go func() { errc <- a.Login(context.Background(), "word") }()
	<-gate.entered

	done := make(chan struct{})
	go func() {
		assert.Equal(t, LoggedOut, a.State())
		a.OnLog(func(string) {})
		assert.Nil(t, a.Socket())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("view accessors blocked behind the gate")
	}

	close(gate.release)
	require.NoError(t, <-errc)
	assert.Equal(t, LoggedIn, a.State())
	waitOpen(t, a.Socket())
	relay.waitAccepted(t)
}

func TestAdminView_CloseDuringLoginOpensNoSocket(t *testing.T) {
	relay := newFakeRelay(t)
	gate := newSlowGate()
	a := NewAdminView(relay.url("/ws/admin"), gate, nil)

	errc := make(chan error, 1)
	go func() { errc <- a.Login(context.Background(), "word") }()
	<-gate.entered

	a.Close()
	close(gate.release)
	require.ErrorIs(t, <-errc, ErrViewClosed)
	assert.Equal(t, LoggedOut, a.State())
	assert.Nil(t, a.Socket())
	assert.Empty(t, relay.requestedPaths())
}

func TestNewGate(t *testing.T) {
	assert.IsType(t, StaticGate{}, NewGate(GateConfig{Kind: GateStatic, Secret: "s"}))
	assert.IsType(t, TokenGate{}, NewGate(GateConfig{Kind: GateToken}))
}
