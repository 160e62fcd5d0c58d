package panel

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"lamp_control/internal/logger"
	"lamp_control/internal/models"
)

// ErrAccessDenied is returned for a wrong admin secret or rejected credentials.
var ErrAccessDenied = errors.New("access denied")

// ErrViewClosed is returned by Login once Close has run.
var ErrViewClosed = errors.New("admin view closed")

// Gate decides whether a submitted word unlocks the log viewer. A non-empty token is
// attached to the log socket.
type Gate interface {
	Check(ctx context.Context, word string) (token string, err error)
}

// StaticGate compares against a constant shipped with the panel. Anyone holding the
// binary can read the secret, so it is a UI gate only, not access control.
type StaticGate struct {
	Secret string
}

func (g StaticGate) Check(_ context.Context, word string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(word), []byte(g.Secret)) != 1 {
		return "", ErrAccessDenied
	}
	return "", nil
}

// TokenGate exchanges the word for a relay-issued token via POST /auth/sign-in.
type TokenGate struct {
	RelayURL string
	Username string
	Client   *http.Client
}

const signInTimeout = 10 * time.Second

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signInResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

func (g TokenGate) Check(ctx context.Context, word string) (string, error) {
	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: signInTimeout}
	}
	body, err := json.Marshal(signInRequest{Username: g.Username, Password: word})
	if err != nil {
		return "", err
	}
	endpoint := strings.TrimSuffix(g.RelayURL, "/") + "/auth/sign-in"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign-in: %w", err)
	}
	defer resp.Body.Close()

	var out signInResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return "", ErrAccessDenied
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("sign-in: unexpected status %d: %s", resp.StatusCode, out.Error)
	case out.Token == "":
		return "", errors.New("sign-in: empty token")
	}
	return out.Token, nil
}

// NewGate builds the gate selected by cfg.
func NewGate(cfg GateConfig) Gate {
	if cfg.Kind == GateToken {
		return TokenGate{RelayURL: cfg.RelayURL, Username: cfg.Username}
	}
	return StaticGate{Secret: cfg.Secret}
}

// AdminState is the log viewer's screen. LoggedIn is terminal.
type AdminState int

const (
	LoggedOut AdminState = iota
	LoggedIn
)

// AdminView is the password-gated log viewer.
type AdminView struct {
	logURL string
	gate   Gate
	log    *logger.Logger
	lines  *Scrollback

	mu     sync.Mutex
	state  AdminState
	closed bool
	sock   *Socket
	onLog  func(string)
}

func NewAdminView(logURL string, gate Gate, log *logger.Logger) *AdminView {
	if log == nil {
		log = logger.Nop()
	}
	return &AdminView{logURL: logURL, gate: gate, log: log, lines: NewScrollback(DefaultScrollback)}
}

func (a *AdminView) State() AdminState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Login submits word to the gate. On success the view moves to LoggedIn exactly once
// and opens the log socket, which lives until ctx ends or Close; later calls are
// no-ops. On failure nothing changes. The gate runs without the view lock held.
func (a *AdminView) Login(ctx context.Context, word string) error {
	a.mu.Lock()
	state, closed := a.state, a.closed
	a.mu.Unlock()
	switch {
	case closed:
		return ErrViewClosed
	case state == LoggedIn:
		return nil
	}

	token, err := a.gate.Check(ctx, word)
	if err != nil {
		if !errors.Is(err, ErrAccessDenied) {
			a.log.Warnw("admin_gate_failed", "err", err)
		}
		return err
	}
	target, err := withToken(a.logURL, token)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case a.closed:
		return ErrViewClosed
	case a.state == LoggedIn:
		return nil
	}
	a.state = LoggedIn
	a.sock = DialSocket(ctx, target, a.handleMessage, a.log)
	return nil
}

// Socket is the log socket, nil before login.
func (a *AdminView) Socket() *Socket {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sock
}

// OnLog registers a hook for every appended line.
func (a *AdminView) OnLog(fn func(string)) {
	a.mu.Lock()
	a.onLog = fn
	a.mu.Unlock()
}

// Logs returns the scrollback, oldest first.
func (a *AdminView) Logs() []string { return a.lines.Lines() }

// Close drops the log socket. A Login still waiting on the gate will not open one.
func (a *AdminView) Close() {
	a.mu.Lock()
	a.closed = true
	sock := a.sock
	a.mu.Unlock()
	if sock != nil {
		sock.Close()
	}
}

func (a *AdminView) handleMessage(raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type != models.TypeLog || env.Message == "" {
		return
	}
	a.lines.Append(env.Message)
	a.mu.Lock()
	fn := a.onLog
	a.mu.Unlock()
	if fn != nil {
		fn(env.Message)
	}
}

func withToken(raw, token string) (string, error) {
	if token == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse log url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
