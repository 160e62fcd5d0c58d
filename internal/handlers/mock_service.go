package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"lamp_control/internal/models"
	"lamp_control/internal/relay"
	"lamp_control/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

// mockDevices is an in-memory state store; the hub calls it from socket goroutines.
type mockDevices struct {
	mu      sync.Mutex
	states  map[string]models.DeviceState
	saved   int
	listErr error
	loadErr error
}

func newMockDevices() *mockDevices {
	return &mockDevices{states: make(map[string]models.DeviceState)}
}

func (m *mockDevices) RecordState(ctx context.Context, id string, st models.DeviceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id] = st.Clone()
	m.saved++
	return nil
}

func (m *mockDevices) LastState(ctx context.Context, id string) (models.DeviceState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return models.DeviceState{}, false, m.loadErr
	}
	st, ok := m.states[id]
	return st.Clone(), ok, nil
}

func (m *mockDevices) States(ctx context.Context) ([]models.DeviceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.DeviceRecord, 0, len(m.states))
	for id, st := range m.states {
		out = append(out, models.DeviceRecord{DeviceID: id, State: st.Clone()})
	}
	return out, nil
}

func (m *mockDevices) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}

type mockEventLog struct {
	mu       sync.Mutex
	resp     []models.DeviceEvent
	err      error
	recorded []models.DeviceEvent
	lastFrom time.Time
	lastTo   time.Time
	lastType string
	lastDev  string
}

func (m *mockEventLog) Record(ctx context.Context, e models.DeviceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, e)
	return nil
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.DeviceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastDev = f.DeviceID
	return m.resp, m.err
}

func (m *mockEventLog) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.recorded))
	for _, e := range m.recorded {
		out = append(out, e.Type)
	}
	return out
}

// ---- Shared Test Helpers ----

// newTestHandler fills missing sub-services with fakes and builds a real hub on top.
func newTestHandler(s *service.Service, opts Options) *Handler {
	if s.Devices == nil {
		s.Devices = newMockDevices()
	}
	if s.EventLog == nil {
		s.EventLog = &mockEventLog{}
	}
	if s.Authorization == nil {
		s.Authorization = &mockAuth{}
	}
	hub := relay.NewHub(s.Devices, s.EventLog, nil, nil, nil)
	return NewHandler(s, hub, opts, nil)
}

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return newTestHandler(s, Options{}).InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func withHeader(req *http.Request, hdr http.Header) *http.Request {
	for k, vv := range hdr {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}
