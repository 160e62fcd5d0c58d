package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lamp_control/internal/models"
	"lamp_control/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const testDevice = "esp32-s3-device"

type wsFixture struct {
	t       *testing.T
	h       *Handler
	srv     *httptest.Server
	devices *mockDevices
	events  *mockEventLog
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	devices := newMockDevices()
	events := &mockEventLog{}
	h := newTestHandler(&service.Service{Devices: devices, EventLog: events, Authorization: &mockAuth{parseID: 1}}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go h.hub.Run(ctx)

	srv := httptest.NewServer(h.InitRoutes())
	t.Cleanup(func() {
		h.hub.Shutdown()
		srv.Close()
		cancel()
	})
	return &wsFixture{t: t, h: h, srv: srv, devices: devices, events: events}
}

// dial opens a socket and returns a channel fed by a background reader.
func (f *wsFixture) dial(path string) (*websocket.Conn, <-chan models.Envelope) {
	f.t.Helper()
	u := "ws" + strings.TrimPrefix(f.srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		f.t.Fatalf("dial %s: %v", path, err)
	}
	_ = resp.Body.Close()
	f.t.Cleanup(func() { _ = conn.Close() })

	ch := make(chan models.Envelope, 32)
	go func() {
		defer close(ch)
		for {
			var env models.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			ch <- env
		}
	}()
	return conn, ch
}

func (f *wsFixture) registerDevice(id string) (*websocket.Conn, <-chan models.Envelope) {
	f.t.Helper()
	conn, ch := f.dial("/ws/device")
	if err := conn.WriteJSON(models.Envelope{Type: models.TypeRegister, ID: id}); err != nil {
		f.t.Fatalf("register: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !f.h.hub.Online(id) {
		if time.Now().After(deadline) {
			f.t.Fatalf("device %q never came online", id)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn, ch
}

func expect(t *testing.T, ch <-chan models.Envelope, match func(models.Envelope) bool) models.Envelope {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				t.Fatalf("socket closed before expected frame")
			}
			if match(env) {
				return env
			}
		case <-timeout:
			t.Fatalf("timeout waiting for frame")
		}
	}
}

func ofType(typ string) func(models.Envelope) bool {
	return func(env models.Envelope) bool { return env.Type == typ }
}

// connectClient dials /ws/client and proves it is subscribed by round-tripping a
// control frame through the device.
func (f *wsFixture) connectClient(dev <-chan models.Envelope) (*websocket.Conn, <-chan models.Envelope) {
	f.t.Helper()
	conn, ch := f.dial("/ws/client")
	probe := models.DeviceState{Brightness: 1, Position: []int{0, 0, 0}}
	if err := conn.WriteJSON(models.ControlEnvelope(testDevice, probe)); err != nil {
		f.t.Fatalf("client control: %v", err)
	}
	expect(f.t, dev, ofType(models.TypeControl))
	return conn, ch
}

func TestWebSocket_DeviceStateReachesClientsAndStore(t *testing.T) {
	f := newWSFixture(t)
	dev, devCh := f.registerDevice(testDevice)
	_, clientCh := f.connectClient(devCh)

	dist := 42.5
	st := models.DeviceState{Power: true, Brightness: 75, Color: [3]int{255, 128, 0}, Position: []int{0, 50, 0}, Distance: &dist}
	if err := dev.WriteJSON(models.StateEnvelope(testDevice, st)); err != nil {
		t.Fatalf("device state: %v", err)
	}

	got := expect(t, clientCh, ofType(models.TypeState))
	if got.ID != testDevice || got.State == nil {
		t.Fatalf("unexpected broadcast: %+v", got)
	}
	if got.State.Brightness != 75 || got.State.Color != [3]int{255, 128, 0} || *got.State.Distance != 42.5 {
		t.Fatalf("state mismatch: %+v", *got.State)
	}

	stored, ok, _ := f.devices.LastState(context.Background(), testDevice)
	if !ok || stored.Brightness != 75 {
		t.Fatalf("state not stored: ok=%v %+v", ok, stored)
	}
}

func TestWebSocket_ClientControlIsForwarded(t *testing.T) {
	f := newWSFixture(t)
	_, devCh := f.registerDevice(testDevice)
	client, _ := f.connectClient(devCh)

	want := models.DeviceState{Power: true, Brightness: 30, Color: [3]int{1, 2, 3}, Position: []int{0, 0, 10}}
	if err := client.WriteJSON(models.ControlEnvelope(testDevice, want)); err != nil {
		t.Fatalf("control: %v", err)
	}
	got := expect(t, devCh, func(env models.Envelope) bool {
		return env.Type == models.TypeControl && env.State != nil && env.State.Brightness == 30
	})
	if got.ID != testDevice || got.State.Position[2] != 10 {
		t.Fatalf("unexpected control frame: %+v", got)
	}

	var sawControl bool
	for _, typ := range f.events.types() {
		if typ == models.EventControl {
			sawControl = true
		}
	}
	if !sawControl {
		t.Fatalf("expected a CONTROL event, got %v", f.events.types())
	}
}

func TestWebSocket_ControlForUnknownDevice(t *testing.T) {
	f := newWSFixture(t)
	client, ch := f.dial("/ws/client")

	if err := client.WriteJSON(models.ControlEnvelope("ghost", models.DeviceState{})); err != nil {
		t.Fatalf("control: %v", err)
	}
	got := expect(t, ch, ofType(models.TypeError))
	if got.Message != "Device not found" {
		t.Fatalf("error message: got %q", got.Message)
	}
}

func TestWebSocket_ReconnectGetsStoredStateAsControl(t *testing.T) {
	f := newWSFixture(t)
	_ = f.devices.RecordState(context.Background(), testDevice, models.DeviceState{Power: true, Brightness: 60, Position: []int{0, 0, 0}})

	_, devCh := f.registerDevice(testDevice)
	got := expect(t, devCh, ofType(models.TypeControl))
	if got.State == nil || got.State.Brightness != 60 || !got.State.Power {
		t.Fatalf("unexpected resend: %+v", got)
	}

	// a second registration replaces the first socket
	_, _ = f.registerDevice(testDevice)
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-devCh:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatalf("old device socket was not closed")
		}
	}
}

func TestWebSocket_ClientReplayOnConnect(t *testing.T) {
	f := newWSFixture(t)
	_ = f.devices.RecordState(context.Background(), testDevice, models.DeviceState{Brightness: 10, Position: []int{0, 0, 0}})

	_, ch := f.dial("/ws/client")
	got := expect(t, ch, ofType(models.TypeState))
	if got.ID != testDevice || got.State.Brightness != 10 {
		t.Fatalf("unexpected replay: %+v", got)
	}
}

func TestWebSocket_DeviceLogReachesAdmin(t *testing.T) {
	f := newWSFixture(t)
	_, adminCh := f.dial("/ws/admin")

	// wait until the admin socket is subscribed
	deadline := time.Now().Add(2 * time.Second)
	subscribed := false
	for !subscribed && time.Now().Before(deadline) {
		f.h.hub.BroadcastLog("probe")
		select {
		case env := <-adminCh:
			subscribed = env.Type == models.TypeLog
		case <-time.After(20 * time.Millisecond):
		}
	}
	if !subscribed {
		t.Fatalf("admin never subscribed")
	}

	dev, _ := f.registerDevice(testDevice)
	if err := dev.WriteJSON(models.Envelope{Type: models.TypeLog, ID: testDevice, Message: "boot ok"}); err != nil {
		t.Fatalf("log: %v", err)
	}
	expect(t, adminCh, func(env models.Envelope) bool {
		return env.Type == models.TypeLog && env.Message == "["+testDevice+"] boot ok"
	})
}

func TestWebSocket_InvalidRegisterClosesSocket(t *testing.T) {
	f := newWSFixture(t)
	conn, ch := f.dial("/ws/device")
	if err := conn.WriteJSON(models.Envelope{Type: models.TypeState}); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected the socket to close without frames")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("socket was not closed")
	}
	if types := f.events.types(); len(types) == 0 || types[0] != models.EventError {
		t.Fatalf("expected an ERROR event, got %v", types)
	}
}

func TestDevicesREST_ControlAndState(t *testing.T) {
	f := newWSFixture(t)
	do := func(method, path, body string) *http.Response {
		t.Helper()
		req, _ := http.NewRequest(method, f.srv.URL+path, bytes.NewBufferString(body))
		req.Header.Set("Authorization", "Bearer valid")
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		_ = resp.Body.Close()
		return resp
	}

	body := `{"power":true,"brightness":80,"color":[10,20,30],"auto_brightness":false,"position":[0,0,0]}`
	if resp := do(http.MethodPost, "/api/v1/devices/"+testDevice+"/control", body); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("offline control: expected 404, got %d", resp.StatusCode)
	}
	if resp := do(http.MethodGet, "/api/v1/devices/"+testDevice+"/state", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown state: expected 404, got %d", resp.StatusCode)
	}

	_, devCh := f.registerDevice(testDevice)
	if resp := do(http.MethodPost, "/api/v1/devices/"+testDevice+"/control", `{"brightness":101}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("out of range: expected 400, got %d", resp.StatusCode)
	}
	if resp := do(http.MethodPost, "/api/v1/devices/"+testDevice+"/control", body); resp.StatusCode != http.StatusOK {
		t.Fatalf("control: expected 200, got %d", resp.StatusCode)
	}
	got := expect(t, devCh, ofType(models.TypeControl))
	if got.State.Brightness != 80 || got.State.Color != [3]int{10, 20, 30} {
		t.Fatalf("unexpected control: %+v", got.State)
	}

	_ = f.devices.RecordState(context.Background(), testDevice, *got.State)
	if resp := do(http.MethodGet, "/api/v1/devices/"+testDevice+"/state", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("state: expected 200, got %d", resp.StatusCode)
	}
	if resp := do(http.MethodGet, "/api/v1/devices", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&service.Service{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}
}
