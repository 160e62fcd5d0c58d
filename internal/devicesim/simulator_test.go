package devicesim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lamp_control/internal/models"

	"github.com/gorilla/websocket"
)

func TestSimulator_RegistersReportsAndAppliesControl(t *testing.T) {
	frames := make(chan models.Envelope, 64)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		controlSent := false
		for {
			var env models.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			frames <- env
			if env.Type == models.TypeRegister && !controlSent {
				controlSent = true
				_ = conn.WriteJSON(models.ControlEnvelope("lamp", models.DeviceState{Power: true, Brightness: 42, Position: []int{0, 10, 0}}))
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sim := NewSimulator("lamp", "ws"+strings.TrimPrefix(srv.URL, "http"), NewDevice(3, true), nil)
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx, 20*time.Millisecond) }()

	next := func() models.Envelope {
		t.Helper()
		select {
		case env := <-frames:
			return env
		case <-time.After(2 * time.Second):
			t.Fatalf("no frame from simulator")
			return models.Envelope{}
		}
	}

	if env := next(); env.Type != models.TypeRegister || env.ID != "lamp" {
		t.Fatalf("first frame must register, got %+v", env)
	}

	var sawLog, sawApplied bool
	for i := 0; i < 20 && !(sawLog && sawApplied); i++ {
		env := next()
		switch env.Type {
		case models.TypeLog:
			sawLog = env.ID == "lamp" && strings.Contains(env.Message, "control applied")
		case models.TypeState:
			if env.State != nil && env.State.Brightness == 42 && env.State.Position[1] == 10 {
				sawApplied = true
			}
		}
	}
	if !sawLog || !sawApplied {
		t.Fatalf("control not reflected: log=%v state=%v", sawLog, sawApplied)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}
