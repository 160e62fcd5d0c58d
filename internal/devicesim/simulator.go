package devicesim

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"lamp_control/internal/logger"
	"lamp_control/internal/models"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Simulator connects a Device to the relay's /ws/device endpoint.
type Simulator struct {
	id     string
	url    string
	device *Device
	log    *logger.Logger

	mu   sync.Mutex // serializes writes
	conn *websocket.Conn
}

func NewSimulator(id, url string, device *Device, log *logger.Logger) *Simulator {
	if log == nil {
		log = logger.Nop()
	}
	return &Simulator{id: id, url: url, device: device, log: log}
}

// Run registers with the relay and reports state every tick until ctx is canceled or
// the relay drops the socket.
func (s *Simulator) Run(ctx context.Context, tick time.Duration) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return err
	}
	s.conn = conn
	defer conn.Close()

	if err := s.send(models.Envelope{Type: models.TypeRegister, ID: s.id}); err != nil {
		return err
	}
	s.log.Infow("device_registered", "device_id", s.id, "url", s.url)
	if err := s.report(); err != nil {
		return err
	}

	readErr := make(chan error, 1)
	go func() { readErr <- s.readLoop() }()

	t := time.NewTicker(tick)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			_ = s.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case err := <-readErr:
			return err
		case now := <-t.C:
			s.device.Tick(now.Sub(last).Seconds())
			last = now
			if err := s.report(); err != nil {
				return err
			}
		}
	}
}

func (s *Simulator) readLoop() error {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				return nil
			}
			return err
		}
		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.log.Warnw("device_bad_frame", "err", err)
			continue
		}
		if env.Type != models.TypeControl || env.State == nil || (env.ID != "" && env.ID != s.id) {
			continue
		}
		line := s.device.ApplyControl(*env.State)
		s.log.Debugw("device_control", "device_id", s.id, "msg", line)
		if err := s.send(models.Envelope{Type: models.TypeLog, ID: s.id, Message: line}); err != nil {
			return err
		}
		if err := s.report(); err != nil {
			return err
		}
	}
}

func (s *Simulator) report() error {
	return s.send(models.StateEnvelope(s.id, s.device.Report()))
}

func (s *Simulator) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *Simulator) writeControl(kind int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(kind, data, time.Now().Add(writeWait))
}
