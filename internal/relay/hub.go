package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"lamp_control/internal/logger"
	"lamp_control/internal/models"
	"lamp_control/internal/service"

	"github.com/gorilla/websocket"
)

// ErrDeviceOffline is returned when a control frame targets a device with no live socket.
var ErrDeviceOffline = errors.New("device not found")

// deviceNotFoundMsg is the text clients get back for an unroutable control frame.
const deviceNotFoundMsg = "Device not found"

// Mirror receives a copy of every state broadcast and log line, e.g. to republish over MQTT.
type Mirror interface {
	PublishState(deviceID string, st models.DeviceState)
	PublishLog(line string)
}

type noopMirror struct{}

func (noopMirror) PublishState(string, models.DeviceState) {}
func (noopMirror) PublishLog(string)                       {}

// Hub brokers between device sockets and browser/panel sockets.
type Hub struct {
	devices service.Devices
	events  service.EventLog
	feed    *LogFeed
	mirror  Mirror
	log     *logger.Logger

	// stateMu orders state record+broadcast against client register+replay, so a
	// joining client never sees a stored state after a newer broadcast.
	stateMu sync.Mutex

	mu      sync.Mutex
	online  map[string]*peer
	clients map[*peer]struct{}
}

// NewHub wires the hub. feed may be shared with the logger so relay log lines reach
// log subscribers; mirror may be nil.
func NewHub(devices service.Devices, events service.EventLog, feed *LogFeed, mirror Mirror, log *logger.Logger) *Hub {
	if feed == nil {
		feed = NewLogFeed(0)
	}
	if mirror == nil {
		mirror = noopMirror{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		devices: devices,
		events:  events,
		feed:    feed,
		mirror:  mirror,
		log:     log,
		online:  make(map[string]*peer),
		clients: make(map[*peer]struct{}),
	}
}

// Run drains the log feed to every subscriber until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-h.feed.Lines():
			h.fanOut(models.LogEnvelope(line), nil)
			h.mirror.PublishLog(line)
		}
	}
}

// BroadcastLog queues a line for every log subscriber.
func (h *Hub) BroadcastLog(line string) { h.feed.Publish(line) }

// ServeDevice runs the device side of the protocol until the socket closes.
// The first frame must register the device id.
func (h *Hub) ServeDevice(ctx context.Context, conn *websocket.Conn) {
	p := newPeer(conn, kindDevice)
	defer p.close()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		h.log.Infow("device_register_read_failed", "err", err)
		return
	}
	var reg models.Envelope
	if err := json.Unmarshal(raw, &reg); err != nil || reg.Type != models.TypeRegister || reg.ID == "" {
		h.log.Warnw("device_register_invalid", "err", err, "raw", string(raw))
		h.record(ctx, "", models.EventError, "invalid register frame", map[string]any{"raw": string(raw)})
		return
	}
	id := reg.ID

	if old := h.attachDevice(id, p); old != nil {
		h.log.Infow("device_reconnect_closing_old", "device_id", id)
		old.close()
	}

	if st, ok, err := h.devices.LastState(ctx, id); err != nil {
		h.log.Errorw("device_last_state_failed", "device_id", id, "err", err)
	} else if ok {
		if err := p.send(models.ControlEnvelope(id, st)); err != nil {
			h.log.Infow("device_resend_state_failed", "device_id", id, "err", err)
		}
	}

	h.log.Infow("device_connected", "device_id", id)
	h.record(ctx, id, models.EventRegister, "device connected", nil)

	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			h.log.Infow("device_disconnected", "device_id", id, "err", err)
			break
		}
		switch env.Type {
		case models.TypeState:
			if env.State != nil {
				h.handleDeviceState(ctx, id, *env.State)
			}
		case models.TypeLog:
			if env.ID == id && env.State == nil && env.Message != "" {
				h.BroadcastLog("[" + id + "] " + env.Message)
			}
		}
	}

	h.detachDevice(id, p)
	h.record(ctx, id, models.EventDisconnect, "device disconnected", nil)
}

func (h *Hub) handleDeviceState(ctx context.Context, id string, st models.DeviceState) {
	h.stateMu.Lock()
	if err := h.devices.RecordState(ctx, id, st); err != nil {
		h.log.Errorw("device_state_save_failed", "device_id", id, "err", err)
	}
	h.fanOut(models.StateEnvelope(id, st), func(p *peer) bool { return p.kind == kindClient })
	h.stateMu.Unlock()
	h.mirror.PublishState(id, st)
	h.log.Debugw("device_state_broadcast", "device_id", id)
}

// ServeClient runs a control client: stored states are replayed on connect and
// control frames are forwarded to their device.
func (h *Hub) ServeClient(ctx context.Context, conn *websocket.Conn) {
	p := newPeer(conn, kindClient)
	defer p.close()

	defer h.removeClient(p)
	if err := h.joinClient(ctx, p); err != nil {
		return
	}

	h.log.Infow("client_connected")
	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			h.log.Infow("client_disconnected", "err", err)
			return
		}
		if env.Type != models.TypeControl || env.ID == "" || env.State == nil {
			continue
		}
		if err := h.Forward(ctx, env.ID, *env.State); errors.Is(err, ErrDeviceOffline) {
			_ = p.send(models.Envelope{Type: models.TypeError, Message: deviceNotFoundMsg})
		}
	}
}

// joinClient registers p and replays every stored state to it.
func (h *Hub) joinClient(ctx context.Context, p *peer) error {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	h.addClient(p)
	recs, err := h.devices.States(ctx)
	if err != nil {
		h.log.Errorw("client_replay_failed", "err", err)
	}
	for _, rec := range recs {
		if err := p.send(models.StateEnvelope(rec.DeviceID, rec.State)); err != nil {
			return err
		}
	}
	return nil
}

// ServeAdmin streams log lines only. Anything the admin sends is discarded.
func (h *Hub) ServeAdmin(conn *websocket.Conn) {
	p := newPeer(conn, kindAdmin)
	defer p.close()

	h.addClient(p)
	defer h.removeClient(p)

	h.log.Infow("admin_connected")
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.log.Infow("admin_disconnected", "err", err)
			return
		}
	}
}

// Forward sends a control frame to the device's live socket.
func (h *Hub) Forward(ctx context.Context, id string, st models.DeviceState) error {
	h.mu.Lock()
	dev, ok := h.online[id]
	h.mu.Unlock()
	if !ok {
		h.log.Warnw("control_device_not_found", "device_id", id)
		h.record(ctx, id, models.EventError, "control for offline device", nil)
		return ErrDeviceOffline
	}
	if err := dev.send(models.ControlEnvelope(id, st)); err != nil {
		h.log.Infow("control_forward_failed", "device_id", id, "err", err)
		return err
	}
	h.log.Debugw("control_forwarded", "device_id", id)
	h.record(ctx, id, models.EventControl, "control forwarded", st)
	return nil
}

// Online reports whether a device currently holds a socket.
func (h *Hub) Online(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.online[id]
	return ok
}

// Devices returns every stored device with its online flag filled in.
func (h *Hub) Devices(ctx context.Context) ([]models.DeviceRecord, error) {
	recs, err := h.devices.States(ctx)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range recs {
		_, recs[i].Online = h.online[recs[i].DeviceID]
	}
	return recs, nil
}

// Shutdown closes every socket.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.online)+len(h.clients))
	for _, p := range h.online {
		peers = append(peers, p)
	}
	for p := range h.clients {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		p.close()
	}
}

// attachDevice stores p as the live socket for id and returns the one it replaced.
func (h *Hub) attachDevice(id string, p *peer) *peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.online[id]
	h.online[id] = p
	return old
}

// detachDevice removes id only if p is still the live socket; a reconnect may
// already have replaced it.
func (h *Hub) detachDevice(id string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.online[id] == p {
		delete(h.online, id)
	}
}

func (h *Hub) addClient(p *peer) {
	h.mu.Lock()
	h.clients[p] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) removeClient(p *peer) {
	h.mu.Lock()
	delete(h.clients, p)
	h.mu.Unlock()
}

// fanOut writes v to every subscriber accepted by filter (all when nil). Writes
// happen outside the lock; a failed peer closes itself and its reader cleans up.
func (h *Hub) fanOut(v any, filter func(*peer) bool) {
	h.mu.Lock()
	targets := make([]*peer, 0, len(h.clients))
	for p := range h.clients {
		if filter == nil || filter(p) {
			targets = append(targets, p)
		}
	}
	h.mu.Unlock()
	for _, p := range targets {
		_ = p.send(v)
	}
}

func (h *Hub) record(ctx context.Context, id, typ, desc string, meta any) {
	if h.events == nil {
		return
	}
	err := h.events.Record(ctx, models.DeviceEvent{DeviceID: id, Type: typ, Description: desc, Metadata: meta})
	if err != nil {
		h.log.Errorw("event_record_failed", "type", typ, "device_id", id, "err", err)
	}
}
