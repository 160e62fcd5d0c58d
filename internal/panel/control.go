package panel

import (
	"context"
	"encoding/json"
	"sync"

	"lamp_control/internal/logger"
	"lamp_control/internal/models"
)

// Slider names one of the continuous controls.
type Slider int

const (
	SliderBrightness Slider = iota
	SliderRed
	SliderGreen
	SliderBlue
)

// ParseSlider maps a command name to a Slider.
func ParseSlider(name string) (Slider, bool) {
	switch name {
	case "bri", "brightness":
		return SliderBrightness, true
	case "r", "red":
		return SliderRed, true
	case "g", "green":
		return SliderGreen, true
	case "b", "blue":
		return SliderBlue, true
	}
	return 0, false
}

func (s Slider) action(v int) Action {
	if s == SliderBrightness {
		return Action{Kind: ActSetBrightness, Value: v}
	}
	return Action{Kind: ActSetColor, Channel: int(s - SliderRed), Value: v}
}

// ControlView is the device control screen: it mirrors the relay's state broadcasts
// for one device and sends a full control frame for every local action.
type ControlView struct {
	cfg   Config
	store *Store
	log   *logger.Logger

	mu       sync.Mutex
	sock     *Socket
	onChange func(models.DeviceState)
	dragging map[Slider]int // last value moved to, per slider
}

func NewControlView(cfg Config, log *logger.Logger) *ControlView {
	if log == nil {
		log = logger.Nop()
	}
	return &ControlView{
		cfg:      cfg,
		store:    NewStore(cfg),
		log:      log,
		dragging: make(map[Slider]int),
	}
}

// Open connects to the relay. It does not wait for the handshake.
func (v *ControlView) Open(ctx context.Context) *Socket {
	sock := DialSocket(ctx, v.cfg.ControlURL, v.handleMessage, v.log)
	v.mu.Lock()
	v.sock = sock
	v.mu.Unlock()
	return sock
}

// Close releases the socket unconditionally.
func (v *ControlView) Close() {
	v.mu.Lock()
	sock := v.sock
	v.mu.Unlock()
	if sock != nil {
		sock.Close()
	}
}

// OnChange registers the render hook. It runs after every local action and broadcast.
func (v *ControlView) OnChange(fn func(models.DeviceState)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// State is the local record as it should be rendered.
func (v *ControlView) State() models.DeviceState { return v.store.State() }

// StepInputs returns the per-axis step amounts.
func (v *ControlView) StepInputs() []int { return v.store.StepInputs() }

func (v *ControlView) handleMessage(raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}
	switch env.Type {
	case models.TypeState:
		if env.ID != v.cfg.DeviceID {
			return
		}
		var st models.DeviceState
		if env.State != nil {
			st = *env.State
		}
		v.store.Dispatch(Action{Kind: ActApplyBroadcast, State: st})
		v.notify()
	case models.TypeError:
		v.log.Warnw("relay_error", "device_id", v.cfg.DeviceID, "message", env.Message)
	}
}

func (v *ControlView) TogglePower() bool { return v.apply(Action{Kind: ActTogglePower}) }

func (v *ControlView) ToggleAutoBrightness() bool {
	return v.apply(Action{Kind: ActToggleAutoBrightness})
}

// ToggleAutoPosition is a no-op unless the deployment has the auto_position flag.
func (v *ControlView) ToggleAutoPosition() bool {
	return v.apply(Action{Kind: ActToggleAutoPosition})
}

// MoveSlider updates the local value. Under the tick policy it also sends; under the
// release policy the send waits for ReleaseSlider.
func (v *ControlView) MoveSlider(s Slider, value int) bool {
	out := v.store.Dispatch(s.action(value))
	v.notify()
	if v.cfg.SliderPolicy == SliderOnTick {
		return v.send(out)
	}
	v.mu.Lock()
	v.dragging[s] = value
	v.mu.Unlock()
	return false
}

// ReleaseSlider ends a drag and, under the release policy, sends the last moved value.
// The value is applied again first; a broadcast that landed mid-drag must not win.
func (v *ControlView) ReleaseSlider(s Slider) bool {
	v.mu.Lock()
	last, moved := v.dragging[s]
	delete(v.dragging, s)
	v.mu.Unlock()
	if v.cfg.SliderPolicy != SliderOnRelease || !moved {
		return false
	}
	out := v.store.Dispatch(s.action(last))
	v.notify()
	return v.send(out)
}

// SetStepInput changes the transient step amount for one axis. Nothing is sent.
func (v *ControlView) SetStepInput(axis, value int) {
	v.store.Dispatch(Action{Kind: ActSetStepInput, Axis: axis, Value: value})
	v.notify()
}

// Step presses + (sign 1) or - (sign -1) on one axis.
func (v *ControlView) Step(axis, sign int) bool {
	return v.apply(Action{Kind: ActStep, Axis: axis, Sign: sign})
}

// SetPosition moves one axis to value in absolute mode, or by value in relative mode.
func (v *ControlView) SetPosition(axis, value int) bool {
	return v.apply(Action{Kind: ActSetPosition, Axis: axis, Value: value})
}

func (v *ControlView) apply(a Action) bool {
	out := v.store.Dispatch(a)
	v.notify()
	return v.send(out)
}

func (v *ControlView) send(out Outbound) bool {
	if !out.Send {
		return false
	}
	v.mu.Lock()
	sock := v.sock
	v.mu.Unlock()
	if sock == nil {
		return false
	}
	return sock.Send(models.ControlEnvelope(v.cfg.DeviceID, out.State))
}

func (v *ControlView) notify() {
	v.mu.Lock()
	fn := v.onChange
	v.mu.Unlock()
	if fn != nil {
		fn(v.store.State())
	}
}
