package panel

import (
	"sync"

	"lamp_control/internal/models"
)

// Step input bounds for one axis.
const (
	MinStep = 0
	MaxStep = 1000
)

// Initial local state shown before the first broadcast arrives.
const (
	defaultBrightness = 50
	defaultChannel    = 255
)

// ActionKind identifies a store update.
type ActionKind int

const (
	ActTogglePower ActionKind = iota
	ActSetPower
	ActSetBrightness
	ActSetColor
	ActToggleAutoBrightness
	ActToggleAutoPosition
	ActSetStepInput
	ActStep
	ActSetPosition
	ActApplyBroadcast
)

// Action is the single input of Store.Dispatch. Only the fields relevant to Kind are read.
type Action struct {
	Kind    ActionKind
	Axis    int
	Channel int // 0..2 for ActSetColor
	Value   int
	Sign    int // +1 or -1 for ActStep
	On      bool
	State   models.DeviceState // ActApplyBroadcast
}

// Outbound is the control state produced by a local action.
type Outbound struct {
	State models.DeviceState
	// Send is false for actions that only touch local inputs.
	Send bool
}

// Store holds the panel's local view of the device and the per-axis step inputs.
// All changes go through Dispatch.
type Store struct {
	axes         int
	mode         PositionMode
	autoPosition bool

	mu    sync.Mutex
	state models.DeviceState
	steps []int
}

func NewStore(cfg Config) *Store {
	s := &Store{
		axes:         cfg.Axes,
		mode:         cfg.PositionMode,
		autoPosition: cfg.AutoPosition,
		steps:        make([]int, cfg.Axes),
	}
	s.state = models.DeviceState{
		Brightness: defaultBrightness,
		Color:      [3]int{defaultChannel, defaultChannel, defaultChannel},
		Position:   make([]int, cfg.Axes),
	}
	if cfg.AutoPosition {
		s.state.AutoPosition = models.BoolPtr(false)
	}
	return s
}

// Dispatch applies a to the local state and returns what should be sent.
func (s *Store) Dispatch(a Action) Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch a.Kind {
	case ActTogglePower:
		s.state.Power = !s.state.Power
	case ActSetPower:
		s.state.Power = a.On
	case ActSetBrightness:
		s.state.Brightness = models.ClampInt(a.Value, models.MinBrightness, models.MaxBrightness)
	case ActSetColor:
		if a.Channel < 0 || a.Channel > 2 {
			return Outbound{}
		}
		s.state.Color[a.Channel] = models.ClampInt(a.Value, models.MinChannel, models.MaxChannel)
	case ActToggleAutoBrightness:
		s.state.AutoBrightness = !s.state.AutoBrightness
	case ActToggleAutoPosition:
		if !s.autoPosition {
			return Outbound{}
		}
		next := s.state.AutoPosition == nil || !*s.state.AutoPosition
		s.state.AutoPosition = models.BoolPtr(next)
	case ActSetStepInput:
		if s.validAxis(a.Axis) {
			s.steps[a.Axis] = models.ClampInt(a.Value, MinStep, MaxStep)
		}
		return Outbound{}
	case ActStep:
		return s.step(a.Axis, a.Sign)
	case ActSetPosition:
		return s.setPosition(a.Axis, a.Value)
	case ActApplyBroadcast:
		s.applyBroadcast(a.State)
		return Outbound{}
	default:
		return Outbound{}
	}
	return Outbound{State: s.outbound(nil), Send: true}
}

// Current builds the control state for the local record without any position change.
func (s *Store) Current() models.DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outbound(nil)
}

// State returns a copy of the local record, distance included.
func (s *Store) State() models.DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// StepInputs returns a copy of the per-axis step amounts.
func (s *Store) StepInputs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.steps...)
}

func (s *Store) validAxis(axis int) bool { return axis >= 0 && axis < s.axes }

func (s *Store) step(axis, sign int) Outbound {
	if !s.validAxis(axis) || (sign != 1 && sign != -1) {
		return Outbound{}
	}
	amount := sign * s.steps[axis]
	for i := range s.steps {
		s.steps[i] = 0
	}
	if s.mode == PositionAbsolute {
		s.state.Position[axis] += amount
		return Outbound{State: s.outbound(nil), Send: true}
	}
	delta := make([]int, s.axes)
	delta[axis] = amount
	return Outbound{State: s.outbound(delta), Send: true}
}

// setPosition targets an absolute axis value. In relative mode the value is sent
// as a one-axis delta instead.
func (s *Store) setPosition(axis, value int) Outbound {
	if !s.validAxis(axis) {
		return Outbound{}
	}
	if s.mode == PositionAbsolute {
		s.state.Position[axis] = value
		return Outbound{State: s.outbound(nil), Send: true}
	}
	delta := make([]int, s.axes)
	delta[axis] = value
	return Outbound{State: s.outbound(delta), Send: true}
}

func (s *Store) applyBroadcast(st models.DeviceState) {
	next := st.Clone()
	if s.mode == PositionRelative {
		next.Position = make([]int, s.axes)
	} else {
		next.NormalizePosition(s.axes)
	}
	if s.autoPosition && next.AutoPosition == nil {
		next.AutoPosition = models.BoolPtr(false)
	}
	if !s.autoPosition {
		next.AutoPosition = nil
	}
	s.state = next
	for i := range s.steps {
		s.steps[i] = 0
	}
}

// outbound copies the local record for sending. position overrides the tuple; nil
// means the zero vector in relative mode and the last-known tuple in absolute mode.
func (s *Store) outbound(position []int) models.DeviceState {
	out := s.state.Clone()
	out.Distance = nil
	switch {
	case position != nil:
		out.Position = position
	case s.mode == PositionRelative:
		out.Position = make([]int, s.axes)
	}
	return out
}
