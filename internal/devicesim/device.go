package devicesim

import (
	"fmt"
	"math"
	"sync"

	"lamp_control/internal/models"
)

// ----------- Simulation constants -----------
const (
	NearCm          = 10.0  // distance at which auto brightness bottoms out
	FarCm           = 200.0 // distance at which auto brightness peaks
	DriftCmPerSec   = 4.0   // how fast the simulated object moves
	AutoMinPercent  = 10    // auto brightness floor
	StepsPerCm      = 20    // position steps per cm when auto_position tracks distance
	MaxPositionStep = 100000
)

// Device is the simulated firmware state. Absolute motor counters are kept here
// even when the panel sends relative deltas.
type Device struct {
	axes     int
	relative bool

	mu        sync.Mutex
	state     models.DeviceState
	distance  float64
	direction float64
}

func NewDevice(axes int, relative bool) *Device {
	d := &Device{axes: axes, relative: relative, distance: FarCm / 2, direction: 1}
	d.state = models.DeviceState{
		Brightness: 50,
		Color:      [3]int{255, 255, 255},
		Position:   make([]int, axes),
	}
	if axes == 4 {
		d.state.AutoPosition = models.BoolPtr(false)
	}
	return d
}

// ApplyControl takes a control frame and returns a log line describing it.
func (d *Device) ApplyControl(in models.DeviceState) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	in.Clamp()
	d.state.Power = in.Power
	d.state.AutoBrightness = in.AutoBrightness
	if !in.AutoBrightness {
		d.state.Brightness = in.Brightness
	}
	d.state.Color = in.Color
	if d.state.AutoPosition != nil && in.AutoPosition != nil {
		d.state.AutoPosition = models.BoolPtr(*in.AutoPosition)
	}

	moved := false
	for i := 0; i < d.axes && i < len(in.Position); i++ {
		target := in.Position[i]
		if d.relative {
			if target == 0 {
				continue
			}
			target += d.state.Position[i]
		}
		target = models.ClampInt(target, -MaxPositionStep, MaxPositionStep)
		if target != d.state.Position[i] {
			d.state.Position[i] = target
			moved = true
		}
	}

	msg := fmt.Sprintf("control applied: power=%t brightness=%d", d.state.Power, d.state.Brightness)
	if moved {
		msg += fmt.Sprintf(" position=%v", d.state.Position)
	}
	return msg
}

// Tick advances the distance sensor and the auto modes by elapsed seconds.
func (d *Device) Tick(elapsed float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.distance += d.direction * DriftCmPerSec * elapsed
	if d.distance >= FarCm {
		d.distance, d.direction = FarCm, -1
	}
	if d.distance <= NearCm {
		d.distance, d.direction = NearCm, 1
	}

	if d.state.AutoBrightness {
		frac := (d.distance - NearCm) / (FarCm - NearCm)
		d.state.Brightness = AutoMinPercent + int(math.Round(frac*float64(models.MaxBrightness-AutoMinPercent)))
	}
	if d.state.AutoPosition != nil && *d.state.AutoPosition {
		d.state.Position[0] = int(math.Round(d.distance * StepsPerCm))
	}
}

// Report is the state frame payload, distance included.
func (d *Device) Report() models.DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.state.Clone()
	dist := math.Round(d.distance*10) / 10
	st.Distance = &dist
	return st
}
