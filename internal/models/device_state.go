package models

import (
	"errors"
	"fmt"
)

// Value ranges accepted by the device firmware.
const (
	MinBrightness = 0
	MaxBrightness = 100
	MinChannel    = 0
	MaxChannel    = 255
)

// DefaultDeviceID is the id the lamp firmware registers with.
const DefaultDeviceID = "esp32-s3-device"

var (
	errBrightnessRange = errors.New("brightness must be within 0..100")
	errChannelRange    = errors.New("color channels must be within 0..255")
)

// DeviceState is the record mirrored between the device, the relay and every panel.
type DeviceState struct {
	Power          bool     `json:"power"`
	Brightness     int      `json:"brightness"`
	Color          [3]int   `json:"color"`
	AutoBrightness bool     `json:"auto_brightness"`
	AutoPosition   *bool    `json:"auto_position,omitempty"` // four-axis firmware only
	Position       []int    `json:"position"`                // stepper vector, one entry per axis
	Distance       *float64 `json:"distance,omitempty"`      // sensor readout, never sent by panels
}

// Clone returns a deep copy so callers can mutate slices and pointers freely.
func (s DeviceState) Clone() DeviceState {
	out := s
	if s.Position != nil {
		out.Position = append([]int(nil), s.Position...)
	}
	if s.AutoPosition != nil {
		v := *s.AutoPosition
		out.AutoPosition = &v
	}
	if s.Distance != nil {
		v := *s.Distance
		out.Distance = &v
	}
	return out
}

// Validate reports the first range violation. axes <= 0 skips the position length check.
func (s DeviceState) Validate(axes int) error {
	if s.Brightness < MinBrightness || s.Brightness > MaxBrightness {
		return errBrightnessRange
	}
	for _, c := range s.Color {
		if c < MinChannel || c > MaxChannel {
			return errChannelRange
		}
	}
	if axes > 0 && len(s.Position) != axes {
		return fmt.Errorf("position must have %d axes, got %d", axes, len(s.Position))
	}
	return nil
}

// Clamp forces brightness and color into range.
func (s *DeviceState) Clamp() {
	s.Brightness = ClampInt(s.Brightness, MinBrightness, MaxBrightness)
	for i := range s.Color {
		s.Color[i] = ClampInt(s.Color[i], MinChannel, MaxChannel)
	}
}

// NormalizePosition pads or truncates Position to exactly axes entries.
func (s *DeviceState) NormalizePosition(axes int) {
	out := make([]int, axes)
	copy(out, s.Position)
	s.Position = out
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BoolPtr is a helper for the optional auto_position flag.
func BoolPtr(v bool) *bool { return &v }
