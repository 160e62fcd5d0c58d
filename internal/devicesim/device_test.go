package devicesim

import (
	"testing"

	"lamp_control/internal/models"
)

func TestDevice_RelativeControlAccumulates(t *testing.T) {
	d := NewDevice(3, true)
	d.ApplyControl(models.DeviceState{Power: true, Brightness: 70, Color: [3]int{1, 2, 3}, Position: []int{0, 50, 0}})
	d.ApplyControl(models.DeviceState{Power: true, Brightness: 70, Color: [3]int{1, 2, 3}, Position: []int{0, 25, -5}})

	st := d.Report()
	if !st.Power || st.Brightness != 70 || st.Color != [3]int{1, 2, 3} {
		t.Fatalf("unexpected state: %+v", st)
	}
	if got := st.Position; got[0] != 0 || got[1] != 75 || got[2] != -5 {
		t.Fatalf("position: got %v, want [0 75 -5]", got)
	}
	if st.Distance == nil {
		t.Fatalf("distance missing from report")
	}
}

func TestDevice_AbsoluteControlSets(t *testing.T) {
	d := NewDevice(4, false)
	msg := d.ApplyControl(models.DeviceState{Brightness: 150, Color: [3]int{300, 0, 0}, Position: []int{10, 20, 30, 40}, AutoPosition: models.BoolPtr(true)})

	st := d.Report()
	if st.Brightness != 100 || st.Color[0] != 255 {
		t.Fatalf("values should be clamped: %+v", st)
	}
	if st.AutoPosition == nil || !*st.AutoPosition {
		t.Fatalf("auto_position not applied: %+v", st.AutoPosition)
	}
	if st.Position[3] != 40 {
		t.Fatalf("position: got %v", st.Position)
	}
	if msg == "" {
		t.Fatalf("expected a log line")
	}
}

func TestDevice_TickDrivesAutoModes(t *testing.T) {
	d := NewDevice(4, true)
	d.ApplyControl(models.DeviceState{Brightness: 5, AutoBrightness: true, AutoPosition: models.BoolPtr(true), Position: []int{0, 0, 0, 0}})

	for i := 0; i < 200; i++ {
		d.Tick(1)
		st := d.Report()
		if *st.Distance < NearCm || *st.Distance > FarCm {
			t.Fatalf("distance out of range: %v", *st.Distance)
		}
		if st.Brightness < AutoMinPercent || st.Brightness > models.MaxBrightness {
			t.Fatalf("auto brightness out of range: %d", st.Brightness)
		}
		if st.Position[0] <= 0 {
			t.Fatalf("auto position should follow distance: %v", st.Position)
		}
	}
}

func TestDevice_ManualBrightnessIgnoredInAutoMode(t *testing.T) {
	d := NewDevice(3, true)
	d.ApplyControl(models.DeviceState{Brightness: 20, AutoBrightness: true, Position: []int{0, 0, 0}})
	if got := d.Report().Brightness; got != 50 {
		t.Fatalf("brightness should be left to the sensor, got %d", got)
	}
}
