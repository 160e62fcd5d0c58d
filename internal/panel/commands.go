package panel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lamp_control/internal/models"
)

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

const commandHelp = `commands:
  power                    toggle power
  bri <0..100>             set brightness (move + release)
  rgb <r> <g> <b>          set color (move + release per channel)
  slide <bri|r|g|b> <v>    move a slider
  release <bri|r|g|b>      release a slider
  auto-bri                 toggle auto brightness
  auto-pos                 toggle auto position
  step <axis> <+|-> <n>    step one axis by n
  pos <axis> <v>           set one axis
  state                    print the local state
  quit`

// Exec runs one terminal command against v and returns the text to print.
func Exec(v *ControlView, line string) (string, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return "", nil
	}
	args := f[1:]
	switch f[0] {
	case "help", "?":
		return commandHelp, nil
	case "quit", "exit":
		return "", ErrQuit
	case "state":
		return FormatState(v.State()), nil
	case "power":
		return sent(v.TogglePower()), nil
	case "auto-bri":
		return sent(v.ToggleAutoBrightness()), nil
	case "auto-pos":
		return sent(v.ToggleAutoPosition()), nil
	case "bri":
		n, err := intArgs(args, 1)
		if err != nil {
			return "", err
		}
		ok := v.MoveSlider(SliderBrightness, n[0])
		ok = v.ReleaseSlider(SliderBrightness) || ok
		return sent(ok), nil
	case "rgb":
		n, err := intArgs(args, 3)
		if err != nil {
			return "", err
		}
		ok := false
		for i, s := range []Slider{SliderRed, SliderGreen, SliderBlue} {
			ok = v.MoveSlider(s, n[i]) || ok
			ok = v.ReleaseSlider(s) || ok
		}
		return sent(ok), nil
	case "slide":
		if len(args) != 2 {
			return "", errors.New("usage: slide <bri|r|g|b> <v>")
		}
		s, ok := ParseSlider(args[0])
		if !ok {
			return "", fmt.Errorf("unknown slider %q", args[0])
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return "", fmt.Errorf("bad value %q", args[1])
		}
		return sent(v.MoveSlider(s, n)), nil
	case "release":
		if len(args) != 1 {
			return "", errors.New("usage: release <bri|r|g|b>")
		}
		s, ok := ParseSlider(args[0])
		if !ok {
			return "", fmt.Errorf("unknown slider %q", args[0])
		}
		return sent(v.ReleaseSlider(s)), nil
	case "step":
		if len(args) != 3 || (args[1] != "+" && args[1] != "-") {
			return "", errors.New("usage: step <axis> <+|-> <n>")
		}
		axis, err := strconv.Atoi(args[0])
		if err != nil {
			return "", fmt.Errorf("bad axis %q", args[0])
		}
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return "", fmt.Errorf("bad step %q", args[2])
		}
		sign := 1
		if args[1] == "-" {
			sign = -1
		}
		v.SetStepInput(axis, n)
		return sent(v.Step(axis, sign)), nil
	case "pos":
		n, err := intArgs(args, 2)
		if err != nil {
			return "", err
		}
		return sent(v.SetPosition(n[0], n[1])), nil
	}
	return "", fmt.Errorf("unknown command %q, try help", f[0])
}

func intArgs(args []string, want int) ([]int, error) {
	if len(args) != want {
		return nil, fmt.Errorf("expected %d numbers, got %d", want, len(args))
	}
	out := make([]int, want)
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", a)
		}
		out[i] = n
	}
	return out, nil
}

func sent(ok bool) string {
	if ok {
		return "sent"
	}
	return "not sent (socket not open)"
}

// FormatState renders the local record on one line.
func FormatState(st models.DeviceState) string {
	var b strings.Builder
	power := "off"
	if st.Power {
		power = "on"
	}
	fmt.Fprintf(&b, "power=%s brightness=%d color=%d,%d,%d auto_brightness=%t",
		power, st.Brightness, st.Color[0], st.Color[1], st.Color[2], st.AutoBrightness)
	if st.AutoPosition != nil {
		fmt.Fprintf(&b, " auto_position=%t", *st.AutoPosition)
	}
	fmt.Fprintf(&b, " position=%v", st.Position)
	if st.Distance != nil {
		fmt.Fprintf(&b, " distance=%.1f", *st.Distance)
	}
	return b.String()
}
