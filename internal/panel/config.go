package panel

import (
	"errors"
	"fmt"
	"strings"

	"lamp_control/internal/models"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// PositionMode selects how the stepper vector is interpreted by the firmware.
type PositionMode string

const (
	// PositionRelative sends per-axis deltas; only the pressed axis is non-zero.
	PositionRelative PositionMode = "relative"
	// PositionAbsolute always sends the full last-known position tuple.
	PositionAbsolute PositionMode = "absolute"
)

// SliderPolicy selects when a slider move is sent.
type SliderPolicy string

const (
	SliderOnTick    SliderPolicy = "tick"
	SliderOnRelease SliderPolicy = "release"
)

// Gate kinds for the admin log viewer.
const (
	GateStatic = "static"
	GateToken  = "token"
)

const (
	defaultAxes     = 3
	defaultSecret   = "admin"
	defaultRelayURL = "http://localhost:8080"
	panelEnvPrefix  = "PANEL"
)

// Config describes one deployment of the control panel.
type Config struct {
	DeviceID     string
	ControlURL   string
	LogURL       string
	Axes         int
	PositionMode PositionMode
	SliderPolicy SliderPolicy
	// AutoPosition adds the auto_position flag, present on four-axis firmware.
	AutoPosition bool
	LogLevel     string

	Gate GateConfig
}

type GateConfig struct {
	Kind     string
	Secret   string // static gate only
	RelayURL string // token gate: base URL of the relay REST API
	Username string
}

var panelDefaults = map[string]any{
	"device_id":      models.DefaultDeviceID,
	"control_url":    "ws://localhost:8080/ws/client",
	"log_url":        "ws://localhost:8080/ws/admin",
	"axes":           defaultAxes,
	"position_mode":  string(PositionRelative),
	"slider_policy":  string(SliderOnRelease),
	"auto_position":  false,
	"log_level":      "warn",
	"gate.kind":      GateStatic,
	"gate.secret":    defaultSecret,
	"gate.relay_url": defaultRelayURL,
	"gate.username":  "admin",
}

// DefaultConfig returns the three-axis relative deployment.
func DefaultConfig() Config {
	return Config{
		DeviceID:     models.DefaultDeviceID,
		ControlURL:   panelDefaults["control_url"].(string),
		LogURL:       panelDefaults["log_url"].(string),
		Axes:         defaultAxes,
		PositionMode: PositionRelative,
		SliderPolicy: SliderOnRelease,
		LogLevel:     "warn",
		Gate: GateConfig{
			Kind:     GateStatic,
			Secret:   defaultSecret,
			RelayURL: defaultRelayURL,
			Username: "admin",
		},
	}
}

// Flags registers the command line overrides. Names match the config keys.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to panel.yml")
	fs.String("device_id", models.DefaultDeviceID, "device id to control")
	fs.String("control_url", panelDefaults["control_url"].(string), "relay client endpoint")
	fs.String("log_url", panelDefaults["log_url"].(string), "relay admin log endpoint")
	fs.Int("axes", defaultAxes, "stepper axis count (3 or 4)")
	fs.String("position_mode", string(PositionRelative), "relative | absolute")
	fs.String("slider_policy", string(SliderOnRelease), "tick | release")
	fs.Bool("auto_position", false, "firmware supports auto_position")
	fs.String("log_level", "warn", "debug | info | warn | error")
}

// LoadConfig merges defaults, configs/panel.yml (or --config), PANEL_* env vars and
// flags that were explicitly set. fs may be nil.
func LoadConfig(fs *pflag.FlagSet, paths ...string) (Config, error) {
	v := viper.New()
	for k, val := range panelDefaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(panelEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			explicit = f.Value.String()
		}
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Name != "config" && f.Changed {
				_ = v.BindPFlag(f.Name, f)
			}
		})
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("panel")
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read panel config: %w", err)
		}
	}

	cfg := Config{
		DeviceID:     v.GetString("device_id"),
		ControlURL:   v.GetString("control_url"),
		LogURL:       v.GetString("log_url"),
		Axes:         v.GetInt("axes"),
		PositionMode: PositionMode(strings.ToLower(v.GetString("position_mode"))),
		SliderPolicy: SliderPolicy(strings.ToLower(v.GetString("slider_policy"))),
		AutoPosition: v.GetBool("auto_position"),
		LogLevel:     v.GetString("log_level"),
		Gate: GateConfig{
			Kind:     strings.ToLower(v.GetString("gate.kind")),
			Secret:   v.GetString("gate.secret"),
			RelayURL: v.GetString("gate.relay_url"),
			Username: v.GetString("gate.username"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate rejects deployments the firmware cannot serve.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DeviceID) == "" {
		return errors.New("device_id is required")
	}
	if c.Axes != 3 && c.Axes != 4 {
		return fmt.Errorf("axes must be 3 or 4, got %d", c.Axes)
	}
	switch c.PositionMode {
	case PositionRelative, PositionAbsolute:
	default:
		return fmt.Errorf("unknown position_mode %q", c.PositionMode)
	}
	switch c.SliderPolicy {
	case SliderOnTick, SliderOnRelease:
	default:
		return fmt.Errorf("unknown slider_policy %q", c.SliderPolicy)
	}
	switch c.Gate.Kind {
	case GateStatic, GateToken:
	default:
		return fmt.Errorf("unknown gate.kind %q", c.Gate.Kind)
	}
	return nil
}
