package models

// Envelope types exchanged over the relay sockets.
const (
	TypeRegister = "register"
	TypeState    = "state"
	TypeControl  = "control"
	TypeLog      = "log"
	TypeError    = "error"
)

// Envelope is the JSON frame used on every relay socket.
type Envelope struct {
	Type    string       `json:"type"`
	ID      string       `json:"id,omitempty"`
	State   *DeviceState `json:"state,omitempty"`
	Message string       `json:"message,omitempty"`
}

// ControlEnvelope builds a control frame for the given device.
func ControlEnvelope(id string, st DeviceState) Envelope {
	return Envelope{Type: TypeControl, ID: id, State: &st}
}

// StateEnvelope builds a state broadcast for the given device.
func StateEnvelope(id string, st DeviceState) Envelope {
	return Envelope{Type: TypeState, ID: id, State: &st}
}

// LogEnvelope wraps one log line.
func LogEnvelope(line string) Envelope {
	return Envelope{Type: TypeLog, Message: line}
}
