package models

import "time"

// Relay event types.
const (
	EventRegister   = "REGISTER"
	EventDisconnect = "DISCONNECT"
	EventControl    = "CONTROL"
	EventError      = "ERROR"
)

// DeviceEvent is a single entry of the relay history.
type DeviceEvent struct {
	EventID     string    `json:"event_id"`
	DeviceID    string    `json:"device_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // REGISTER | DISCONNECT | CONTROL | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// DeviceRecord is a stored state plus bookkeeping.
type DeviceRecord struct {
	DeviceID  string      `json:"device_id"`
	State     DeviceState `json:"state"`
	Online    bool        `json:"online"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don’t expose hash
}
