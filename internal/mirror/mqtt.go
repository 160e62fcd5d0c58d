package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lamp_control/internal/logger"
	"lamp_control/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	defaultTopicPrefix = "lamp"
	publishTimeout     = 2 * time.Second
	disconnectQuiesce  = 250 // ms
)

// Options configures the MQTT mirror.
type Options struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// MQTTMirror republishes relay state broadcasts and log lines to an MQTT broker.
// States are retained so late subscribers see the latest value.
type MQTTMirror struct {
	client mqtt.Client
	prefix string
	log    *logger.Logger
}

// StateTopic is where the state of deviceID is published.
func StateTopic(prefix, deviceID string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + deviceID + "/state"
}

// LogTopic carries relay log lines.
func LogTopic(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/log"
}

// Connect dials the broker and returns a ready mirror.
func Connect(opts Options, log *logger.Logger) (*MQTTMirror, error) {
	if opts.BrokerURL == "" {
		return nil, errors.New("mqtt broker URL is required")
	}
	if opts.ClientID == "" {
		opts.ClientID = "lamp-relay-" + uuid.NewString()[:8]
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = defaultTopicPrefix
	}
	if log == nil {
		log = logger.Nop()
	}

	m := &MQTTMirror{prefix: opts.TopicPrefix, log: log}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectTimeout(5 * time.Second)
	clientOpts.SetMaxReconnectInterval(15 * time.Second)
	clientOpts.SetKeepAlive(30 * time.Second)
	clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.log.Warnw("mqtt_connection_lost", "err", err)
	})

	m.client = mqtt.NewClient(clientOpts)
	token := m.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timeout", opts.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", opts.BrokerURL, err)
	}
	m.log.Infow("mqtt_mirror_connected", "broker", opts.BrokerURL, "client_id", opts.ClientID)
	return m, nil
}

// PublishState sends the state as retained JSON. Failures are logged, never returned:
// the mirror must not slow the relay down.
func (m *MQTTMirror) PublishState(deviceID string, st models.DeviceState) {
	b, err := json.Marshal(st)
	if err != nil {
		m.log.Errorw("mqtt_state_marshal_failed", "device_id", deviceID, "err", err)
		return
	}
	m.publish(StateTopic(m.prefix, deviceID), true, b)
}

// PublishLog sends one log line. Failures are dropped silently; logging them would
// feed straight back into the log stream.
func (m *MQTTMirror) PublishLog(line string) {
	m.client.Publish(LogTopic(m.prefix), 0, false, line)
}

func (m *MQTTMirror) publish(topic string, retained bool, payload []byte) {
	token := m.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		m.log.Warnw("mqtt_publish_timeout", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		m.log.Warnw("mqtt_publish_failed", "topic", topic, "err", err)
	}
}

// Close disconnects from the broker.
func (m *MQTTMirror) Close() {
	if m.client.IsConnected() {
		m.client.Disconnect(disconnectQuiesce)
	}
}
