package mirror

import (
	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// NewBroker builds an embedded MQTT broker listening on addr. It accepts every
// client; it is meant for a single-host install where nothing else runs a broker.
// The caller starts it with Serve and stops it with Close.
func NewBroker(addr string) (*mqttbroker.Server, error) {
	server := mqttbroker.New(&mqttbroker.Options{InlineClient: true})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, err
	}
	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, err
	}
	return server, nil
}
