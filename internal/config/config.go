package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds relay settings loaded from configs/config.yml and RELAY_* env vars.
type Config struct {
	Port      string
	LogLevel  string
	StaticDir string
	DBPath    string

	Auth AuthConfig
	MQTT MQTTConfig
}

type AuthConfig struct {
	SigningKey    string
	TokenTTL      time.Duration
	AdminRequired bool
}

// MQTTConfig controls the optional state mirror. Empty Broker disables it.
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	EmbeddedBroker string // listen address for the built-in broker, empty to skip
}

const envPrefix = "RELAY"

// defaults mirrors the keys in configs/config.yml.
var defaults = map[string]any{
	"port":                "8080",
	"log_level":           "info",
	"static_dir":          "client/dist",
	"db.path":             "app.db",
	"auth.signing_key":    "",
	"auth.token_ttl":      time.Hour,
	"auth.admin_required": false,
	"mqtt.broker":         "",
	"mqtt.client_id":      "",
	"mqtt.username":       "",
	"mqtt.password":       "",
	"mqtt.topic_prefix":   "lamp",
	"mqtt.embedded":       "",
}

var errNoSigningKey = errors.New("auth.signing_key is required when auth.admin_required is set")

// Load reads the config file from the given search paths. A missing file is not an
// error; defaults and environment still apply.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigName("config")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:      v.GetString("port"),
		LogLevel:  v.GetString("log_level"),
		StaticDir: v.GetString("static_dir"),
		DBPath:    v.GetString("db.path"),
		Auth: AuthConfig{
			SigningKey:    v.GetString("auth.signing_key"),
			TokenTTL:      v.GetDuration("auth.token_ttl"),
			AdminRequired: v.GetBool("auth.admin_required"),
		},
		MQTT: MQTTConfig{
			Broker:         v.GetString("mqtt.broker"),
			ClientID:       v.GetString("mqtt.client_id"),
			Username:       v.GetString("mqtt.username"),
			Password:       v.GetString("mqtt.password"),
			TopicPrefix:    v.GetString("mqtt.topic_prefix"),
			EmbeddedBroker: v.GetString("mqtt.embedded"),
		},
	}
	if cfg.Auth.AdminRequired && cfg.Auth.SigningKey == "" {
		return nil, errNoSigningKey
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = time.Hour
	}
	return cfg, nil
}
