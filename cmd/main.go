package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "lamp_control/docs"
	"lamp_control/internal/config"
	"lamp_control/internal/handlers"
	"lamp_control/internal/logger"
	"lamp_control/internal/mirror"
	"lamp_control/internal/relay"
	"lamp_control/internal/repository"
	"lamp_control/internal/repository/db"
	"lamp_control/internal/server"
	"lamp_control/internal/service"

	mqttbroker "github.com/mochi-mqtt/server/v2"
)

const shutdownTimeout = 10 * time.Second

// @title        Lamp relay API
// @version      1.0
// @description  Device relay for the lamp control panel.
// @BasePath     /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// load configs/config.yml; bootstrap logger until the level is known
	cfg, err := config.Load("configs", ".")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// relay log lines are mirrored to /ws/admin subscribers through the feed
	feed := relay.NewLogFeed(0)
	log := logger.New(cfg.LogLevel, feed)
	defer func() { _ = log.Sync() }()

	// open DB
	conn, err := openDB(cfg.DBPath, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(conn)
	services := service.NewService(repos, service.AuthOptions{
		SigningKey: cfg.Auth.SigningKey,
		TokenTTL:   cfg.Auth.TokenTTL,
	})

	broker := startBroker(cfg.MQTT.EmbeddedBroker, log)
	mqttMirror := connectMirror(cfg.MQTT, log)

	var m relay.Mirror
	if mqttMirror != nil {
		m = mqttMirror
	}
	hub := relay.NewHub(services.Devices, services.EventLog, feed, m, log.Named("hub"))
	apiHandler := handlers.NewHandler(services, hub, handlers.Options{
		AdminRequiresToken: cfg.Auth.AdminRequired,
		StaticDir:          cfg.StaticDir,
	}, log.Named("http"))

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)

	hub.Shutdown()
	if mqttMirror != nil {
		mqttMirror.Close()
	}
	if broker != nil {
		if err := broker.Close(); err != nil {
			log.Errorw("mqtt_broker_close_failed", "err", err)
		}
	}
}

// openDB initializes the SQLite database using configuration.
func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "app.db")
		path = "app.db"
	}
	return db.InitDB(path)
}

// startBroker runs the embedded MQTT broker when an address is configured.
func startBroker(addr string, log *logger.Logger) *mqttbroker.Server {
	if addr == "" {
		return nil
	}
	b, err := mirror.NewBroker(addr)
	if err != nil {
		log.Fatalw("failed to create mqtt broker", "addr", addr, "err", err)
	}
	go func() {
		if err := b.Serve(); err != nil {
			log.Errorw("mqtt_broker_stopped", "err", err)
		}
	}()
	log.Infow("mqtt_broker_listening", "addr", addr)
	return b
}

// connectMirror is best effort: the relay keeps working without MQTT.
func connectMirror(cfg config.MQTTConfig, log *logger.Logger) *mirror.MQTTMirror {
	if cfg.Broker == "" {
		return nil
	}
	m, err := mirror.Connect(mirror.Options{
		BrokerURL:   cfg.Broker,
		ClientID:    cfg.ClientID,
		Username:    cfg.Username,
		Password:    cfg.Password,
		TopicPrefix: cfg.TopicPrefix,
	}, log.Named("mqtt"))
	if err != nil {
		log.Errorw("mqtt_mirror_disabled", "broker", cfg.Broker, "err", err)
		return nil
	}
	return m
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		log.Infow("http_listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
