package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"lamp_control/internal/devicesim"
	"lamp_control/internal/logger"
	"lamp_control/internal/models"

	"github.com/spf13/pflag"
)

const defaultSimTick = 1 * time.Second

func main() {
	var (
		id       = pflag.String("id", models.DefaultDeviceID, "device id to register")
		url      = pflag.String("url", "ws://localhost:8080/ws/device", "relay device endpoint")
		axes     = pflag.Int("axes", 3, "stepper axis count (3 or 4)")
		absolute = pflag.Bool("absolute", false, "treat position as absolute instead of relative deltas")
		tick     = pflag.Duration("tick", defaultSimTick, "state report interval")
		level    = pflag.String("log_level", logger.InfoLevel, "log level")
	)
	pflag.Parse()

	log := logger.Get(*level)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := devicesim.NewSimulator(*id, *url, devicesim.NewDevice(*axes, !*absolute), log.Named("devicesim"))
	if err := sim.Run(ctx, *tick); err != nil {
		log.Fatalw("simulator stopped", "err", err)
	}
}
