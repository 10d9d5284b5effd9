// Kamstrup API is responsible for polling the meter over the optical head and broadcasting the readings.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/kamstrup_meter/pkg/api"
	"github.com/NotCoffee418/kamstrup_meter/pkg/broadcast"
	"github.com/NotCoffee418/kamstrup_meter/pkg/config"
	"github.com/NotCoffee418/kamstrup_meter/pkg/coordinator"
	"github.com/NotCoffee418/kamstrup_meter/pkg/kmp"
	"github.com/NotCoffee418/kamstrup_meter/pkg/logging"
	"github.com/NotCoffee418/kamstrup_meter/pkg/pathing"
	"github.com/NotCoffee418/kamstrup_meter/pkg/serial_port"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.ConfigureRuntime()

	if err := pathing.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create directories")
	}

	// Load config
	if err := config.LoadKamstrupAPIConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load Kamstrup API config")
	}
	cfg := config.ActiveKamstrupAPIConfig

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := serial_port.NewSerialPort(cfg.SerialDevice, cfg.Baudrate)
	defer port.Disconnect()

	client := kmp.NewClient(port, cfg.ReadTimeout())

	// The hub needs the coordinator for its initial snapshot and the
	// coordinator needs the hub for failure notifications.
	var hub *broadcast.Hub
	coord, err := coordinator.New(
		coordinator.Config{
			Interval: cfg.ScanInterval(),
			OnTotalFailure: func(snap *coordinator.Snapshot) {
				hub.Notify(broadcast.Notification{
					Type:    "error",
					Title:   "Kamstrup meter",
					Message: fmt.Sprintf("No data received from %d registers. Check the optical head on %s.", len(snap.Values), port.Port()),
				})
			},
		},
		client,
		coordinator.NewCommandRegistry(cfg.Registers...),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create coordinator")
	}
	hub = broadcast.NewHub(coord.Latest)

	// Start polling the meter
	go coord.Run(
		ctx,
		hub.Broadcast,
		func(err error) {
			log.Error().Err(err).Str("port", port.Port()).Msg("Poll cycle failed")
		},
	)

	listener := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
	server := &http.Server{
		Addr:    listener,
		Handler: api.NewServer(coord, hub, cfg).Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("listen", listener).
		Str("port", cfg.SerialDevice).
		Int("registers", coord.Registry().Len()).
		Msg("Starting Kamstrup API")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("HTTP server failed")
	}
	log.Info().Msg("Kamstrup API stopped")
}
