// Responsible for storing the data collected from the Kamstrup meter
// Depends on the Kamstrup API being online.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/kamstrup_meter/pkg/aggregator"
	"github.com/NotCoffee418/kamstrup_meter/pkg/config"
	"github.com/NotCoffee418/kamstrup_meter/pkg/coordinator"
	"github.com/NotCoffee418/kamstrup_meter/pkg/listener"
	"github.com/NotCoffee418/kamstrup_meter/pkg/logging"
	"github.com/NotCoffee418/kamstrup_meter/pkg/meterdb"
	"github.com/NotCoffee418/kamstrup_meter/pkg/pathing"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.ConfigureRuntime()

	if err := pathing.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create directories")
	}

	// Load config
	if err := config.LoadMeterCollectorConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load meter collector config")
	}
	cfg := config.ActiveMeterCollectorConfig

	// Initialize database
	meterdb.InitializeDatabase()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runAggregator(ctx, cfg.AggregateInterval())

	// Subscribe to websocket with revive
	feed := listener.FeedURL(cfg.KamstrupAPIHost, cfg.TLSEnabled)
	listener.StartListener(ctx, feed, handleSnapshot)
	log.Info().Msg("Meter collector stopped")
}

// Handle snapshot data
func handleSnapshot(snap *coordinator.Snapshot) {
	if err := meterdb.InsertSnapshot(snap); err != nil {
		log.Error().Err(err).Msg("Failed to store snapshot")
		return
	}
	log.Debug().
		Time("timestamp", snap.Timestamp).
		Int("registers", len(snap.Values)).
		Int("failed", snap.Failed).
		Msg("Stored snapshot")
}

func runAggregator(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := aggregator.AggregateAndCleanup(); err != nil {
				log.Error().Err(err).Msg("Aggregation failed")
			}
		}
	}
}
