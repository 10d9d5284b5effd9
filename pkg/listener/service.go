package listener

import (
	"context"
	"net/url"
	"time"

	"github.com/NotCoffee418/kamstrup_meter/pkg/coordinator"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	maxRetries     = 10
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second
	readDeadline   = 10 * time.Minute
	pingInterval   = 30 * time.Second
)

// FeedURL builds the websocket URL of the API's live feed.
func FeedURL(host string, tlsEnabled bool) url.URL {
	scheme := "ws"
	if tlsEnabled {
		scheme = "wss"
	}
	return url.URL{Scheme: scheme, Host: host, Path: "/ws"}
}

// StartListener keeps a websocket connection to the API and calls
// funcToCall for each snapshot until ctx is done or retries run out.
func StartListener(ctx context.Context, feed url.URL, funcToCall func(snapshot *coordinator.Snapshot)) {
	retryCount := 0

	for {
		if ctx.Err() != nil {
			log.Info().Msg("Shutting down listener")
			return
		}

		// Calculate retry delay with exponential backoff
		if retryCount > 0 {
			retryDelay := RetryDelay(retryCount)
			log.Info().Dur("delay", retryDelay).Int("attempt", retryCount+1).Int("max", maxRetries).Msg("Retrying connection")
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				log.Info().Msg("Shutdown during retry wait")
				return
			}
		}

		log.Info().Str("url", feed.String()).Msg("Connecting")

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, feed.String(), nil)
		if err != nil {
			log.Warn().Err(err).Msg("Connection failed")
			retryCount++
			if retryCount >= maxRetries {
				log.Error().Int("retries", maxRetries).Msg("Max retries reached. Giving up.")
				return
			}
			continue
		}

		log.Info().Msg("Connected! Accepting snapshots.")
		retryCount = 0

		connectionBroken := handleConnection(ctx, c, funcToCall)
		c.Close()

		if !connectionBroken {
			return
		}
		log.Warn().Msg("Connection lost, will retry...")
	}
}

// RetryDelay doubles from baseRetryDelay up to maxRetryDelay.
func RetryDelay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	if retryCount > 6 {
		return maxRetryDelay
	}
	delay := time.Duration(1<<(retryCount-1)) * baseRetryDelay
	return min(delay, maxRetryDelay)
}

func handleConnection(
	ctx context.Context,
	c *websocket.Conn,
	funcToCall func(snapshot *coordinator.Snapshot),
) bool {
	done := make(chan struct{})

	// Snapshots arrive once per scan interval; pings keep the deadline fresh.
	c.SetReadDeadline(time.Now().Add(readDeadline))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(readDeadline))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Warn().Err(err).Msg("WebSocket error")
				} else {
					log.Info().Err(err).Msg("Connection closed")
				}
				return
			}

			c.SetReadDeadline(time.Now().Add(readDeadline))

			if messageType != websocket.TextMessage {
				log.Debug().Int("type", messageType).Msg("Received unexpected message type")
				continue
			}
			snap := coordinator.SnapshotFromJsonBytes(message)
			if snap == nil || snap.Timestamp.IsZero() {
				// Notifications share the feed with snapshots.
				log.Debug().Str("message", string(message)).Msg("Ignoring non-snapshot message")
				continue
			}
			funcToCall(snap)
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Warn().Err(err).Msg("Failed to send ping")
			}
		case <-done:
			return true
		case <-ctx.Done():
			log.Info().Msg("Closing connection")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Warn().Err(err).Msg("Error sending close message")
			}

			// Wait for close confirmation or timeout
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
