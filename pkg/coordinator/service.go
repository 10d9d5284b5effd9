package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/NotCoffee418/kamstrup_meter/pkg/kmp"
	"github.com/NotCoffee418/kamstrup_meter/pkg/serial_port"
	"github.com/rs/zerolog/log"
)

func New(cfg Config, reader Reader, registry *CommandRegistry) (*Coordinator, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("coordinator: interval must be > 0")
	}
	if reader == nil {
		return nil, errors.New("coordinator: reader required")
	}
	if cfg.ChunkSize <= 0 || cfg.ChunkSize > kmp.MaxRegistersPerRequest {
		cfg.ChunkSize = kmp.MaxRegistersPerRequest
	}
	if registry == nil {
		registry = NewCommandRegistry()
	}
	return &Coordinator{cfg: cfg, reader: reader, registry: registry}, nil
}

// Register adds a register to be polled from the next cycle on.
func (c *Coordinator) Register(id kmp.RegisterID) {
	if c.registry.Add(id) {
		log.Debug().Uint16("register", uint16(id)).Msg("Register command")
	}
}

// Unregister removes a register from polling.
func (c *Coordinator) Unregister(id kmp.RegisterID) {
	if c.registry.Remove(id) {
		log.Debug().Uint16("register", uint16(id)).Msg("Unregister command")
	}
}

func (c *Coordinator) Registry() *CommandRegistry {
	return c.registry
}

func (c *Coordinator) Latest() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Available reports whether the last cycle completed.
func (c *Coordinator) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest != nil && c.lastErr == nil
}

func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Poll performs exactly one poll cycle over a copy of the registry.
// Only a serial connection failure aborts the cycle; anything else leaves
// the affected registers absent in the returned snapshot.
func (c *Coordinator) Poll(ctx context.Context) (*Snapshot, error) {
	ids := c.registry.IDs()
	snap := &Snapshot{
		Timestamp: time.Now().UTC(),
		Values:    make(map[kmp.RegisterID]kmp.RegisterValue, len(ids)),
	}

	if len(ids) == 0 {
		log.Debug().Msg("No commands registered, skipping update")
		c.publish(snap)
		return snap, nil
	}

	log.Debug().Int("registers", len(ids)).Msg("Start update")
	for _, chunk := range Chunk(ids, c.cfg.ChunkSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		values, err := c.reader.ReadRegisters(chunk)
		if err != nil {
			if errors.Is(err, serial_port.ErrConnection) {
				log.Warn().Err(err).Msg("Device disconnected or multiple access on port?")
				err = errors.Join(ErrUpdateFailed, err)
				c.fail(err)
				return nil, err
			}
			log.Warn().Err(err).Interface("registers", chunk).Msg("Error reading registers")
			values = nil
		}

		for _, id := range chunk {
			v := values[id]
			if !v.Valid {
				log.Debug().Uint16("register", uint16(id)).Msg("No value for register")
				snap.Failed++
			}
			snap.Values[id] = v
		}
	}

	if snap.Failed == len(ids) {
		log.Error().Msg("No readings from meter - check IR connection")
		if c.cfg.OnTotalFailure != nil {
			c.cfg.OnTotalFailure(snap)
		}
	} else {
		log.Debug().Int("failed", snap.Failed).Int("total", len(ids)).Msg("Finished update")
	}

	c.publish(snap)
	return snap, nil
}

// Run polls immediately and then on every interval tick until ctx is done.
// Cycles never overlap: a slow cycle delays the next one.
func (c *Coordinator) Run(
	ctx context.Context,
	handleSnapshot func(snapshot *Snapshot),
	handleError func(error),
) {
	poll := func() {
		snap, err := c.Poll(ctx)
		if err != nil {
			if ctx.Err() == nil && handleError != nil {
				handleError(err)
			}
			return
		}
		if handleSnapshot != nil {
			handleSnapshot(snap)
		}
	}

	poll()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

// Chunk splits ids into consecutive batches of at most size, keeping order.
func Chunk(ids []kmp.RegisterID, size int) [][]kmp.RegisterID {
	if size <= 0 {
		size = kmp.MaxRegistersPerRequest
	}
	chunks := make([][]kmp.RegisterID, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end:end])
	}
	return chunks
}

func (c *Coordinator) publish(snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = snap
	c.lastErr = nil
}

func (c *Coordinator) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}
