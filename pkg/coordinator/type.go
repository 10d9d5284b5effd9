package coordinator

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/NotCoffee418/kamstrup_meter/pkg/kmp"
)

var ErrUpdateFailed = fmt.Errorf("update failed")

// Reader performs one register exchange with the meter.
type Reader interface {
	ReadRegisters(ids []kmp.RegisterID) (kmp.Result, error)
}

// Config is the runtime config of a Coordinator.
type Config struct {
	Interval time.Duration

	// Registers per exchange. Zero or anything above the protocol limit
	// means kmp.MaxRegistersPerRequest.
	ChunkSize int

	// Called once for every cycle in which no register returned a value.
	OnTotalFailure func(snapshot *Snapshot)
}

// Coordinator polls the registered registers on an interval and keeps the
// latest merged result. It is the only user of its Reader.
type Coordinator struct {
	cfg      Config
	reader   Reader
	registry *CommandRegistry

	mu      sync.RWMutex
	latest  *Snapshot
	lastErr error
}

// Snapshot is the result of one complete poll cycle. Every register that
// was registered when the cycle started has an entry.
type Snapshot struct {
	Timestamp time.Time                            `json:"timestamp"`
	Values    map[kmp.RegisterID]kmp.RegisterValue `json:"values"`
	Failed    int                                  `json:"failed"`
}

func (s *Snapshot) AllFailed() bool {
	return len(s.Values) > 0 && s.Failed == len(s.Values)
}

func (s *Snapshot) ToJsonBytes() []byte {
	b, _ := json.Marshal(s)
	return b
}

func SnapshotFromJsonBytes(data []byte) *Snapshot {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if s.Values == nil {
		s.Values = map[kmp.RegisterID]kmp.RegisterValue{}
	}
	return &s
}
