package coordinator

import (
	"sync"

	"github.com/NotCoffee418/kamstrup_meter/pkg/kmp"
)

// CommandRegistry is the set of registers consumers currently want polled.
// Ids keep the order they were first added in.
type CommandRegistry struct {
	mu  sync.Mutex
	ids []kmp.RegisterID
}

func NewCommandRegistry(ids ...kmp.RegisterID) *CommandRegistry {
	r := &CommandRegistry{}
	for _, id := range ids {
		r.Add(id)
	}
	return r
}

// Add reports whether id was newly added.
func (r *CommandRegistry) Add(id kmp.RegisterID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(id) >= 0 {
		return false
	}
	r.ids = append(r.ids, id)
	return true
}

// Remove reports whether id was present.
func (r *CommandRegistry) Remove(id kmp.RegisterID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(id)
	if i < 0 {
		return false
	}
	r.ids = append(r.ids[:i:i], r.ids[i+1:]...)
	return true
}

func (r *CommandRegistry) Contains(id kmp.RegisterID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexLocked(id) >= 0
}

func (r *CommandRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// IDs returns a point-in-time copy.
func (r *CommandRegistry) IDs() []kmp.RegisterID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]kmp.RegisterID, len(r.ids))
	copy(out, r.ids)
	return out
}

func (r *CommandRegistry) indexLocked(id kmp.RegisterID) int {
	for i, v := range r.ids {
		if v == id {
			return i
		}
	}
	return -1
}
