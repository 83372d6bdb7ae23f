package scene

import (
	"sync"

	"quantaverse/client/internal/spacetime"
)

// Headless is the presenter used by the default binary and tests: it tracks
// which ids are live without rendering anything.
type Headless struct {
	mu   sync.Mutex
	live map[uint64]spacetime.Record

	// InitializeErr, when set, is returned from every Initialize call.
	InitializeErr error
}

func NewHeadless() *Headless {
	return &Headless{live: make(map[uint64]spacetime.Record)}
}

func (h *Headless) Initialize(record spacetime.Record, isLocal bool, partitionRadius float64) error {
	if h.InitializeErr != nil {
		return h.InitializeErr
	}
	h.mu.Lock()
	h.live[record.StableID()] = record
	h.mu.Unlock()
	return nil
}

func (h *Headless) UpdateData(record spacetime.Record) {
	h.mu.Lock()
	if _, ok := h.live[record.StableID()]; ok {
		h.live[record.StableID()] = record
	}
	h.mu.Unlock()
}

func (h *Headless) Destroy(id uint64) {
	h.mu.Lock()
	delete(h.live, id)
	h.mu.Unlock()
}

// Live reports whether the presenter currently holds resources for id.
func (h *Headless) Live(id uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.live[id]
	return ok
}

// Count returns the number of live presentation handles.
func (h *Headless) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}
