package arena

import (
	"sync"

	"github.com/google/uuid"
)

// roundGuard is the one-shot debounce for timer-driven resolution. A round
// is either idle, in flight (one caller is resolving it) or done.
type roundGuard struct {
	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
	done     map[uuid.UUID]bool
}

func newRoundGuard() *roundGuard {
	return &roundGuard{
		inFlight: make(map[uuid.UUID]bool),
		done:     make(map[uuid.UUID]bool),
	}
}

// acquire returns true if the caller now owns resolution of roundID.
func (g *roundGuard) acquire(roundID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done[roundID] || g.inFlight[roundID] {
		return false
	}
	g.inFlight[roundID] = true
	return true
}

// release ends an attempt. A failed attempt leaves the round idle so the next
// observer can retry.
func (g *roundGuard) release(roundID uuid.UUID, resolved bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, roundID)
	if resolved {
		g.done[roundID] = true
	}
}

func (g *roundGuard) markDone(roundID uuid.UUID) {
	g.mu.Lock()
	g.done[roundID] = true
	g.mu.Unlock()
}

func (g *roundGuard) isDone(roundID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done[roundID]
}

func (g *roundGuard) forget(roundID uuid.UUID) {
	g.mu.Lock()
	delete(g.done, roundID)
	delete(g.inFlight, roundID)
	g.mu.Unlock()
}
