package coordinator

import (
	"strconv"
	"sync"
)

const newRecordKey = "new"

// mutationGuard tracks which records have a mutating call in flight.
type mutationGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newMutationGuard() *mutationGuard {
	return &mutationGuard{inFlight: map[string]struct{}{}}
}

func guardKey(id *int) string {
	if id == nil {
		return newRecordKey
	}
	return strconv.Itoa(*id)
}

// acquire claims key and reports false if it is already held.
func (g *mutationGuard) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[key]; busy {
		return false
	}
	g.inFlight[key] = struct{}{}
	return true
}

func (g *mutationGuard) release(key string) {
	g.mu.Lock()
	delete(g.inFlight, key)
	g.mu.Unlock()
}
