// Package gate serializes mutating operations on the same resource
// key. The record store has no compare-and-append, so the
// read-validate-append sequence of two commands on one vehicle or
// request must not interleave; commands on independent keys proceed
// concurrently. The gate is advisory and process-local.
package gate

import "sync"

type slot struct {
	mu   sync.Mutex
	refs int
}

// Gate is a set of per-key mutexes. The zero value is not usable; use
// New.
type Gate struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// New creates an empty gate.
func New() *Gate {
	return &Gate{slots: make(map[string]*slot)}
}

// Do runs fn while holding the lock for key. Slots are reference
// counted and removed once the last waiter leaves, so the map stays
// bounded by the number of in-flight keys.
func (g *Gate) Do(key string, fn func() error) error {
	s := g.acquire(key)
	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		g.release(key, s)
	}()
	return fn()
}

func (g *Gate) acquire(key string) *slot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[key]
	if !ok {
		s = &slot{}
		g.slots[key] = s
	}
	s.refs++
	return s
}

func (g *Gate) release(key string, s *slot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(g.slots, key)
	}
}
