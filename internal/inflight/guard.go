// Package inflight rejects a second submission of the same action while the
// first is still running.
package inflight

import "sync"

// Guard tracks which keys have a request outstanding.
type Guard struct {
	lock    sync.Mutex
	running map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{running: make(map[string]struct{})}
}

// TryStart marks key busy. It returns false when key is already busy; otherwise
// the caller must call release once the request finishes.
func (g *Guard) TryStart(key string) (release func(), ok bool) {
	g.lock.Lock()
	defer g.lock.Unlock()

	if _, busy := g.running[key]; busy {
		return nil, false
	}
	g.running[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.lock.Lock()
			delete(g.running, key)
			g.lock.Unlock()
		})
	}, true
}

// Busy reports whether key has a request outstanding
func (g *Guard) Busy(key string) bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	_, busy := g.running[key]
	return busy
}
