package agreements

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type registryEntry struct {
	refresher *Refresher
	lastSeen  time.Time
}

// RefresherRegistry keeps one running Refresher per browser session and stops
// the ones nobody has looked at for idleAfter.
type RefresherRegistry struct {
	lock      sync.Mutex
	entries   map[string]*registryEntry
	idleAfter time.Duration
	nowTime   func() time.Time
}

// RegistryOption defines a function type to modify the RefresherRegistry instance.
type RegistryOption func(*RefresherRegistry)

// WithRegistryNowTime sets the now time function (primarily for testing)
func WithRegistryNowTime(nowFunc func() time.Time) RegistryOption {
	return func(reg *RefresherRegistry) {
		reg.nowTime = nowFunc
	}
}

func NewRefresherRegistry(idleAfter time.Duration, options ...RegistryOption) *RefresherRegistry {
	reg := &RefresherRegistry{
		entries:   make(map[string]*registryEntry),
		idleAfter: idleAfter,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(reg)
	}
	return reg
}

// Get returns the refresher for key, creating and starting one with create
// when none is running.
func (reg *RefresherRegistry) Get(key string, create func() *Refresher) *Refresher {
	reg.lock.Lock()
	defer reg.lock.Unlock()

	if e, ok := reg.entries[key]; ok {
		e.lastSeen = reg.nowTime()
		return e.refresher
	}

	r := create()
	// Refreshers outlive the request that created them
	r.Start(context.Background())
	reg.entries[key] = &registryEntry{refresher: r, lastSeen: reg.nowTime()}
	return r
}

// Stop stops and forgets the refresher for key, e.g. on logout
func (reg *RefresherRegistry) Stop(key string) {
	reg.lock.Lock()
	e, ok := reg.entries[key]
	delete(reg.entries, key)
	reg.lock.Unlock()

	if ok {
		e.refresher.Stop()
	}
}

// StopIdle stops every refresher not requested within idleAfter and returns how many
func (reg *RefresherRegistry) StopIdle() int {
	cutoff := reg.nowTime().Add(-reg.idleAfter)

	reg.lock.Lock()
	var idle []*Refresher
	for key, e := range reg.entries {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.refresher)
			delete(reg.entries, key)
		}
	}
	reg.lock.Unlock()

	for _, r := range idle {
		r.Stop()
	}
	return len(idle)
}

// StopAll stops every refresher
func (reg *RefresherRegistry) StopAll() {
	reg.lock.Lock()
	entries := reg.entries
	reg.entries = make(map[string]*registryEntry)
	reg.lock.Unlock()

	for _, e := range entries {
		e.refresher.Stop()
	}
}

// Len reports how many refreshers are running
func (reg *RefresherRegistry) Len() int {
	reg.lock.Lock()
	defer reg.lock.Unlock()
	return len(reg.entries)
}

// Run sweeps idle refreshers every interval until ctx is done, then stops them all.
func (reg *RefresherRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer reg.StopAll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := reg.StopIdle(); n > 0 {
				log.Debug().Int("stopped", n).Msg("Stopped idle agreement refreshers")
			}
		}
	}
}
