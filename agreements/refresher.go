package agreements

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultRefreshInterval is how often the agreement list is re-fetched
const DefaultRefreshInterval = 30 * time.Second

// Fetcher loads the complete agreement set.
type Fetcher func(ctx context.Context) (AgreementSet, error)

// Snapshot is the most recently applied refresh. A failed refresh keeps the
// last good set and records the error.
type Snapshot struct {
	Set        AgreementSet
	Err        error
	FetchedAt  time.Time
	Generation uint64
}

// Refresher re-fetches the agreement set on a fixed interval. Every fetch gets
// a generation number when it starts; a result is applied only when no newer
// fetch has already been applied, so a slow stale response never overwrites a
// fresh one. Results that arrive after Stop are dropped.
type Refresher struct {
	fetch    Fetcher
	interval time.Duration
	nowTime  func() time.Time

	lock     sync.Mutex
	issued   uint64
	applied  uint64
	snapshot Snapshot
	stopped  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// RefresherOption defines a function type to modify the Refresher instance.
type RefresherOption func(*Refresher)

func WithInterval(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) RefresherOption {
	return func(r *Refresher) {
		r.nowTime = nowFunc
	}
}

func NewRefresher(fetch Fetcher, options ...RefresherOption) *Refresher {
	r := &Refresher{
		fetch:    fetch,
		interval: DefaultRefreshInterval,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Start fetches immediately and then on every interval until Stop or until
// ctx is done. Ticks do not wait for a slow fetch to finish.
func (r *Refresher) Start(ctx context.Context) {
	r.lock.Lock()
	if r.cancel != nil || r.stopped {
		r.lock.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.lock.Unlock()

	go r.loop(ctx)
}

func (r *Refresher) loop(ctx context.Context) {
	defer close(r.done)

	var wg sync.WaitGroup
	defer wg.Wait()

	refresh := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Refresh(ctx)
		}()
	}

	refresh()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// Refresh runs one fetch and reports whether its result was applied.
func (r *Refresher) Refresh(ctx context.Context) bool {
	gen, ok := r.begin()
	if !ok {
		return false
	}
	set, err := r.fetch(ctx)
	return r.apply(gen, set, err)
}

func (r *Refresher) begin() (uint64, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.stopped {
		return 0, false
	}
	r.issued++
	return r.issued, true
}

func (r *Refresher) apply(gen uint64, set AgreementSet, err error) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.stopped {
		log.Debug().Uint64("generation", gen).Msg("Dropping agreement refresh after stop")
		return false
	}
	if gen <= r.applied {
		log.Debug().Uint64("generation", gen).Uint64("applied", r.applied).Msg("Dropping stale agreement refresh")
		return false
	}

	r.applied = gen
	r.snapshot.Generation = gen
	r.snapshot.FetchedAt = r.nowTime()
	r.snapshot.Err = err
	if err != nil {
		log.Warn().Err(err).Msg("Agreement refresh failed")
		return true
	}
	r.snapshot.Set = set
	return true
}

// Snapshot returns the last applied refresh; ok is false before the first one.
func (r *Refresher) Snapshot() (Snapshot, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.snapshot, r.applied > 0
}

// Stop ends the background loop and waits for in-flight fetches to return.
// It is safe to call more than once.
func (r *Refresher) Stop() {
	r.lock.Lock()
	r.stopped = true
	cancel, done := r.cancel, r.done
	r.lock.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
