package agreements_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-source-portal/agreements"
	"github.com/stretchr/testify/require"
)

func setOf(refs ...string) agreements.AgreementSet {
	list := make([]agreements.Agreement, 0, len(refs))
	for _, ref := range refs {
		list = append(list, agreements.Agreement{ID: ref, AgreementRef: ref, Status: agreements.StatusActive})
	}
	return agreements.NewAgreementSet(list)
}

func TestRefresher_StaleResultIsDropped(t *testing.T) {
	ctx := context.Background()

	var calls int32
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})

	r := agreements.NewRefresher(func(ctx context.Context) (agreements.AgreementSet, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(firstStarted)
			<-releaseFirst
			return setOf("stale"), nil
		}
		return setOf("fresh"), nil
	})

	firstApplied := make(chan bool, 1)
	go func() { firstApplied <- r.Refresh(ctx) }()
	<-firstStarted

	// The newer request resolves first
	require.True(t, r.Refresh(ctx))

	close(releaseFirst)
	require.False(t, <-firstApplied)

	snap, ok := r.Snapshot()
	require.True(t, ok)
	require.Equal(t, uint64(2), snap.Generation)
	require.Equal(t, "fresh", snap.Set.Agreements[0].AgreementRef)
}

func TestRefresher_FailureKeepsLastGoodSet(t *testing.T) {
	ctx := context.Background()
	fail := errors.New("boom")

	var calls int32
	r := agreements.NewRefresher(func(ctx context.Context) (agreements.AgreementSet, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return setOf("good"), nil
		}
		return agreements.AgreementSet{}, fail
	})

	require.True(t, r.Refresh(ctx))
	require.True(t, r.Refresh(ctx))

	snap, ok := r.Snapshot()
	require.True(t, ok)
	require.ErrorIs(t, snap.Err, fail)
	require.Equal(t, "good", snap.Set.Agreements[0].AgreementRef)
}

func TestRefresher_StartAndStop(t *testing.T) {
	var calls int32
	r := agreements.NewRefresher(func(ctx context.Context) (agreements.AgreementSet, error) {
		atomic.AddInt32(&calls, 1)
		return setOf("a"), nil
	}, agreements.WithInterval(10*time.Millisecond))

	_, ok := r.Snapshot()
	require.False(t, ok)

	r.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, 2*time.Second, 5*time.Millisecond)

	r.Stop()
	stoppedAt := atomic.LoadInt32(&calls)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, stoppedAt, atomic.LoadInt32(&calls))

	// Stop is idempotent and later refreshes are ignored
	r.Stop()
	require.False(t, r.Refresh(context.Background()))
}

func TestRefresher_ResultAfterStopIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	r := agreements.NewRefresher(func(ctx context.Context) (agreements.AgreementSet, error) {
		close(started)
		<-ctx.Done()
		return setOf("late"), nil
	}, agreements.WithInterval(time.Hour))

	r.Start(context.Background())
	<-started
	r.Stop()

	_, ok := r.Snapshot()
	require.False(t, ok)
}

func TestRefresherRegistry(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	reg := agreements.NewRefresherRegistry(10*time.Minute, agreements.WithRegistryNowTime(clock))
	defer reg.StopAll()

	var created int32
	newRefresher := func() *agreements.Refresher {
		atomic.AddInt32(&created, 1)
		return agreements.NewRefresher(func(ctx context.Context) (agreements.AgreementSet, error) {
			return setOf("x"), nil
		}, agreements.WithInterval(time.Hour))
	}

	first := reg.Get("browser-1", newRefresher)
	require.Same(t, first, reg.Get("browser-1", newRefresher))
	reg.Get("browser-2", newRefresher)
	require.Equal(t, int32(2), atomic.LoadInt32(&created))
	require.Equal(t, 2, reg.Len())

	require.Eventually(t, func() bool {
		_, ok := first.Snapshot()
		return ok
	}, time.Second, 5*time.Millisecond)

	t.Run("stop on logout", func(t *testing.T) {
		reg.Stop("browser-2")
		require.Equal(t, 1, reg.Len())
	})

	t.Run("idle refreshers are stopped", func(t *testing.T) {
		now = now.Add(11 * time.Minute)
		require.Equal(t, 1, reg.StopIdle())
		require.Equal(t, 0, reg.Len())
		require.False(t, first.Refresh(context.Background()))
	})
}
