package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chicogong/avpipeline/pkg/avutil"
)

// waitFor fails the test if done does not close within a short deadline,
// the symptom a regressed sinkGroup barrier would produce: the calling
// goroutine hangs forever instead of observing an error.
func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sinkGroup call to return")
	}
}

func TestSinkGroup_AbortReleasesBlockedArrival(t *testing.T) {
	g := newSinkGroup(nil, 2)

	done := make(chan struct{})
	var arriveErr error
	go func() {
		_, arriveErr = g.arrive(context.Background(), &avutil.CodecParameters{}, avutil.Rational{})
		close(done)
	}()

	// Give the goroutine a chance to actually block in arrive's select
	// before the second member aborts (mirroring the other track's
	// priming failing before it ever calls arrive).
	time.Sleep(20 * time.Millisecond)
	g.abort(errors.New("priming failed"))

	waitFor(t, done)
	require.Error(t, arriveErr)
}

func TestSinkGroup_AbortReleasesBlockedTrackDone(t *testing.T) {
	g := newSinkGroup(nil, 2)

	done := make(chan struct{})
	var doneErr error
	go func() {
		doneErr = g.trackDone(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	g.abort(errors.New("drain failed on sibling track"))

	waitFor(t, done)
	require.Error(t, doneErr)
}

func TestSinkGroup_ContextCancelUnblocksArrive(t *testing.T) {
	g := newSinkGroup(nil, 2)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var arriveErr error
	go func() {
		_, arriveErr = g.arrive(ctx, &avutil.CodecParameters{}, avutil.Rational{})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	waitFor(t, done)
	require.ErrorIs(t, arriveErr, context.Canceled)
}

func TestSinkGroup_AbortIsIdempotentAndConcurrencySafe(t *testing.T) {
	g := newSinkGroup(nil, 3)
	done := make(chan struct{})
	go func() {
		g.abort(errors.New("first"))
		g.abort(errors.New("second"))
		close(done)
	}()
	waitFor(t, done)

	_, err := g.arrive(context.Background(), &avutil.CodecParameters{}, avutil.Rational{})
	require.EqualError(t, err, "first")
}
