package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControl_StopIsIdempotent(t *testing.T) {
	var cancels int
	_, cancel := context.WithCancel(context.Background())
	ctrl := newControl(func() { cancels++; cancel() })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctrl.Stop()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, cancels)
	assert.True(t, ctrl.IsStopped())
}

func TestControl_FinishAfterStopSuppressesError(t *testing.T) {
	ctrl := newControl(func() {})
	ctrl.Stop()
	ctrl.finish(errors.New("boom"))

	<-ctrl.Completion()
	require.NoError(t, ctrl.Err())
}

func TestControl_FinishWithoutStopKeepsError(t *testing.T) {
	ctrl := newControl(func() {})
	ctrl.finish(errors.New("boom"))

	<-ctrl.Completion()
	require.EqualError(t, ctrl.Err(), "boom")
}

func TestControl_CompletionClosesExactlyOnce(t *testing.T) {
	ctrl := newControl(func() {})
	ctrl.finish(nil)

	select {
	case <-ctrl.Completion():
	default:
		t.Fatal("completion channel should already be closed")
	}
	require.NoError(t, ctrl.Err())
}
