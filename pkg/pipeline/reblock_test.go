package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chicogong/avpipeline/pkg/avutil"
)

func TestPtsFromSamples(t *testing.T) {
	tb, err := avutil.NewRational(1, 48000)
	require.NoError(t, err)

	pts, err := ptsFromSamples(48000, 48000, tb)
	require.NoError(t, err)
	assert.Equal(t, int64(48000), pts)

	pts, err = ptsFromSamples(0, 48000, tb)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pts)
}

func TestPtsFromSamples_DifferentTimeBase(t *testing.T) {
	// 44100 samples (one second) at 44100Hz expressed in a 1/1000
	// (millisecond) time base.
	tb, err := avutil.NewRational(1, 1000)
	require.NoError(t, err)

	pts, err := ptsFromSamples(44100, 44100, tb)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pts)
}

func TestPtsFromSamples_ZeroTimeBaseFallsBackToSampleCount(t *testing.T) {
	pts, err := ptsFromSamples(100, 48000, avutil.Rational{})
	require.NoError(t, err)
	assert.Equal(t, int64(100), pts)
}
