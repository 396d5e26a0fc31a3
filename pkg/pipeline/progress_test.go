package pipeline

import (
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"

	"github.com/chicogong/avpipeline/pkg/avutil"
)

func TestTrackRun_EmitReportsProgress(t *testing.T) {
	tb, err := avutil.NewRational(1, 1000)
	require.NoError(t, err)

	var seen []Progress
	run := &trackRun{
		name: "video",
		sink: Sink{FrameFunc: func(*astiav.Frame) error { return nil }},
		onProgress: func(track string, p Progress) {
			require.Equal(t, "video", track)
			seen = append(seen, p)
		},
	}

	for _, pts := range []int64{0, 1000, 2000} {
		f := astiav.AllocFrame()
		f.SetPts(pts)
		require.NoError(t, run.emit(Unit{Kind: UnitFrame, Frame: f}, tb))
	}

	require.Len(t, seen, 3)
	require.Equal(t, int64(1), seen[0].UnitsProcessed)
	require.Equal(t, int64(3), seen[2].UnitsProcessed)
	require.Equal(t, 2.0, seen[2].CurrentPTS)
}

func TestTrackRun_EmitWithoutCallbackIsSafe(t *testing.T) {
	tb, err := avutil.NewRational(1, 1000)
	require.NoError(t, err)

	run := &trackRun{name: "audio", sink: Sink{FrameFunc: func(*astiav.Frame) error { return nil }}}
	f := astiav.AllocFrame()
	f.SetPts(0)
	require.NoError(t, run.emit(Unit{Kind: UnitFrame, Frame: f}, tb))
}
