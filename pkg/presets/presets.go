// Package presets builds the textual filter expressions filter.New takes,
// for the handful of operations common enough to deserve a typed
// constructor instead of a hand-written string (spec.md §6 leaves the
// expression syntax itself to the native parser). Grounded on the
// teacher's pkg/operators/builtin scale and trim operators, which compute
// the same arguments for an ffmpeg CLI filtergraph; these return the bare
// expression filter.New expects rather than a labeled subgraph fragment.
package presets

import (
	"fmt"
	"time"

	"github.com/chicogong/avpipeline/pkg/avutil"
)

// ScaleAlgorithm selects the swscale algorithm a Scale expression uses,
// the same enum the teacher's scale operator validates against.
type ScaleAlgorithm string

const (
	ScaleBilinear ScaleAlgorithm = "bilinear"
	ScaleBicubic  ScaleAlgorithm = "bicubic"
	ScaleLanczos  ScaleAlgorithm = "lanczos"
	ScaleNearest  ScaleAlgorithm = "neighbor"
)

// Scale returns a "scale=w:h:flags=algo" expression. Either width or
// height (not both) may be -1 to preserve aspect ratio, matching the
// teacher's scale operator; algo defaults to bicubic when empty.
func Scale(width, height int, algo ScaleAlgorithm) (string, error) {
	if width == -1 && height == -1 {
		return "", avutil.New("presets", avutil.KindInvalidArgument, "both width and height cannot be -1")
	}
	if width <= 0 && width != -1 {
		return "", avutil.New("presets", avutil.KindInvalidArgument, "width must be positive or -1")
	}
	if height <= 0 && height != -1 {
		return "", avutil.New("presets", avutil.KindInvalidArgument, "height must be positive or -1")
	}
	if algo == "" {
		algo = ScaleBicubic
	}
	return fmt.Sprintf("scale=%d:%d:flags=%s", width, height, algo), nil
}

// Trim returns a video-trim expression: "trim=start=S[:duration=D],setpts=PTS-STARTPTS".
// When end is non-zero it takes precedence over duration. Supplying both a
// zero duration and a zero end trims from start to the stream's end.
func Trim(start, duration, end time.Duration) (string, error) {
	if duration > 0 && end > 0 {
		return "", avutil.New("presets", avutil.KindInvalidArgument, "cannot specify both duration and end")
	}
	if start < 0 {
		return "", avutil.New("presets", avutil.KindInvalidArgument, "start must be non-negative")
	}

	trim := fmt.Sprintf("trim=start=%.3f", start.Seconds())
	switch {
	case end > 0:
		if end <= start {
			return "", avutil.New("presets", avutil.KindInvalidArgument, "end must be after start")
		}
		trim += fmt.Sprintf(":duration=%.3f", (end - start).Seconds())
	case duration > 0:
		trim += fmt.Sprintf(":duration=%.3f", duration.Seconds())
	}
	return trim + ",setpts=PTS-STARTPTS", nil
}

// TrimAudio is Trim's audio counterpart: "atrim=...,asetpts=PTS-STARTPTS".
func TrimAudio(start, duration, end time.Duration) (string, error) {
	expr, err := Trim(start, duration, end)
	if err != nil {
		return "", err
	}
	expr = "a" + expr
	// Trim already appended ",setpts=PTS-STARTPTS"; the audio filter name is "asetpts".
	const suffix = ",setpts=PTS-STARTPTS"
	expr = expr[:len(expr)-len(suffix)] + ",asetpts=PTS-STARTPTS"
	return expr, nil
}
