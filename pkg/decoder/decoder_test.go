package decoder

import (
	"errors"
	"io"
	"testing"

	"github.com/chicogong/avpipeline/pkg/avutil"
)

func TestSourceExhausted(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"io.EOF", io.EOF, true},
		{"KindEndOfStream", avutil.Err(avutil.KindEndOfStream), true},
		{"KindIO", avutil.New("demux", avutil.KindIO, "short read"), false},
		{"KindMalformedInput", avutil.New("demux", avutil.KindMalformedInput, "bad packet"), false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sourceExhausted(tc.err); got != tc.want {
				t.Errorf("sourceExhausted(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
