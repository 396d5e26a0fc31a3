package jobs

import (
	"testing"

	"github.com/chicogong/avpipeline/pkg/schemas"
)

func TestOperationFilterExpression(t *testing.T) {
	cases := []struct {
		name string
		op   schemas.Operation
		want string
	}{
		{
			name: "no codec",
			op:   schemas.Operation{Filter: "trim=start=1"},
			want: "trim=start=1",
		},
		{
			name: "video codec leaves filter untouched",
			op: schemas.Operation{
				Filter: "scale=1280:720",
				Codec:  &schemas.CodecParams{Video: &schemas.VideoCodec{Codec: "libx264"}},
			},
			want: "scale=1280:720",
		},
		{
			name: "audio sample rate appends aformat",
			op: schemas.Operation{
				Codec: &schemas.CodecParams{Audio: &schemas.AudioCodec{Codec: "aac", SampleRate: 48000}},
			},
			want: "aformat=sample_rates=48000",
		},
		{
			name: "audio rate and channels combine, chained after existing filter",
			op: schemas.Operation{
				Filter: "atrim=start=1",
				Codec:  &schemas.CodecParams{Audio: &schemas.AudioCodec{Codec: "aac", SampleRate: 44100, Channels: 2}},
			},
			want: "atrim=start=1,aformat=sample_rates=44100:channel_layouts=stereo",
		},
		{
			name: "audio codec with no rate or channel override",
			op: schemas.Operation{
				Codec: &schemas.CodecParams{Audio: &schemas.AudioCodec{Codec: "aac"}},
			},
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := operationFilterExpression(tc.op)
			if got != tc.want {
				t.Errorf("operationFilterExpression(%+v) = %q, want %q", tc.op, got, tc.want)
			}
		})
	}
}

func TestChannelLayoutName(t *testing.T) {
	cases := []struct {
		channels int
		want     string
	}{
		{1, "mono"},
		{2, "stereo"},
		{6, "6c"},
	}
	for _, tc := range cases {
		if got := channelLayoutName(tc.channels); got != tc.want {
			t.Errorf("channelLayoutName(%d) = %q, want %q", tc.channels, got, tc.want)
		}
	}
}

func TestResolveOperationInput_UndeclaredInput(t *testing.T) {
	_, _, err := resolveOperationInput(nil, "missing:video")
	if err == nil {
		t.Fatal("expected an error for an undeclared input")
	}
}
