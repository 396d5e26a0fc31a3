// Package schemas defines the declarative job description jobs.Runner
// executes: a JobSpec names inputs, a small operation chain per output
// track, and output destinations, the same three-part shape the teacher's
// JobSpec/ProcessingPlan/Executor pipeline used for its FFmpeg-CLI
// design, minus the intermediate command-plan stage pipeline.Named
// replaces outright.
package schemas

import "fmt"

// JobSpec is the user-submitted job specification.
type JobSpec struct {
	JobID     string            `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	UserID    string            `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Tags      map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`

	Priority int       `json:"priority,omitempty" yaml:"priority,omitempty"`
	Timeout  *Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	Inputs     []Input     `json:"inputs" yaml:"inputs"`
	Operations []Operation `json:"operations" yaml:"operations"`
	Outputs    []Output    `json:"outputs" yaml:"outputs"`

	Limits *ResourceLimits `json:"limits,omitempty" yaml:"limits,omitempty"`

	WebhookURL string `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
}

// Input names one source track, by URI, the runner resolves through a
// storage.Storage backend before it is opened with demux.Open.
type Input struct {
	ID          string            `json:"id" yaml:"id"`
	Source      string            `json:"source" yaml:"source"`
	StartOffset *Duration         `json:"start_offset,omitempty" yaml:"start_offset,omitempty"`
	Duration    *Duration         `json:"duration,omitempty" yaml:"duration,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Operation is one named track of the job: Input selects a demuxed
// stream (by Input.ID, optionally suffixed ":video"/":audio"), Filter is
// an optional textual filter expression (hand-written, or built with
// presets.Scale/presets.Trim) applied between decode and encode, and
// Output selects which Output.ID the resulting packets are written to.
// An Operation with no Codec is a stream-copy track, and its Filter is
// not applied; an Operation with a Codec opens a decoder, the filter (if
// any), and an encoder.
type Operation struct {
	Name   string       `json:"name" yaml:"name"`
	Input  string       `json:"input" yaml:"input"`
	Filter string       `json:"filter,omitempty" yaml:"filter,omitempty"`
	Codec  *CodecParams `json:"codec,omitempty" yaml:"codec,omitempty"`
	Output string       `json:"output" yaml:"output"`
}

// Output represents an output destination.
type Output struct {
	ID          string            `json:"id" yaml:"id"`
	Destination string            `json:"destination" yaml:"destination"`
	Format      string            `json:"format,omitempty" yaml:"format,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// CodecParams specifies codec settings for one operation's output track.
type CodecParams struct {
	Video *VideoCodec `json:"video,omitempty" yaml:"video,omitempty"`
	Audio *AudioCodec `json:"audio,omitempty" yaml:"audio,omitempty"`
}

// VideoCodec specifies video encoder parameters, passed through to
// encoder.Options (Codec/Bitrate verbatim; CRF/Preset/Profile/PixelFormat
// folded into encoder.Options.Options, the native AVOption dictionary).
type VideoCodec struct {
	Codec       string `json:"codec,omitempty" yaml:"codec,omitempty"`
	Bitrate     string `json:"bitrate,omitempty" yaml:"bitrate,omitempty"`
	CRF         *int   `json:"crf,omitempty" yaml:"crf,omitempty"`
	Preset      string `json:"preset,omitempty" yaml:"preset,omitempty"`
	Profile     string `json:"profile,omitempty" yaml:"profile,omitempty"`
	PixelFormat string `json:"pixel_format,omitempty" yaml:"pixel_format,omitempty"`
	GOPSize     int    `json:"gop_size,omitempty" yaml:"gop_size,omitempty"`
}

// AudioCodec specifies audio encoder parameters.
type AudioCodec struct {
	Codec      string `json:"codec,omitempty" yaml:"codec,omitempty"`
	Bitrate    string `json:"bitrate,omitempty" yaml:"bitrate,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty" yaml:"channels,omitempty"`
}

// ResourceLimits specifies resource constraints the runner enforces
// before and during a run.
type ResourceLimits struct {
	MaxDuration   *Duration `json:"max_duration,omitempty" yaml:"max_duration,omitempty"`
	MaxOutputSize int64     `json:"max_output_size,omitempty" yaml:"max_output_size,omitempty"`
}

// Validate checks structural consistency: every Operation.Input and
// Operation.Output must name a declared Input/Output ID, and every
// Output must be produced by at least one Operation.
func (j *JobSpec) Validate() error {
	if len(j.Inputs) == 0 {
		return fmt.Errorf("job spec must declare at least one input")
	}
	if len(j.Operations) == 0 {
		return fmt.Errorf("job spec must declare at least one operation")
	}
	if len(j.Outputs) == 0 {
		return fmt.Errorf("job spec must declare at least one output")
	}

	inputIDs := make(map[string]bool, len(j.Inputs))
	for i, in := range j.Inputs {
		if in.ID == "" {
			return fmt.Errorf("input %d: id is required", i)
		}
		if inputIDs[in.ID] {
			return fmt.Errorf("input %d: duplicate id %q", i, in.ID)
		}
		inputIDs[in.ID] = true
	}

	outputIDs := make(map[string]bool, len(j.Outputs))
	for i, out := range j.Outputs {
		if out.ID == "" {
			return fmt.Errorf("output %d: id is required", i)
		}
		if outputIDs[out.ID] {
			return fmt.Errorf("output %d: duplicate id %q", i, out.ID)
		}
		outputIDs[out.ID] = true
	}

	usedOutputs := make(map[string]bool, len(j.Outputs))
	for i, op := range j.Operations {
		baseInput, _ := splitInputRef(op.Input)
		if !inputIDs[baseInput] {
			return fmt.Errorf("operation %d: references undeclared input %q", i, op.Input)
		}
		if !outputIDs[op.Output] {
			return fmt.Errorf("operation %d: references undeclared output %q", i, op.Output)
		}
		usedOutputs[op.Output] = true
	}

	for id := range outputIDs {
		if !usedOutputs[id] {
			return fmt.Errorf("output %q is declared but produced by no operation", id)
		}
	}

	return nil
}

// splitInputRef splits an "id" or "id:video"/"id:audio" operation input
// reference into its base input ID and optional stream-kind suffix.
func splitInputRef(ref string) (id string, kind string) {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == ':' {
			return ref[:i], ref[i+1:]
		}
	}
	return ref, ""
}
