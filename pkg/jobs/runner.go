// Package jobs implements the declarative job layer's execution step.
// Runner resolves a schemas.JobSpec's inputs and outputs through
// storage.Storage backends, builds one pipeline.Stage chain per
// Operation, and drives every operation through a single pipeline.Named
// call. Grounded on the teacher's pkg/executor (Executor+
// StorageManager): same download/stage/run/upload/cleanup shape,
// generalized from "build an FFmpeg command line and shell out" to
// "compose typed pipeline stages" now that pipeline.Named replaces the
// external process entirely.
package jobs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chicogong/avpipeline/pkg/avutil"
	"github.com/chicogong/avpipeline/pkg/decoder"
	"github.com/chicogong/avpipeline/pkg/demux"
	"github.com/chicogong/avpipeline/pkg/encoder"
	"github.com/chicogong/avpipeline/pkg/filter"
	"github.com/chicogong/avpipeline/pkg/mux"
	"github.com/chicogong/avpipeline/pkg/pipeline"
	"github.com/chicogong/avpipeline/pkg/schemas"
	"github.com/chicogong/avpipeline/pkg/storage"
)

// Runner executes one schemas.JobSpec at a time. The zero value is not
// usable; construct with NewRunner.
type Runner struct {
	local *storage.LocalStorage
	http  *storage.HTTPStorage
	s3    *storage.S3Storage
	log   zerolog.Logger
}

// Options configures NewRunner.
type Options struct {
	Logger zerolog.Logger
}

// NewRunner constructs a Runner. S3 support is best-effort the way the
// teacher's NewStorageManager made it: missing AWS credentials only fail
// a job that actually references an s3:// URI, not construction.
func NewRunner(opts *Options) *Runner {
	if opts == nil {
		opts = &Options{}
	}
	r := &Runner{
		local: storage.NewLocalStorage(),
		http:  storage.NewHTTPStorage(),
		log:   opts.Logger,
	}
	if s3, err := storage.NewS3Storage(context.Background()); err == nil {
		r.s3 = s3
	}
	return r
}

func (r *Runner) backendFor(scheme string) (storage.Storage, error) {
	switch scheme {
	case "file":
		return r.local, nil
	case "http", "https":
		return r.http, nil
	case "s3":
		if r.s3 == nil {
			return nil, fmt.Errorf("s3 storage not configured (missing AWS credentials)")
		}
		return r.s3, nil
	default:
		return nil, fmt.Errorf("unsupported uri scheme %q", scheme)
	}
}

// ProgressFunc receives one track's progress as a run proceeds.
type ProgressFunc func(schemas.TrackProgress)

// Run executes spec end to end: stage every input locally, open each
// with demux.Open, build one pipeline.Track per operation, drive them
// all through a single pipeline.Named call, and upload finished outputs
// back to their original destinations. The returned OutputFiles are in
// spec.Outputs order.
func (r *Runner) Run(ctx context.Context, spec *schemas.JobSpec, onProgress ProgressFunc) ([]schemas.OutputFile, error) {
	tempDir, err := os.MkdirTemp("", "avpipeline-run-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer r.cleanupTempDir(tempDir)

	inputs := make(map[string]*demux.MediaInput, len(spec.Inputs))
	defer func() {
		for _, mi := range inputs {
			mi.Close()
		}
	}()
	for _, in := range spec.Inputs {
		localPath, err := r.stageInput(ctx, in.Source, tempDir)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", in.ID, err)
		}
		mi, err := demux.Open(localPath, &demux.Options{Logger: r.log})
		if err != nil {
			return nil, fmt.Errorf("input %q: open: %w", in.ID, err)
		}
		inputs[in.ID] = mi
	}

	type pendingOutput struct {
		localPath   string
		destination string
	}
	pendingOutputs := make(map[string]pendingOutput, len(spec.Outputs))
	outputs := make(map[string]*mux.MediaOutput, len(spec.Outputs))
	defer func() {
		for _, mo := range outputs {
			mo.Close()
		}
	}()
	for _, out := range spec.Outputs {
		localPath, err := r.localOutputPath(out, tempDir)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", out.ID, err)
		}
		pendingOutputs[out.ID] = pendingOutput{localPath: localPath, destination: out.Destination}

		mo, err := mux.Create(localPath, &mux.Options{FormatName: out.Format})
		if err != nil {
			return nil, fmt.Errorf("output %q: create: %w", out.ID, err)
		}
		outputs[out.ID] = mo
	}

	tracks := make(map[string]pipeline.Track, len(spec.Operations))
	var opened []pipeline.Stage
	defer func() {
		for _, st := range opened {
			st.Close()
		}
	}()

	for i, op := range spec.Operations {
		mi, stream, err := resolveOperationInput(inputs, op.Input)
		if err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i, op.Name, err)
		}
		mo, ok := outputs[op.Output]
		if !ok {
			return nil, fmt.Errorf("operation %d (%s): output %q not declared", i, op.Name, op.Output)
		}

		stages, err := buildOperationStages(op, stream)
		if err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i, op.Name, err)
		}
		opened = append(opened, stages...)

		name := op.Name
		if name == "" {
			name = fmt.Sprintf("op%d", i)
		}
		tracks[name] = pipeline.Track{
			Source: pipeline.Source{Input: mi, Stream: stream},
			Stages: stages,
			Sink:   pipeline.Sink{Output: mo},
		}
	}

	popts := &pipeline.Options{Logger: r.log}
	if onProgress != nil {
		popts.OnProgress = func(track string, p pipeline.Progress) {
			onProgress(schemas.TrackProgress{
				Track:          track,
				UnitsProcessed: p.UnitsProcessed,
				CurrentPTS:     p.CurrentPTS,
			})
		}
	}
	ctrl, err := pipeline.Named(ctx, tracks, pipeline.Sink{}, popts)
	if err != nil {
		return nil, err
	}
	<-ctrl.Completion()
	if err := ctrl.Err(); err != nil {
		return nil, err
	}

	results := make([]schemas.OutputFile, 0, len(spec.Outputs))
	for _, out := range spec.Outputs {
		pending := pendingOutputs[out.ID]
		info, err := os.Stat(pending.localPath)
		if err != nil {
			return nil, fmt.Errorf("output %q: stat: %w", out.ID, err)
		}
		if err := r.publishOutput(ctx, pending.localPath, pending.destination); err != nil {
			return nil, fmt.Errorf("output %q: publish: %w", out.ID, err)
		}
		results = append(results, schemas.OutputFile{
			OutputID:    out.ID,
			Destination: out.Destination,
			FileSize:    info.Size(),
		})
	}

	return results, nil
}

// stageInput resolves source to a path demux.Open can read directly:
// file:// URIs are used as-is (libav reads the local filesystem itself),
// anything else is downloaded into tempDir first.
func (r *Runner) stageInput(ctx context.Context, source, tempDir string) (string, error) {
	scheme, path, err := storage.ParseURI(source)
	if err != nil {
		return "", err
	}
	if scheme == "file" {
		return path, nil
	}

	backend, err := r.backendFor(scheme)
	if err != nil {
		return "", err
	}
	reader, err := backend.Get(ctx, source)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer reader.Close()

	name := filepath.Base(path)
	if name == "" || name == "." || name == "/" {
		name = "input"
	}
	localPath := filepath.Join(tempDir, name)
	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, reader); err != nil {
		return "", fmt.Errorf("write staging file: %w", err)
	}
	return localPath, nil
}

// localOutputPath returns the path mux.Create should write to: the
// destination's own path for file:// URIs (after creating its parent
// directory), or a temp staging path for anything remote, uploaded by
// publishOutput once the run completes.
func (r *Runner) localOutputPath(out schemas.Output, tempDir string) (string, error) {
	scheme, path, err := storage.ParseURI(out.Destination)
	if err != nil {
		return "", err
	}
	if scheme == "file" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("create destination directory: %w", err)
		}
		return path, nil
	}

	name := filepath.Base(path)
	if name == "" || name == "." || name == "/" {
		name = fmt.Sprintf("output-%s", out.ID)
	}
	return filepath.Join(tempDir, name), nil
}

// publishOutput uploads localPath to destination unless destination is
// already the file localPath was written to (the file:// case, handled
// directly by mux.Create).
func (r *Runner) publishOutput(ctx context.Context, localPath, destination string) error {
	scheme, path, err := storage.ParseURI(destination)
	if err != nil {
		return err
	}
	if scheme == "file" && path == localPath {
		return nil
	}

	backend, err := r.backendFor(scheme)
	if err != nil {
		return err
	}
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local output: %w", err)
	}
	defer f.Close()
	return backend.Put(ctx, destination, f)
}

// cleanupTempDir removes a run's temp directory, refusing (like the
// teacher's CleanupTempDir) to touch anything that doesn't look like one.
func (r *Runner) cleanupTempDir(tempDir string) {
	if tempDir == "" || tempDir == "/" || tempDir == "." {
		return
	}
	if !strings.Contains(tempDir, "avpipeline-run-") {
		return
	}
	os.RemoveAll(tempDir)
}

// resolveOperationInput splits op.Input into a base input ID and
// optional ":video"/":audio"/":subtitle" stream-kind suffix, and resolves
// it against the opened demux.MediaInput.
func resolveOperationInput(inputs map[string]*demux.MediaInput, ref string) (*demux.MediaInput, *demux.Stream, error) {
	id, kind := ref, ""
	if i := strings.LastIndexByte(ref, ':'); i >= 0 {
		id, kind = ref[:i], ref[i+1:]
	}

	mi, ok := inputs[id]
	if !ok {
		return nil, nil, fmt.Errorf("references undeclared input %q", id)
	}

	var (
		stream *demux.Stream
		err    error
	)
	switch kind {
	case "video":
		stream, err = mi.Video()
	case "audio":
		stream, err = mi.Audio()
	case "subtitle":
		stream, err = mi.Subtitles()
	case "":
		stream, err = mi.Video()
		if err != nil {
			stream, err = mi.Audio()
		}
	default:
		return nil, nil, fmt.Errorf("unknown stream kind %q", kind)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("resolve stream: %w", err)
	}
	return mi, stream, nil
}

// buildOperationStages builds the stage chain an Operation describes: a
// bare stream copy (no Codec) is a single PassthroughStage, otherwise a
// decoder, an optional filter, and an encoder (spec.md's "operation
// chain" shape, §4.8's decoder->filter->encoder track).
func buildOperationStages(op schemas.Operation, stream *demux.Stream) ([]pipeline.Stage, error) {
	if op.Codec == nil {
		return []pipeline.Stage{pipeline.NewPassthroughStage(pipeline.UnitPacket)}, nil
	}

	dec, err := decoder.New(stream.Params, nil)
	if err != nil {
		return nil, fmt.Errorf("open decoder: %w", err)
	}
	stages := []pipeline.Stage{pipeline.NewDecoderStage(dec)}

	expr := operationFilterExpression(op)
	if expr != "" {
		stages = append(stages, pipeline.NewFilterStage(filter.New(expr), avutil.FromCodecParameters(stream.Params, stream.TimeBase(), stream.FrameRate())))
	}

	encOpts, err := encoderOptionsFor(stream.Params.Kind, op.Codec)
	if err != nil {
		return nil, err
	}
	enc, err := encoder.New(*encOpts)
	if err != nil {
		return nil, fmt.Errorf("open encoder: %w", err)
	}
	stages = append(stages, pipeline.NewEncoderStage(enc, stream.TimeBase()))

	return stages, nil
}

// operationFilterExpression returns op.Filter, with an "aformat" stage
// appended when AudioCodec.SampleRate/Channels force a rate or layout the
// source may not already be in; encoder.Options has no field for either,
// since the encoder otherwise adopts whatever the upstream frame carries
// (spec.md §4.4's lazy-open rule).
func operationFilterExpression(op schemas.Operation) string {
	expr := op.Filter
	if op.Codec == nil || op.Codec.Audio == nil {
		return expr
	}
	ac := op.Codec.Audio
	var parts []string
	if ac.SampleRate > 0 {
		parts = append(parts, fmt.Sprintf("sample_rates=%d", ac.SampleRate))
	}
	if ac.Channels > 0 {
		parts = append(parts, fmt.Sprintf("channel_layouts=%s", channelLayoutName(ac.Channels)))
	}
	if len(parts) == 0 {
		return expr
	}
	aformat := "aformat=" + strings.Join(parts, ":")
	if expr == "" {
		return aformat
	}
	return expr + "," + aformat
}

func channelLayoutName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return strconv.Itoa(channels) + "c"
	}
}

// encoderOptionsFor builds encoder.Options from the codec parameters an
// Operation declares for its output track's media kind. CRF/Preset/
// Profile/PixelFormat have no dedicated encoder.Options field, so they
// are folded into the native AVOption dictionary the way the teacher's
// CommandBuilder folded them into "-crf"/"-preset"/"-profile" flags.
func encoderOptionsFor(kind avutil.MediaKind, codec *schemas.CodecParams) (*encoder.Options, error) {
	switch kind {
	case avutil.MediaKindVideo:
		if codec.Video == nil {
			return nil, fmt.Errorf("video stream requires codec.video")
		}
		v := codec.Video
		opts := &encoder.Options{Codec: v.Codec, Bitrate: v.Bitrate, GOPSize: v.GOPSize}
		dict := avutil.NewDictionary()
		if v.CRF != nil {
			dict.Set("crf", strconv.Itoa(*v.CRF), 0)
		}
		if v.Preset != "" {
			dict.Set("preset", v.Preset, 0)
		}
		if v.Profile != "" {
			dict.Set("profile", v.Profile, 0)
		}
		if v.PixelFormat != "" {
			dict.Set("pix_fmt", v.PixelFormat, 0)
		}
		opts.Options = dict
		return opts, nil
	case avutil.MediaKindAudio:
		if codec.Audio == nil {
			return nil, fmt.Errorf("audio stream requires codec.audio")
		}
		a := codec.Audio
		return &encoder.Options{Codec: a.Codec, Bitrate: a.Bitrate}, nil
	default:
		return nil, fmt.Errorf("unsupported media kind for encoding")
	}
}
