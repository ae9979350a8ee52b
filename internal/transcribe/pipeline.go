// Package transcribe implements the speech-to-text pipeline: it decodes
// incoming audio buffers, normalizes and resamples them to the model's
// expected rate, and runs recognition through an stt.Model.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/Ddhuet/Vocalis/internal/observe"
	"github.com/Ddhuet/Vocalis/pkg/audio"
	"github.com/Ddhuet/Vocalis/pkg/provider/stt"
)

// ErrBusy is returned when a transcription is requested while another run is
// already in progress on the same Pipeline.
var ErrBusy = errors.New("transcribe: pipeline busy")

const (
	defaultTargetRate   = 16000
	defaultFallbackRate = 44100
	defaultLanguage     = "en"
)

// Outcome classifies how a pipeline run completed.
type Outcome string

const (
	// OutcomeSuccess means the input decoded cleanly and recognition ran.
	OutcomeSuccess Outcome = "success"

	// OutcomeDegraded means the input could not be parsed as WAV and was
	// decoded with the raw 8-bit fallback before recognition ran.
	OutcomeDegraded Outcome = "degraded"

	// OutcomeFailed means no transcript was produced.
	OutcomeFailed Outcome = "failed"
)

// Metadata describes a completed pipeline run.
type Metadata struct {
	Confidence       float64
	Language         string
	ProcessingTime   time.Duration
	InputDuration    time.Duration
	InputSampleRate  int
	TargetSampleRate int
}

// Result is the outcome of a single transcription.
type Result struct {
	Text     string
	Outcome  Outcome
	Metadata Metadata
	// Err is set when Outcome is OutcomeFailed.
	Err error
}

// StreamResult is one record emitted by TranscribeStream.
type StreamResult struct {
	Text       string
	Start      float64
	End        float64
	Confidence float64
	// Err is set on the final record when the stream failed.
	Err error
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline)

// WithTargetSampleRate sets the sample rate the model expects. Defaults to
// 16000 Hz.
func WithTargetSampleRate(rate int) Option {
	return func(p *Pipeline) { p.targetRate = rate }
}

// WithFallbackSampleRate sets the rate assumed for audio that cannot be
// parsed as WAV. Defaults to 44100 Hz.
func WithFallbackSampleRate(rate int) Option {
	return func(p *Pipeline) { p.fallbackRate = rate }
}

// WithLanguage sets the language reported in result metadata. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Pipeline) { p.language = lang }
}

// WithMetrics attaches metric instruments to the pipeline. When unset, the
// package-level default metrics are used.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline turns raw audio buffers into transcripts. A Pipeline runs one
// transcription at a time; concurrent calls fail fast with ErrBusy rather
// than queueing, so the caller can drop stale audio instead of falling
// behind a live conversation.
type Pipeline struct {
	model        stt.Model
	targetRate   int
	fallbackRate int
	language     string
	metrics      *observe.Metrics

	busy atomic.Bool
}

// New creates a Pipeline around the given recognition model.
func New(model stt.Model, opts ...Option) *Pipeline {
	p := &Pipeline{
		model:        model,
		targetRate:   defaultTargetRate,
		fallbackRate: defaultFallbackRate,
		language:     defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Busy reports whether a transcription is currently in progress.
func (p *Pipeline) Busy() bool {
	return p.busy.Load()
}

// Transcribe decodes a raw audio buffer and runs recognition on it.
//
// The buffer is first parsed as a WAV file: the header yields the sample rate
// and channel count, and the payload is decoded as 16-bit PCM with stereo
// downmixed to mono. Buffers that do not parse as WAV are decoded as raw
// unsigned 8-bit samples at the fallback rate, and the run is reported as
// OutcomeDegraded.
func (p *Pipeline) Transcribe(ctx context.Context, raw []byte) Result {
	if !p.busy.CompareAndSwap(false, true) {
		return Result{Outcome: OutcomeFailed, Err: ErrBusy}
	}
	defer p.busy.Store(false)

	info, err := audio.ParseWAVHeader(raw)
	if err != nil {
		slog.Warn("audio buffer is not valid WAV, falling back to raw 8-bit decode",
			"size", len(raw), "error", err)
		frame := audio.Frame{Samples: audio.DecodePCM8(raw), SampleRate: p.fallbackRate, Channels: 1}
		return p.run(ctx, frame, OutcomeDegraded)
	}

	frame := audio.Frame{
		Samples:    audio.DecodePCM16(raw[info.DataOffset:], info.Channels),
		SampleRate: info.SampleRate,
		Channels:   1,
	}
	return p.run(ctx, frame, OutcomeSuccess)
}

// TranscribeWaveform runs recognition on already-decoded samples assumed to
// be at the fallback sample rate.
func (p *Pipeline) TranscribeWaveform(ctx context.Context, samples []float32) Result {
	if !p.busy.CompareAndSwap(false, true) {
		return Result{Outcome: OutcomeFailed, Err: ErrBusy}
	}
	defer p.busy.Store(false)

	frame := audio.Frame{Samples: samples, SampleRate: p.fallbackRate, Channels: 1}
	return p.run(ctx, frame, OutcomeSuccess)
}

// TranscribeStream accumulates sample chunks already at the target rate and
// runs recognition once the input channel closes. The returned channel emits
// a single record for non-empty input and is then closed; empty input
// produces no records.
//
// Accumulating before recognition trades first-word latency for accuracy:
// the model sees the whole utterance, so short chunks are never transcribed
// out of context.
func (p *Pipeline) TranscribeStream(ctx context.Context, chunks <-chan []float32) <-chan StreamResult {
	out := make(chan StreamResult, 1)

	go func() {
		defer close(out)

		var samples []float32
		for {
			select {
			case chunk, ok := <-chunks:
				if !ok {
					p.flushStream(ctx, samples, out)
					return
				}
				samples = append(samples, chunk...)
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// flushStream transcribes the accumulated samples and emits the final record.
func (p *Pipeline) flushStream(ctx context.Context, samples []float32, out chan<- StreamResult) {
	if len(samples) == 0 {
		return
	}

	if !p.busy.CompareAndSwap(false, true) {
		out <- StreamResult{Err: ErrBusy}
		return
	}
	defer p.busy.Store(false)

	start := time.Now()
	result, err := p.model.Transcribe(ctx, audio.NormalizePeak(samples))
	if err != nil {
		p.recordRun(ctx, time.Since(start), OutcomeFailed)
	} else {
		p.recordRun(ctx, time.Since(start), OutcomeSuccess)
	}
	if err != nil {
		out <- StreamResult{Err: fmt.Errorf("transcribe stream: %w", err)}
		return
	}

	out <- StreamResult{
		Text:       result.Text,
		Start:      0,
		End:        float64(len(samples)) / float64(p.targetRate),
		Confidence: result.Confidence,
	}
}

// run normalizes, resamples, and transcribes a decoded frame. okOutcome is
// the outcome reported on success: OutcomeSuccess for clean decodes,
// OutcomeDegraded for fallback decodes.
func (p *Pipeline) run(ctx context.Context, frame audio.Frame, okOutcome Outcome) Result {
	start := time.Now()
	meta := Metadata{
		Language:         p.language,
		InputDuration:    frame.Duration(),
		InputSampleRate:  frame.SampleRate,
		TargetSampleRate: p.targetRate,
	}

	fail := func(err error) Result {
		meta.ProcessingTime = time.Since(start)
		p.recordRun(ctx, meta.ProcessingTime, OutcomeFailed)
		return Result{Outcome: OutcomeFailed, Metadata: meta, Err: err}
	}

	if len(frame.Samples) == 0 {
		return fail(errors.New("transcribe: no samples decoded"))
	}

	samples := audio.NormalizePeak(frame.Samples)

	resampled, err := audio.Resample(samples, frame.SampleRate, p.targetRate)
	if err != nil {
		return fail(fmt.Errorf("transcribe: resample %d -> %d: %w", frame.SampleRate, p.targetRate, err))
	}

	result, err := p.model.Transcribe(ctx, resampled)
	if err != nil {
		return fail(fmt.Errorf("transcribe: recognition: %w", err))
	}

	meta.Confidence = result.Confidence
	if result.Language != "" {
		meta.Language = result.Language
	}
	meta.ProcessingTime = time.Since(start)
	p.recordRun(ctx, meta.ProcessingTime, okOutcome)

	return Result{
		Text:     result.Text,
		Outcome:  okOutcome,
		Metadata: meta,
	}
}

// recordRun records duration and outcome metrics for one recognition call.
func (p *Pipeline) recordRun(ctx context.Context, d time.Duration, outcome Outcome) {
	p.metrics.STTDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(observe.Attr("language", p.language)))
	p.metrics.RecordTranscription(ctx, string(outcome))
}
