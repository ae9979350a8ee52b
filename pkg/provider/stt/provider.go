// Package stt defines the Model interface for speech recognition backends.
//
// The model is a shared, read-only handle: one instance is loaded at startup
// and consumed by every session's transcription pipeline. It accepts a
// canonical mono waveform (32-bit float samples at the pipeline's target
// rate) and returns plain text plus whatever confidence and language
// information the backend reports.
//
// Implementations must be safe for concurrent use; sessions may transcribe
// in parallel against the same handle.
package stt

import "context"

// Result is a single recognition result.
type Result struct {
	// Text is the transcribed speech content. Empty when nothing was
	// recognised.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// backend does not report confidence.
	Confidence float64

	// Language is the BCP-47 tag of the recognised language, when reported.
	Language string
}

// Model is the abstraction over any batch speech recognition backend.
type Model interface {
	// Transcribe runs recognition over a complete utterance. samples must be
	// mono 32-bit float PCM in [-1, 1] at the rate the model was built for.
	// The call is synchronous and may take seconds; implementations should
	// honour ctx cancellation where the backend allows it.
	Transcribe(ctx context.Context, samples []float32) (Result, error)
}
