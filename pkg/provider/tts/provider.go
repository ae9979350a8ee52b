// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., an Orpheus server or
// any OpenAI-compatible /v1/audio/speech endpoint) and turns assistant text
// into encoded audio. Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text into a complete encoded audio clip (typically
	// WAV). Implementations return an error if the backend cannot be reached
	// or rejects the request.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
