// Package whisper provides an stt.Model backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model weights are loaded once in New and shared across all sessions;
// each Transcribe call creates a fresh whisper context, so concurrent calls
// do not interfere.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/Ddhuet/Vocalis/pkg/provider/stt"
)

const defaultLanguage = "en"

// Compile-time assertion that Model satisfies stt.Model.
var _ stt.Model = (*Model)(nil)

// Option is a functional option for configuring a Model.
type Option func(*Model)

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en",
// "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(m *Model) { m.language = lang }
}

// Model implements stt.Model using a locally loaded whisper.cpp model.
type Model struct {
	model    whisperlib.Model
	language string
}

// New loads the whisper.cpp model from the given file path. The caller must
// call Close when the model is no longer needed.
func New(modelPath string, opts ...Option) (*Model, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	m := &Model{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Close releases the whisper model.
func (m *Model) Close() error {
	if m.model != nil {
		return m.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp inference over samples using a fresh context
// and returns the concatenated segment text. Each whisper context is NOT
// thread-safe, but the underlying model can be shared across goroutines.
func (m *Model) Transcribe(ctx context.Context, samples []float32) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	wctx, err := m.model.NewContext()
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(m.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", m.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return stt.Result{
		Text:     strings.Join(parts, " "),
		Language: m.language,
	}, nil
}
