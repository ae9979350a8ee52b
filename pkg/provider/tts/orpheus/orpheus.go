// Package orpheus provides a tts.Provider backed by an Orpheus-FastAPI server
// or any other OpenAI-compatible speech endpoint. Synthesis is performed via
// POST /v1/audio/speech with a JSON body; the server responds with a complete
// WAV clip.
//
// Typical usage:
//
//	p, err := orpheus.New("http://localhost:5005",
//	    orpheus.WithVoice("tara"),
//	    orpheus.WithTimeout(20*time.Second),
//	)
//	audio, err := p.Synthesize(ctx, "Hello there.")
package orpheus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Ddhuet/Vocalis/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

const (
	defaultVoice   = "tara"
	defaultModel   = "tts-1"
	defaultFormat  = "wav"
	defaultTimeout = 30 * time.Second

	speechEndpoint = "/v1/audio/speech"
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithVoice sets the voice name sent to the server. Defaults to "tara".
func WithVoice(voice string) Option {
	return func(p *Provider) {
		p.voice = voice
	}
}

// WithModel sets the model identifier sent to the server. Defaults to "tts-1".
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithFormat sets the response audio format. Defaults to "wav".
func WithFormat(format string) Option {
	return func(p *Provider) {
		p.format = format
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider against an OpenAI-compatible speech
// endpoint. It is safe for concurrent use.
type Provider struct {
	serverURL  string
	voice      string
	model      string
	format     string
	httpClient *http.Client
}

// New creates a new Provider targeting the server at serverURL (e.g.,
// "http://localhost:5005"). serverURL must be non-empty; a trailing
// "/v1/audio/speech" path is accepted and stripped so both base URLs and full
// endpoint URLs work.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("orpheus: serverURL must not be empty")
	}
	serverURL = strings.TrimRight(serverURL, "/")
	serverURL = strings.TrimSuffix(serverURL, speechEndpoint)

	p := &Provider{
		serverURL: serverURL,
		voice:     defaultVoice,
		model:     defaultModel,
		format:    defaultFormat,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// speechRequest is the JSON body sent to POST /v1/audio/speech.
type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("orpheus: text must not be empty")
	}

	body := speechRequest{
		Model:          p.model,
		Input:          text,
		Voice:          p.voice,
		ResponseFormat: p.format,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("orpheus: marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+speechEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("orpheus: create speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("orpheus: POST %s: %w", speechEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("orpheus: POST %s returned status %d", speechEndpoint, resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("orpheus: read audio response: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("orpheus: server returned empty audio")
	}
	return audio, nil
}
