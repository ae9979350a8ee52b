// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/Ddhuet/Vocalis/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

// Provider is a scripted tts.Provider. The zero value returns nil audio;
// set Audio and Err to control behavior. All calls are recorded.
type Provider struct {
	mu sync.Mutex

	// Audio is returned from every Synthesize call when Err is nil.
	Audio []byte
	// Err, if set, is returned from every Synthesize call.
	Err error

	// Calls records the text passed to Synthesize, in order.
	Calls []string
}

// Synthesize records the call and returns the scripted audio or error.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, text)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Audio, nil
}

// CallCount returns the number of Synthesize calls made so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
