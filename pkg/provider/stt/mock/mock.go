// Package mock provides a scripted stt.Model for tests.
package mock

import (
	"context"
	"sync"

	"github.com/Ddhuet/Vocalis/pkg/provider/stt"
)

var _ stt.Model = (*Model)(nil)

// Model is a scripted speech-to-text model. The zero value returns empty
// results; set Result and Err to control behavior. All calls are recorded.
type Model struct {
	mu sync.Mutex

	// Result is returned from every Transcribe call when Err is nil.
	Result stt.Result
	// Err, if set, is returned from every Transcribe call.
	Err error

	// Calls records the sample slices passed to Transcribe.
	Calls [][]float32
}

// Transcribe records the call and returns the scripted result or error.
func (m *Model) Transcribe(ctx context.Context, samples []float32) (stt.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := make([]float32, len(samples))
	copy(recorded, samples)
	m.Calls = append(m.Calls, recorded)

	if err := ctx.Err(); err != nil {
		return stt.Result{}, err
	}
	if m.Err != nil {
		return stt.Result{}, m.Err
	}
	return m.Result, nil
}

// CallCount returns the number of Transcribe calls made so far.
func (m *Model) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
