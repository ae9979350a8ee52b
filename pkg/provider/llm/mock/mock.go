// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify the conversation flow sends correct
// CompletionRequests and to feed controlled replies without a live backend.
//
// Example:
//
//	p := &mock.Provider{
//	    Response: &llm.CompletionResponse{Content: "Hello!"},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/Ddhuet/Vocalis/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider. The zero value returns
// nil responses and nil errors; set Response and Err to control behavior.
type Provider struct {
	mu sync.Mutex

	// Response is returned by Complete. May be nil (returns nil, nil).
	Response *llm.CompletionResponse

	// Err, if non-nil, is returned as the error from Complete.
	Err error

	// Responses, if non-empty, is consumed one call at a time before falling
	// back to Response. Useful for scripting fail-then-recover sequences.
	Responses []ScriptedResponse

	// Calls records every invocation of Complete in order.
	Calls []CompleteCall
}

// ScriptedResponse is one entry in a scripted call sequence.
type ScriptedResponse struct {
	Response *llm.CompletionResponse
	Err      error
}

// Complete records the call and returns the next scripted response, or the
// static Response/Err pair once the script is exhausted.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	p.Calls = append(p.Calls, CompleteCall{Req: req})

	if len(p.Responses) > 0 {
		next := p.Responses[0]
		p.Responses = p.Responses[1:]
		return next.Response, next.Err
	}
	return p.Response, p.Err
}

// CallCount returns the number of Complete calls made so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
