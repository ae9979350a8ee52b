// Package session manages per-conversation state: the rolling chat history
// handed to the LLM and its recovery when the backend rejects an oversized
// context.
package session

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/Ddhuet/Vocalis/pkg/provider/llm"
)

// charsPerToken is the heuristic ratio used for budget estimation.
// English text averages roughly 4 characters per token across common
// LLM tokenizers. This avoids pulling in a tokenizer dependency.
const charsPerToken = 4

// ContextManager holds an ordered chat history and keeps its JSON-serialized
// size under a byte budget derived from an approximate token limit. When the
// budget is exceeded, the oldest non-system messages are evicted first-in
// first-out; a system prompt at index 0 is never evicted.
//
// A ContextManager is not safe for concurrent use. Each conversation is
// driven by a single goroutine, which serializes all access.
type ContextManager struct {
	maxChars int
	messages []llm.Message
}

// NewContextManager creates a ContextManager that keeps the serialized
// history within approxTokens × 4 bytes.
func NewContextManager(approxTokens int) *ContextManager {
	return &ContextManager{
		maxChars: approxTokens * charsPerToken,
		messages: make([]llm.Message, 0),
	}
}

// Append adds a message to the history and evicts the oldest non-system
// messages until the serialized size fits the budget again. It returns the
// number of messages evicted.
func (cm *ContextManager) Append(role, content string) int {
	cm.messages = append(cm.messages, llm.Message{Role: role, Content: content})
	return cm.trim()
}

// trim evicts oldest-first until the history fits the budget or only one
// message remains. A system message at index 0 survives eviction.
func (cm *ContextManager) trim() int {
	evicted := 0
	for cm.serializedSize() > cm.maxChars && len(cm.messages) > 1 {
		if cm.messages[0].Role == llm.RoleSystem {
			cm.messages = append(cm.messages[:1], cm.messages[2:]...)
		} else {
			cm.messages = cm.messages[1:]
		}
		evicted++
	}
	if cm.serializedSize() > cm.maxChars {
		slog.Warn("conversation history over budget with a single message remaining",
			"size", cm.serializedSize(), "budget", cm.maxChars)
	}
	return evicted
}

// History returns a copy of the current conversation, oldest first.
func (cm *ContextManager) History() []llm.Message {
	out := make([]llm.Message, len(cm.messages))
	copy(out, cm.messages)
	return out
}

// Len returns the number of messages currently held.
func (cm *ContextManager) Len() int {
	return len(cm.messages)
}

// SerializedSize returns the JSON-serialized byte size of the history, the
// same measure trim uses against the budget.
func (cm *ContextManager) SerializedSize() int {
	return cm.serializedSize()
}

func (cm *ContextManager) serializedSize() int {
	data, err := json.Marshal(cm.messages)
	if err != nil {
		// Message values contain only strings; Marshal cannot fail on them.
		return 0
	}
	return len(data)
}

// Clear drops the conversation. When keepSystemPrompt is true and the first
// message is a system prompt, that single message is retained.
func (cm *ContextManager) Clear(keepSystemPrompt bool) {
	if keepSystemPrompt && len(cm.messages) > 0 && cm.messages[0].Role == llm.RoleSystem {
		cm.messages = cm.messages[:1]
		return
	}
	cm.messages = cm.messages[:0]
}

// Recover resets the conversation after a context overflow error from the
// backend, retaining the system prompt so the assistant keeps its persona.
func (cm *ContextManager) Recover() {
	cm.Clear(true)
	slog.Info("conversation history reset after context overflow", "messages", len(cm.messages))
}

// overflowMarkers are substrings that identify a context-window overflow in
// backend error text. Local OpenAI-compatible servers report these as plain
// HTTP 400 responses rather than a structured error code.
var overflowMarkers = []string{"400", "context", "too long"}

// IsContextOverflow reports whether err looks like a context-window overflow
// from the LLM backend.
func IsContextOverflow(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range overflowMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
