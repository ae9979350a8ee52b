package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/Ddhuet/Vocalis/internal/config"
	"github.com/Ddhuet/Vocalis/internal/observe"
	"github.com/Ddhuet/Vocalis/internal/session"
	"github.com/Ddhuet/Vocalis/internal/transcribe"
	"github.com/Ddhuet/Vocalis/pkg/provider/llm"
	"github.com/Ddhuet/Vocalis/pkg/provider/tts"
)

// maxAudioMessage caps incoming binary frames. A minute of 16-bit stereo at
// 48 kHz is just under 12 MiB.
const maxAudioMessage = 16 << 20

// apologyReply is sent when the LLM call fails; overflow recovery happens
// underneath it so the next turn starts from a fresh history.
const apologyReply = "I'm sorry, I ran into a problem answering that. Could you say it again?"

// clientCommand is a text frame from the client.
type clientCommand struct {
	Type             string `json:"type"`
	KeepSystemPrompt *bool  `json:"keep_system_prompt,omitempty"`
}

// serverEvent is a text frame sent to the client. Binary frames carry
// synthesized audio and follow the reply event they belong to.
type serverEvent struct {
	Type       string  `json:"type"`
	Text       string  `json:"text,omitempty"`
	Outcome    string  `json:"outcome,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// conversation drives one websocket connection: audio in, transcript and
// reply events out. All state is owned by the single run goroutine, which is
// what lets the ContextManager go without a lock.
type conversation struct {
	conn     *websocket.Conn
	pipeline *transcribe.Pipeline
	history  *session.ContextManager
	llm      llm.Provider
	tts      tts.Provider
	gen      config.GenerationConfig
	metrics  *observe.Metrics
}

func newSession(cfg *config.Config, providers Providers, metrics *observe.Metrics, conn *websocket.Conn) *conversation {
	pipeline := transcribe.New(providers.STT,
		transcribe.WithTargetSampleRate(cfg.Audio.TargetSampleRate),
		transcribe.WithFallbackSampleRate(cfg.Audio.FallbackSampleRate),
		transcribe.WithMetrics(metrics),
	)

	history := session.NewContextManager(cfg.Context.ApproximateTokens)
	if cfg.Context.SystemPrompt != "" {
		history.Append(llm.RoleSystem, cfg.Context.SystemPrompt)
	}

	return &conversation{
		conn:     conn,
		pipeline: pipeline,
		history:  history,
		llm:      providers.LLM,
		tts:      providers.TTS,
		gen:      cfg.Generation,
		metrics:  metrics,
	}
}

// run processes messages until the client disconnects or ctx is cancelled.
func (c *conversation) run(ctx context.Context) {
	defer c.conn.CloseNow()
	c.conn.SetReadLimit(maxAudioMessage)

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				slog.Debug("session closed", "status", status)
			} else {
				slog.Warn("websocket read failed", "error", err)
			}
			return
		}

		switch typ {
		case websocket.MessageBinary:
			c.handleAudio(ctx, data)
		case websocket.MessageText:
			c.handleCommand(ctx, data)
		}
	}
}

// handleAudio runs one full conversation turn: transcribe, generate a reply,
// synthesize speech.
func (c *conversation) handleAudio(ctx context.Context, audio []byte) {
	result := c.pipeline.Transcribe(ctx, audio)
	if result.Err != nil {
		observe.Logger(ctx).Warn("transcription failed", "error", result.Err)
		c.send(ctx, serverEvent{Type: "error", Error: "transcription failed"})
		return
	}
	if result.Text == "" {
		c.send(ctx, serverEvent{Type: "transcript", Outcome: string(result.Outcome)})
		return
	}

	c.send(ctx, serverEvent{
		Type:       "transcript",
		Text:       result.Text,
		Outcome:    string(result.Outcome),
		Confidence: result.Metadata.Confidence,
	})

	if evicted := c.history.Append(llm.RoleUser, result.Text); evicted > 0 {
		c.metrics.ContextTrims.Add(ctx, int64(evicted))
	}

	reply := c.generateReply(ctx)
	if evicted := c.history.Append(llm.RoleAssistant, reply); evicted > 0 {
		c.metrics.ContextTrims.Add(ctx, int64(evicted))
	}
	c.send(ctx, serverEvent{Type: "reply", Text: reply})

	c.synthesize(ctx, reply)
}

// generateReply calls the LLM with the current history. On failure it
// returns the apology text; an overflow error additionally resets the
// history so the conversation can continue.
func (c *conversation) generateReply(ctx context.Context) string {
	reqCtx := ctx
	if c.gen.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, time.Duration(c.gen.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.llm.Complete(reqCtx, llm.CompletionRequest{
		Messages:    c.history.History(),
		Temperature: c.gen.Temperature,
		MaxTokens:   c.gen.MaxTokens,
	})
	c.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		c.metrics.RecordProviderRequest(ctx, "llm", "completion", "error")
		c.metrics.RecordProviderError(ctx, "llm", "completion")
		if session.IsContextOverflow(err) {
			observe.Logger(ctx).Warn("context overflow from LLM backend, resetting history", "error", err)
			c.history.Recover()
		} else {
			observe.Logger(ctx).Error("completion failed", "error", err)
		}
		return apologyReply
	}
	c.metrics.RecordProviderRequest(ctx, "llm", "completion", "ok")
	if resp == nil || resp.Content == "" {
		return apologyReply
	}
	return resp.Content
}

// synthesize converts the reply to speech and sends it as a binary frame.
// TTS failures are logged and swallowed; the client already has the text.
func (c *conversation) synthesize(ctx context.Context, text string) {
	if c.tts == nil {
		return
	}

	start := time.Now()
	audio, err := c.tts.Synthesize(ctx, text)
	c.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordProviderRequest(ctx, "tts", "synthesize", "error")
		c.metrics.RecordProviderError(ctx, "tts", "synthesize")
		slog.Warn("speech synthesis failed", "error", err)
		return
	}
	c.metrics.RecordProviderRequest(ctx, "tts", "synthesize", "ok")

	if err := c.conn.Write(ctx, websocket.MessageBinary, audio); err != nil {
		slog.Warn("failed to send audio frame", "error", err)
	}
}

// handleCommand processes a control frame from the client.
func (c *conversation) handleCommand(ctx context.Context, data []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.send(ctx, serverEvent{Type: "error", Error: "malformed command"})
		return
	}

	switch cmd.Type {
	case "clear":
		keep := true
		if cmd.KeepSystemPrompt != nil {
			keep = *cmd.KeepSystemPrompt
		}
		c.history.Clear(keep)
		c.send(ctx, serverEvent{Type: "cleared"})
	default:
		c.send(ctx, serverEvent{Type: "error", Error: "unknown command " + cmd.Type})
	}
}

// send writes a JSON event to the client; write failures are logged only,
// the read loop notices the broken connection on its own.
func (c *conversation) send(ctx context.Context, ev serverEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal event", "type", ev.Type, "error", err)
		return
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("failed to send event", "type", ev.Type, "error", err)
	}
}
