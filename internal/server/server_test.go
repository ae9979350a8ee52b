package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Ddhuet/Vocalis/internal/config"
	"github.com/Ddhuet/Vocalis/internal/observe"
	"github.com/Ddhuet/Vocalis/pkg/audio"
	"github.com/Ddhuet/Vocalis/pkg/provider/llm"
	llmmock "github.com/Ddhuet/Vocalis/pkg/provider/llm/mock"
	"github.com/Ddhuet/Vocalis/pkg/provider/stt"
	sttmock "github.com/Ddhuet/Vocalis/pkg/provider/stt/mock"
	ttsmock "github.com/Ddhuet/Vocalis/pkg/provider/tts/mock"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":0", LogLevel: config.LogInfo},
		Providers: config.ProvidersConfig{
			LLM: config.ProviderEntry{Name: "openai", Model: "test-model"},
			STT: config.ProviderEntry{Name: "whisper-native", Model: "/m.bin"},
			TTS: config.ProviderEntry{Name: "orpheus"},
		},
		Audio:      config.AudioConfig{TargetSampleRate: 16000, FallbackSampleRate: 44100},
		Context:    config.ContextConfig{ApproximateTokens: 16000, SystemPrompt: "You are Vocalis."},
		Generation: config.GenerationConfig{Temperature: 0.6, MaxTokens: 128, TimeoutSeconds: 5},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, providers Providers) *Server {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	srv, err := New(cfg, providers, WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

// dial opens a websocket connection to the test server.
func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, "ws"+ts.URL[len("http"):]+"/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

// readEvent reads the next text frame and decodes it.
func readEvent(t *testing.T, conn *websocket.Conn) serverEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("message type = %v, want text", typ)
	}
	var ev serverEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event %q: %v", data, err)
	}
	return ev
}

func TestConversationTurn(t *testing.T) {
	sttModel := &sttmock.Model{Result: stt.Result{Text: "what time is it", Confidence: 0.95}}
	llmProv := &llmmock.Provider{Response: &llm.CompletionResponse{Content: "It is noon."}}
	ttsProv := &ttsmock.Provider{Audio: []byte("RIFFaudio")}

	srv := newTestServer(t, testConfig(), Providers{STT: sttModel, LLM: llmProv, TTS: ttsProv})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts)

	wav := audio.EncodeWAV(make([]byte, 3200), 16000, 1)
	ctx := context.Background()
	if err := conn.Write(ctx, websocket.MessageBinary, wav); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	transcript := readEvent(t, conn)
	if transcript.Type != "transcript" || transcript.Text != "what time is it" {
		t.Fatalf("transcript event = %+v", transcript)
	}
	if transcript.Outcome != "success" {
		t.Errorf("outcome = %q, want success", transcript.Outcome)
	}

	reply := readEvent(t, conn)
	if reply.Type != "reply" || reply.Text != "It is noon." {
		t.Fatalf("reply event = %+v", reply)
	}

	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	typ, data, err := conn.Read(readCtx)
	if err != nil {
		t.Fatalf("read audio frame: %v", err)
	}
	if typ != websocket.MessageBinary || !bytes.Equal(data, []byte("RIFFaudio")) {
		t.Fatalf("audio frame = %v %q", typ, data)
	}

	// The LLM must have seen the system prompt and the user turn.
	if llmProv.CallCount() != 1 {
		t.Fatalf("llm calls = %d, want 1", llmProv.CallCount())
	}
	msgs := llmProv.Calls[0].Req.Messages
	if len(msgs) != 2 || msgs[0].Role != llm.RoleSystem || msgs[1].Content != "what time is it" {
		t.Errorf("llm messages = %+v", msgs)
	}
	if got := ttsProv.Calls[0]; got != "It is noon." {
		t.Errorf("tts input = %q", got)
	}
}

func TestConversationLLMFailureSendsApology(t *testing.T) {
	sttModel := &sttmock.Model{Result: stt.Result{Text: "hello"}}
	llmProv := &llmmock.Provider{Err: errors.New("connection refused")}

	srv := newTestServer(t, testConfig(), Providers{STT: sttModel, LLM: llmProv, TTS: nil})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts)
	wav := audio.EncodeWAV(make([]byte, 320), 16000, 1)
	if err := conn.Write(context.Background(), websocket.MessageBinary, wav); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	_ = readEvent(t, conn) // transcript
	reply := readEvent(t, conn)
	if reply.Type != "reply" || reply.Text != apologyReply {
		t.Fatalf("reply event = %+v, want apology", reply)
	}
}

func TestConversationOverflowResetsHistory(t *testing.T) {
	sttModel := &sttmock.Model{Result: stt.Result{Text: "hello"}}
	llmProv := &llmmock.Provider{
		Responses: []llmmock.ScriptedResponse{
			{Err: errors.New("unexpected status 400: context length exceeded")},
			{Response: &llm.CompletionResponse{Content: "Fresh start."}},
		},
	}

	srv := newTestServer(t, testConfig(), Providers{STT: sttModel, LLM: llmProv})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts)
	ctx := context.Background()
	wav := audio.EncodeWAV(make([]byte, 320), 16000, 1)

	// First turn overflows and is answered with the apology.
	conn.Write(ctx, websocket.MessageBinary, wav)
	_ = readEvent(t, conn)
	if got := readEvent(t, conn); got.Text != apologyReply {
		t.Fatalf("first reply = %+v, want apology", got)
	}

	// Second turn runs against the recovered history: system prompt plus the
	// messages appended after the reset.
	conn.Write(ctx, websocket.MessageBinary, wav)
	_ = readEvent(t, conn)
	if got := readEvent(t, conn); got.Text != "Fresh start." {
		t.Fatalf("second reply = %+v", got)
	}

	msgs := llmProv.Calls[1].Req.Messages
	if msgs[0].Role != llm.RoleSystem {
		t.Fatalf("system prompt lost after recovery: %+v", msgs)
	}
	// Stale turns from before the overflow must be gone.
	for _, m := range msgs[1:] {
		if m.Content == apologyReply && m.Role != llm.RoleAssistant {
			t.Errorf("unexpected message after recovery: %+v", m)
		}
	}
	if len(msgs) > 3 {
		t.Errorf("history after recovery has %d messages, want at most 3", len(msgs))
	}
}

func TestClearCommand(t *testing.T) {
	sttModel := &sttmock.Model{Result: stt.Result{Text: "hi"}}
	llmProv := &llmmock.Provider{Response: &llm.CompletionResponse{Content: "hey"}}

	srv := newTestServer(t, testConfig(), Providers{STT: sttModel, LLM: llmProv})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts)
	ctx := context.Background()

	wav := audio.EncodeWAV(make([]byte, 320), 16000, 1)
	conn.Write(ctx, websocket.MessageBinary, wav)
	_ = readEvent(t, conn)
	_ = readEvent(t, conn)

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"clear"}`)); err != nil {
		t.Fatalf("write command: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "cleared" {
		t.Fatalf("event = %+v, want cleared", ev)
	}

	// Next turn should only carry the system prompt and the new user message.
	conn.Write(ctx, websocket.MessageBinary, wav)
	_ = readEvent(t, conn)
	_ = readEvent(t, conn)

	msgs := llmProv.Calls[1].Req.Messages
	if len(msgs) != 2 {
		t.Fatalf("messages after clear = %d, want 2 (system + user): %+v", len(msgs), msgs)
	}
}

func TestUnknownCommand(t *testing.T) {
	srv := newTestServer(t, testConfig(), Providers{
		STT: &sttmock.Model{},
		LLM: &llmmock.Provider{},
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dial(t, ts)
	if err := conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"dance"}`)); err != nil {
		t.Fatalf("write command: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "error" {
		t.Fatalf("event = %+v, want error", ev)
	}
}

func TestConfigEndpointRedactsSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.Providers.LLM.APIKey = "sk-secret"

	srv := newTestServer(t, cfg, Providers{
		STT: &sttmock.Model{},
		LLM: &llmmock.Provider{},
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/config")
	if err != nil {
		t.Fatalf("GET /config: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["llm_provider"] != "openai" {
		t.Errorf("llm_provider = %v", body["llm_provider"])
	}
	for k, v := range body {
		if s, ok := v.(string); ok && s == "sk-secret" {
			t.Errorf("api key leaked via field %q", k)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, testConfig(), Providers{
		STT: &sttmock.Model{},
		LLM: &llmmock.Provider{},
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestNewValidatesInputs(t *testing.T) {
	if _, err := New(nil, Providers{STT: &sttmock.Model{}, LLM: &llmmock.Provider{}}); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := New(testConfig(), Providers{LLM: &llmmock.Provider{}}); err == nil {
		t.Error("expected error for nil STT model")
	}
	if _, err := New(testConfig(), Providers{STT: &sttmock.Model{}}); err == nil {
		t.Error("expected error for nil LLM provider")
	}
}
