package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullConfig = `
server:
  listen_addr: ":9090"
  log_level: debug
providers:
  llm:
    name: openai
    api_key: sk-test
    base_url: http://127.0.0.1:1234/v1
    model: qwen2.5-7b-instruct
  stt:
    name: whisper-native
    model: /models/ggml-base.en.bin
  tts:
    name: orpheus
    base_url: http://localhost:5005
    options:
      voice: tara
audio:
  target_sample_rate: 16000
  fallback_sample_rate: 44100
context:
  approximate_tokens: 16000
  system_prompt: "You are Vocalis, a helpful voice assistant."
generation:
  temperature: 0.6
  max_tokens: 2048
  timeout_seconds: 20
`

func TestLoadFromReaderFullConfig(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(fullConfig))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("log_level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Providers.LLM.Model != "qwen2.5-7b-instruct" {
		t.Errorf("llm model = %q", cfg.Providers.LLM.Model)
	}
	if cfg.Providers.STT.Model != "/models/ggml-base.en.bin" {
		t.Errorf("stt model = %q", cfg.Providers.STT.Model)
	}
	if got := cfg.Providers.TTS.StringOption("voice", "fallback"); got != "tara" {
		t.Errorf("tts voice option = %q, want tara", got)
	}
	if cfg.Context.SystemPrompt == "" {
		t.Error("system_prompt not parsed")
	}
}

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":7744" {
		t.Errorf("default listen_addr = %q, want :7744", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("default log_level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Audio.TargetSampleRate != 16000 {
		t.Errorf("default target rate = %d, want 16000", cfg.Audio.TargetSampleRate)
	}
	if cfg.Audio.FallbackSampleRate != 44100 {
		t.Errorf("default fallback rate = %d, want 44100", cfg.Audio.FallbackSampleRate)
	}
	if cfg.Context.ApproximateTokens != 16000 {
		t.Errorf("default approximate_tokens = %d, want 16000", cfg.Context.ApproximateTokens)
	}
	if cfg.Generation.Temperature != 0.6 {
		t.Errorf("default temperature = %v, want 0.6", cfg.Generation.Temperature)
	}
	if cfg.Generation.MaxTokens != 2048 {
		t.Errorf("default max_tokens = %d, want 2048", cfg.Generation.MaxTokens)
	}
	if cfg.Generation.TimeoutSeconds != 20 {
		t.Errorf("default timeout_seconds = %d, want 20", cfg.Generation.TimeoutSeconds)
	}
}

func TestLoadFromReaderProviderBaseURLDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
providers:
  llm:
    name: openai
    model: test
  tts:
    name: orpheus
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Providers.LLM.BaseURL != "http://127.0.0.1:1234/v1" {
		t.Errorf("llm base_url = %q, want local default", cfg.Providers.LLM.BaseURL)
	}
	if cfg.Providers.TTS.BaseURL != "http://localhost:5005" {
		t.Errorf("tts base_url = %q, want local default", cfg.Providers.TTS.BaseURL)
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
server:
  listen_addrr: ":7744"
`))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadFromReaderInvalidLogLevel(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
server:
  log_level: verbose
`))
	if err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Fatalf("err = %v, want log_level validation error", err)
	}
}

func TestLoadFromReaderWhisperRequiresModelPath(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
providers:
  stt:
    name: whisper-native
`))
	if err == nil || !strings.Contains(err.Error(), "providers.stt.model") {
		t.Fatalf("err = %v, want stt model path validation error", err)
	}
}

func TestLoadFromReaderJoinsMultipleErrors(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
server:
  log_level: loud
generation:
  temperature: 5.0
`))
	if err == nil {
		t.Fatal("expected validation errors, got nil")
	}
	msg := err.Error()
	if !strings.Contains(msg, "log_level") || !strings.Contains(msg, "temperature") {
		t.Errorf("joined error missing entries: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocalis.yaml")
	if err := os.WriteFile(path, []byte(fullConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want :9090", cfg.Server.ListenAddr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/vocalis.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
