// Package config provides the configuration schema and loader for the
// Vocalis server.
package config

// LogLevel controls log verbosity for the Vocalis server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Vocalis.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Audio      AudioConfig      `yaml:"audio"`
	Context    ContextConfig    `yaml:"context"`
	Generation GenerationConfig `yaml:"generation"`
}

// ServerConfig holds network and logging settings for the Vocalis server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on. Defaults to ":7744".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Defaults to "info".
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage.
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "openai", "whisper-native").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o") or,
	// for whisper-native, the path to the model weights file.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above (e.g., "voice" for TTS).
	Options map[string]any `yaml:"options"`
}

// StringOption returns the named option as a string, or def when the option
// is absent or not a string.
func (e ProviderEntry) StringOption(key, def string) string {
	if v, ok := e.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// AudioConfig holds sample-rate settings for the transcription pipeline.
type AudioConfig struct {
	// TargetSampleRate is the rate the recognition model expects.
	// Defaults to 16000.
	TargetSampleRate int `yaml:"target_sample_rate"`

	// FallbackSampleRate is assumed for audio that cannot be parsed as WAV.
	// Defaults to 44100.
	FallbackSampleRate int `yaml:"fallback_sample_rate"`
}

// ContextConfig holds conversation history settings.
type ContextConfig struct {
	// ApproximateTokens limits the serialized history size, measured as
	// roughly 4 bytes per token. Defaults to 16000.
	ApproximateTokens int `yaml:"approximate_tokens"`

	// SystemPrompt is the persona message placed at the start of every
	// conversation. Empty means no system prompt.
	SystemPrompt string `yaml:"system_prompt"`
}

// GenerationConfig holds LLM sampling settings.
type GenerationConfig struct {
	// Temperature controls sampling randomness. Defaults to 0.6.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the length of generated replies. Defaults to 2048.
	MaxTokens int `yaml:"max_tokens"`

	// TimeoutSeconds is the per-request timeout for provider calls.
	// Defaults to 20.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Config defaults matching a local single-machine deployment.
const (
	DefaultListenAddr         = ":7744"
	DefaultLLMBaseURL         = "http://127.0.0.1:1234/v1"
	DefaultTTSBaseURL         = "http://localhost:5005"
	DefaultTTSVoice           = "tara"
	DefaultTargetSampleRate   = 16000
	DefaultFallbackSampleRate = 44100
	DefaultApproximateTokens  = 16000
	DefaultTemperature        = 0.6
	DefaultMaxTokens          = 2048
	DefaultTimeoutSeconds     = 20
)

// applyDefaults fills zero-valued fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Providers.LLM.BaseURL == "" && cfg.Providers.LLM.Name == "openai" {
		cfg.Providers.LLM.BaseURL = DefaultLLMBaseURL
	}
	if cfg.Providers.TTS.BaseURL == "" && cfg.Providers.TTS.Name == "orpheus" {
		cfg.Providers.TTS.BaseURL = DefaultTTSBaseURL
	}
	if cfg.Audio.TargetSampleRate == 0 {
		cfg.Audio.TargetSampleRate = DefaultTargetSampleRate
	}
	if cfg.Audio.FallbackSampleRate == 0 {
		cfg.Audio.FallbackSampleRate = DefaultFallbackSampleRate
	}
	if cfg.Context.ApproximateTokens == 0 {
		cfg.Context.ApproximateTokens = DefaultApproximateTokens
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = DefaultTemperature
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = DefaultMaxTokens
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = DefaultTimeoutSeconds
	}
}
