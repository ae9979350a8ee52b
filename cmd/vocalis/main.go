// Command vocalis is the main entry point for the Vocalis voice assistant server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Ddhuet/Vocalis/internal/app"
	"github.com/Ddhuet/Vocalis/internal/config"
	"github.com/Ddhuet/Vocalis/internal/observe"
	"github.com/Ddhuet/Vocalis/internal/server"
	"github.com/Ddhuet/Vocalis/pkg/provider/llm/anyllm"
	oaillm "github.com/Ddhuet/Vocalis/pkg/provider/llm/openai"
	"github.com/Ddhuet/Vocalis/pkg/provider/stt/whisper"
	"github.com/Ddhuet/Vocalis/pkg/provider/tts/orpheus"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vocalis: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vocalis: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("vocalis starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetryShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "vocalis",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, closers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	opts := make([]app.Option, 0, len(closers)+1)
	for _, c := range closers {
		opts = append(opts, app.WithCloser(c))
	}
	opts = append(opts, app.WithCloser(func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return telemetryShutdown(shutdownCtx)
	}))

	application, err := app.New(cfg, providers, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProviders instantiates the configured providers. It returns the wired
// provider set plus any cleanup functions (model handles) the caller must run
// at shutdown.
func buildProviders(cfg *config.Config) (server.Providers, []func() error, error) {
	var ps server.Providers
	var closers []func() error

	// STT is mandatory: without a recognition model there is no conversation.
	switch name := cfg.Providers.STT.Name; name {
	case "whisper-native":
		var opts []whisper.Option
		if lang := cfg.Providers.STT.StringOption("language", ""); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		model, err := whisper.New(cfg.Providers.STT.Model, opts...)
		if err != nil {
			return ps, nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.STT = model
		closers = append(closers, model.Close)
		slog.Info("provider created", "kind", "stt", "name", name, "model", cfg.Providers.STT.Model)
	default:
		return ps, nil, fmt.Errorf("unknown stt provider %q", name)
	}

	switch name := cfg.Providers.LLM.Name; name {
	case "openai":
		var opts []oaillm.Option
		if cfg.Providers.LLM.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(cfg.Providers.LLM.BaseURL))
		}
		if cfg.Generation.TimeoutSeconds > 0 {
			opts = append(opts, oaillm.WithTimeout(time.Duration(cfg.Generation.TimeoutSeconds)*time.Second))
		}
		p, err := oaillm.New(cfg.Providers.LLM.APIKey, cfg.Providers.LLM.Model, opts...)
		if err != nil {
			return ps, nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)
	case "":
		return ps, nil, errors.New("no llm provider configured")
	default:
		var opts []anyllmlib.Option
		if cfg.Providers.LLM.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(cfg.Providers.LLM.APIKey))
		}
		if cfg.Providers.LLM.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.Providers.LLM.BaseURL))
		}
		p, err := anyllm.New(name, cfg.Providers.LLM.Model, opts...)
		if err != nil {
			return ps, nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)
	}

	// TTS is optional: without it replies stay text-only.
	if name := cfg.Providers.TTS.Name; name != "" {
		if name != "orpheus" {
			return ps, nil, fmt.Errorf("unknown tts provider %q", name)
		}
		opts := []orpheus.Option{
			orpheus.WithVoice(cfg.Providers.TTS.StringOption("voice", config.DefaultTTSVoice)),
		}
		if cfg.Providers.TTS.Model != "" {
			opts = append(opts, orpheus.WithModel(cfg.Providers.TTS.Model))
		}
		if cfg.Generation.TimeoutSeconds > 0 {
			opts = append(opts, orpheus.WithTimeout(time.Duration(cfg.Generation.TimeoutSeconds)*time.Second))
		}
		p, err := orpheus.New(cfg.Providers.TTS.BaseURL, opts...)
		if err != nil {
			return ps, nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ps.TTS = p
		slog.Info("provider created", "kind", "tts", "name", name, "voice", cfg.Providers.TTS.StringOption("voice", config.DefaultTTSVoice))
	} else {
		slog.Warn("no tts provider configured — replies will be text-only")
	}

	return ps, closers, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Vocalis — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Printf("║  Context tokens  : %-19d ║\n", cfg.Context.ApproximateTokens)
	fmt.Printf("║  Sample rate     : %-19d ║\n", cfg.Audio.TargetSampleRate)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
