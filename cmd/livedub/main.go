// Command livedub is the headless real-time speech translation daemon. It
// reads raw system/loopback audio on stdin, runs the translation pipeline,
// and writes synthesized speech PCM to stdout.
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

	"github.com/livedub/livedub/internal/config"
	"github.com/livedub/livedub/internal/observe"
	"github.com/livedub/livedub/internal/resilience"
	"github.com/livedub/livedub/internal/session"
	"github.com/livedub/livedub/pkg/provider/speech"
	speechel "github.com/livedub/livedub/pkg/provider/speech/elevenlabs"
	speechoai "github.com/livedub/livedub/pkg/provider/speech/openai"
	"github.com/livedub/livedub/pkg/provider/transcribe"
	transcribeoai "github.com/livedub/livedub/pkg/provider/transcribe/openai"
	"github.com/livedub/livedub/pkg/provider/transcribe/whispernative"
	"github.com/livedub/livedub/pkg/provider/transcribe/whisperserver"
	"github.com/livedub/livedub/pkg/provider/translate"
	"github.com/livedub/livedub/pkg/provider/translate/anyllm"
	translateoai "github.com/livedub/livedub/pkg/provider/translate/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	inputRate := flag.Int("input-rate", 48000, "sample rate of the raw PCM stream on stdin")
	inputChannels := flag.Int("input-channels", 2, "channel count of the raw PCM stream on stdin")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "livedub: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "livedub: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("livedub starting",
		"config", *configPath,
		"target_language", cfg.TargetLanguage,
		"log_level", cfg.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	transcriber, translatorP, synthesizer, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	// Language, voice, and pipeline edits apply at the next utterance boundary
	// by restarting the session over the same capture stream. A nil watcher
	// just means no live reloads.
	var reloads <-chan config.Reload
	watcher, err := config.NewWatcher(*configPath)
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
		reloads = watcher.Reloads()
	}

	// ── Session ───────────────────────────────────────────────────────────────
	printStartupSummary(cfg)

	ctrl, err := newSessionController(cfg, transcriber, translatorP, synthesizer, logger)
	if err != nil {
		slog.Error("invalid session configuration", "err", err)
		return 1
	}

	src := newStdinSource(os.Stdin, *inputRate, *inputChannels)
	if err := ctrl.Start(ctx, src); err != nil {
		slog.Error("failed to start session", "err", err)
		return 1
	}

	slog.Info("session running, press Ctrl+C to shut down")

	// ── Event loop ────────────────────────────────────────────────────────────
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received, stopping…")
			ctrl.Stop()
			slog.Info("goodbye")
			return 0
		case r := <-reloads:
			d := config.Diff(r.Old, r.New)
			if !d.Changed() {
				continue
			}
			if d.LogLevelChanged {
				logger = newLogger(d.NewLogLevel)
				slog.SetDefault(logger)
				slog.Info("log level updated", "level", d.NewLogLevel)
			}
			if d.ProvidersChanged {
				slog.Warn("provider configuration changed, restart livedub to apply it")
			}
			if !restartNeeded(d) {
				continue
			}
			slog.Info("applying updated session settings")
			ctrl.Stop()
			next, err := newSessionController(r.New, transcriber, translatorP, synthesizer, logger)
			if err != nil {
				slog.Error("updated configuration rejected", "err", err)
				return 1
			}
			if err := next.Start(ctx, src); err != nil {
				slog.Error("failed to restart session", "err", err)
				return 1
			}
			ctrl = next
			cfg = r.New
		case ev := <-ctrl.Events():
			logEvent(ev)
			if ev.Type == session.EventSessionError && ev.Fatal {
				ctrl.Stop()
				return 1
			}
		}
	}
}

// newSessionController builds a session controller from the file config.
func newSessionController(cfg *config.Config, tr transcribe.Provider, tl translate.Provider, sp speech.Provider, logger *slog.Logger) (*session.Controller, error) {
	return session.NewController(session.Config{
		Transcriber:            tr,
		Translator:             tl,
		Synthesizer:            sp,
		Sink:                   newStdoutSink(os.Stdout),
		SourceLanguage:         cfg.SourceLanguage,
		TargetLanguage:         cfg.TargetLanguage,
		VoiceID:                cfg.Voice.VoiceID,
		ModelID:                cfg.Voice.ModelID,
		OutputDevice:           cfg.Voice.OutputDevice,
		VADThreshold:           cfg.Pipeline.VADThreshold,
		ChunkDuration:          cfg.Pipeline.ChunkDuration.Std(),
		ChunkOverlap:           cfg.Pipeline.ChunkOverlap.Std(),
		PauseThreshold:         cfg.Pipeline.PauseThreshold.Std(),
		Cooldown:               cfg.Pipeline.Cooldown.Std(),
		MinTextLength:          cfg.Pipeline.MinTextLength,
		MaxConcurrentSynthesis: cfg.Pipeline.MaxConcurrentSynthesis,
		DisableContext:         !cfg.Pipeline.ContextOn(),
		Logger:                 logger,
	})
}

// restartNeeded reports whether a config change requires cycling the session.
// Provider changes are excluded: swapping credentials or backends mid-stream
// is a process restart, not a session restart.
func restartNeeded(d config.ConfigDiff) bool {
	return d.LanguagesChanged || d.VoiceChanged || d.PipelineChanged
}

// logEvent reports pipeline progress on stderr; stdout carries audio.
func logEvent(ev session.Event) {
	switch ev.Type {
	case session.EventTranscriptionUpdate:
		slog.Info("transcription", "seq", ev.Seq, "lang", ev.Language, "rejected", ev.Rejected, "text", ev.Text)
	case session.EventTranslationUpdate:
		slog.Info("translation", "seq", ev.Seq, "text", ev.Text)
	case session.EventTTSComplete:
		slog.Debug("synthesis complete", "job", ev.JobID, "status", ev.Reason, "err", ev.Err)
	case session.EventSessionError:
		slog.Warn("pipeline error", "seq", ev.Seq, "fatal", ev.Fatal, "err", ev.Err)
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Transcription ─────────────────────────────────────────────────────────

	reg.RegisterTranscribe("openai", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []transcribeoai.Option
		if entry.Model != "" {
			opts = append(opts, transcribeoai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, transcribeoai.WithBaseURL(entry.BaseURL))
		}
		return transcribeoai.New(entry.APIKey, opts...)
	})

	reg.RegisterTranscribe("whisper-server", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []whisperserver.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisperserver.WithLanguage(lang))
		}
		return whisperserver.New(entry.BaseURL, opts...)
	})

	reg.RegisterTranscribe("whisper-native", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whispernative.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whispernative.WithLanguage(lang))
		}
		return whispernative.New(modelPath, opts...)
	})

	// ── Translation ───────────────────────────────────────────────────────────

	reg.RegisterTranslate("openai", func(entry config.ProviderEntry) (translate.Provider, error) {
		var opts []translateoai.Option
		if entry.Model != "" {
			opts = append(opts, translateoai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, translateoai.WithBaseURL(entry.BaseURL))
		}
		return translateoai.New(entry.APIKey, opts...)
	})

	// anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile, ollama
	// all route through any-llm with the same option pattern.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "ollama",
	} {
		reg.RegisterTranslate(providerName, func(entry config.ProviderEntry) (translate.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ── Synthesis ─────────────────────────────────────────────────────────────

	reg.RegisterSpeech("elevenlabs", func(entry config.ProviderEntry) (speech.Provider, error) {
		var opts []speechel.Option
		if entry.Model != "" {
			opts = append(opts, speechel.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, speechel.WithOutputFormat(outputFmt))
		}
		return speechel.New(entry.APIKey, opts...)
	})

	reg.RegisterSpeech("openai", func(entry config.ProviderEntry) (speech.Provider, error) {
		var opts []speechoai.Option
		if entry.Model != "" {
			opts = append(opts, speechoai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, speechoai.WithBaseURL(entry.BaseURL))
		}
		return speechoai.New(entry.APIKey, opts...)
	})
}

// buildProviders instantiates the three configured providers, each wrapped in
// a breaker-guarded fallback chain so repeated transient failures trip the
// breaker instead of hammering a failing service.
func buildProviders(cfg *config.Config, reg *config.Registry) (transcribe.Provider, translate.Provider, speech.Provider, error) {
	fbCfg := resilience.FallbackConfig{}

	tr, err := reg.CreateTranscribe(cfg.Providers.Transcribe)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create transcribe provider %q: %w", cfg.Providers.Transcribe.Name, err)
	}
	slog.Info("provider created", "kind", "transcribe", "name", cfg.Providers.Transcribe.Name)

	tl, err := reg.CreateTranslate(cfg.Providers.Translate)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create translate provider %q: %w", cfg.Providers.Translate.Name, err)
	}
	slog.Info("provider created", "kind", "translate", "name", cfg.Providers.Translate.Name)

	sp, err := reg.CreateSpeech(cfg.Providers.Speech)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create speech provider %q: %w", cfg.Providers.Speech.Name, err)
	}
	slog.Info("provider created", "kind", "speech", "name", cfg.Providers.Speech.Name)

	return resilience.NewTranscribeFallback(tr, cfg.Providers.Transcribe.Name, fbCfg),
		resilience.NewTranslateFallback(tl, cfg.Providers.Translate.Name, fbCfg),
		resilience.NewSpeechFallback(sp, cfg.Providers.Speech.Name, fbCfg),
		nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Fprintln(os.Stderr, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║        livedub startup summary        ║")
	fmt.Fprintln(os.Stderr, "╠═══════════════════════════════════════╣")
	printProvider("Transcribe", cfg.Providers.Transcribe.Name, cfg.Providers.Transcribe.Model)
	printProvider("Translate", cfg.Providers.Translate.Name, cfg.Providers.Translate.Model)
	printProvider("Speech", cfg.Providers.Speech.Name, cfg.Providers.Speech.Model)
	source := cfg.SourceLanguage
	if source == "" {
		source = "(auto-detect)"
	}
	fmt.Fprintf(os.Stderr, "║  Source lang     : %-19s║\n", clip(source))
	fmt.Fprintf(os.Stderr, "║  Target lang     : %-19s║\n", clip(cfg.TargetLanguage))
	fmt.Fprintf(os.Stderr, "║  Voice           : %-19s║\n", clip(cfg.Voice.VoiceID))
	fmt.Fprintln(os.Stderr, "╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	fmt.Fprintf(os.Stderr, "║  %-12s    : %-19s║\n", kind, clip(value))
}

func clip(s string) string {
	if len(s) > 19 {
		return s[:16] + "…"
	}
	return s
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

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
