package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/livedub/livedub/internal/translate"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"transcribe": {"openai", "whisper-server", "whisper-native"},
	"translate":  {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"speech":     {"openai", "elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.TargetLanguage == "" {
		errs = append(errs, errors.New("target_language is required"))
	}

	// Unknown provider names warn instead of failing so third-party
	// registrations keep working.
	validateProviderName("transcribe", cfg.Providers.Transcribe.Name)
	validateProviderName("translate", cfg.Providers.Translate.Name)
	validateProviderName("speech", cfg.Providers.Speech.Name)

	if cfg.Providers.Transcribe.Name == "" {
		errs = append(errs, errors.New("providers.transcribe is required"))
	}
	if cfg.Providers.Translate.Name == "" {
		errs = append(errs, errors.New("providers.translate is required"))
	}
	if cfg.Providers.Speech.Name == "" {
		errs = append(errs, errors.New("providers.speech is required"))
	}
	if cfg.Providers.Speech.Name != "" && cfg.Voice.VoiceID == "" {
		errs = append(errs, errors.New("voice.voice_id is required when a speech provider is configured"))
	}

	// A fixed source equal to the target would short-circuit every chunk.
	if cfg.SourceLanguage != "" && translate.SameLanguage(cfg.SourceLanguage, cfg.TargetLanguage) {
		slog.Warn("source_language equals target_language; every chunk will skip translation",
			"source", cfg.SourceLanguage,
			"target", cfg.TargetLanguage,
		)
	}

	p := cfg.Pipeline
	if p.VADThreshold < 0 || p.VADThreshold >= 1 {
		errs = append(errs, fmt.Errorf("pipeline.vad_threshold %.4f is out of range [0, 1)", p.VADThreshold))
	}
	if p.ChunkDuration < 0 || p.ChunkOverlap < 0 || p.PauseThreshold < 0 || p.Cooldown < 0 {
		errs = append(errs, errors.New("pipeline durations must not be negative"))
	}
	if p.ChunkDuration > 0 && p.ChunkOverlap >= p.ChunkDuration {
		errs = append(errs, fmt.Errorf("pipeline.chunk_overlap %s must be shorter than chunk_duration %s",
			p.ChunkOverlap.Std(), p.ChunkDuration.Std()))
	}
	if p.MaxConcurrentSynthesis < 0 || p.MaxConcurrentSynthesis > 16 {
		errs = append(errs, fmt.Errorf("pipeline.max_concurrent_synthesis %d is out of range [0, 16]", p.MaxConcurrentSynthesis))
	}
	if p.MinTextLength < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_text_length %d must not be negative", p.MinTextLength))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
