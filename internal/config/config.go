// Package config provides the configuration schema, loader, and provider
// registry for livedub.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity.
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

// Duration wraps time.Duration with YAML support for values like "200ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for livedub.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Empty means info.
	LogLevel LogLevel `yaml:"log_level"`

	// SourceLanguage is the expected spoken language (name or ISO code).
	// Empty enables auto-detection from the transcription result.
	SourceLanguage string `yaml:"source_language"`

	// TargetLanguage is the language spoken output is translated into.
	TargetLanguage string `yaml:"target_language"`

	Providers ProvidersConfig `yaml:"providers"`
	Voice     VoiceConfig     `yaml:"voice"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// ProvidersConfig declares which provider implementation to use for each
// external service. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	Transcribe ProviderEntry `yaml:"transcribe"`
	Translate  ProviderEntry `yaml:"translate"`
	Speech     ProviderEntry `yaml:"speech"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "whisper-1",
	// "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or
	// nested maps.
	Options map[string]any `yaml:"options"`
}

// VoiceConfig specifies the synthesis voice and output routing.
type VoiceConfig struct {
	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// ModelID optionally selects a specific synthesis model.
	ModelID string `yaml:"model_id"`

	// OutputDevice routes playback to a specific device. Empty means the
	// sink's default device.
	OutputDevice string `yaml:"output_device"`
}

// PipelineConfig holds the tunable pipeline thresholds. Zero values select
// the per-package defaults.
type PipelineConfig struct {
	// VADThreshold is the voice activity detection amplitude threshold.
	VADThreshold float64 `yaml:"vad_threshold"`

	// ChunkDuration is the target chunk length.
	ChunkDuration Duration `yaml:"chunk_duration"`

	// ChunkOverlap is the overlap carried between consecutive chunks.
	ChunkOverlap Duration `yaml:"chunk_overlap"`

	// PauseThreshold is the silence gap that clears dedup and translation
	// context state.
	PauseThreshold Duration `yaml:"pause_threshold"`

	// Cooldown is the minimum gap between successful translations.
	Cooldown Duration `yaml:"cooldown"`

	// MinTextLength is the minimum transcription length admitted to
	// translation, in characters.
	MinTextLength int `yaml:"min_text_length"`

	// MaxConcurrentSynthesis caps parallel synthesis calls.
	MaxConcurrentSynthesis int `yaml:"max_concurrent_synthesis"`

	// ContextEnabled toggles the rolling translation-context window.
	ContextEnabled *bool `yaml:"context_enabled"`
}

// ContextOn reports whether the translation context window is enabled.
// Defaults to true when unset.
func (p PipelineConfig) ContextOn() bool {
	return p.ContextEnabled == nil || *p.ContextEnabled
}
