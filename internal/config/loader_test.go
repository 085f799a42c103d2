package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
log_level: debug
source_language: de
target_language: en
providers:
  transcribe:
    name: openai
    api_key: sk-test
    model: whisper-1
  translate:
    name: anthropic
    api_key: sk-ant-test
    model: claude-haiku
  speech:
    name: elevenlabs
    api_key: el-test
    options:
      output_format: pcm_24000
voice:
  voice_id: voice-123
  model_id: model-456
pipeline:
  vad_threshold: 0.02
  chunk_duration: 1s
  chunk_overlap: 200ms
  pause_threshold: 2s
  cooldown: 10s
  min_text_length: 5
  max_concurrent_synthesis: 3
  context_enabled: false
`

func TestLoadFromReaderValid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.TargetLanguage != "en" {
		t.Errorf("TargetLanguage = %q, want en", cfg.TargetLanguage)
	}
	if cfg.Providers.Translate.Name != "anthropic" {
		t.Errorf("translate provider = %q, want anthropic", cfg.Providers.Translate.Name)
	}
	if got := cfg.Providers.Speech.Options["output_format"]; got != "pcm_24000" {
		t.Errorf("speech output_format option = %v, want pcm_24000", got)
	}
	if cfg.Pipeline.ChunkOverlap.Std() != 200*time.Millisecond {
		t.Errorf("ChunkOverlap = %v, want 200ms", cfg.Pipeline.ChunkOverlap.Std())
	}
	if cfg.Pipeline.ContextOn() {
		t.Error("ContextOn = true, want false per config")
	}
}

func TestContextOnDefaultsTrue(t *testing.T) {
	var p PipelineConfig
	if !p.ContextOn() {
		t.Error("ContextOn = false when unset, want true")
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	yaml := `
target_language: en
transcriber: openai
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unknown top-level field accepted")
	}
}

func TestLoadFromReaderRejectsBadDuration(t *testing.T) {
	yaml := `
target_language: en
pipeline:
  chunk_duration: "one second"
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unparsable duration accepted")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadFromReader(strings.NewReader(validYAML))
		if err != nil {
			t.Fatalf("base config: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing target language", func(c *Config) { c.TargetLanguage = "" }, "target_language"},
		{"missing transcribe provider", func(c *Config) { c.Providers.Transcribe.Name = "" }, "providers.transcribe"},
		{"missing translate provider", func(c *Config) { c.Providers.Translate.Name = "" }, "providers.translate"},
		{"missing speech provider", func(c *Config) { c.Providers.Speech.Name = "" }, "providers.speech"},
		{"missing voice id", func(c *Config) { c.Voice.VoiceID = "" }, "voice.voice_id"},
		{"invalid log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"vad threshold too high", func(c *Config) { c.Pipeline.VADThreshold = 1.5 }, "vad_threshold"},
		{"negative duration", func(c *Config) { c.Pipeline.Cooldown = Duration(-time.Second) }, "negative"},
		{"overlap not below duration", func(c *Config) { c.Pipeline.ChunkOverlap = c.Pipeline.ChunkDuration }, "chunk_overlap"},
		{"too much concurrency", func(c *Config) { c.Pipeline.MaxConcurrentSynthesis = 64 }, "max_concurrent_synthesis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate accepted invalid config")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("empty config accepted")
	}
	for _, want := range []string{"target_language", "providers.transcribe", "providers.translate", "providers.speech"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	d := Duration(1500 * time.Millisecond)
	v, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML: %v", err)
	}
	if v != "1.5s" {
		t.Errorf("MarshalYAML = %v, want 1.5s", v)
	}
}
