package config

import (
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		LogLevel:       LogInfo,
		SourceLanguage: "de",
		TargetLanguage: "en",
		Providers: ProvidersConfig{
			Transcribe: ProviderEntry{Name: "openai", APIKey: "k1"},
			Translate:  ProviderEntry{Name: "openai", APIKey: "k1"},
			Speech:     ProviderEntry{Name: "elevenlabs", APIKey: "k2"},
		},
		Voice: VoiceConfig{VoiceID: "v1"},
		Pipeline: PipelineConfig{
			VADThreshold:  0.012,
			ChunkDuration: Duration(time.Second),
		},
	}
}

func TestDiffNoChanges(t *testing.T) {
	if d := Diff(testConfig(), testConfig()); d.Changed() {
		t.Errorf("Diff of identical configs reports changes: %+v", d)
	}
}

func TestDiffDetectsChanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(ConfigDiff) bool
	}{
		{
			"log level",
			func(c *Config) { c.LogLevel = LogDebug },
			func(d ConfigDiff) bool { return d.LogLevelChanged && d.NewLogLevel == LogDebug },
		},
		{
			"target language",
			func(c *Config) { c.TargetLanguage = "fr" },
			func(d ConfigDiff) bool { return d.LanguagesChanged },
		},
		{
			"voice",
			func(c *Config) { c.Voice.VoiceID = "v2" },
			func(d ConfigDiff) bool { return d.VoiceChanged },
		},
		{
			"pipeline threshold",
			func(c *Config) { c.Pipeline.VADThreshold = 0.03 },
			func(d ConfigDiff) bool { return d.PipelineChanged },
		},
		{
			"context toggle",
			func(c *Config) { off := false; c.Pipeline.ContextEnabled = &off },
			func(d ConfigDiff) bool { return d.PipelineChanged },
		},
		{
			"provider credential",
			func(c *Config) { c.Providers.Translate.APIKey = "rotated" },
			func(d ConfigDiff) bool { return d.ProvidersChanged },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated := testConfig()
			tt.mutate(updated)
			d := Diff(testConfig(), updated)
			if !d.Changed() {
				t.Fatal("Changed() = false")
			}
			if !tt.check(d) {
				t.Errorf("diff flags wrong: %+v", d)
			}
		})
	}
}

func TestDiffExplicitContextTrueIsNoChange(t *testing.T) {
	// nil and an explicit true are the same effective setting.
	updated := testConfig()
	on := true
	updated.Pipeline.ContextEnabled = &on
	if d := Diff(testConfig(), updated); d.PipelineChanged {
		t.Error("explicit context_enabled: true flagged as a pipeline change")
	}
}
