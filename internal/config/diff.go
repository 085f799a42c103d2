package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely applied without restarting the process are
// tracked; pipeline threshold changes take effect at the next session start.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// LanguagesChanged is true when the source or target language changed.
	LanguagesChanged bool

	// VoiceChanged is true when the synthesis voice, model, or output device
	// changed.
	VoiceChanged bool

	// PipelineChanged is true when any pipeline threshold changed.
	PipelineChanged bool

	// ProvidersChanged is true when a provider selection or credential
	// changed. Requires a session restart to apply.
	ProvidersChanged bool
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.LanguagesChanged || d.VoiceChanged || d.PipelineChanged || d.ProvidersChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}
	if old.SourceLanguage != new.SourceLanguage || old.TargetLanguage != new.TargetLanguage {
		d.LanguagesChanged = true
	}
	if old.Voice != new.Voice {
		d.VoiceChanged = true
	}
	if !pipelineEqual(old.Pipeline, new.Pipeline) {
		d.PipelineChanged = true
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.ProvidersChanged = true
	}
	return d
}

func pipelineEqual(a, b PipelineConfig) bool {
	return a.VADThreshold == b.VADThreshold &&
		a.ChunkDuration == b.ChunkDuration &&
		a.ChunkOverlap == b.ChunkOverlap &&
		a.PauseThreshold == b.PauseThreshold &&
		a.Cooldown == b.Cooldown &&
		a.MinTextLength == b.MinTextLength &&
		a.MaxConcurrentSynthesis == b.MaxConcurrentSynthesis &&
		a.ContextOn() == b.ContextOn()
}

func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.Transcribe, b.Transcribe) &&
		entryEqual(a.Translate, b.Translate) &&
		entryEqual(a.Speech, b.Speech)
}

// entryEqual compares provider entries ignoring the free-form Options map
// beyond its length; option-level diffs are not worth tracking for a restart
// decision.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && len(a.Options) == len(b.Options)
}
