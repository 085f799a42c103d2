package main

import (
	"errors"
	"testing"

	"github.com/livedub/livedub/internal/config"
	"github.com/livedub/livedub/internal/session"
	speechmock "github.com/livedub/livedub/pkg/provider/speech/mock"
	transcribemock "github.com/livedub/livedub/pkg/provider/transcribe/mock"
	translatemock "github.com/livedub/livedub/pkg/provider/translate/mock"
)

func TestRestartNeeded(t *testing.T) {
	tests := []struct {
		name string
		diff config.ConfigDiff
		want bool
	}{
		{name: "no change", diff: config.ConfigDiff{}, want: false},
		{name: "log level only", diff: config.ConfigDiff{LogLevelChanged: true, NewLogLevel: config.LogDebug}, want: false},
		{name: "providers only", diff: config.ConfigDiff{ProvidersChanged: true}, want: false},
		{name: "languages", diff: config.ConfigDiff{LanguagesChanged: true}, want: true},
		{name: "voice", diff: config.ConfigDiff{VoiceChanged: true}, want: true},
		{name: "pipeline thresholds", diff: config.ConfigDiff{PipelineChanged: true}, want: true},
		{name: "pipeline and log level", diff: config.ConfigDiff{PipelineChanged: true, LogLevelChanged: true}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := restartNeeded(tt.diff); got != tt.want {
				t.Errorf("restartNeeded(%+v) = %v, want %v", tt.diff, got, tt.want)
			}
		})
	}
}

func TestNewSessionControllerFromConfig(t *testing.T) {
	cfg := &config.Config{
		TargetLanguage: "en",
		Voice:          config.VoiceConfig{VoiceID: "voice-1"},
	}

	ctrl, err := newSessionController(cfg, &transcribemock.Provider{}, &translatemock.Provider{}, &speechmock.Provider{}, nil)
	if err != nil {
		t.Fatalf("newSessionController: %v", err)
	}
	if ctrl == nil {
		t.Fatal("controller is nil")
	}
}

func TestNewSessionControllerRejectsIncompleteConfig(t *testing.T) {
	cfg := &config.Config{TargetLanguage: "en"} // no voice

	_, err := newSessionController(cfg, &transcribemock.Provider{}, &translatemock.Provider{}, &speechmock.Provider{}, nil)
	if !errors.Is(err, session.ErrInvalidConfig) {
		t.Fatalf("err = %v, want session.ErrInvalidConfig", err)
	}
}
