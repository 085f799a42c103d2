package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const watcherYAMLv1 = `
target_language: en
providers:
  transcribe: {name: openai, api_key: k}
  translate: {name: openai, api_key: k}
  speech: {name: elevenlabs, api_key: k}
voice:
  voice_id: v1
`

const watcherYAMLv2 = `
target_language: fr
providers:
  transcribe: {name: openai, api_key: k}
  translate: {name: openai, api_key: k}
  speech: {name: elevenlabs, api_key: k}
voice:
  voice_id: v1
`

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	// Nudge mtime forward; coarse filesystem timestamps would otherwise hide
	// back-to-back writes from the mtime pre-check.
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherInitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, watcherYAMLv1)

	w, err := NewWatcher(path, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().TargetLanguage; got != "en" {
		t.Errorf("TargetLanguage = %q, want en", got)
	}
}

func TestWatcherInitialLoadFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := NewWatcher(path); err == nil {
		t.Fatal("NewWatcher succeeded on a missing file")
	}
}

func TestWatcherDeliversReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, watcherYAMLv1)

	w, err := NewWatcher(path, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, watcherYAMLv2)

	select {
	case r := <-w.Reloads():
		if r.Old.TargetLanguage != "en" {
			t.Errorf("Old.TargetLanguage = %q, want en", r.Old.TargetLanguage)
		}
		if r.New.TargetLanguage != "fr" {
			t.Errorf("New.TargetLanguage = %q, want fr", r.New.TargetLanguage)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("change not delivered")
	}

	if got := w.Current().TargetLanguage; got != "fr" {
		t.Errorf("Current().TargetLanguage = %q, want fr", got)
	}
}

func TestWatcherKeepsOldConfigOnInvalidUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, watcherYAMLv1)

	w, err := NewWatcher(path, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, "target_language: [not, a, string")

	select {
	case r := <-w.Reloads():
		t.Fatalf("reload delivered for an invalid config: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
	if got := w.Current().TargetLanguage; got != "en" {
		t.Errorf("Current().TargetLanguage = %q after bad write, want en", got)
	}
}

func TestWatcherIgnoresTouchWithoutContentChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, watcherYAMLv1)

	w, err := NewWatcher(path, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Same content, new mtime.
	writeConfig(t, path, watcherYAMLv1)

	select {
	case r := <-w.Reloads():
		t.Fatalf("reload delivered for identical content: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, watcherYAMLv1)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
