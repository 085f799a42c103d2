package translate

import (
	"strings"
	"testing"
)

func TestBuildUserPrompt(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		want    []string
		exclude []string
	}{
		{
			"plain request",
			Request{Text: "guten morgen", TargetLanguage: "en"},
			[]string{"Translate to en:\nguten morgen"},
			[]string{"context", "from"},
		},
		{
			"with source language",
			Request{Text: "guten morgen", SourceLanguage: "de", TargetLanguage: "en"},
			[]string{"Translate from de to en:\nguten morgen"},
			nil,
		},
		{
			"with context hint",
			Request{
				Text:           "bis morgen",
				TargetLanguage: "en",
				ContextHint:    `"guten morgen" -> "good morning"`,
			},
			[]string{
				"do not re-translate",
				`"guten morgen" -> "good morning"`,
				"Translate to en:\nbis morgen",
			},
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildUserPrompt(tt.req)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("prompt missing %q:\n%s", want, got)
				}
			}
			for _, bad := range tt.exclude {
				if strings.Contains(got, bad) {
					t.Errorf("prompt unexpectedly contains %q:\n%s", bad, got)
				}
			}
		})
	}
}

func TestBuildUserPromptContextPrecedesText(t *testing.T) {
	got := BuildUserPrompt(Request{
		Text:           "bis morgen",
		TargetLanguage: "en",
		ContextHint:    `"hallo" -> "hello"`,
	})
	ctxIdx := strings.Index(got, "hallo")
	textIdx := strings.Index(got, "bis morgen")
	if ctxIdx < 0 || textIdx < 0 || ctxIdx > textIdx {
		t.Errorf("context hint does not precede the text:\n%s", got)
	}
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "good morning", "good morning"},
		{"surrounding whitespace", "  good morning\n", "good morning"},
		{"label", "Translation: good morning", "good morning"},
		{"lowercase label", "translation: good morning", "good morning"},
		{"straight quotes", `"good morning"`, "good morning"},
		{"curly quotes", "\u201cgood morning\u201d", "good morning"},
		{"guillemets", "\u00abbonjour\u00bb", "bonjour"},
		{"label then quotes", `Translation: "good morning"`, "good morning"},
		{"interior quote kept", `he said "hi" to me`, `he said "hi" to me`},
		{"bare quote pair", `""`, `""`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanResponse(tt.in); got != tt.want {
				t.Errorf("CleanResponse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
