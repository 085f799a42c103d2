// Package translate defines the Provider interface for text translation
// backends.
//
// Translation in livedub is LLM-backed: a chat model is prompted to translate
// one chunk's transcription into the target language, optionally biased by a
// compact context hint carrying the previous few (source, translated) pairs
// for terminological coherency across chunks.
//
// Implementations must be safe for concurrent use.
package translate

import "context"

// Request describes one translation call.
type Request struct {
	// Text is the source text to translate.
	Text string

	// TargetLanguage is the language to translate into (ISO 639-1 code or
	// English language name; providers normalise internally).
	TargetLanguage string

	// SourceLanguage is the detected source language. Empty lets the
	// provider infer it.
	SourceLanguage string

	// ContextHint is a compact rendering of recent prior translations, used
	// to bias terminology and style. May be empty.
	ContextHint string
}

// Result is the outcome of one translation call.
type Result struct {
	// TranslatedText is the translation of the request text.
	TranslatedText string

	// SourceLanguage is the language the provider translated from. Equals the
	// request's SourceLanguage when one was given.
	SourceLanguage string
}

// Provider is the abstraction over any translation backend.
type Provider interface {
	// Translate converts req.Text into the target language. Implementations
	// should honour ctx cancellation and must not retry internally; the
	// pipeline's policy is to drop the failed chunk and move on.
	Translate(ctx context.Context, req Request) (*Result, error)
}
