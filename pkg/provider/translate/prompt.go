package translate

import (
	"fmt"
	"strings"
)

// SystemPrompt is the instruction shared by all LLM-backed translation
// providers. It constrains the model to output only the translation, which is
// what keeps leaked instruction text out of the synthesis queue.
const SystemPrompt = "You are a professional real-time interpreter. " +
	"Translate the user's text into the requested target language. " +
	"Preserve tone and register. Output ONLY the translated text with no " +
	"quotes, prefixes, explanations, or commentary."

// BuildUserPrompt renders a translation request as the user-role message for
// an LLM-backed provider. The context hint, when present, precedes the text so
// the model can stay terminologically consistent with prior chunks.
func BuildUserPrompt(req Request) string {
	var sb strings.Builder
	if req.ContextHint != "" {
		sb.WriteString("Recent translations for context (do not re-translate these):\n")
		sb.WriteString(req.ContextHint)
		sb.WriteString("\n\n")
	}
	if req.SourceLanguage != "" {
		fmt.Fprintf(&sb, "Translate from %s to %s:\n", req.SourceLanguage, req.TargetLanguage)
	} else {
		fmt.Fprintf(&sb, "Translate to %s:\n", req.TargetLanguage)
	}
	sb.WriteString(req.Text)
	return sb.String()
}

// CleanResponse strips the decoration LLMs habitually add around a
// translation: surrounding whitespace, wrapping quotes, and a leading
// "Translation:" label.
func CleanResponse(s string) string {
	s = strings.TrimSpace(s)
	for _, label := range []string{"Translation:", "translation:"} {
		if strings.HasPrefix(s, label) {
			s = strings.TrimSpace(s[len(label):])
		}
	}
	for _, pair := range [][2]string{{`"`, `"`}, {"\u201c", "\u201d"}, {"\u00ab", "\u00bb"}} {
		if strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) && len(s) > len(pair[0])+len(pair[1]) {
			s = strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}
