package translate

import "strings"

// languageAliases maps English language names (and a few common variants) to
// their ISO 639-1 code. Codes themselves normalize to themselves.
var languageAliases = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"castilian":  "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"russian":    "ru",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"mandarin":   "zh",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"turkish":    "tr",
	"swedish":    "sv",
	"ukrainian":  "uk",
	"czech":      "cs",
	"danish":     "da",
	"finnish":    "fi",
	"norwegian":  "no",
	"greek":      "el",
	"hebrew":     "he",
	"thai":       "th",
	"vietnamese": "vi",
	"indonesian": "id",
	"romanian":   "ro",
	"hungarian":  "hu",
}

// NormalizeLanguage maps a language name or code to a lowercase ISO 639-1
// code where known. Unknown inputs are returned lowercased and trimmed, so
// two spellings of the same unknown language still compare equal.
func NormalizeLanguage(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	// Region-tagged codes ("en-US", "pt_BR") reduce to the base language.
	if i := strings.IndexAny(s, "-_"); i > 0 {
		s = s[:i]
	}
	if code, ok := languageAliases[s]; ok {
		return code
	}
	return s
}

// SameLanguage reports whether a and b name the same language after
// normalization, e.g. "en" and "English". Empty strings never match.
func SameLanguage(a, b string) bool {
	na, nb := NormalizeLanguage(a), NormalizeLanguage(b)
	return na != "" && na == nb
}
