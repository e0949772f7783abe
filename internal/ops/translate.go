package ops

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const sourceLanguage = "english"

var dictionaries = map[string]map[string]string{
	"spanish": {
		"hello":     "hola",
		"world":     "mundo",
		"welcome":   "bienvenido",
		"thank you": "gracias",
		"goodbye":   "adiós",
	},
	"french": {
		"hello":     "bonjour",
		"world":     "monde",
		"welcome":   "bienvenue",
		"thank you": "merci",
		"goodbye":   "au revoir",
	},
	"german": {
		"hello":     "hallo",
		"world":     "welt",
		"welcome":   "willkommen",
		"thank you": "danke",
		"goodbye":   "auf wiedersehen",
	},
}

// SupportedLanguages lists the translation targets.
func SupportedLanguages() []string {
	return []string{"french", "german", "spanish"}
}

func (t Translate) apply(in State, now time.Time) State {
	translated := in.Text
	if dict, ok := dictionaries[t.TargetLanguage]; ok {
		translated = translateWords(in.Text, dict)
	}

	out := in.withMetadata(map[string]any{
		"translation_applied":   true,
		"translation_timestamp": FormatTimestamp(now),
		"translation_config": map[string]any{
			"source_language": sourceLanguage,
			"target_language": t.TargetLanguage,
		},
	})
	out.TranslatedText = &translated
	return out
}

// translateWords replaces every whitespace-separated token whose lowercased,
// punctuation-free form is in dict. Matched tokens keep the capitalization of
// their first letter; the rest pass through untouched.
func translateWords(text string, dict map[string]string) string {
	words := strings.Fields(text)
	for i, word := range words {
		key := specialCharsRe.ReplaceAllString(strings.ToLower(word), "")
		repl, ok := dict[key]
		if !ok {
			continue
		}
		if first, _ := utf8.DecodeRuneInString(word); unicode.IsUpper(first) {
			repl = capitalize(repl)
		}
		words[i] = repl
	}
	return strings.Join(words, " ")
}

// capitalize title-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToTitle(r)) + strings.ToLower(s[size:])
}
