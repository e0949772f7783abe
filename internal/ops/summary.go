package ops

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

func (s Summary) apply(in State, now time.Time) State {
	n := defaultNumSentences
	if s.NumSentences != nil {
		n = *s.NumSentences
	}

	summary := in.Text
	if n > 0 {
		sentences := splitSentences(in.Text)
		summary = strings.Join(sentences[:min(n, len(sentences))], " ")
	}

	var maxChars any
	if s.MaxChars != nil {
		maxChars = *s.MaxChars
		if m := *s.MaxChars; m > 0 && utf8.RuneCountInString(summary) > m {
			summary = string([]rune(summary)[:m]) + "..."
		}
	}

	out := in.withMetadata(map[string]any{
		"summary_applied":   true,
		"summary_timestamp": FormatTimestamp(now),
		"summary_config": map[string]any{
			"num_sentences": n,
			"max_chars":     maxChars,
		},
	})
	out.Summary = &summary
	return out
}

// splitSentences splits text at whitespace runs that directly follow '.', '!'
// or '?'. The punctuation stays with the preceding sentence and the
// whitespace is dropped. A trailing separator yields a final empty sentence.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
		prev  rune = -1
	)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) && (prev == '.' || prev == '!' || prev == '?') {
			end := i + size
			for end < len(text) {
				r2, size2 := utf8.DecodeRuneInString(text[end:])
				if !unicode.IsSpace(r2) {
					break
				}
				end += size2
			}
			out = append(out, text[start:i])
			start = end
			i = end
			prev = -1
			continue
		}
		prev = r
		i += size
	}
	return append(out, text[start:])
}
