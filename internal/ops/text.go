package ops

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	specialCharsRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	urlRe          = regexp.MustCompile(`https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)

	upper = cases.Upper(language.Und)
)

// collapseWhitespace replaces every whitespace run with one space and trims.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (c CleanText) apply(in State, now time.Time) State {
	text := collapseWhitespace(in.Text)
	if c.RemoveSpecialChars {
		text = specialCharsRe.ReplaceAllString(text, "")
	}
	if c.RemoveURLs {
		text = urlRe.ReplaceAllString(text, "")
	}

	out := in.withMetadata(map[string]any{
		"clean_text_applied":   true,
		"clean_text_timestamp": FormatTimestamp(now),
	})
	out.Text = text
	return out
}

func (Uppercase) apply(in State, now time.Time) State {
	out := in.withMetadata(map[string]any{
		"uppercase_applied":   true,
		"uppercase_timestamp": FormatTimestamp(now),
	})
	out.Text = upper.String(in.Text)
	return out
}

func (e Email) apply(in State, now time.Time) State {
	ts := FormatTimestamp(now)
	out := in.withMetadata(map[string]any{
		"email_sent":      true,
		"email_timestamp": ts,
	})
	out.EmailResult = &EmailResult{
		Success:   true,
		Recipient: e.Recipient,
		Subject:   e.Subject,
		Body:      in.Text,
		SentAt:    ts,
	}
	return out
}
