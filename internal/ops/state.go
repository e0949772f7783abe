package ops

import (
	"encoding/json"
	"time"
)

// TimestampLayout renders timestamps the way the persisted metadata has always
// carried them ("2024-05-01 13:04:05.123456").
const TimestampLayout = "2006-01-02 15:04:05.000000"

// FormatTimestamp formats t with microsecond precision. Whole seconds drop the
// fractional part entirely.
func FormatTimestamp(t time.Time) string {
	t = t.Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format(TimestampLayout)
}

// EmailResult is the fabricated outcome of an email step.
type EmailResult struct {
	Success   bool   `json:"success"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	SentAt    string `json:"sent_at"`
}

// State is the record threaded through a pipeline run. It is a value: every
// operation returns a new State and never mutates the one it was given.
type State struct {
	Text           string         `json:"text"`
	Config         map[string]any `json:"config"`
	Summary        *string        `json:"summary,omitempty"`
	TranslatedText *string        `json:"translated_text,omitempty"`
	EmailResult    *EmailResult   `json:"email_result,omitempty"`
	Metadata       map[string]any `json:"metadata"`
	Error          string         `json:"error,omitempty"`
}

// NewState builds the initial state for an execution.
func NewState(text string, pipelineID, executionID int64, startedAt time.Time) State {
	return State{
		Text:   text,
		Config: map[string]any{},
		Metadata: map[string]any{
			"pipeline_id":  pipelineID,
			"execution_id": executionID,
			"started_at":   FormatTimestamp(startedAt),
		},
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Config = copyMap(s.Config)
	out.Metadata = copyMap(s.Metadata)
	if s.Summary != nil {
		v := *s.Summary
		out.Summary = &v
	}
	if s.TranslatedText != nil {
		v := *s.TranslatedText
		out.TranslatedText = &v
	}
	if s.EmailResult != nil {
		v := *s.EmailResult
		out.EmailResult = &v
	}
	return out
}

// WithConfig returns a copy of s with config merged over its accumulated config.
func (s State) WithConfig(config map[string]any) State {
	out := s.Clone()
	for k, v := range config {
		out.Config[k] = copyValue(v)
	}
	return out
}

// WithError returns a copy of s carrying msg in its error field.
func (s State) WithError(msg string) State {
	out := s.Clone()
	out.Error = msg
	return out
}

// withMetadata returns a copy of s with kv merged into its metadata.
func (s State) withMetadata(kv map[string]any) State {
	out := s.Clone()
	for k, v := range kv {
		out.Metadata[k] = v
	}
	return out
}

// JSON serializes s for persistence.
func (s State) JSON() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseState decodes a persisted state document.
func ParseState(data string) (State, error) {
	var s State
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return State{}, err
	}
	if s.Config == nil {
		s.Config = map[string]any{}
	}
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
	return s, nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
