package ops

import (
	"sort"

	"github.com/rendis/flowgpt/pkg/schema"
)

// Kind is the type tag stored on a node.
type Kind string

const (
	KindCleanText Kind = "clean_text"
	KindUppercase Kind = "uppercase"
	KindSummary   Kind = "summary"
	KindTranslate Kind = "translate"
	KindEmail     Kind = "email"
)

// Descriptor documents one node type: its tag, a display label, a short
// description and the JSON Schema its stored config must satisfy.
type Descriptor struct {
	Kind         Kind   `json:"kind"`
	Label        string `json:"label"`
	Description  string `json:"description"`
	ConfigSchema string `json:"config_schema"`
}

var registry = map[Kind]Descriptor{
	KindCleanText: {
		Kind:        KindCleanText,
		Label:       "Clean Text",
		Description: "Collapses whitespace and optionally strips special characters and URLs.",
		ConfigSchema: `{
  "type": "object",
  "properties": {
    "remove_special_chars": { "type": "boolean" },
    "remove_urls": { "type": "boolean" }
  }
}`,
	},
	KindUppercase: {
		Kind:         KindUppercase,
		Label:        "Convert to Uppercase",
		Description:  "Replaces the text with its uppercase form.",
		ConfigSchema: `{"type": "object"}`,
	},
	KindSummary: {
		Kind:        KindSummary,
		Label:       "Generate Summary",
		Description: "Keeps the first sentences of the text, optionally truncated.",
		ConfigSchema: `{
  "type": "object",
  "properties": {
    "num_sentences": { "type": "integer" },
    "max_chars": { "type": ["integer", "null"], "minimum": 0 }
  }
}`,
	},
	KindTranslate: {
		Kind:        KindTranslate,
		Label:       "Translate Text",
		Description: "Dictionary translation of a few English words.",
		ConfigSchema: `{
  "type": "object",
  "properties": {
    "target_language": { "type": "string", "minLength": 1 }
  }
}`,
	},
	KindEmail: {
		Kind:        KindEmail,
		Label:       "Send Email",
		Description: "Fabricates an email delivery result for the current text.",
		ConfigSchema: `{
  "type": "object",
  "properties": {
    "recipient": { "type": "string", "format": "email" },
    "subject": { "type": "string" }
  }
}`,
	},
}

var kinds = []Kind{KindCleanText, KindUppercase, KindSummary, KindTranslate, KindEmail}

// Kinds returns every registered node type.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Valid reports whether k is one of the registered node types.
func (k Kind) Valid() bool {
	_, ok := registry[k]
	return ok
}

// Lookup returns the descriptor for kind.
func Lookup(kind Kind) (Descriptor, error) {
	d, ok := registry[kind]
	if !ok {
		return Descriptor{}, schema.NewErrorf(schema.ErrCodeConfiguration, "Unknown node type: %s", kind)
	}
	return d, nil
}

// List returns every descriptor sorted by kind.
func List() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Kind < out[j].Kind
	})
	return out
}
