package ops

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/rendis/flowgpt/pkg/schema"
)

// Operation is a node's transformation together with its typed configuration.
// The set of implementations is closed: CleanText, Uppercase, Summary,
// Translate and Email.
type Operation interface {
	Kind() Kind
	operation()
}

// CleanText normalizes whitespace and optionally strips characters.
type CleanText struct {
	RemoveSpecialChars bool `mapstructure:"remove_special_chars"`
	RemoveURLs         bool `mapstructure:"remove_urls"`
}

// Uppercase converts the text to upper case.
type Uppercase struct{}

// Summary keeps the leading sentences of the text.
type Summary struct {
	NumSentences *int `mapstructure:"num_sentences"`
	MaxChars     *int `mapstructure:"max_chars"`
}

// Translate substitutes dictionary words into TargetLanguage.
type Translate struct {
	TargetLanguage string `mapstructure:"target_language"`
}

// Email fabricates a delivery of the current text.
type Email struct {
	Recipient string `mapstructure:"recipient"`
	Subject   string `mapstructure:"subject"`
}

func (CleanText) Kind() Kind { return KindCleanText }
func (Uppercase) Kind() Kind { return KindUppercase }
func (Summary) Kind() Kind   { return KindSummary }
func (Translate) Kind() Kind { return KindTranslate }
func (Email) Kind() Kind     { return KindEmail }

func (CleanText) operation() {}
func (Uppercase) operation() {}
func (Summary) operation()   {}
func (Translate) operation() {}
func (Email) operation()     {}

const (
	defaultNumSentences   = 2
	defaultTargetLanguage = "spanish"
	defaultRecipient      = "user@example.com"
	defaultSubject        = "Message from FlowGPT"
)

// Parse resolves a node's type tag and stored config into an Operation.
// Unknown tags and configs that cannot be decoded are configuration errors.
func Parse(kind Kind, config map[string]any) (Operation, error) {
	var op Operation
	switch kind {
	case KindCleanText:
		var c CleanText
		if err := decodeConfig(kind, config, &c); err != nil {
			return nil, err
		}
		op = c
	case KindUppercase:
		op = Uppercase{}
	case KindSummary:
		var c Summary
		if err := decodeConfig(kind, config, &c); err != nil {
			return nil, err
		}
		if c.MaxChars != nil && *c.MaxChars < 0 {
			return nil, schema.NewErrorf(schema.ErrCodeConfiguration,
				"summary max_chars must be >= 0, got %d", *c.MaxChars)
		}
		op = c
	case KindTranslate:
		c := Translate{TargetLanguage: defaultTargetLanguage}
		if err := decodeConfig(kind, config, &c); err != nil {
			return nil, err
		}
		op = c
	case KindEmail:
		c := Email{Recipient: defaultRecipient, Subject: defaultSubject}
		if err := decodeConfig(kind, config, &c); err != nil {
			return nil, err
		}
		op = c
	default:
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration, "Unknown node type: %s", kind)
	}
	return op, nil
}

// Apply runs op against in and returns the resulting state. in is never modified.
func Apply(op Operation, in State, now time.Time) (State, error) {
	switch o := op.(type) {
	case CleanText:
		return o.apply(in, now), nil
	case Uppercase:
		return o.apply(in, now), nil
	case Summary:
		return o.apply(in, now), nil
	case Translate:
		return o.apply(in, now), nil
	case Email:
		return o.apply(in, now), nil
	default:
		return in, schema.NewErrorf(schema.ErrCodeExecution, "unsupported operation %T", op)
	}
}

func decodeConfig(kind Kind, config map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build %s config decoder: %w", kind, err)
	}
	if err := dec.Decode(config); err != nil {
		return schema.NewErrorf(schema.ErrCodeConfiguration, "invalid %s config: %s", kind, err.Error()).
			WithCause(err)
	}
	return nil
}
