package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func translate(t *testing.T, target, text string) (string, State) {
	t.Helper()
	out := mustApply(t, Translate{TargetLanguage: target}, newTestState(text))
	require.NotNil(t, out.TranslatedText)
	return *out.TranslatedText, out
}

func TestTranslate_Spanish(t *testing.T) {
	got, out := translate(t, "spanish", "Hello world")
	assert.Equal(t, "Hola mundo", got)
	assert.Equal(t, "Hello world", out.Text)
	assert.Equal(t, map[string]any{"source_language": "english", "target_language": "spanish"},
		out.Metadata["translation_config"])
	assert.Equal(t, true, out.Metadata["translation_applied"])
}

func TestTranslate_PunctuationAndCasing(t *testing.T) {
	got, _ := translate(t, "spanish", "hello, WORLD! Goodbye friend")
	assert.Equal(t, "hola Mundo Adiós friend", got)
}

func TestTranslate_MultiWordTranslation(t *testing.T) {
	got, _ := translate(t, "french", "Goodbye and welcome")
	assert.Equal(t, "Au revoir and bienvenue", got)

	got, _ = translate(t, "german", "  Welcome   Hello ")
	assert.Equal(t, "Willkommen Hallo", got)
}

func TestTranslate_UnmatchedTokensKeepCasing(t *testing.T) {
	got, _ := translate(t, "spanish", "Thank YOU, Dave")
	assert.Equal(t, "Thank YOU, Dave", got)
}

func TestTranslate_UnsupportedLanguage(t *testing.T) {
	got, out := translate(t, "klingon", "Hello   world")
	assert.Equal(t, "Hello   world", got)
	assert.Equal(t, "klingon", out.Metadata["translation_config"].(map[string]any)["target_language"])
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Adiós", capitalize("adiós"))
	assert.Equal(t, "Au revoir", capitalize("au REVOIR"))
	assert.Equal(t, "", capitalize(""))
}
