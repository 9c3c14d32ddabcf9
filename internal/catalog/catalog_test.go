package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "Merry Christmas!", c.DefaultGreeting)
	assert.Equal(t, 150, c.GreetingWords.Min)
	assert.Equal(t, 200, c.GreetingWords.Max)
	assert.GreaterOrEqual(t, len(c.Scenes()), 40)

	for _, s := range c.Scenes() {
		assert.NotEmpty(t, s)
	}
}

func TestScenesKeepDeclarationOrder(t *testing.T) {
	c, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, c.Scenes())
}

func TestParseDropsBlankScenes(t *testing.T) {
	doc := validDoc + "\n  - key: extra\n    scenes: [\"  \", \"d\"]\n"
	c, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, c.Scenes())
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"no scenes": `
default_greeting: hi
greeting_words: {min: 1, max: 2}
prompts: {image_reference: x, image_solo: x, image_fallback: x, greeting: x}
`,
		"bad band": `
default_greeting: hi
greeting_words: {min: 5, max: 2}
categories: [{key: k, scenes: [a]}]
prompts: {image_reference: x, image_solo: x, image_fallback: x, greeting: x}
`,
		"missing prompt": `
default_greeting: hi
greeting_words: {min: 1, max: 2}
categories: [{key: k, scenes: [a]}]
prompts: {image_reference: x, image_solo: x, image_fallback: x}
`,
		"broken template": `
default_greeting: hi
greeting_words: {min: 1, max: 2}
categories: [{key: k, scenes: [a]}]
prompts: {image_reference: "{{.Scene", image_solo: x, image_fallback: x, greeting: x}
`,
		"not yaml": "categories: [",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validDoc), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Version)

	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Version)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

const validDoc = `
version: 7
default_greeting: "Happy holidays"
greeting_words: {min: 10, max: 20}
prompts:
  image_reference: "ref {{.Scene}}"
  image_solo: "solo {{.Scene}}"
  image_fallback: "fallback {{.Scene}}"
  greeting: "greet {{.Message}}"
categories:
  - key: one
    scenes: [a, b]
  - key: two
    scenes: [c]`
