package scene

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jingle-gift/internal/catalog"
)

func TestNewSelectorRejectsEmptyCatalog(t *testing.T) {
	_, err := NewSelector(nil, Options{})
	assert.Error(t, err)
}

func TestPickCoversWholeCatalog(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)

	sel, err := NewSelector(c.Scenes(), Options{Rand: rand.New(rand.NewPCG(1, 2))})
	require.NoError(t, err)

	k := sel.Len()
	trials := k * 400
	counts := make(map[string]int, k)
	for i := 0; i < trials; i++ {
		counts[sel.Pick()]++
	}

	require.Len(t, counts, k, "every scene should be drawn at least once")

	// Each bucket expects 400 hits; a +/-40% band is far outside what a
	// uniform draw produces at this sample size.
	for s, n := range counts {
		assert.InDelta(t, 400, n, 160, "scene %q drawn %d times", s, n)
	}
}

func TestPickWithDefaultSource(t *testing.T) {
	scenes := []string{"a", "b", "c"}
	sel, err := NewSelector(scenes, Options{})
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		seen[sel.Pick()] = true
	}
	assert.Len(t, seen, 3)
}

func TestSelectorCopiesInput(t *testing.T) {
	scenes := []string{"a"}
	sel, err := NewSelector(scenes, Options{})
	require.NoError(t, err)

	scenes[0] = "mutated"
	assert.Equal(t, "a", sel.Pick())
	assert.Equal(t, []string{"a"}, sel.Scenes())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"We went skiing all day!", TypeSkiing},
		{"Building a SNOWMAN together", TypeSkiing},
		{"exploring the old city lights", TypeTravel},
		{"the whole family around the table", TypeFamily},
		{"my puppy loves the wrapping paper", TypePet},
		{"Christmas on the beach", TypeBeach},
		{"hot cocoa by the fireplace", TypeIndoor},
		{"Wishing you joy and peace", TypeGeneral},
		{"", TypeGeneral},
	}

	for _, tc := range cases {
		got := Classify(tc.text)
		assert.Equal(t, tc.want, got.SceneType, tc.text)
		assert.NotEmpty(t, got.SceneDescription)
	}
}

func TestClassifyFirstRuleWins(t *testing.T) {
	got := Classify("a family ski trip")
	assert.Equal(t, TypeSkiing, got.SceneType)

	got = Classify("family time at home")
	assert.Equal(t, TypeFamily, got.SceneType)
}

func TestClassifyGeneralDescription(t *testing.T) {
	got := Classify("joy")
	assert.Equal(t, Classification{SceneType: "general", SceneDescription: "holiday celebration"}, got)
}

func TestClassifyWithCustomRules(t *testing.T) {
	rules := []Rule{
		{Type: "b", Description: "second", Keywords: []string{"family"}},
		{Type: "a", Description: "first", Keywords: []string{"ski"}},
	}
	got := ClassifyWith(rules, "family ski")
	assert.Equal(t, "b", got.SceneType)
}
