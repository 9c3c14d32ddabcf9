package scene

import "strings"

const (
	TypeSkiing  = "skiing"
	TypeTravel  = "travel"
	TypeFamily  = "family"
	TypePet     = "pet"
	TypeBeach   = "beach"
	TypeIndoor  = "indoor"
	TypeGeneral = "general"

	generalDescription = "holiday celebration"
)

type Classification struct {
	SceneType        string `json:"sceneType"`
	SceneDescription string `json:"sceneDescription"`
}

type Rule struct {
	Type        string
	Description string
	Keywords    []string
}

// Rules is evaluated top to bottom and the first rule with a matching
// keyword wins, so "ski" beats "family" when a text contains both.
var Rules = []Rule{
	{
		Type:        TypeSkiing,
		Description: "skiing in the snowy mountains",
		Keywords:    []string{"ski", "snowboard", "slope", "mountain", "snow"},
	},
	{
		Type:        TypeTravel,
		Description: "traveling and exploring together",
		Keywords:    []string{"travel", "exploring", "city", "adventure", "journey", "trip"},
	},
	{
		Type:        TypeFamily,
		Description: "a family holiday gathering",
		Keywords:    []string{"family", "parents", "grandma", "grandpa", "kids", "children"},
	},
	{
		Type:        TypePet,
		Description: "holiday fun with a furry friend",
		Keywords:    []string{"puppy", "dog", "kitten", "cat", "pet"},
	},
	{
		Type:        TypeBeach,
		Description: "a warm holiday by the sea",
		Keywords:    []string{"beach", "ocean", "sand", "tropical", "island", "sea"},
	},
	{
		Type:        TypeIndoor,
		Description: "a cozy celebration at home",
		Keywords:    []string{"fireplace", "cozy", "kitchen", "cookies", "cocoa", "home", "tree"},
	},
}

// Classify tags a greeting with the first rule whose keyword occurs in it.
// Matching is a plain case-insensitive substring test.
func Classify(text string) Classification {
	return ClassifyWith(Rules, text)
}

func ClassifyWith(rules []Rule, text string) Classification {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) != "" {
		for _, r := range rules {
			for _, kw := range r.Keywords {
				if strings.Contains(lower, kw) {
					return Classification{SceneType: r.Type, SceneDescription: r.Description}
				}
			}
		}
	}
	return Classification{SceneType: TypeGeneral, SceneDescription: generalDescription}
}
