package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"jingle-gift/internal/catalog"
)

const anonymousRecipient = "a dear friend"

type ImageInput struct {
	Scene         string
	SenderName    string
	RecipientName string
	References    int // attached reference photos, sender first
}

type GreetingInput struct {
	Scene         string
	SenderName    string
	RecipientName string
	Message       string
}

// Builder renders the catalog's prompt templates. All style and length
// constraints live in the templates; the builder only fills them in.
type Builder struct {
	imageReference *template.Template
	imageSolo      *template.Template
	imageFallback  *template.Template
	greeting       *template.Template

	defaultGreeting string
	words           catalog.WordBand
}

func NewBuilder(c *catalog.Catalog) (*Builder, error) {
	if c == nil {
		return nil, fmt.Errorf("catalog is nil")
	}

	b := &Builder{
		defaultGreeting: c.DefaultGreeting,
		words:           c.GreetingWords,
	}

	var err error
	if b.imageReference, err = parse("image_reference", c.Prompts.ImageReference); err != nil {
		return nil, err
	}
	if b.imageSolo, err = parse("image_solo", c.Prompts.ImageSolo); err != nil {
		return nil, err
	}
	if b.imageFallback, err = parse("image_fallback", c.Prompts.ImageFallback); err != nil {
		return nil, err
	}
	if b.greeting, err = parse("greeting", c.Prompts.Greeting); err != nil {
		return nil, err
	}
	return b, nil
}

// Image returns the prompt for the primary, reference-aware model. Without
// references it falls back to the solo wording so the model is not told to
// look at photos it never receives.
func (b *Builder) Image(in ImageInput) (string, error) {
	in = normalizeImage(in)
	if in.References > 0 {
		return render(b.imageReference, in)
	}
	return render(b.imageSolo, in)
}

// Fallback returns the reference-free prompt for prompt-only providers.
func (b *Builder) Fallback(in ImageInput) (string, error) {
	in = normalizeImage(in)
	in.References = 0
	return render(b.imageFallback, in)
}

func (b *Builder) Greeting(in GreetingInput) (string, error) {
	data := struct {
		GreetingInput
		MinWords int
		MaxWords int
	}{
		GreetingInput: GreetingInput{
			Scene:         strings.TrimSpace(in.Scene),
			SenderName:    nameOr(in.SenderName, "A friend"),
			RecipientName: nameOr(in.RecipientName, anonymousRecipient),
			Message:       nameOr(in.Message, b.defaultGreeting),
		},
		MinWords: b.words.Min,
		MaxWords: b.words.Max,
	}
	return render(b.greeting, data)
}

func (b *Builder) DefaultGreeting() string {
	return b.defaultGreeting
}

func (b *Builder) WordBand() catalog.WordBand {
	return b.words
}

func normalizeImage(in ImageInput) ImageInput {
	in.Scene = strings.TrimSpace(in.Scene)
	in.SenderName = nameOr(in.SenderName, "A friend")
	in.RecipientName = nameOr(in.RecipientName, anonymousRecipient)
	if in.References < 0 {
		in.References = 0
	}
	return in
}

func nameOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s prompt: %w", name, err)
	}
	return t, nil
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return strings.TrimSpace(sb.String()), nil
}
