package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultDocument []byte

type WordBand struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type Category struct {
	Key    string   `yaml:"key"`
	Name   string   `yaml:"name"`
	Scenes []string `yaml:"scenes"`
}

type Prompts struct {
	ImageReference string `yaml:"image_reference"`
	ImageSolo      string `yaml:"image_solo"`
	ImageFallback  string `yaml:"image_fallback"`
	Greeting       string `yaml:"greeting"`
}

// Catalog is the versioned data behind scene selection and prompt building.
type Catalog struct {
	Version         int        `yaml:"version"`
	DefaultGreeting string     `yaml:"default_greeting"`
	GreetingWords   WordBand   `yaml:"greeting_words"`
	Categories      []Category `yaml:"categories"`
	Prompts         Prompts    `yaml:"prompts"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultDocument)
}

// Load reads the catalog at path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	for i := range c.Categories {
		c.Categories[i].Scenes = compact(c.Categories[i].Scenes)
	}
	c.DefaultGreeting = strings.TrimSpace(c.DefaultGreeting)

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Scenes flattens every category in declaration order.
func (c *Catalog) Scenes() []string {
	var out []string
	for _, cat := range c.Categories {
		out = append(out, cat.Scenes...)
	}
	return out
}

func (c *Catalog) validate() error {
	if len(c.Scenes()) == 0 {
		return errors.New("catalog has no scenes")
	}
	if c.DefaultGreeting == "" {
		return errors.New("catalog default_greeting is empty")
	}
	if c.GreetingWords.Min <= 0 || c.GreetingWords.Max < c.GreetingWords.Min {
		return fmt.Errorf("catalog greeting_words %d-%d is invalid", c.GreetingWords.Min, c.GreetingWords.Max)
	}

	templates := map[string]string{
		"image_reference": c.Prompts.ImageReference,
		"image_solo":      c.Prompts.ImageSolo,
		"image_fallback":  c.Prompts.ImageFallback,
		"greeting":        c.Prompts.Greeting,
	}
	for name, text := range templates {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("catalog prompt %s is empty", name)
		}
		if _, err := template.New(name).Option("missingkey=error").Parse(text); err != nil {
			return fmt.Errorf("catalog prompt %s: %w", name, err)
		}
	}
	return nil
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
