package imagegen

import (
	"context"
	"errors"

	"jingle-gift/internal/gemini"
)

const (
	GeminiReferenceName = "gemini-reference"
	ImagenName          = "imagen"
)

// GeminiReference calls an image-capable generateContent model with the
// reference photos attached after the prompt, sender first.
type GeminiReference struct {
	Client      *gemini.Client
	Model       string
	AspectRatio string
}

func (g *GeminiReference) Name() string { return GeminiReferenceName }

func (g *GeminiReference) Attempt(ctx context.Context, in Input) (Image, error) {
	if g.Client == nil {
		return Image{}, errors.New("gemini client is nil")
	}

	images := make([]gemini.ImageInput, 0, len(in.References))
	for _, ref := range in.References {
		images = append(images, gemini.ImageInput{DataBase64: ref.Data, MimeType: ref.MimeType})
	}

	resp, err := g.Client.GenerateContent(ctx, g.Model, in.Prompt, images, gemini.ContentOptions{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		AspectRatio:        g.AspectRatio,
	})
	if err != nil {
		return Image{}, err
	}

	img, ok := resp.FirstImage()
	if !ok {
		return Image{}, ErrNoImage
	}
	return Image{Data: img.Data, MimeType: img.MimeType, Provider: GeminiReferenceName}, nil
}

// Imagen is the prompt-only predict endpoint. It ignores references.
type Imagen struct {
	Client      *gemini.Client
	Model       string
	AspectRatio string
}

func (p *Imagen) Name() string { return ImagenName }

func (p *Imagen) Attempt(ctx context.Context, in Input) (Image, error) {
	if p.Client == nil {
		return Image{}, errors.New("gemini client is nil")
	}

	prompt := in.FallbackPrompt
	if prompt == "" {
		prompt = in.Prompt
	}

	aspect := p.AspectRatio
	if aspect == "" {
		aspect = "1:1"
	}

	imgs, err := p.Client.Predict(ctx, p.Model, prompt, gemini.PredictOptions{
		SampleCount:       1,
		AspectRatio:       aspect,
		SafetyFilterLevel: "block_few",
		PersonGeneration:  "allow_adult",
	})
	if err != nil {
		return Image{}, err
	}
	if len(imgs) == 0 {
		return Image{}, ErrNoImage
	}
	return Image{Data: imgs[0].Data, MimeType: imgs[0].MimeType, Provider: ImagenName}, nil
}
