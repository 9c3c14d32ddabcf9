package imagegen

import (
	"context"

	"jingle-gift/internal/reference"
)

const PlaceholderName = "placeholder"

// transparentPixel is a 1x1 transparent PNG.
const transparentPixel = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// Placeholder supplies a generic image once every provider failed. It is a
// presentation fallback and never counts as a generation success.
type Placeholder struct {
	URL     string
	Fetcher *reference.Fetcher
}

func (p *Placeholder) Image(ctx context.Context) Image {
	if p.URL != "" && p.Fetcher != nil {
		if img := p.Fetcher.FetchOrNil(ctx, p.URL); img != nil {
			return Image{Data: img.Data, MimeType: img.MimeType, Provider: PlaceholderName}
		}
	}
	return Image{Data: transparentPixel, MimeType: "image/png", Provider: PlaceholderName}
}
