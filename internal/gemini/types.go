package gemini

import (
	"fmt"
	"strings"
)

type ImageInput struct {
	DataBase64 string
	MimeType   string
}

type InlineImage struct {
	Data     string // base64
	MimeType string
}

// Response is the flattened first candidate of a generateContent call.
type Response struct {
	Text   string
	Images []InlineImage
}

// FirstImage returns the first inline payload in part order.
func (r Response) FirstImage() (InlineImage, bool) {
	if len(r.Images) == 0 {
		return InlineImage{}, false
	}
	return r.Images[0], true
}

type ContentOptions struct {
	Temperature        float64
	MaxOutputTokens    int
	ResponseModalities []string
	AspectRatio        string
}

type PredictOptions struct {
	SampleCount       int
	AspectRatio       string
	SafetyFilterLevel string
	PersonGeneration  string
}

// APIError is a non-2xx answer from the Generative Language API.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API %s: %s", e.Status, strings.TrimSpace(e.Body))
}
