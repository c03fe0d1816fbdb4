// Package aimodel defines the AI content and model value objects used when
// building and validating AI requests.
package aimodel

import (
	"strings"

	apperr "github.com/auric-labs/personagate/internal/errors"
)

// PartType discriminates the kinds of content parts a request may carry.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
	PartAudio PartType = "audio"
)

// Part is one typed element of AI content. Text parts carry Text; image and
// audio parts carry a URL reference to the media.
type Part struct {
	Type PartType `json:"type"`
	Text string   `json:"text,omitempty"`
	URL  string   `json:"url,omitempty"`
}

// Content is an ordered list of typed parts.
type Content []Part

// NewTextContent builds content holding a single text part.
func NewTextContent(text string) Content {
	return Content{{Type: PartText, Text: text}}
}

// WithImage returns content with an image reference part appended.
func (c Content) WithImage(url string) Content {
	return append(c, Part{Type: PartImage, URL: url})
}

// WithAudio returns content with an audio reference part appended.
func (c Content) WithAudio(url string) Content {
	return append(c, Part{Type: PartAudio, URL: url})
}

// Validate checks that the content is non-empty and every part is well formed.
func (c Content) Validate() error {
	if len(c) == 0 {
		return apperr.Validationf("content must contain at least one part")
	}
	for i, p := range c {
		switch p.Type {
		case PartText:
			if strings.TrimSpace(p.Text) == "" {
				return apperr.Validationf("text part %d is empty", i)
			}
		case PartImage, PartAudio:
			if p.URL == "" {
				return apperr.Validationf("%s part %d has no url", p.Type, i)
			}
		default:
			return apperr.Validationf("part %d has unknown type %q", i, p.Type)
		}
	}
	return nil
}

// RequiresImages reports whether the content carries any image reference.
func (c Content) RequiresImages() bool {
	for _, p := range c {
		if p.Type == PartImage {
			return true
		}
	}
	return false
}

// RequiresAudio reports whether the content carries any audio reference.
func (c Content) RequiresAudio() bool {
	for _, p := range c {
		if p.Type == PartAudio {
			return true
		}
	}
	return false
}

// Text concatenates all text parts, joined by newlines.
func (c Content) Text() string {
	var parts []string
	for _, p := range c {
		if p.Type == PartText {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}
