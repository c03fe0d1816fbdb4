package aimodel

import apperr "github.com/auric-labs/personagate/internal/errors"

// Model describes an upstream AI model and its capability flags.
type Model struct {
	Name           string `json:"name"`
	Path           string `json:"path"`
	SupportsImages bool   `json:"supportsImages"`
	SupportsAudio  bool   `json:"supportsAudio"`
}

// DefaultModel is used when a request does not name one explicitly.
var DefaultModel = Model{
	Name:           "default",
	Path:           "/v1/chat/completions",
	SupportsImages: true,
	SupportsAudio:  false,
}

// CheckCompatibility fails with an IncompatibleContentError when content
// requires a modality the model does not support.
func CheckCompatibility(c Content, m Model) error {
	if c.RequiresImages() && !m.SupportsImages {
		return apperr.NewIncompatibleContentError(
			"content contains images but model " + m.Name + " does not support image input")
	}
	if c.RequiresAudio() && !m.SupportsAudio {
		return apperr.NewIncompatibleContentError(
			"content contains audio but model " + m.Name + " does not support audio input")
	}
	return nil
}
