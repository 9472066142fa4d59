package openai

import "errors"

var (
	// ErrEmptyResponse indicates the model returned no choices or no vectors.
	ErrEmptyResponse = errors.New("empty model response")

	// ErrMalformedResponse indicates the model answer could not be parsed
	// after every retry.
	ErrMalformedResponse = errors.New("malformed model response")
)
