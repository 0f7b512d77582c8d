package insights

import (
	"errors"
	"fmt"
)

// ErrNoJSONObject is wrapped by ExtractionError.
var ErrNoJSONObject = errors.New("no JSON object in response")

// InvalidInputError reports a data summary that cannot be turned into a request.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid insights input: %s %s", e.Field, e.Reason)
}

// ExtractionError reports a generator response with no {...} span.
type ExtractionError struct {
	Response string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not extract insights from AI response: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// MalformedResponseError reports an extracted span that is not valid JSON.
type MalformedResponseError struct {
	Fragment string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("AI response is not valid JSON: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
