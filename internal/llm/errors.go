package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports bad caller input: an empty message list, an
// out-of-range parameter, or a malformed ModelConfig. It is surfaced
// immediately and never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// APIError reports a failed backend call: a non-success HTTP status, a
// malformed response body, or a transport failure. The underlying cause, if
// any, is preserved for errors.Unwrap.
type APIError struct {
	Provider   ProviderID
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	prefix := string(e.Provider)
	if prefix == "" {
		prefix = "llm"
	}
	if e.StatusCode != 0 {
		msg := e.Body
		if msg == "" {
			msg = http.StatusText(e.StatusCode)
		}
		return fmt.Sprintf("%s: API error (%d): %s", prefix, e.StatusCode, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return prefix + ": API error"
}

func (e *APIError) Unwrap() error { return e.Err }

// AsAPIError unwraps err into an APIError if there is one in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
