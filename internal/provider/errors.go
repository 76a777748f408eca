package provider

import (
	"errors"
	"fmt"
)

// ErrNoResult means a provider ran successfully but found nothing. It is an
// outcome, not a failure: pipelines translate it into an explicit
// empty-result message.
var ErrNoResult = errors.New("provider returned no result")

// ErrBudgetExhausted means the rate-limited fallback has no calls left.
var ErrBudgetExhausted = errors.New("fallback call budget exhausted")

// DecodeError means the input media could not be read. It is terminal for the
// current request; no provider is invoked after it.
type DecodeError struct {
	Media string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s: %v", e.Media, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnavailableError wraps a network, timeout or rate-limit failure talking to
// a provider. Pipelines degrade on optional steps and report transient
// failure on primary ones.
type UnavailableError struct {
	Provider string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Unavailable reports whether err is an UnavailableError.
func Unavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
