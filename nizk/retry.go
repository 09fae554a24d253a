package nizk

import (
	"errors"
	"fmt"

	"github.com/drand/sigma/sigma"
)

// DefaultAttempts bounds Retry in the command line tools. Once masked to the
// bit length of the order, about half of the challenges are not scalars on
// ed25519, so 64 failures in a row are out of reach.
const DefaultAttempts = 64

// ErrAttemptsExhausted is returned by Retry when every attempt failed with a
// retryable error.
var ErrAttemptsExhausted = errors.New("nizk: attempts exhausted")

// Retry calls fn until it returns a result or an error which is not
// retryable, at most attempts times. fn must draw fresh randomness on every
// call, which the proof generation methods of NIZK do.
func Retry[T any](attempts int, fn func() (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		return zero, fmt.Errorf("nizk: %d attempts", attempts)
	}
	var err error
	for i := 0; i < attempts; i++ {
		var v T
		v, err = fn()
		if err == nil || !sigma.IsRetryable(err) {
			return v, err
		}
	}
	return zero, fmt.Errorf("%w after %d tries: %w", ErrAttemptsExhausted, attempts, err)
}
