package sigma

import "errors"

// ErrVerificationFailed means the verification equation of the protocol, or
// the recomputed challenge of a short proof, did not match. The proof is
// rejected for good.
var ErrVerificationFailed = errors.New("sigma: verification failed")

// ErrChallengeConversion means the challenge bytes are not the canonical
// encoding of a scalar. It is an expected event on most curves: the prover
// should draw fresh randomness and try again.
var ErrChallengeConversion = errors.New("sigma: challenge is not a valid scalar")

// ErrSerialization means proof or key bytes could not be decoded.
var ErrSerialization = errors.New("sigma: malformed encoding")

// ErrStateReused means a prover state was asked for a second response. A
// nonce answering two challenges reveals the witness.
var ErrStateReused = errors.New("sigma: prover state already used")

// IsRetryable reports whether the operation that returned err can be
// attempted again with fresh randomness.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrChallengeConversion)
}
