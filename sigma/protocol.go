package sigma

import "crypto/cipher"

// Protocol is a Sigma protocol bound to one public instance.
//
// W is the witness, S the prover state linking a commitment to its
// response, C the commitment and R the response. Implementations carry no
// mutable state: every method may be called concurrently.
type Protocol[W, S, C, R any] interface {
	Codec[C, R]

	// Label identifies the protocol and its parameters. It must differ
	// between distinct protocols.
	Label() Label

	// ProverCommit draws fresh randomness from rand and returns the
	// commitment with the state needed to answer one challenge.
	ProverCommit(witness W, rand cipher.Stream) (C, S)

	// ProverResponse answers challenge. It returns ErrChallengeConversion
	// when the challenge does not map to a scalar, and ErrStateReused when
	// state already answered a challenge.
	ProverResponse(state S, challenge Challenge) (R, error)

	// Verifier returns nil when the transcript is accepting and
	// ErrVerificationFailed otherwise.
	Verifier(commitment C, challenge Challenge, response R) error

	// SimulateResponse returns a response distributed as an honest one,
	// without any witness.
	SimulateResponse(rand cipher.Stream) R

	// SimulateCommitment returns the only commitment accepted with
	// challenge and response.
	SimulateCommitment(challenge Challenge, response R) (C, error)
}

// Codec gives the canonical encoding of commitments and responses. Decoding
// errors wrap ErrSerialization.
type Codec[C, R any] interface {
	CommitmentLen() int
	MarshalCommitment(C) ([]byte, error)
	UnmarshalCommitment([]byte) (C, error)

	ResponseLen() int
	MarshalResponse(R) ([]byte, error)
	UnmarshalResponse([]byte) (R, error)
}
