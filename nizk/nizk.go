// Package nizk turns any Sigma protocol into a non-interactive proof with the
// Fiat-Shamir transform: the verifier challenge is replaced by a domain
// separated hash of the session and of the prover commitment.
//
// A NIZK is immutable once created. Every challenge derivation starts from a
// fresh hash state, so one session may produce and verify any number of
// proofs, from any number of goroutines.
package nizk

import (
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/drand/sigma/common/log"
	"github.com/drand/sigma/crypto"
	"github.com/drand/sigma/internal/metrics"
	"github.com/drand/sigma/sigma"
)

// Proof kinds, as reported in logs and metrics.
const (
	KindBatchable = "batchable"
	KindShort     = "short"
)

// NIZK is a Fiat-Shamir session bound to one protocol instance, one hash
// function and one context.
type NIZK[W, S, C, R any] struct {
	protocol sigma.Protocol[W, S, C, R]
	hash     crypto.HashFunc

	hd   sigma.Label
	ha   sigma.Label
	hctx sigma.Label

	log   log.Logger
	clock clockwork.Clock
}

type config struct {
	log   log.Logger
	clock clockwork.Clock
}

// Option configures a NIZK session.
type Option func(*config)

// WithLogger sets the logger of the session.
func WithLogger(l log.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithClock sets the clock timing proof generation.
func WithClock(clock clockwork.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// New binds a session to protocol, hash and ctx. The digest of hash must be
// at least sigma.ChallengeLength bytes long.
func New[W, S, C, R any](protocol sigma.Protocol[W, S, C, R], hash crypto.HashFunc, ctx []byte, opts ...Option) (*NIZK[W, S, C, R], error) {
	if protocol == nil {
		return nil, errors.New("nizk: nil protocol")
	}
	if hash == nil {
		return nil, errors.New("nizk: nil hash function")
	}
	if size := hash().Size(); size < sigma.ChallengeLength {
		return nil, fmt.Errorf("nizk: %d byte digest is shorter than a %d byte challenge", size, sigma.ChallengeLength)
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.log == nil {
		cfg.log = log.DefaultLogger()
	}
	if cfg.clock == nil {
		cfg.clock = clockwork.NewRealClock()
	}
	metrics.Bind(cfg.log)

	return &NIZK[W, S, C, R]{
		protocol: protocol,
		hash:     hash,
		hd:       hashLabel(hash, []byte(sigma.DomainSeparator)),
		ha:       protocol.Label(),
		hctx:     hashLabel(hash, ctx),
		log:      cfg.log.Named("nizk"),
		clock:    cfg.clock,
	}, nil
}

// hashLabel returns the first LabelLength bytes of H(data), computed on a
// fresh state.
func hashLabel(hash crypto.HashFunc, data []byte) sigma.Label {
	h := hash()
	_, _ = h.Write(data)
	var l sigma.Label
	copy(l[:], h.Sum(nil))
	return l
}

// Challenge derives the challenge for commitment. A nil message is absent; a
// non-nil message, even empty, is bound through its own hash:
//
//	present: H(hd || hctx || ha || H(message) || commitment)
//	absent:  H(hd || hctx || ha || commitment)
//
// truncated to ChallengeLength bytes.
func (n *NIZK[W, S, C, R]) Challenge(message []byte, commitment C) (sigma.Challenge, error) {
	var c sigma.Challenge
	com, err := n.protocol.MarshalCommitment(commitment)
	if err != nil {
		return c, fmt.Errorf("nizk: encoding commitment: %w", err)
	}

	h := n.hash()
	_, _ = h.Write(n.hd[:])
	_, _ = h.Write(n.hctx[:])
	_, _ = h.Write(n.ha[:])
	if message != nil {
		hm := hashLabel(n.hash, message)
		_, _ = h.Write(hm[:])
	}
	_, _ = h.Write(com)
	copy(c[:], h.Sum(nil))
	return c, nil
}

// prove runs commit, challenge and response once.
func (n *NIZK[W, S, C, R]) prove(kind string, witness W, message []byte, rand cipher.Stream) (C, sigma.Challenge, R, error) {
	var (
		zeroC C
		zeroR R
	)
	start := n.clock.Now()

	commitment, state := n.protocol.ProverCommit(witness, rand)
	challenge, err := n.Challenge(message, commitment)
	if err != nil {
		return zeroC, challenge, zeroR, err
	}
	response, err := n.protocol.ProverResponse(state, challenge)
	if err != nil {
		if sigma.IsRetryable(err) {
			metrics.ChallengeConversionFailures.Inc()
			n.log.Debugw("challenge is not a scalar, proof must be retried", "kind", kind)
		}
		return zeroC, challenge, zeroR, fmt.Errorf("nizk: %s proof: %w", kind, err)
	}

	metrics.ProofsGenerated.WithLabelValues(kind).Inc()
	metrics.ProofGenerationDuration.WithLabelValues(kind).Observe(n.clock.Since(start).Seconds())
	return commitment, challenge, response, nil
}

// BatchableProof proves knowledge of witness, binding message. It returns an
// error satisfying sigma.IsRetryable when the derived challenge was not a
// scalar: call it again, it draws a fresh nonce.
func (n *NIZK[W, S, C, R]) BatchableProof(witness W, message []byte, rand cipher.Stream) (*BatchableProof[C, R], error) {
	commitment, _, response, err := n.prove(KindBatchable, witness, message, rand)
	if err != nil {
		return nil, err
	}
	return &BatchableProof[C, R]{Commitment: commitment, Response: response}, nil
}

// BatchableVerify checks proof against message. The error is nil for a valid
// proof and wraps sigma.ErrVerificationFailed for an invalid one.
func (n *NIZK[W, S, C, R]) BatchableVerify(proof *BatchableProof[C, R], message []byte) error {
	if proof == nil {
		return errors.New("nizk: nil proof")
	}
	challenge, err := n.Challenge(message, proof.Commitment)
	if err != nil {
		return n.verified(KindBatchable, err)
	}
	return n.verified(KindBatchable, n.protocol.Verifier(proof.Commitment, challenge, proof.Response))
}

// ShortProof is BatchableProof keeping the challenge instead of the
// commitment.
func (n *NIZK[W, S, C, R]) ShortProof(witness W, message []byte, rand cipher.Stream) (*ShortProof[R], error) {
	_, challenge, response, err := n.prove(KindShort, witness, message, rand)
	if err != nil {
		return nil, err
	}
	return &ShortProof[R]{Challenge: challenge, Response: response}, nil
}

// ShortVerify rebuilds the commitment from the challenge and the response,
// derives its challenge again and compares it with the stored one.
func (n *NIZK[W, S, C, R]) ShortVerify(proof *ShortProof[R], message []byte) error {
	if proof == nil {
		return errors.New("nizk: nil proof")
	}
	commitment, err := n.protocol.SimulateCommitment(proof.Challenge, proof.Response)
	if err != nil {
		return n.verified(KindShort, err)
	}
	challenge, err := n.Challenge(message, commitment)
	if err != nil {
		return n.verified(KindShort, err)
	}
	if subtle.ConstantTimeCompare(challenge[:], proof.Challenge[:]) != 1 {
		return n.verified(KindShort, sigma.ErrVerificationFailed)
	}
	return n.verified(KindShort, nil)
}

// verified records the outcome of a verification and returns err wrapped.
func (n *NIZK[W, S, C, R]) verified(kind string, err error) error {
	switch {
	case err == nil:
		metrics.ProofsVerified.WithLabelValues(kind, metrics.ResultValid).Inc()
		return nil
	case errors.Is(err, sigma.ErrVerificationFailed):
		metrics.ProofsVerified.WithLabelValues(kind, metrics.ResultInvalid).Inc()
		n.log.Debugw("proof rejected", "kind", kind)
	default:
		metrics.ProofsVerified.WithLabelValues(kind, metrics.ResultError).Inc()
		n.log.Debugw("proof could not be verified", "kind", kind, "err", err)
	}
	return fmt.Errorf("nizk: %s verify: %w", kind, err)
}
