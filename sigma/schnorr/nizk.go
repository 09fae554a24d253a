package schnorr

import (
	"errors"

	"github.com/drand/kyber"

	"github.com/drand/sigma/crypto"
	"github.com/drand/sigma/nizk"
)

// NIZK is the Fiat-Shamir session of the Schnorr protocol.
type NIZK = nizk.NIZK[kyber.Scalar, *ProverState, kyber.Point, kyber.Scalar]

// BatchableProof is a Schnorr proof carrying its commitment.
type BatchableProof = nizk.BatchableProof[kyber.Point, kyber.Scalar]

// ShortProof is a Schnorr proof carrying its challenge.
type ShortProof = nizk.ShortProof[kyber.Scalar]

// NewNIZK returns the Fiat-Shamir session proving knowledge of the discrete
// logarithm of instance, under hash and ctx, with the default label.
func NewNIZK(instance *Instance, hash crypto.HashFunc, ctx []byte, opts ...nizk.Option) (*NIZK, error) {
	return WrapNIZK(New(instance), hash, ctx, opts...)
}

// WrapNIZK is NewNIZK for an already configured protocol.
func WrapNIZK(s *Schnorr, hash crypto.HashFunc, ctx []byte, opts ...nizk.Option) (*NIZK, error) {
	if s == nil {
		return nil, errors.New("schnorr: nil protocol")
	}
	return nizk.New[kyber.Scalar, *ProverState, kyber.Point, kyber.Scalar](s, hash, ctx, opts...)
}
