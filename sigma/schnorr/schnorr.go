// Package schnorr implements the Schnorr proof of knowledge of a discrete
// logarithm: knowing w such that claim = base·w, over any kyber group.
package schnorr

import (
	"bytes"
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/drand/kyber"

	"github.com/drand/sigma/sigma"
)

// ProtocolName is the name hashed into the default label.
const ProtocolName = "schnorr-dlog"

// Instance is the public statement: claim = base·witness for some witness.
type Instance struct {
	Group kyber.Group
	Base  kyber.Point
	Claim kyber.Point
}

// NewInstance returns the instance (base, claim) over group.
func NewInstance(group kyber.Group, base, claim kyber.Point) *Instance {
	return &Instance{Group: group, Base: base, Claim: claim}
}

// Equal reports whether both instances hold the same points of the same group.
func (i *Instance) Equal(o *Instance) bool {
	return i.Group.String() == o.Group.String() &&
		i.Base.Equal(o.Base) &&
		i.Claim.Equal(o.Claim)
}

// KeyPair draws a non-zero witness and returns it with its instance on the
// standard base point of group.
func KeyPair(group kyber.Group, rand cipher.Stream) (kyber.Scalar, *Instance) {
	zero := group.Scalar().Zero()
	w := group.Scalar().Pick(rand)
	for w.Equal(zero) {
		w = group.Scalar().Pick(rand)
	}
	claim := group.Point().Mul(w, nil)
	return w, NewInstance(group, group.Point().Base(), claim)
}

// ProverState links a commitment to the single response it may produce.
type ProverState struct {
	witness kyber.Scalar
	nonce   kyber.Scalar
	used    bool
}

// Schnorr is the protocol bound to one instance. It is immutable.
type Schnorr struct {
	instance *Instance
	label    sigma.Label
	// challenge bytes are masked to the bit length of the group order
	topByte int
	topMask byte
}

var _ sigma.Protocol[kyber.Scalar, *ProverState, kyber.Point, kyber.Scalar] = (*Schnorr)(nil)

// Option configures a Schnorr protocol.
type Option func(*Schnorr)

// WithLabel replaces the default protocol label. An all-zero label gives the
// challenges of implementations which do not label their protocols.
func WithLabel(l sigma.Label) Option {
	return func(s *Schnorr) {
		s.label = l
	}
}

// DefaultLabel is the label of the Schnorr protocol over group.
func DefaultLabel(group kyber.Group) sigma.Label {
	return sigma.DeriveLabel(ProtocolName, []byte(group.String()))
}

// New binds the protocol to instance.
func New(instance *Instance, opts ...Option) *Schnorr {
	s := &Schnorr{
		instance: instance,
		label:    DefaultLabel(instance.Group),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.topByte, s.topMask = orderMask(instance.Group)
	return s
}

// orderMask finds the most significant byte of the scalar encoding of group
// and the mask keeping the bits below the bit length of the order.
func orderMask(group kyber.Group) (int, byte) {
	one, err := group.Scalar().One().MarshalBinary()
	if err != nil || len(one) == 0 {
		return 0, 0xff
	}
	top := len(one) - 1
	if one[len(one)-1] == 1 {
		top = 0
	}
	order, err := group.Scalar().Neg(group.Scalar().One()).MarshalBinary()
	if err != nil || len(order) != len(one) {
		return top, 0xff
	}
	mask := byte(0)
	for b := order[top]; b != 0; b >>= 1 {
		mask = mask<<1 | 1
	}
	return top, mask
}

// Instance returns the statement the protocol is bound to.
func (s *Schnorr) Instance() *Instance {
	return s.instance
}

func (s *Schnorr) Label() sigma.Label {
	return s.label
}

// ProverCommit picks a nonce r and commits to base·r.
func (s *Schnorr) ProverCommit(witness kyber.Scalar, rand cipher.Stream) (kyber.Point, *ProverState) {
	g := s.instance.Group
	r := g.Scalar().Pick(rand)
	commitment := g.Point().Mul(r, s.instance.Base)
	return commitment, &ProverState{witness: witness, nonce: r}
}

// ProverResponse returns r - c·w. The nonce is erased once a response is out.
func (s *Schnorr) ProverResponse(state *ProverState, challenge sigma.Challenge) (kyber.Scalar, error) {
	if state == nil || state.nonce == nil {
		return nil, errors.New("schnorr: empty prover state")
	}
	if state.used {
		return nil, sigma.ErrStateReused
	}
	c, err := s.challengeScalar(challenge)
	if err != nil {
		return nil, err
	}
	g := s.instance.Group
	cw := g.Scalar().Mul(c, state.witness)
	response := g.Scalar().Sub(state.nonce, cw)

	state.used = true
	state.nonce.Zero()
	return response, nil
}

// Verifier accepts iff base·response + claim·c == commitment.
func (s *Schnorr) Verifier(commitment kyber.Point, challenge sigma.Challenge, response kyber.Scalar) error {
	expected, err := s.SimulateCommitment(challenge, response)
	if err != nil {
		return err
	}
	if !expected.Equal(commitment) {
		return sigma.ErrVerificationFailed
	}
	return nil
}

// SimulateResponse returns a uniform scalar, which is how honest responses
// are distributed.
func (s *Schnorr) SimulateResponse(rand cipher.Stream) kyber.Scalar {
	return s.instance.Group.Scalar().Pick(rand)
}

// SimulateCommitment returns base·response + claim·c.
func (s *Schnorr) SimulateCommitment(challenge sigma.Challenge, response kyber.Scalar) (kyber.Point, error) {
	if response == nil {
		return nil, fmt.Errorf("schnorr: nil response: %w", sigma.ErrSerialization)
	}
	c, err := s.challengeScalar(challenge)
	if err != nil {
		return nil, err
	}
	g := s.instance.Group
	left := g.Point().Mul(response, s.instance.Base)
	right := g.Point().Mul(c, s.instance.Claim)
	return g.Point().Add(left, right), nil
}

// challengeScalar maps the challenge to a scalar. The bits above the bit
// length of the order are cleared, then the bytes must be the canonical
// encoding of a scalar: reduction would bias the challenge.
func (s *Schnorr) challengeScalar(challenge sigma.Challenge) (kyber.Scalar, error) {
	g := s.instance.Group
	if g.ScalarLen() != sigma.ChallengeLength {
		return nil, fmt.Errorf("schnorr: %d byte scalars on %s: %w",
			g.ScalarLen(), g.String(), sigma.ErrChallengeConversion)
	}
	buff := challenge
	buff[s.topByte] &= s.topMask
	c := g.Scalar().SetBytes(buff[:])
	canonical, err := c.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("schnorr: %v: %w", err, sigma.ErrChallengeConversion)
	}
	if subtle.ConstantTimeCompare(canonical, buff[:]) != 1 {
		return nil, sigma.ErrChallengeConversion
	}
	return c, nil
}

func (s *Schnorr) CommitmentLen() int {
	return s.instance.Group.PointLen()
}

func (s *Schnorr) MarshalCommitment(c kyber.Point) ([]byte, error) {
	if c == nil {
		return nil, errors.New("schnorr: nil commitment")
	}
	return c.MarshalBinary()
}

func (s *Schnorr) UnmarshalCommitment(buff []byte) (kyber.Point, error) {
	p := s.instance.Group.Point()
	if err := p.UnmarshalBinary(buff); err != nil {
		return nil, fmt.Errorf("schnorr: commitment: %v: %w", err, sigma.ErrSerialization)
	}
	if canonical, err := p.MarshalBinary(); err != nil || !bytes.Equal(canonical, buff) {
		return nil, fmt.Errorf("schnorr: non canonical commitment: %w", sigma.ErrSerialization)
	}
	return p, nil
}

func (s *Schnorr) ResponseLen() int {
	return s.instance.Group.ScalarLen()
}

func (s *Schnorr) MarshalResponse(r kyber.Scalar) ([]byte, error) {
	if r == nil {
		return nil, errors.New("schnorr: nil response")
	}
	return r.MarshalBinary()
}

func (s *Schnorr) UnmarshalResponse(buff []byte) (kyber.Scalar, error) {
	r := s.instance.Group.Scalar()
	if err := r.UnmarshalBinary(buff); err != nil {
		return nil, fmt.Errorf("schnorr: response: %v: %w", err, sigma.ErrSerialization)
	}
	if canonical, err := r.MarshalBinary(); err != nil || !bytes.Equal(canonical, buff) {
		return nil, fmt.Errorf("schnorr: non canonical response: %w", sigma.ErrSerialization)
	}
	return r, nil
}
