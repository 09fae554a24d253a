package nizk

import (
	"errors"
	"fmt"

	"github.com/drand/sigma/sigma"
)

// BatchableProof is the canonical proof: the commitment and the response.
// It verifies without recomputing the commitment.
type BatchableProof[C, R any] struct {
	Commitment C
	Response   R
}

// ShortProof holds the challenge instead of the commitment, which the
// verifier rebuilds with the protocol simulator.
type ShortProof[R any] struct {
	Challenge sigma.Challenge
	Response  R
}

// BatchableLen is the size of an encoded batchable proof.
func (n *NIZK[W, S, C, R]) BatchableLen() int {
	return n.protocol.CommitmentLen() + n.protocol.ResponseLen()
}

// ShortLen is the size of an encoded short proof.
func (n *NIZK[W, S, C, R]) ShortLen() int {
	return sigma.ChallengeLength + n.protocol.ResponseLen()
}

// MarshalBatchable encodes proof as commitment || response.
func (n *NIZK[W, S, C, R]) MarshalBatchable(proof *BatchableProof[C, R]) ([]byte, error) {
	if proof == nil {
		return nil, errors.New("nizk: nil proof")
	}
	com, err := n.protocol.MarshalCommitment(proof.Commitment)
	if err != nil {
		return nil, fmt.Errorf("nizk: encoding commitment: %w", err)
	}
	resp, err := n.protocol.MarshalResponse(proof.Response)
	if err != nil {
		return nil, fmt.Errorf("nizk: encoding response: %w", err)
	}
	out := make([]byte, 0, len(com)+len(resp))
	out = append(out, com...)
	return append(out, resp...), nil
}

// UnmarshalBatchable decodes the output of MarshalBatchable.
func (n *NIZK[W, S, C, R]) UnmarshalBatchable(buff []byte) (*BatchableProof[C, R], error) {
	if len(buff) != n.BatchableLen() {
		return nil, fmt.Errorf("nizk: batchable proof of %d bytes, expected %d: %w",
			len(buff), n.BatchableLen(), sigma.ErrSerialization)
	}
	split := n.protocol.CommitmentLen()
	com, err := n.protocol.UnmarshalCommitment(buff[:split])
	if err != nil {
		return nil, err
	}
	resp, err := n.protocol.UnmarshalResponse(buff[split:])
	if err != nil {
		return nil, err
	}
	return &BatchableProof[C, R]{Commitment: com, Response: resp}, nil
}

// MarshalShort encodes proof as challenge || response.
func (n *NIZK[W, S, C, R]) MarshalShort(proof *ShortProof[R]) ([]byte, error) {
	if proof == nil {
		return nil, errors.New("nizk: nil proof")
	}
	resp, err := n.protocol.MarshalResponse(proof.Response)
	if err != nil {
		return nil, fmt.Errorf("nizk: encoding response: %w", err)
	}
	out := make([]byte, 0, sigma.ChallengeLength+len(resp))
	out = append(out, proof.Challenge[:]...)
	return append(out, resp...), nil
}

// UnmarshalShort decodes the output of MarshalShort.
func (n *NIZK[W, S, C, R]) UnmarshalShort(buff []byte) (*ShortProof[R], error) {
	if len(buff) != n.ShortLen() {
		return nil, fmt.Errorf("nizk: short proof of %d bytes, expected %d: %w",
			len(buff), n.ShortLen(), sigma.ErrSerialization)
	}
	resp, err := n.protocol.UnmarshalResponse(buff[sigma.ChallengeLength:])
	if err != nil {
		return nil, err
	}
	proof := &ShortProof[R]{Response: resp}
	copy(proof.Challenge[:], buff[:sigma.ChallengeLength])
	return proof, nil
}
