// Package sigma defines the capability set of a Sigma protocol, the three
// move (commit, challenge, response) proof of knowledge, together with the
// constants and labels shared by every protocol and by the Fiat-Shamir
// transform in package nizk.
//
// Sigma protocols are not meant to be run interactively: use them through
// nizk.NIZK.
package sigma

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

const (
	// LabelLength is the size in bytes of every label.
	LabelLength = 32
	// ChallengeLength is the size in bytes of a challenge.
	ChallengeLength = 32
)

// DomainSeparator identifies the version of the sigma protocol standard
// implemented by this module.
const DomainSeparator = "zkpstd/sigma/0.1"

// Label is a 32 byte domain identifier.
type Label [LabelLength]byte

func (l Label) String() string {
	return hex.EncodeToString(l[:])
}

// Challenge is the verifier message of a Sigma protocol. Protocols interpret
// it as a scalar, which can fail: see ErrChallengeConversion.
type Challenge [ChallengeLength]byte

func (c Challenge) String() string {
	return hex.EncodeToString(c[:])
}

// DeriveLabel returns the label of the protocol called name, instantiated with
// the given parameters. The name and each parameter are length prefixed
// before hashing with BLAKE2b-256, so distinct inputs give distinct labels.
func DeriveLabel(name string, params ...[]byte) Label {
	h, _ := blake2b.New256(nil)
	var size [4]byte
	write := func(b []byte) {
		binary.BigEndian.PutUint32(size[:], uint32(len(b)))
		_, _ = h.Write(size[:])
		_, _ = h.Write(b)
	}
	write([]byte(name))
	for _, p := range params {
		write(p)
	}
	var l Label
	copy(l[:], h.Sum(nil))
	return l
}
