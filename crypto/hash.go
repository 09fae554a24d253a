package crypto

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// HashFunc returns a fresh hash state. Every challenge derivation starts from
// a new state, so a HashFunc is all a NIZK session needs from its hash.
type HashFunc func() hash.Hash

// HashFunction enumerates the hash functions supported for challenge
// derivation.
type HashFunction int

const (
	Blake2b HashFunction = iota + 1
	SHA3_256
	Blake2s
	SHA256
)

// DefaultHash is used when no hash function is configured.
const DefaultHash = Blake2s

// hashInfo is one row of the registry.
type hashInfo struct {
	name      string
	blockLen  int
	digestLen int
	fn        HashFunc
}

var hashes = map[HashFunction]hashInfo{
	Blake2b: {"blake2b", 128, 64, func() hash.Hash {
		h, _ := blake2b.New512(nil)
		return h
	}},
	SHA3_256: {"sha3-256", 136, 32, sha3.New256},
	Blake2s: {"blake2s", 64, 32, func() hash.Hash {
		h, _ := blake2s.New256(nil)
		return h
	}},
	SHA256: {"sha256", 64, 32, sha256.New},
}

var hashIDs = []HashFunction{Blake2b, SHA3_256, Blake2s, SHA256}

// BlockLen returns the block size in bytes.
func (h HashFunction) BlockLen() int {
	return hashes[h].blockLen
}

// DigestLen returns the digest size in bytes.
func (h HashFunction) DigestLen() int {
	return hashes[h].digestLen
}

// Func returns the constructor of h, or nil for an unknown hash function.
func (h HashFunction) Func() HashFunc {
	return hashes[h].fn
}

// New returns a fresh hash state.
func (h HashFunction) New() (hash.Hash, error) {
	info, ok := hashes[h]
	if !ok {
		return nil, fmt.Errorf("crypto: unknown hash function %d", int(h))
	}
	return info.fn(), nil
}

// Available reports whether h is part of the registry.
func (h HashFunction) Available() bool {
	_, ok := hashes[h]
	return ok
}

func (h HashFunction) String() string {
	if info, ok := hashes[h]; ok {
		return info.name
	}
	return fmt.Sprintf("unknown(%d)", int(h))
}

// HashFromName returns the hash function registered under name.
func HashFromName(name string) (HashFunction, error) {
	for _, id := range hashIDs {
		if hashes[id].name == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("invalid hash function name '%s'", name)
}

// GetHashByNameWithDefault is HashFromName, returning DefaultHash for an
// empty name.
func GetHashByNameWithDefault(name string) (HashFunction, error) {
	if name == "" {
		return DefaultHash, nil
	}
	return HashFromName(name)
}

// ListHashes returns the names of the registered hash functions.
func ListHashes() []string {
	names := make([]string, len(hashIDs))
	for i, id := range hashIDs {
		names[i] = hashes[id].name
	}
	return names
}
