package crypto

import (
	"fmt"
	"strings"

	"github.com/drand/kyber"
	bls "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/group/edwards25519"
)

const (
	// BLS12381G1ID is the G1 group of BLS12-381, 48 byte points.
	BLS12381G1ID = "bls12-381.G1"
	// BLS12381G2ID is the G2 group of BLS12-381, 96 byte points.
	BLS12381G2ID = "bls12-381.G2"
	// Ed25519ID is the prime order subgroup of edwards25519, 32 byte points.
	Ed25519ID = "ed25519"
)

// DefaultGroupID is the group used when none is configured.
const DefaultGroupID = BLS12381G1ID

var groupIDs = []string{BLS12381G1ID, BLS12381G2ID, Ed25519ID}

// GroupFromName returns the kyber group registered under name. Names are
// case insensitive, so the String() of every registered group is accepted.
func GroupFromName(name string) (kyber.Group, error) {
	switch strings.ToLower(name) {
	case strings.ToLower(BLS12381G1ID):
		return bls.NewBLS12381Suite().G1(), nil
	case strings.ToLower(BLS12381G2ID):
		return bls.NewBLS12381Suite().G2(), nil
	case Ed25519ID:
		return edwards25519.NewBlakeSHA256Ed25519(), nil
	default:
		return nil, fmt.Errorf("invalid group name '%s'", name)
	}
}

// GetGroupByNameWithDefault is GroupFromName, returning the default group for
// an empty name.
func GetGroupByNameWithDefault(name string) (kyber.Group, error) {
	if name == "" {
		name = DefaultGroupID
	}
	return GroupFromName(name)
}

// ListGroups returns the names of the registered groups.
func ListGroups() []string {
	return groupIDs
}
