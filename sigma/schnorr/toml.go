package schnorr

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/drand/kyber"

	"github.com/drand/sigma/crypto"
)

// InstanceTOML is the TOML-able version of an instance.
type InstanceTOML struct {
	Group string
	Base  string
	Claim string
}

// TOML returns a struct that can be marshalled using a TOML-encoding library.
func (i *Instance) TOML() interface{} {
	return &InstanceTOML{
		Group: i.Group.String(),
		Base:  pointToString(i.Base),
		Claim: pointToString(i.Claim),
	}
}

// FromTOML loads the instance from its TOML description.
func (i *Instance) FromTOML(t interface{}) error {
	itoml, ok := t.(*InstanceTOML)
	if !ok {
		return errors.New("instance can't decode toml from non InstanceTOML struct")
	}
	g, err := crypto.GroupFromName(itoml.Group)
	if err != nil {
		return err
	}
	base, err := stringToPoint(g, itoml.Base)
	if err != nil {
		return fmt.Errorf("instance base corrupted: %w", err)
	}
	claim, err := stringToPoint(g, itoml.Claim)
	if err != nil {
		return fmt.Errorf("instance claim corrupted: %w", err)
	}
	i.Group, i.Base, i.Claim = g, base, claim
	return nil
}

// TOMLValue returns an empty TOML-compatible value.
func (i *Instance) TOMLValue() interface{} {
	return &InstanceTOML{}
}

// Witness is a secret scalar with the group it belongs to. It is only ever
// written to disk by the key store, with owner-only permissions.
type Witness struct {
	Group kyber.Group
	Key   kyber.Scalar
}

// WitnessTOML is the TOML-able version of a witness.
type WitnessTOML struct {
	Group string
	Key   string
}

// TOML returns a struct that can be marshalled using a TOML-encoding library.
func (w *Witness) TOML() interface{} {
	buff, _ := w.Key.MarshalBinary()
	return &WitnessTOML{
		Group: w.Group.String(),
		Key:   hex.EncodeToString(buff),
	}
}

// FromTOML loads the witness from its TOML description.
func (w *Witness) FromTOML(t interface{}) error {
	wtoml, ok := t.(*WitnessTOML)
	if !ok {
		return errors.New("witness can't decode toml from non WitnessTOML struct")
	}
	g, err := crypto.GroupFromName(wtoml.Group)
	if err != nil {
		return err
	}
	buff, err := hex.DecodeString(wtoml.Key)
	if err != nil {
		return err
	}
	key := g.Scalar()
	if err := key.UnmarshalBinary(buff); err != nil {
		return err
	}
	w.Group, w.Key = g, key
	return nil
}

// TOMLValue returns an empty TOML-compatible value.
func (w *Witness) TOMLValue() interface{} {
	return &WitnessTOML{}
}

func pointToString(p kyber.Point) string {
	buff, _ := p.MarshalBinary()
	return hex.EncodeToString(buff)
}

func stringToPoint(g kyber.Group, s string) (kyber.Point, error) {
	buff, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	p := g.Point()
	return p, p.UnmarshalBinary(buff)
}
