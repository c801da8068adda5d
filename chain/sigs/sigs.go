// Package sigs is a small type-keyed signer registry, in the shape of
// lotus's lib/sigs package: concrete signature algorithms register
// themselves via RegisterSignature and are looked up by SigType.
package sigs

import (
	"fmt"

	"github.com/filecoin-project/lotus-lite/chain/address"
)

// SigType identifies a signature algorithm and doubles as its on-wire
// type byte (§3: "signature = type_byte ‖ 65 bytes").
type SigType byte

const (
	SigTypeSecp256k1 SigType = 1
)

// Signer is implemented by one concrete signature algorithm.
type Signer interface {
	GenPrivate() ([]byte, error)
	ToPublic(pk []byte) ([]byte, error)
	Sign(pk []byte, msg []byte) ([]byte, error)
	Verify(sig []byte, addr address.Address, msg []byte) error
}

var registry = map[SigType]Signer{}

// RegisterSignature installs the Signer for t, overwriting any prior
// registration (mirrors lib/sigs/delegated's init-time registration).
func RegisterSignature(t SigType, s Signer) {
	registry[t] = s
}

func lookup(t SigType) (Signer, error) {
	s, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("sigs: no signer registered for type %d", t)
	}
	return s, nil
}

// Generate creates a new private key for t.
func Generate(t SigType) ([]byte, error) {
	s, err := lookup(t)
	if err != nil {
		return nil, err
	}
	return s.GenPrivate()
}

// ToPublic derives the public key bytes for a private key of type t.
func ToPublic(t SigType, pk []byte) ([]byte, error) {
	s, err := lookup(t)
	if err != nil {
		return nil, err
	}
	return s.ToPublic(pk)
}

// Sign produces the wire-form signature (without the leading type
// byte) for msg under pk, per §4.3.
func Sign(t SigType, pk []byte, msg []byte) ([]byte, error) {
	s, err := lookup(t)
	if err != nil {
		return nil, err
	}
	return s.Sign(pk, msg)
}

// Verify checks a signature against a claimed signer address.
func Verify(t SigType, sig []byte, addr address.Address, msg []byte) error {
	s, err := lookup(t)
	if err != nil {
		return err
	}
	return s.Verify(sig, addr, msg)
}
