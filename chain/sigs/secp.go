package sigs

import (
	"fmt"

	gocrypto "github.com/filecoin-project/go-crypto"
	"github.com/minio/blake2b-simd"

	"github.com/filecoin-project/lotus-lite/chain/address"
)

// secp256k1Signer implements Signer using github.com/filecoin-project/go-crypto,
// the same secp256k1 wrapper lotus's wallet and lib/sigs/delegated use.
type secp256k1Signer struct{}

func init() {
	RegisterSignature(SigTypeSecp256k1, secp256k1Signer{})
}

func (secp256k1Signer) GenPrivate() ([]byte, error) {
	return gocrypto.GenerateKey()
}

func (secp256k1Signer) ToPublic(pk []byte) ([]byte, error) {
	return gocrypto.PublicKey(pk), nil
}

// Sign hashes msg with BLAKE2b-256 and signs the digest, returning the
// 65-byte (r‖s‖v) signature with the secp256k1-library recovery byte.
func (secp256k1Signer) Sign(pk []byte, msg []byte) ([]byte, error) {
	digest := blake2b.Sum256(msg)
	sig, err := gocrypto.Sign(pk, digest[:])
	if err != nil {
		return nil, err
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("sigs: secp256k1 signer did not return a recovery byte")
	}
	return sig, nil
}

func (secp256k1Signer) Verify(sig []byte, addr address.Address, msg []byte) error {
	if addr.Protocol() != address.SECP256K1 {
		return fmt.Errorf("sigs: must resolve ID addresses before verifying a signature")
	}
	digest := blake2b.Sum256(msg)
	pubk, err := gocrypto.EcRecover(digest[:], sig)
	if err != nil {
		return err
	}
	recovered, err := address.NewSecp256k1Address(pubk)
	if err != nil {
		return err
	}
	if !recovered.Equals(addr) {
		return fmt.Errorf("sigs: signature did not match address")
	}
	return nil
}
