package types

import (
	"math/big"

	"github.com/filecoin-project/lotus-lite/chain/codec"
)

// BigInt carries an arbitrary-precision non-negative decimal, per §3:
// value/gasFeeCap/gasPremium wire as (0x00 ‖ be_magnitude) or empty for
// zero.
type BigInt struct {
	Int *big.Int
}

// NewInt wraps a uint64 as a BigInt.
func NewInt(v uint64) BigInt {
	return BigInt{Int: new(big.Int).SetUint64(v)}
}

// Zero is the canonical zero BigInt.
func Zero() BigInt { return NewInt(0) }

// BigFromBytes wraps a big-endian magnitude directly, for fields like
// BlockHeader.ParentBaseFee that carry the magnitude bytes without the
// MarshalBinary wire's leading sign byte.
func BigFromBytes(b []byte) (BigInt, error) {
	if len(b) == 0 {
		return Zero(), nil
	}
	return BigInt{Int: new(big.Int).SetBytes(b)}, nil
}

// Nil reports whether the BigInt has no backing *big.Int.
func (b BigInt) Nil() bool { return b.Int == nil }

func (b BigInt) String() string {
	if b.Nil() {
		return "<nil>"
	}
	return b.Int.String()
}

// ParseBigInt decodes the arbitrary-precision decimal string used in
// the wire's string fields (§3).
func ParseBigInt(s string) (BigInt, error) {
	if s == "" {
		return Zero(), nil
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return BigInt{}, &codec.ErrMalformed{Reason: "invalid decimal big-num string: " + s}
	}
	return BigInt{Int: i}, nil
}

// MarshalBinary implements the wire convention from §3/§4.4.
func (b BigInt) MarshalBinary() ([]byte, error) {
	if b.Nil() || b.Int.Sign() == 0 {
		return nil, nil
	}
	if b.Int.Sign() < 0 {
		return nil, &codec.ErrMalformed{Reason: "negative BigInt has no wire encoding"}
	}
	return codec.EncodeBigNum(b.Int.Bytes()), nil
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (b *BigInt) UnmarshalBinary(wire []byte) error {
	mag, err := codec.DecodeBigNum(wire)
	if err != nil {
		return err
	}
	if len(mag) == 0 {
		b.Int = new(big.Int)
		return nil
	}
	b.Int = new(big.Int).SetBytes(mag)
	return nil
}

func BigAdd(a, b BigInt) BigInt  { return BigInt{Int: new(big.Int).Add(a.Int, b.Int)} }
func BigSub(a, b BigInt) BigInt  { return BigInt{Int: new(big.Int).Sub(a.Int, b.Int)} }
func BigMul(a, b BigInt) BigInt  { return BigInt{Int: new(big.Int).Mul(a.Int, b.Int)} }
func BigDiv(a, b BigInt) BigInt  { return BigInt{Int: new(big.Int).Div(a.Int, b.Int)} }

func (a BigInt) LessThan(b BigInt) bool { return a.Int.Cmp(b.Int) < 0 }
func (a BigInt) Equals(b BigInt) bool   { return a.Int.Cmp(b.Int) == 0 }
