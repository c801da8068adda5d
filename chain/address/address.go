// Package address implements the Filecoin-style address codec: string
// <-> wire-bytes conversion with a BLAKE2b checksum, and public-key to
// address derivation for secp256k1 keys. This package is the spec's
// own §4.2 deliverable, not a wrapper over the upstream go-address
// library.
package address

import (
	"fmt"

	"github.com/minio/blake2b-simd"
	"github.com/multiformats/go-base32"
	"golang.org/x/xerrors"
)

// Protocol identifies the address type, per §3 of the data model.
type Protocol byte

const (
	ID         Protocol = 0
	SECP256K1  Protocol = 1
	Actor      Protocol = 2
	BLS        Protocol = 3
	Unknown    Protocol = 0xff
)

// Network selects the single-character network prefix used in the
// string form. Mirrors go-address's package-level CurrentNetwork:
// exactly one client process talks to exactly one network at a time.
type Network byte

const (
	Mainnet Network = 'f'
	Testnet Network = 't'
)

// CurrentNetwork is consulted by String() for addresses that don't
// otherwise carry their network (wire bytes never do).
var CurrentNetwork = Testnet

const (
	payloadHashLength  = 20 // BLAKE2b-160, used for SECP256K1 and Actor payloads
	blsPayloadLength   = 48
	checksumLength     = 4
	maxStringLength    = 2 + 84 // net+protocol digit + payload+checksum base32
)

// Address is an immutable (protocol, payload) pair. The zero value
// (protocol ID, nil payload) is not Undef, but Empty reports true for
// both.
type Address struct {
	protocol Protocol
	payload  []byte
}

// Undef is the zero-value invalid address.
var Undef = Address{protocol: Unknown}

func (a Address) Protocol() Protocol { return a.protocol }
func (a Address) Payload() []byte    { return a.payload }

// Empty reports whether a is either the Undef sentinel or the Go zero
// value (protocol ID with no payload, the shape a freshly-constructed
// Message's From field has before PushMessage fills it in). No real ID
// address has a nil payload — NewIDAddress always emits at least one
// varint byte, even for id 0 — so this can't collide with a valid one.
func (a Address) Empty() bool {
	return a.protocol == Unknown || (a.protocol == ID && len(a.payload) == 0)
}

// Bytes returns the wire form: protocol_byte ‖ payload.
func (a Address) Bytes() []byte {
	if a.Empty() {
		return nil
	}
	out := make([]byte, 1+len(a.payload))
	out[0] = byte(a.protocol)
	copy(out[1:], a.payload)
	return out
}

// Equals reports whether two addresses have the same protocol and payload.
func (a Address) Equals(o Address) bool {
	if a.protocol != o.protocol || len(a.payload) != len(o.payload) {
		return false
	}
	for i := range a.payload {
		if a.payload[i] != o.payload[i] {
			return false
		}
	}
	return true
}

func checksum(protocol Protocol, payload []byte) ([]byte, error) {
	h, err := blake2b.New(&blake2b.Config{Size: checksumLength})
	if err != nil {
		return nil, err
	}
	h.Write([]byte{byte(protocol)})
	h.Write(payload)
	return h.Sum(nil), nil
}

// String renders the address using CurrentNetwork as the net prefix.
// ID addresses use plain decimal (no base32, no checksum, per the
// on-chain actor-id addressing convention); every other protocol uses
// <net><protocol><base32(payload‖checksum)>.
func (a Address) String() string {
	if a.Empty() {
		return "<empty address>"
	}

	if a.protocol == ID {
		id, _, err := decodeUvarint(a.payload)
		if err != nil {
			return "<invalid id address>"
		}
		return fmt.Sprintf("%c%d%d", byte(CurrentNetwork), ID, id)
	}

	cksum, err := checksum(a.protocol, a.payload)
	if err != nil {
		return "<checksum error>"
	}
	body := append(append([]byte{}, a.payload...), cksum...)
	enc := base32.RawStdEncoding.EncodeToString(body)
	return fmt.Sprintf("%c%d%s", byte(CurrentNetwork), a.protocol, enc)
}

// NewFromString parses a human-readable address, verifying its checksum.
func NewFromString(s string) (Address, error) {
	if len(s) < 3 {
		return Undef, fmt.Errorf("address: too short: %q", s)
	}
	net := Network(s[0])
	if net != Mainnet && net != Testnet {
		return Undef, fmt.Errorf("address: unknown network prefix %q", s[:1])
	}

	protoDigit := s[1]
	if protoDigit < '0' || protoDigit > '3' {
		return Undef, fmt.Errorf("address: unknown protocol digit %q", string(protoDigit))
	}
	protocol := Protocol(protoDigit - '0')
	rest := s[2:]

	if protocol == ID {
		var id uint64
		if _, err := fmt.Sscanf(rest, "%d", &id); err != nil {
			return Undef, xerrors.Errorf("address: bad id payload: %w", err)
		}
		return NewIDAddress(id), nil
	}

	raw, err := base32.RawStdEncoding.DecodeString(rest)
	if err != nil {
		return Undef, xerrors.Errorf("address: bad base32 payload: %w", err)
	}
	if len(raw) < checksumLength {
		return Undef, fmt.Errorf("address: payload too short for checksum")
	}
	payload := raw[:len(raw)-checksumLength]
	gotSum := raw[len(raw)-checksumLength:]

	wantSum, err := checksum(protocol, payload)
	if err != nil {
		return Undef, err
	}
	if !bytesEqual(gotSum, wantSum) {
		return Undef, fmt.Errorf("address: checksum mismatch")
	}

	return Address{protocol: protocol, payload: payload}, nil
}

// NewFromBytes parses a wire-form address: protocol_byte ‖ payload. The
// wire form carries no checksum of its own (it is only present in the
// string form); callers that received bytes out-of-band and want the
// checksum guarantee should round-trip through String()/NewFromString.
func NewFromBytes(b []byte) (Address, error) {
	if len(b) < 1 {
		return Undef, fmt.Errorf("address: empty wire bytes")
	}
	protocol := Protocol(b[0])
	switch protocol {
	case ID, SECP256K1, Actor, BLS:
		return Address{protocol: protocol, payload: append([]byte{}, b[1:]...)}, nil
	default:
		return Undef, fmt.Errorf("address: unknown protocol byte %d", b[0])
	}
}

// AddressToBytes is the spec's addressToBytes(addr): the wire-form
// encoding used as HAMT/state-tree keys. It is exactly Bytes().
func AddressToBytes(a Address) []byte { return a.Bytes() }

// NewIDAddress builds an ID-protocol address from an actor id.
func NewIDAddress(id uint64) Address {
	return Address{protocol: ID, payload: encodeUvarint(id)}
}

// NewSecp256k1Address derives a SECP256K1 address from an uncompressed
// 65-byte public key: payload = BLAKE2b-160(pubkey).
func NewSecp256k1Address(pubkey []byte) (Address, error) {
	h, err := blake2b.New(&blake2b.Config{Size: payloadHashLength})
	if err != nil {
		return Undef, err
	}
	h.Write(pubkey)
	return Address{protocol: SECP256K1, payload: h.Sum(nil)}, nil
}

// NewActorAddress derives an ACTOR address: payload = BLAKE2b-160(data),
// where data is typically the actor-creation message's serialized form.
func NewActorAddress(data []byte) (Address, error) {
	h, err := blake2b.New(&blake2b.Config{Size: payloadHashLength})
	if err != nil {
		return Undef, err
	}
	h.Write(data)
	return Address{protocol: Actor, payload: h.Sum(nil)}, nil
}

// NewBLSAddress wraps a 48-byte BLS public key directly as the payload.
func NewBLSAddress(pubkey []byte) (Address, error) {
	if len(pubkey) != blsPayloadLength {
		return Undef, fmt.Errorf("address: BLS public key must be %d bytes, got %d", blsPayloadLength, len(pubkey))
	}
	return Address{protocol: BLS, payload: append([]byte{}, pubkey...)}, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// encodeUvarint/decodeUvarint implement the unsigned LEB128 varint used
// for ID-address payloads (same convention as multiformats/go-varint,
// reimplemented here to avoid a second varint dependency for a single
// five-line routine).
func encodeUvarint(v uint64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			break
		}
	}
	return buf
}

func decodeUvarint(b []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, c := range b {
		if shift >= 64 {
			return 0, 0, fmt.Errorf("address: varint overflow")
		}
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("address: truncated varint")
}
