// Package codec implements the tagged binary wire format shared by the
// whole light client: a deterministic encode/decode for a small sum
// type, and content-address (CID) construction over the encoded bytes.
//
// The wire format is DAG-CBOR-shaped: maps sorted by key length then
// bytewise, integers minimal-length, arrays fixed-arity. Decoded trees
// that don't have a typed Go record yet (HAMT/AMT raw nodes, actor
// params) are held in Value, per the "Any intermediate values" design
// note — callers convert Value into a named record immediately at the
// point they know its shape.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/ipfs/go-cid"
	"github.com/minio/blake2b-simd"
	"github.com/multiformats/go-multihash"

	"github.com/filecoin-project/lotus-lite/lib/cborutil"
)

// Kind identifies which arm of the Value sum type is populated.
type Kind int

const (
	KindInvalid Kind = iota
	KindBytes
	KindInt
	KindList
	KindMap
	KindLink
	KindBool
)

// MapEntry is one key/value pair of a Value of KindMap. Keys are raw
// byte strings (CBOR map keys in this wire format are always byte
// strings derived from addresses or field names).
type MapEntry struct {
	Key   []byte
	Value Value
}

// Value is the untyped decode target: Bytes | Int | List | Map | Link | Bool.
type Value struct {
	Kind  Kind
	Bytes []byte
	Int   uint64
	List  []Value
	Map   []MapEntry
	Link  cid.Cid
	Bool  bool
}

func Bytes(b []byte) Value         { return Value{Kind: KindBytes, Bytes: b} }
func Int(i uint64) Value           { return Value{Kind: KindInt, Int: i} }
func List(items ...Value) Value    { return Value{Kind: KindList, List: items} }
func Link(c cid.Cid) Value         { return Value{Kind: KindLink, Link: c} }
func Bool(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func Map(entries ...MapEntry) Value { return Value{Kind: KindMap, Map: entries} }

// ErrMalformed covers arity/tag mismatches and truncated input.
type ErrMalformed struct{ Reason string }

func (e *ErrMalformed) Error() string { return "codec: malformed input: " + e.Reason }

// ErrTrailingBytes is returned by Decode when input remains after a
// complete value has been read.
var ErrTrailingBytes = fmt.Errorf("codec: trailing bytes after decoded value")

// Encode renders v as deterministic tagged binary bytes.
func Encode(v Value) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := encodeInto(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeInto(buf *bytes.Buffer, v Value) error {
	switch v.Kind {
	case KindBytes:
		return cborutil.WriteByteArray(buf, v.Bytes)
	case KindInt:
		return cborutil.WriteUInt(buf, v.Int)
	case KindBool:
		b := byte(20)
		if v.Bool {
			b = 21
		}
		buf.WriteByte((cborutil.MajOther << 5) | b)
		return nil
	case KindList:
		if err := cborutil.WriteArrayHeader(buf, len(v.List)); err != nil {
			return err
		}
		for _, item := range v.List {
			if err := encodeInto(buf, item); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		entries := make([]MapEntry, len(v.Map))
		copy(entries, v.Map)
		sort.Slice(entries, func(i, j int) bool {
			if len(entries[i].Key) != len(entries[j].Key) {
				return len(entries[i].Key) < len(entries[j].Key)
			}
			return bytes.Compare(entries[i].Key, entries[j].Key) < 0
		})
		if err := cborutil.WriteMajorTypeHeader(buf, cborutil.MajMap, uint64(len(entries))); err != nil {
			return err
		}
		for _, e := range entries {
			if err := cborutil.WriteByteArray(buf, e.Key); err != nil {
				return err
			}
			if err := encodeInto(buf, e.Value); err != nil {
				return err
			}
		}
		return nil
	case KindLink:
		if err := cborutil.WriteMajorTypeHeader(buf, cborutil.MajTag, 42); err != nil {
			return err
		}
		// DAG-CBOR identity-multibase convention: 0x00 prefix byte.
		linked := append([]byte{0x00}, v.Link.Bytes()...)
		return cborutil.WriteByteArray(buf, linked)
	default:
		return &ErrMalformed{Reason: fmt.Sprintf("unsupported kind %d", v.Kind)}
	}
}

// Decode parses the complete tagged binary value in b, failing if any
// bytes remain afterwards.
func Decode(b []byte) (Value, error) {
	br := bytes.NewReader(b)
	v, err := decodeFrom(br)
	if err != nil {
		return Value{}, err
	}
	if br.Len() != 0 {
		return Value{}, ErrTrailingBytes
	}
	return v, nil
}

// DecodeOne reads a single tagged binary value off br without
// requiring the stream to be exhausted afterwards, for callers
// framing one value among several on a shared stream (e.g. protocol
// payloads in chain/exchange).
func DecodeOne(br cborutil.ByteReader) (Value, error) {
	return decodeFrom(br)
}

func decodeFrom(br cborutil.ByteReader) (Value, error) {
	maj, l, err := cborutil.CborReadHeader(br)
	if err != nil {
		return Value{}, err
	}

	switch maj {
	case cborutil.MajUnsignedInt:
		return Int(l), nil
	case cborutil.MajByteString:
		buf := make([]byte, l)
		if _, err := readFull(br, buf); err != nil {
			return Value{}, err
		}
		return Bytes(buf), nil
	case cborutil.MajArray:
		items := make([]Value, 0, l)
		for i := uint64(0); i < l; i++ {
			item, err := decodeFrom(br)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return List(items...), nil
	case cborutil.MajMap:
		entries := make([]MapEntry, 0, l)
		for i := uint64(0); i < l; i++ {
			kv, err := decodeFrom(br)
			if err != nil {
				return Value{}, err
			}
			if kv.Kind != KindBytes {
				return Value{}, &ErrMalformed{Reason: "map key was not a byte string"}
			}
			val, err := decodeFrom(br)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: kv.Bytes, Value: val})
		}
		return Map(entries...), nil
	case cborutil.MajTag:
		if l != 42 {
			return Value{}, &ErrMalformed{Reason: fmt.Sprintf("unsupported tag %d", l)}
		}
		inner, err := decodeFrom(br)
		if err != nil {
			return Value{}, err
		}
		if inner.Kind != KindBytes || len(inner.Bytes) == 0 || inner.Bytes[0] != 0x00 {
			return Value{}, &ErrMalformed{Reason: "malformed CID link"}
		}
		c, err := cid.Cast(inner.Bytes[1:])
		if err != nil {
			return Value{}, &ErrMalformed{Reason: "bad CID bytes: " + err.Error()}
		}
		return Link(c), nil
	case cborutil.MajOther:
		return Value{Kind: KindBool, Bool: l == 21}, nil
	default:
		return Value{}, &ErrMalformed{Reason: fmt.Sprintf("unsupported major type %d", maj)}
	}
}

func readFull(br cborutil.ByteReader, buf []byte) (int, error) {
	return io.ReadFull(br, buf)
}

// BuildCID derives the CIDv1(codec=0x71 dag-cbor, BLAKE2b-256(data)) that
// content-addresses data.
func BuildCID(data []byte) (cid.Cid, error) {
	sum := blake2b.Sum256(data)
	mh, err := multihash.Encode(sum[:], multihash.BLAKE2B_MIN+31)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.DagCBOR, mh), nil
}

// VerifyCID reports whether data content-addresses to c, per the core
// invariant: BLAKE2b-256(data) == c.digest.
func VerifyCID(data []byte, c cid.Cid) bool {
	got, err := BuildCID(data)
	if err != nil {
		return false
	}
	return got.Equals(c)
}

// EncodeBigNum implements §4.4's serializeBigNum: (0x00 ‖ be_magnitude),
// or an empty byte string for a zero/empty value.
func EncodeBigNum(magnitude []byte) []byte {
	if len(magnitude) == 0 {
		return nil
	}
	return append([]byte{0x00}, magnitude...)
}

// DecodeBigNum is the inverse of EncodeBigNum: strips the leading sign
// byte, returning nil for an empty input.
func DecodeBigNum(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if b[0] != 0x00 {
		return nil, &ErrMalformed{Reason: "bignum missing leading zero sign byte"}
	}
	return b[1:], nil
}
