// Package cborutil provides the low-level major-type framing helpers
// that the hand-written MarshalCBOR/UnmarshalCBOR methods in chain/types
// and chain/codec build on, in the style of whyrusleeping/cbor-gen's
// generated code.
package cborutil

import (
	"fmt"
	"io"
	"math"
)

const (
	MajUnsignedInt = 0
	MajNegativeInt = 1
	MajByteString  = 2
	MajTextString  = 3
	MajArray       = 4
	MajMap         = 5
	MajTag         = 6
	MajOther       = 7
)

// ByteReader is the minimal reader interface the framing helpers need.
type ByteReader interface {
	io.Reader
	io.ByteReader
}

// CborEncodeMajorType returns the canonical header bytes for a CBOR
// major type and length/value, using the shortest encoding.
func CborEncodeMajorType(t byte, l uint64) []byte {
	switch {
	case l < 24:
		return []byte{(t << 5) | byte(l)}
	case l <= math.MaxUint8:
		return []byte{(t << 5) | 24, byte(l)}
	case l <= math.MaxUint16:
		return []byte{(t << 5) | 25, byte(l >> 8), byte(l)}
	case l <= math.MaxUint32:
		return []byte{
			(t << 5) | 26,
			byte(l >> 24), byte(l >> 16), byte(l >> 8), byte(l),
		}
	default:
		return []byte{
			(t << 5) | 27,
			byte(l >> 56), byte(l >> 48), byte(l >> 40), byte(l >> 32),
			byte(l >> 24), byte(l >> 16), byte(l >> 8), byte(l),
		}
	}
}

// WriteMajorTypeHeader writes the canonical header for (t, l) to w.
func WriteMajorTypeHeader(w io.Writer, t byte, l uint64) error {
	_, err := w.Write(CborEncodeMajorType(t, l))
	return err
}

// CborReadHeader reads a CBOR major-type header, returning the type and
// the encoded length/value.
func CborReadHeader(br ByteReader) (byte, uint64, error) {
	first, err := br.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	maj := first >> 5
	low := first & 0x1f

	switch {
	case low < 24:
		return maj, uint64(low), nil
	case low == 24:
		next, err := br.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		return maj, uint64(next), nil
	case low == 25:
		buf := make([]byte, 2)
		if _, err := io.ReadFull(br, buf); err != nil {
			return 0, 0, err
		}
		return maj, uint64(buf[0])<<8 | uint64(buf[1]), nil
	case low == 26:
		buf := make([]byte, 4)
		if _, err := io.ReadFull(br, buf); err != nil {
			return 0, 0, err
		}
		var v uint64
		for _, b := range buf {
			v = v<<8 | uint64(b)
		}
		return maj, v, nil
	case low == 27:
		buf := make([]byte, 8)
		if _, err := io.ReadFull(br, buf); err != nil {
			return 0, 0, err
		}
		var v uint64
		for _, b := range buf {
			v = v<<8 | uint64(b)
		}
		return maj, v, nil
	default:
		return 0, 0, fmt.Errorf("cbor: invalid additional info %d", low)
	}
}

// WriteByteArray writes a definite-length CBOR byte string.
func WriteByteArray(w io.Writer, b []byte) error {
	if err := WriteMajorTypeHeader(w, MajByteString, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadByteArray reads a definite-length CBOR byte string, failing if it
// exceeds maxLen (0 disables the check).
func ReadByteArray(br ByteReader, maxLen uint64) ([]byte, error) {
	maj, l, err := CborReadHeader(br)
	if err != nil {
		return nil, err
	}
	if maj != MajByteString {
		return nil, fmt.Errorf("cbor: expected byte string, got major type %d", maj)
	}
	if maxLen > 0 && l > maxLen {
		return nil, fmt.Errorf("cbor: byte string of length %d exceeds limit %d", l, maxLen)
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteUInt writes a canonical CBOR unsigned integer.
func WriteUInt(w io.Writer, v uint64) error {
	return WriteMajorTypeHeader(w, MajUnsignedInt, v)
}

// ReadUInt reads a canonical CBOR unsigned integer.
func ReadUInt(br ByteReader) (uint64, error) {
	maj, v, err := CborReadHeader(br)
	if err != nil {
		return 0, err
	}
	if maj != MajUnsignedInt {
		return 0, fmt.Errorf("cbor: expected unsigned int, got major type %d", maj)
	}
	return v, nil
}

// CBORMarshaler and CBORUnmarshaler are the interfaces every hand-written
// wire type in chain/types implements, in the shape of cbor-gen's
// generated code.
type CBORMarshaler interface {
	MarshalCBOR(io.Writer) error
}

type CBORUnmarshaler interface {
	UnmarshalCBOR(ByteReader) error
}

// WriteCborRPC writes obj's wire form to w, for use framing one
// request/response value on a raw stream (hello, chain-exchange).
func WriteCborRPC(w io.Writer, obj CBORMarshaler) error {
	return obj.MarshalCBOR(w)
}

// ReadCborRPC reads one wire value from r into out.
func ReadCborRPC(r ByteReader, out CBORUnmarshaler) error {
	return out.UnmarshalCBOR(r)
}

// WriteArrayHeader writes the header of a definite-length array of l items.
func WriteArrayHeader(w io.Writer, l int) error {
	return WriteMajorTypeHeader(w, MajArray, uint64(l))
}

// ReadArrayHeader reads an array header and returns its declared length.
func ReadArrayHeader(br ByteReader) (int, error) {
	maj, l, err := CborReadHeader(br)
	if err != nil {
		return 0, err
	}
	if maj != MajArray {
		return 0, fmt.Errorf("cbor: expected array, got major type %d", maj)
	}
	return int(l), nil
}
