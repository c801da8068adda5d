package types

import (
	"bytes"
	"io"

	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/lotus-lite/chain/address"
	"github.com/filecoin-project/lotus-lite/chain/codec"
	"github.com/filecoin-project/lotus-lite/lib/cborutil"
)

// Message is the unsigned transaction record from §3: a fixed-arity
// (arity 10) ordered array on the wire.
type Message struct {
	Version uint64

	To   address.Address
	From address.Address

	Nonce uint64

	Value BigInt

	GasLimit   uint64
	GasFeeCap  BigInt
	GasPremium BigInt

	Method uint64
	Params []byte
}

const messageArity = 10

// Serialize renders the canonical CBOR-array encoding of the message.
func (m *Message) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.MarshalCBOR(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Cid derives the CID over the unsigned message's encoded bytes.
func (m *Message) Cid() (cid.Cid, error) {
	data, err := m.Serialize()
	if err != nil {
		return cid.Undef, err
	}
	return codec.BuildCID(data)
}

// MarshalCBOR writes the fixed arity-10 array per §3/§4.4.
func (m *Message) MarshalCBOR(w io.Writer) error {
	if err := cborutil.WriteArrayHeader(w, messageArity); err != nil {
		return err
	}
	if err := cborutil.WriteUInt(w, m.Version); err != nil {
		return err
	}
	if err := cborutil.WriteByteArray(w, m.To.Bytes()); err != nil {
		return err
	}
	if err := cborutil.WriteByteArray(w, m.From.Bytes()); err != nil {
		return err
	}
	if err := cborutil.WriteUInt(w, m.Nonce); err != nil {
		return err
	}
	if err := writeBigNum(w, m.Value); err != nil {
		return err
	}
	if err := cborutil.WriteUInt(w, m.GasLimit); err != nil {
		return err
	}
	if err := writeBigNum(w, m.GasFeeCap); err != nil {
		return err
	}
	if err := writeBigNum(w, m.GasPremium); err != nil {
		return err
	}
	if err := cborutil.WriteUInt(w, m.Method); err != nil {
		return err
	}
	return cborutil.WriteByteArray(w, m.Params)
}

// UnmarshalCBOR reads a Message encoded by MarshalCBOR.
func (m *Message) UnmarshalCBOR(br cborutil.ByteReader) error {
	n, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	if n != messageArity {
		return &codec.ErrMalformed{Reason: "message array has wrong arity"}
	}

	if m.Version, err = cborutil.ReadUInt(br); err != nil {
		return err
	}

	toBytes, err := cborutil.ReadByteArray(br, 0)
	if err != nil {
		return err
	}
	if m.To, err = address.NewFromBytes(toBytes); err != nil {
		return err
	}

	fromBytes, err := cborutil.ReadByteArray(br, 0)
	if err != nil {
		return err
	}
	if m.From, err = address.NewFromBytes(fromBytes); err != nil {
		return err
	}

	if m.Nonce, err = cborutil.ReadUInt(br); err != nil {
		return err
	}
	if m.Value, err = readBigNum(br); err != nil {
		return err
	}
	if m.GasLimit, err = cborutil.ReadUInt(br); err != nil {
		return err
	}
	if m.GasFeeCap, err = readBigNum(br); err != nil {
		return err
	}
	if m.GasPremium, err = readBigNum(br); err != nil {
		return err
	}
	if m.Method, err = cborutil.ReadUInt(br); err != nil {
		return err
	}
	if m.Params, err = cborutil.ReadByteArray(br, 0); err != nil {
		return err
	}
	return nil
}

func writeBigNum(w io.Writer, b BigInt) error {
	wire, err := b.MarshalBinary()
	if err != nil {
		return err
	}
	return cborutil.WriteByteArray(w, wire)
}

func readBigNum(br cborutil.ByteReader) (BigInt, error) {
	wire, err := cborutil.ReadByteArray(br, 0)
	if err != nil {
		return BigInt{}, err
	}
	var b BigInt
	if err := b.UnmarshalBinary(wire); err != nil {
		return BigInt{}, err
	}
	return b, nil
}

// DecodeMessage parses a serialized Message.
func DecodeMessage(b []byte) (*Message, error) {
	var m Message
	if err := m.UnmarshalCBOR(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return &m, nil
}
