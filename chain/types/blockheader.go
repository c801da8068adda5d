package types

import (
	"bytes"
	"io"

	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/lotus-lite/chain/address"
	"github.com/filecoin-project/lotus-lite/chain/codec"
	"github.com/filecoin-project/lotus-lite/lib/cborutil"
)

// BlockHeader is the 16-field ordered array from §3. Only the seven
// fields the core subsystems touch (miner, parents, height, the two
// roots, messages, parentBaseFee) are given first-class treatment; the
// remaining nine are opaque pass-through bytes the core never
// interprets, matching the design note "Other fields are passed
// through opaquely."
type BlockHeader struct {
	Miner address.Address

	Parents               []cid.Cid
	Height                uint64
	ParentStateRoot       cid.Cid
	ParentMessageReceipts cid.Cid
	Messages              cid.Cid
	ParentBaseFee         []byte // big-endian magnitude, per §3

	// Opaque fields this core never interprets, in on-wire order,
	// preserved byte-for-byte across decode/encode round-trips.
	Opaque [][]byte
}

const blockHeaderArity = 16
const numOpaqueFields = blockHeaderArity - 7

func (b *BlockHeader) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := b.MarshalCBOR(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *BlockHeader) Cid() (cid.Cid, error) {
	data, err := b.Serialize()
	if err != nil {
		return cid.Undef, err
	}
	return codec.BuildCID(data)
}

func (b *BlockHeader) MarshalCBOR(w io.Writer) error {
	if err := cborutil.WriteArrayHeader(w, blockHeaderArity); err != nil {
		return err
	}
	if err := cborutil.WriteByteArray(w, b.Miner.Bytes()); err != nil {
		return err
	}
	if err := cborutil.WriteArrayHeader(w, len(b.Parents)); err != nil {
		return err
	}
	for _, p := range b.Parents {
		if err := writeLink(w, p); err != nil {
			return err
		}
	}
	if err := cborutil.WriteUInt(w, b.Height); err != nil {
		return err
	}
	if err := writeLink(w, b.ParentStateRoot); err != nil {
		return err
	}
	if err := writeLink(w, b.ParentMessageReceipts); err != nil {
		return err
	}
	if err := writeLink(w, b.Messages); err != nil {
		return err
	}
	if err := cborutil.WriteByteArray(w, b.ParentBaseFee); err != nil {
		return err
	}
	opaque := b.Opaque
	if len(opaque) != numOpaqueFields {
		opaque = make([][]byte, numOpaqueFields)
		copy(opaque, b.Opaque)
	}
	for _, f := range opaque {
		if err := cborutil.WriteByteArray(w, f); err != nil {
			return err
		}
	}
	return nil
}

func (b *BlockHeader) UnmarshalCBOR(br cborutil.ByteReader) error {
	n, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	if n != blockHeaderArity {
		return &codec.ErrMalformed{Reason: "block header array has wrong arity"}
	}

	minerBytes, err := cborutil.ReadByteArray(br, 0)
	if err != nil {
		return err
	}
	if b.Miner, err = address.NewFromBytes(minerBytes); err != nil {
		return err
	}

	np, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	b.Parents = make([]cid.Cid, np)
	for i := 0; i < np; i++ {
		if b.Parents[i], err = readLink(br); err != nil {
			return err
		}
	}

	if b.Height, err = cborutil.ReadUInt(br); err != nil {
		return err
	}
	if b.ParentStateRoot, err = readLink(br); err != nil {
		return err
	}
	if b.ParentMessageReceipts, err = readLink(br); err != nil {
		return err
	}
	if b.Messages, err = readLink(br); err != nil {
		return err
	}
	if b.ParentBaseFee, err = cborutil.ReadByteArray(br, 0); err != nil {
		return err
	}

	b.Opaque = make([][]byte, numOpaqueFields)
	for i := 0; i < numOpaqueFields; i++ {
		if b.Opaque[i], err = cborutil.ReadByteArray(br, 0); err != nil {
			return err
		}
	}
	return nil
}

func writeLink(w io.Writer, c cid.Cid) error {
	v := codec.Link(c)
	data, err := codec.Encode(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func readLink(br cborutil.ByteReader) (cid.Cid, error) {
	maj, l, err := cborutil.CborReadHeader(br)
	if err != nil {
		return cid.Undef, err
	}
	if maj != cborutil.MajTag || l != 42 {
		return cid.Undef, &codec.ErrMalformed{Reason: "expected CID link tag"}
	}
	raw, err := cborutil.ReadByteArray(br, 0)
	if err != nil {
		return cid.Undef, err
	}
	if len(raw) == 0 || raw[0] != 0x00 {
		return cid.Undef, &codec.ErrMalformed{Reason: "malformed CID link"}
	}
	return cid.Cast(raw[1:])
}

// DecodeBlock parses a serialized BlockHeader.
func DecodeBlock(b []byte) (*BlockHeader, error) {
	var h BlockHeader
	if err := h.UnmarshalCBOR(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return &h, nil
}
