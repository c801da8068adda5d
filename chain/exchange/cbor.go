package exchange

import (
	"fmt"
	"io"

	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/lotus-lite/chain/codec"
	"github.com/filecoin-project/lotus-lite/chain/types"
	"github.com/filecoin-project/lotus-lite/lib/cborutil"
)

func errArity(what string) error {
	return fmt.Errorf("exchange: %s has the wrong array arity", what)
}

// writeCidLink/readCidLink reuse codec's tag-42 DAG-CBOR link
// convention so protocol payloads round-trip through the same CID
// encoding as on-chain structures.
func writeCidLink(w io.Writer, c cid.Cid) error {
	data, err := codec.Encode(codec.Link(c))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func readCidLink(br cborutil.ByteReader) (cid.Cid, error) {
	v, err := decodeOneValue(br)
	if err != nil {
		return cid.Undef, err
	}
	if v.Kind != codec.KindLink {
		return cid.Undef, fmt.Errorf("exchange: expected a CID link")
	}
	return v.Link, nil
}

func writeBig(w io.Writer, b types.BigInt) error {
	data, err := b.MarshalBinary()
	if err != nil {
		return err
	}
	return cborutil.WriteByteArray(w, data)
}

func readBig(br cborutil.ByteReader) (types.BigInt, error) {
	raw, err := cborutil.ReadByteArray(br, 0)
	if err != nil {
		return types.BigInt{}, err
	}
	var b types.BigInt
	if err := b.UnmarshalBinary(raw); err != nil {
		return types.BigInt{}, err
	}
	return b, nil
}

// decodeOneValue decodes a single codec.Value off br without requiring
// the whole stream to be consumed, unlike codec.Decode.
func decodeOneValue(br cborutil.ByteReader) (codec.Value, error) {
	return codec.DecodeOne(br)
}
