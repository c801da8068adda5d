package types

import (
	"bytes"
	"io"

	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/lotus-lite/chain/codec"
	"github.com/filecoin-project/lotus-lite/lib/cborutil"
)

// BlockMsg is the gossiped block envelope from §3: header plus the
// two message-CID lists. Its CID is derived by re-encoding the header
// array alone and hashing that — the gossip message itself is larger
// than the header, so the two CIDs necessarily differ.
type BlockMsg struct {
	Header        BlockHeader
	BlsMessages   []cid.Cid
	SecpkMessages []cid.Cid
}

func (bm *BlockMsg) MarshalCBOR(w io.Writer) error {
	if err := cborutil.WriteArrayHeader(w, 3); err != nil {
		return err
	}
	if err := bm.Header.MarshalCBOR(w); err != nil {
		return err
	}
	if err := cborutil.WriteArrayHeader(w, len(bm.BlsMessages)); err != nil {
		return err
	}
	for _, c := range bm.BlsMessages {
		if err := writeLink(w, c); err != nil {
			return err
		}
	}
	if err := cborutil.WriteArrayHeader(w, len(bm.SecpkMessages)); err != nil {
		return err
	}
	for _, c := range bm.SecpkMessages {
		if err := writeLink(w, c); err != nil {
			return err
		}
	}
	return nil
}

func (bm *BlockMsg) UnmarshalCBOR(br cborutil.ByteReader) error {
	n, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	if n != 3 {
		return &codec.ErrMalformed{Reason: "block message array has wrong arity"}
	}
	if err := bm.Header.UnmarshalCBOR(br); err != nil {
		return err
	}

	nb, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	bm.BlsMessages = make([]cid.Cid, nb)
	for i := range bm.BlsMessages {
		if bm.BlsMessages[i], err = readLink(br); err != nil {
			return err
		}
	}

	ns, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	bm.SecpkMessages = make([]cid.Cid, ns)
	for i := range bm.SecpkMessages {
		if bm.SecpkMessages[i], err = readLink(br); err != nil {
			return err
		}
	}
	return nil
}

// Cid is derived over the header alone, not the full gossip envelope.
func (bm *BlockMsg) Cid() (cid.Cid, error) {
	return bm.Header.Cid()
}

// DecodeBlockMsg parses a serialized BlockMsg.
func DecodeBlockMsg(b []byte) (*BlockMsg, error) {
	var bm BlockMsg
	if err := bm.UnmarshalCBOR(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return &bm, nil
}

// ContainsSecpMessage reports whether c appears in the secp message
// CID list, and its index within that list.
func (bm *BlockMsg) ContainsSecpMessage(c cid.Cid) (int, bool) {
	for i, m := range bm.SecpkMessages {
		if m.Equals(c) {
			return i, true
		}
	}
	return 0, false
}
