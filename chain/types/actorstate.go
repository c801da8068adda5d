package types

import (
	"bytes"
	"io"

	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/lotus-lite/chain/codec"
	"github.com/filecoin-project/lotus-lite/lib/cborutil"
)

// ActorState is the HAMT leaf record from §3: (code_cid, head_cid,
// call_seq_num, balance).
type ActorState struct {
	Code       cid.Cid
	Head       cid.Cid
	CallSeqNum uint64
	Balance    BigInt
}

func (a *ActorState) MarshalCBOR(w io.Writer) error {
	if err := cborutil.WriteArrayHeader(w, 4); err != nil {
		return err
	}
	if err := writeLink(w, a.Code); err != nil {
		return err
	}
	if err := writeLink(w, a.Head); err != nil {
		return err
	}
	if err := cborutil.WriteUInt(w, a.CallSeqNum); err != nil {
		return err
	}
	return writeBigNum(w, a.Balance)
}

func (a *ActorState) UnmarshalCBOR(br cborutil.ByteReader) error {
	n, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	if n != 4 {
		return &codec.ErrMalformed{Reason: "actor state array has wrong arity"}
	}
	if a.Code, err = readLink(br); err != nil {
		return err
	}
	if a.Head, err = readLink(br); err != nil {
		return err
	}
	if a.CallSeqNum, err = cborutil.ReadUInt(br); err != nil {
		return err
	}
	if a.Balance, err = readBigNum(br); err != nil {
		return err
	}
	return nil
}

func DecodeActorState(b []byte) (*ActorState, error) {
	var a ActorState
	if err := a.UnmarshalCBOR(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return &a, nil
}
