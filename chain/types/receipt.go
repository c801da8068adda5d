package types

import (
	"bytes"
	"io"

	"github.com/filecoin-project/lotus-lite/chain/codec"
	"github.com/filecoin-project/lotus-lite/lib/cborutil"
)

// MessageReceipt is the receipts-AMT leaf value from §3.
type MessageReceipt struct {
	ExitCode int64
	Return   []byte
	GasUsed  int64
}

func (r *MessageReceipt) MarshalCBOR(w io.Writer) error {
	if err := cborutil.WriteArrayHeader(w, 3); err != nil {
		return err
	}
	if err := cborutil.WriteUInt(w, uint64(r.ExitCode)); err != nil {
		return err
	}
	if err := cborutil.WriteByteArray(w, r.Return); err != nil {
		return err
	}
	return cborutil.WriteUInt(w, uint64(r.GasUsed))
}

func (r *MessageReceipt) UnmarshalCBOR(br cborutil.ByteReader) error {
	n, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	if n != 3 {
		return &codec.ErrMalformed{Reason: "message receipt array has wrong arity"}
	}
	ec, err := cborutil.ReadUInt(br)
	if err != nil {
		return err
	}
	r.ExitCode = int64(ec)
	if r.Return, err = cborutil.ReadByteArray(br, 0); err != nil {
		return err
	}
	gu, err := cborutil.ReadUInt(br)
	if err != nil {
		return err
	}
	r.GasUsed = int64(gu)
	return nil
}

func (r *MessageReceipt) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := r.MarshalCBOR(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeMessageReceipt(b []byte) (*MessageReceipt, error) {
	var r MessageReceipt
	if err := r.UnmarshalCBOR(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return &r, nil
}
