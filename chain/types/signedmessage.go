package types

import (
	"bytes"
	"io"

	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/lotus-lite/chain/codec"
	"github.com/filecoin-project/lotus-lite/lib/cborutil"
)

// Signature is the (type_byte ‖ 65 bytes) wire pair from §3.
type Signature struct {
	Type byte // 1 == secp256k1
	Data []byte
}

const SignatureMaxLength = 200

func (s *Signature) MarshalCBOR(w io.Writer) error {
	if err := cborutil.WriteMajorTypeHeader(w, cborutil.MajByteString, uint64(len(s.Data)+1)); err != nil {
		return err
	}
	if _, err := w.Write([]byte{s.Type}); err != nil {
		return err
	}
	_, err := w.Write(s.Data)
	return err
}

func (s *Signature) UnmarshalCBOR(br cborutil.ByteReader) error {
	raw, err := cborutil.ReadByteArray(br, SignatureMaxLength+1)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return &codec.ErrMalformed{Reason: "empty signature"}
	}
	s.Type = raw[0]
	s.Data = raw[1:]
	return nil
}

// SignedMessage pairs an unsigned Message with its signature (§3).
type SignedMessage struct {
	Message   Message
	Signature Signature
}

func (sm *SignedMessage) MarshalCBOR(w io.Writer) error {
	if err := cborutil.WriteArrayHeader(w, 2); err != nil {
		return err
	}
	if err := sm.Message.MarshalCBOR(w); err != nil {
		return err
	}
	return sm.Signature.MarshalCBOR(w)
}

func (sm *SignedMessage) UnmarshalCBOR(br cborutil.ByteReader) error {
	n, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	if n != 2 {
		return &codec.ErrMalformed{Reason: "signed message array has wrong arity"}
	}
	if err := sm.Message.UnmarshalCBOR(br); err != nil {
		return err
	}
	return sm.Signature.UnmarshalCBOR(br)
}

// Serialize renders the signed-message wire form: (unsigned_array, signature).
func (sm *SignedMessage) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := sm.MarshalCBOR(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Cid re-hashes the signed-message wire form, per the Open Question
// decision in DESIGN.md: pushMessage returns the CID of the signed
// form, not the unsigned message's CID.
func (sm *SignedMessage) Cid() (cid.Cid, error) {
	data, err := sm.Serialize()
	if err != nil {
		return cid.Undef, err
	}
	return codec.BuildCID(data)
}

// DecodeSignedMessage parses a serialized SignedMessage.
func DecodeSignedMessage(b []byte) (*SignedMessage, error) {
	var sm SignedMessage
	if err := sm.UnmarshalCBOR(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return &sm, nil
}
