package types

import (
	"github.com/filecoin-project/lotus-lite/chain/sigs"
)

// SignMessage implements §4.4's signMessage: the signed payload is the
// CID bytes of the encoded unsigned message, not the message's raw
// bytes.
func SignMessage(msg *Message, priv []byte) (*SignedMessage, error) {
	c, err := msg.Cid()
	if err != nil {
		return nil, err
	}

	sigData, err := sigs.Sign(sigs.SigTypeSecp256k1, priv, c.Bytes())
	if err != nil {
		return nil, err
	}

	return &SignedMessage{
		Message: *msg,
		Signature: Signature{
			Type: byte(sigs.SigTypeSecp256k1),
			Data: sigData,
		},
	}, nil
}
