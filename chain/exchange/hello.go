// Package exchange implements the §4.10 hello and chain-exchange wire
// protocols, plus the narrow graph-exchange collaborator interface
// §4.7's fetchReceipts is built against.
package exchange

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	inet "github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/filecoin-project/lotus-lite/chain/types"
	"github.com/filecoin-project/lotus-lite/lib/cborutil"
)

const HelloProtocolID = "/fil/hello/1.0.0"

var log = logging.Logger("exchange")

// HelloMessage is the bit-exact §6 hello payload: a tagged 4-element
// array `[tipset_cids, height, weight, genesis_cid]`.
type HelloMessage struct {
	TipsetCids []cid.Cid
	Height     uint64
	Weight     types.BigInt
	GenesisCid cid.Cid
}

const helloArity = 4

func (m *HelloMessage) MarshalCBOR(w io.Writer) error {
	buf := new(bytes.Buffer)
	if err := cborutil.WriteArrayHeader(buf, helloArity); err != nil {
		return err
	}
	if err := cborutil.WriteArrayHeader(buf, len(m.TipsetCids)); err != nil {
		return err
	}
	for _, c := range m.TipsetCids {
		if err := writeCidLink(buf, c); err != nil {
			return err
		}
	}
	if err := cborutil.WriteUInt(buf, m.Height); err != nil {
		return err
	}
	if err := writeBig(buf, m.Weight); err != nil {
		return err
	}
	if err := writeCidLink(buf, m.GenesisCid); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (m *HelloMessage) UnmarshalCBOR(br cborutil.ByteReader) error {
	n, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	if n != helloArity {
		return errArity("hello message")
	}
	numTs, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	m.TipsetCids = make([]cid.Cid, numTs)
	for i := range m.TipsetCids {
		c, err := readCidLink(br)
		if err != nil {
			return err
		}
		m.TipsetCids[i] = c
	}
	if m.Height, err = cborutil.ReadUInt(br); err != nil {
		return err
	}
	if m.Weight, err = readBig(br); err != nil {
		return err
	}
	if m.GenesisCid, err = readCidLink(br); err != nil {
		return err
	}
	return nil
}

// NewStreamFunc matches host.Host.NewStream's signature, so HelloClient
// can be constructed directly from a libp2p host.
type NewStreamFunc func(context.Context, peer.ID, ...protocol.ID) (inet.Stream, error)

// HelloClient says hello to a freshly-dialed peer and returns the
// peer's claimed heaviest tipset, per §4.10.
type HelloClient struct {
	NewStream NewStreamFunc
}

func (c *HelloClient) SayHello(ctx context.Context, pid peer.ID, local *HelloMessage) (*HelloMessage, error) {
	s, err := c.NewStream(ctx, pid, protocol.ID(HelloProtocolID))
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := cborutil.WriteCborRPC(s, local); err != nil {
		return nil, err
	}

	var remote HelloMessage
	if err := cborutil.ReadCborRPC(bufio.NewReader(s), &remote); err != nil {
		return nil, err
	}
	return &remote, nil
}

// HelloService handles incoming hello streams.
type HelloService struct {
	onHello func(peer.ID, *HelloMessage)
	local   func() *HelloMessage
}

func NewHelloService(local func() *HelloMessage, onHello func(peer.ID, *HelloMessage)) *HelloService {
	return &HelloService{onHello: onHello, local: local}
}

func (hs *HelloService) HandleStream(s inet.Stream) {
	defer s.Close()

	var hmsg HelloMessage
	if err := cborutil.ReadCborRPC(bufio.NewReader(s), &hmsg); err != nil {
		log.Infof("failed to read hello message: %s", err)
		return
	}
	hs.onHello(s.Conn().RemotePeer(), &hmsg)

	if err := cborutil.WriteCborRPC(s, hs.local()); err != nil {
		log.Infof("failed to write hello reply: %s", err)
	}
}
