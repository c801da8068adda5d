package exchange

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	inet "github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/filecoin-project/lotus-lite/chain/types"
	"github.com/filecoin-project/lotus-lite/lib/cborutil"
)

const ChainExchangeProtocolID = "/fil/chain/xchg/0.0.1"

// Status codes, bit-exact per §6: any value other than ok/partial fails
// the call at the Client.
const (
	StatusOK            = 0
	StatusPartial       = 101
	StatusNotFound      = 201
	StatusGoAway        = 202
	StatusInternalError = 203
	StatusBadRequest    = 204
)

// Options bits select which pieces of each tipset to include in the
// response, mirroring the teacher's include-headers/include-messages
// split.
const (
	OptIncludeHeaders  = 1 << 0
	OptIncludeMessages = 1 << 1
)

// Request is the §6 chain-exchange request: `[tipset_cids, length,
// options_bitmask]`.
type Request struct {
	Head    []cid.Cid
	Length  uint64
	Options uint64
}

func (r *Request) MarshalCBOR(w io.Writer) error {
	buf := new(bytes.Buffer)
	if err := cborutil.WriteArrayHeader(buf, 3); err != nil {
		return err
	}
	if err := cborutil.WriteArrayHeader(buf, len(r.Head)); err != nil {
		return err
	}
	for _, c := range r.Head {
		if err := writeCidLink(buf, c); err != nil {
			return err
		}
	}
	if err := cborutil.WriteUInt(buf, r.Length); err != nil {
		return err
	}
	if err := cborutil.WriteUInt(buf, r.Options); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (r *Request) UnmarshalCBOR(br cborutil.ByteReader) error {
	n, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	if n != 3 {
		return errArity("chain-exchange request")
	}
	nh, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	r.Head = make([]cid.Cid, nh)
	for i := range r.Head {
		if r.Head[i], err = readCidLink(br); err != nil {
			return err
		}
	}
	if r.Length, err = cborutil.ReadUInt(br); err != nil {
		return err
	}
	if r.Options, err = cborutil.ReadUInt(br); err != nil {
		return err
	}
	return nil
}

// TipsetBundle carries one tipset's headers. It holds no messages,
// whatever the request's options bitmask asked for.
type TipsetBundle struct {
	Headers []*types.BlockHeader
}

func (t *TipsetBundle) MarshalCBOR(w io.Writer) error {
	buf := new(bytes.Buffer)
	if err := cborutil.WriteArrayHeader(buf, len(t.Headers)); err != nil {
		return err
	}
	for _, h := range t.Headers {
		if err := h.MarshalCBOR(buf); err != nil {
			return err
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (t *TipsetBundle) UnmarshalCBOR(br cborutil.ByteReader) error {
	n, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	t.Headers = make([]*types.BlockHeader, n)
	for i := range t.Headers {
		var h types.BlockHeader
		if err := h.UnmarshalCBOR(br); err != nil {
			return err
		}
		t.Headers[i] = &h
	}
	return nil
}

// Response is `[status, error_string, [tipset_bundle, …]]`.
type Response struct {
	Status  uint64
	ErrMsg  string
	Chain   []*TipsetBundle
}

func (resp *Response) MarshalCBOR(w io.Writer) error {
	buf := new(bytes.Buffer)
	if err := cborutil.WriteArrayHeader(buf, 3); err != nil {
		return err
	}
	if err := cborutil.WriteUInt(buf, resp.Status); err != nil {
		return err
	}
	if err := cborutil.WriteByteArray(buf, []byte(resp.ErrMsg)); err != nil {
		return err
	}
	if err := cborutil.WriteArrayHeader(buf, len(resp.Chain)); err != nil {
		return err
	}
	for _, tb := range resp.Chain {
		if err := tb.MarshalCBOR(buf); err != nil {
			return err
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (resp *Response) UnmarshalCBOR(br cborutil.ByteReader) error {
	n, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	if n != 3 {
		return errArity("chain-exchange response")
	}
	if resp.Status, err = cborutil.ReadUInt(br); err != nil {
		return err
	}
	errBytes, err := cborutil.ReadByteArray(br, 0)
	if err != nil {
		return err
	}
	resp.ErrMsg = string(errBytes)
	nc, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	resp.Chain = make([]*TipsetBundle, nc)
	for i := range resp.Chain {
		var tb TipsetBundle
		if err := tb.UnmarshalCBOR(br); err != nil {
			return err
		}
		resp.Chain[i] = &tb
	}
	return nil
}

// Ok reports whether status is one the client should treat as usable
// data rather than a failed call (§6: "any non-ok non-partial value
// fails the call").
func (resp *Response) Ok() bool {
	return resp.Status == StatusOK || resp.Status == StatusPartial
}

// Client is the requesting side of chain-exchange.
type Client struct {
	NewStream NewStreamFunc
}

// GetBlocks fetches up to length tipsets' headers walking backward from
// head.
func (c *Client) GetBlocks(ctx context.Context, pid peer.ID, head []cid.Cid, length uint64) ([]*TipsetBundle, error) {
	s, err := c.NewStream(ctx, pid, protocol.ID(ChainExchangeProtocolID))
	if err != nil {
		return nil, err
	}
	defer s.Close()

	req := &Request{Head: head, Length: length, Options: OptIncludeHeaders}
	if err := cborutil.WriteCborRPC(s, req); err != nil {
		return nil, err
	}

	var resp Response
	if err := cborutil.ReadCborRPC(bufio.NewReader(s), &resp); err != nil {
		return nil, err
	}
	if !resp.Ok() {
		return nil, fmt.Errorf("exchange: chain-exchange request failed with status %d: %s", resp.Status, resp.ErrMsg)
	}
	return resp.Chain, nil
}

// Server is the responding side of chain-exchange.
type Server struct {
	// GetTipsetBundles resolves the requested chain segment; it may
	// return fewer bundles than requested (reflected by a partial
	// status), e.g. when genesis is hit first.
	GetTipsetBundles func(ctx context.Context, head []cid.Cid, length uint64) ([]*TipsetBundle, error)
}

func (srv *Server) HandleStream(s inet.Stream) {
	defer s.Close()

	var req Request
	if err := cborutil.ReadCborRPC(bufio.NewReader(s), &req); err != nil {
		log.Infof("failed to read chain-exchange request: %s", err)
		return
	}

	ctx := context.Background()
	bundles, err := srv.GetTipsetBundles(ctx, req.Head, req.Length)
	resp := &Response{Chain: bundles}
	switch {
	case err != nil:
		resp.Status = StatusInternalError
		resp.ErrMsg = err.Error()
	case uint64(len(bundles)) < req.Length:
		resp.Status = StatusPartial
	default:
		resp.Status = StatusOK
	}

	if err := cborutil.WriteCborRPC(s, resp); err != nil {
		log.Infof("failed to write chain-exchange response: %s", err)
	}
}
