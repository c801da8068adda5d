package client

import (
	"bytes"
	"errors"
	"io"

	"github.com/ipfs/go-cid"
	statemachine "github.com/filecoin-project/go-statemachine"
	logging "github.com/ipfs/go-log/v2"

	"github.com/filecoin-project/lotus-lite/chain/codec"
	"github.com/filecoin-project/lotus-lite/chain/types"
	"github.com/filecoin-project/lotus-lite/lib/cborutil"
)

var log = logging.Logger("client")

// WaitState is §4.7's waitMessage state, persisted per-message in the
// statemachine.StateGroup so waitMessage survives across block
// arrivals instead of blocking its caller's goroutine.
type WaitState string

const (
	StateWaiting       WaitState = "Waiting"
	StateAwaitReceipts WaitState = "AwaitReceipts"
	StateResolved      WaitState = "Resolved"
	StateFailed        WaitState = "Failed"
)

// waitHorizon is the soft inclusion horizon: more than this many
// blocks pass without the message appearing and waitMessage fails.
const waitHorizon = 6

// WaitEntry is the persisted per-message record driving the FSM.
type WaitEntry struct {
	MsgCid       cid.Cid
	State        WaitState
	BlockCount   uint64
	ReceiptRoot  cid.Cid
	ReceiptIndex uint64
	Receipt      *types.MessageReceipt
	FailReason   string
}

func (e *WaitEntry) MarshalCBOR(w io.Writer) error {
	buf := new(bytes.Buffer)
	if err := cborutil.WriteArrayHeader(buf, 7); err != nil {
		return err
	}
	if err := writeCidOrUndef(buf, e.MsgCid); err != nil {
		return err
	}
	if err := cborutil.WriteByteArray(buf, []byte(e.State)); err != nil {
		return err
	}
	if err := cborutil.WriteUInt(buf, e.BlockCount); err != nil {
		return err
	}
	if err := writeCidOrUndef(buf, e.ReceiptRoot); err != nil {
		return err
	}
	if err := cborutil.WriteUInt(buf, e.ReceiptIndex); err != nil {
		return err
	}
	if e.Receipt == nil {
		if err := cborutil.WriteArrayHeader(buf, 0); err != nil {
			return err
		}
	} else {
		if err := cborutil.WriteArrayHeader(buf, 1); err != nil {
			return err
		}
		if err := e.Receipt.MarshalCBOR(buf); err != nil {
			return err
		}
	}
	if err := cborutil.WriteByteArray(buf, []byte(e.FailReason)); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (e *WaitEntry) UnmarshalCBOR(br cborutil.ByteReader) error {
	n, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	if n != 7 {
		return &codec.ErrMalformed{Reason: "wait entry array has wrong arity"}
	}
	if e.MsgCid, err = readCidOrUndef(br); err != nil {
		return err
	}
	stateBytes, err := cborutil.ReadByteArray(br, 0)
	if err != nil {
		return err
	}
	e.State = WaitState(stateBytes)
	if e.BlockCount, err = cborutil.ReadUInt(br); err != nil {
		return err
	}
	if e.ReceiptRoot, err = readCidOrUndef(br); err != nil {
		return err
	}
	if e.ReceiptIndex, err = cborutil.ReadUInt(br); err != nil {
		return err
	}
	nr, err := cborutil.ReadArrayHeader(br)
	if err != nil {
		return err
	}
	if nr == 1 {
		var r types.MessageReceipt
		if err := r.UnmarshalCBOR(br); err != nil {
			return err
		}
		e.Receipt = &r
	}
	failBytes, err := cborutil.ReadByteArray(br, 0)
	if err != nil {
		return err
	}
	e.FailReason = string(failBytes)
	return nil
}

func writeCidOrUndef(w io.Writer, c cid.Cid) error {
	if !c.Defined() {
		return cborutil.WriteByteArray(w, nil)
	}
	return cborutil.WriteByteArray(w, c.Bytes())
}

func readCidOrUndef(br cborutil.ByteReader) (cid.Cid, error) {
	raw, err := cborutil.ReadByteArray(br, 0)
	if err != nil {
		return cid.Undef, err
	}
	if len(raw) == 0 {
		return cid.Undef, nil
	}
	return cid.Cast(raw)
}

// Events sent into the WaitEntry state group.

// evtInit seeds a brand-new entry into WAITING; sent once by
// Client.WaitMessage before any block-arrival events can reference it.
type evtInit struct {
	msgCid cid.Cid
}

type evtBlockArrived struct {
	secpIndex    map[cid.Cid]uint64
	receiptsRoot cid.Cid
}

type evtReceiptResolved struct {
	receipt *types.MessageReceipt
}

// waitPlanner implements statemachine.Planner: it mutates the
// persisted WaitEntry in response to events, then hands back a
// one-shot handler to run for the resulting state, mirroring the
// teacher's Plan/planOne split in fsm.go.
type waitPlanner struct {
	c *Client
}

func (p *waitPlanner) Plan(events []statemachine.Event, user interface{}) (interface{}, uint64, error) {
	entry := user.(*WaitEntry)

	for _, evt := range events {
		switch e := evt.User.(type) {
		case evtInit:
			if entry.State == "" {
				entry.MsgCid = e.msgCid
				entry.State = StateWaiting
			}
		case evtBlockArrived:
			switch entry.State {
			case StateWaiting:
				if idx, ok := e.secpIndex[entry.MsgCid]; ok {
					entry.ReceiptIndex = idx
					entry.State = StateAwaitReceipts
				} else {
					entry.BlockCount++
					if entry.BlockCount > waitHorizon {
						entry.State = StateFailed
						entry.FailReason = types.ErrNotIncluded.Error()
					}
				}
			case StateAwaitReceipts:
				entry.ReceiptRoot = e.receiptsRoot
			}
		case evtReceiptResolved:
			if entry.State == StateAwaitReceipts {
				entry.State = StateResolved
				entry.Receipt = e.receipt
			}
		}
	}

	switch entry.State {
	case StateAwaitReceipts:
		if entry.ReceiptRoot.Defined() {
			return p.handleAwaitReceipts, uint64(len(events)), nil
		}
	case StateFailed:
		p.c.completeWait(entry.MsgCid, nil, errors.New(entry.FailReason))
	case StateResolved:
		p.c.completeWait(entry.MsgCid, entry.Receipt, nil)
	}
	return nil, uint64(len(events)), nil
}

// handleAwaitReceipts runs once per entry into AWAIT_RECEIPTS with a
// receipts root set: it drives fetchReceipts and feeds the result back
// as an event, per §4.7's "AWAIT_RECEIPTS: next block B' arrives ->
// fetch fetchReceipts(...)" transition.
func (p *waitPlanner) handleAwaitReceipts(ctx statemachine.Context, entry WaitEntry) error {
	receipts, err := p.c.FetchReceipts(ctx.Context(), entry.ReceiptRoot, []uint64{entry.ReceiptIndex})
	if err != nil {
		log.Warnf("fetchReceipts failed for %s: %s", entry.MsgCid, err)
		return nil
	}
	r, ok := receipts[entry.ReceiptIndex]
	if !ok {
		// Absent receipts are not a failure, per §4.7 point 3; wait
		// for the next block to try again.
		return nil
	}
	return ctx.Send(evtReceiptResolved{receipt: r})
}
