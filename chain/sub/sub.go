// Package sub binds the two chain topics (blocks, messages) to
// pub/sub, and runs the decode-and-dispatch loops lotus's own
// chain/sub/incoming.go runs, generalized to the client orchestrator's
// callback shape instead of a syncer/mempool pair.
package sub

import (
	"context"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/filecoin-project/lotus-lite/chain/types"
)

var log = logging.Logger("sub")

const (
	blocksPrefix   = "/fil/blocks/"
	messagesPrefix = "/fil/msgs/"
)

// BlocksTopic and MessagesTopic mirror build.BlocksTopic/MessagesTopic:
// one gossip topic per network name, per §4.8/§6.
func BlocksTopic(netName string) string   { return blocksPrefix + netName }
func MessagesTopic(netName string) string { return messagesPrefix + netName }

// DefaultScoreParams returns the peer score parameters §4.8 requires:
// per-topic weight for the blocks and messages topics, an overall
// topic score cap, and a behaviour-penalty decay, tuned for a light
// client that never publishes blocks itself and wants to avoid being
// scored down for silence.
func DefaultScoreParams(netName string) *pubsub.PeerScoreParams {
	return &pubsub.PeerScoreParams{
		Topics: map[string]*pubsub.TopicScoreParams{
			BlocksTopic(netName):   blocksTopicScoreParams(),
			MessagesTopic(netName): messagesTopicScoreParams(),
		},
		TopicScoreCap:               32.72,
		AppSpecificScore:            func(peer.ID) float64 { return 0 },
		AppSpecificWeight:           1,
		BehaviourPenaltyWeight:      -15.92,
		BehaviourPenaltyThreshold:   6,
		BehaviourPenaltyDecay:       0.928,
		DecayInterval:               time.Minute,
		DecayToZero:                 0.01,
		RetainScore:                 10 * time.Minute,
		IPColocationFactorThreshold: 1,
	}
}

// DefaultScoreThresholds returns the score thresholds gating mesh
// behaviour, notably the gossip threshold below which a peer's
// messages are ignored outright, per §4.8.
func DefaultScoreThresholds() *pubsub.PeerScoreThresholds {
	return &pubsub.PeerScoreThresholds{
		GossipThreshold:             -500,
		PublishThreshold:            -1000,
		GraylistThreshold:           -2500,
		AcceptPXThreshold:           1000,
		OpportunisticGraftThreshold: 3.5,
	}
}

// blocksTopicScoreParams and messagesTopicScoreParams share every
// component weight except TopicWeight itself: a light client cares
// more about a well-behaved source of blocks (its view of the head)
// than of messages (only consulted for the narrow waitMessage path).
func blocksTopicScoreParams() *pubsub.TopicScoreParams {
	p := baseTopicScoreParams()
	p.TopicWeight = 0.5
	return p
}

func messagesTopicScoreParams() *pubsub.TopicScoreParams {
	p := baseTopicScoreParams()
	p.TopicWeight = 0.1
	return p
}

func baseTopicScoreParams() *pubsub.TopicScoreParams {
	return &pubsub.TopicScoreParams{
		TimeInMeshWeight:                0.0002777,
		TimeInMeshQuantum:               time.Second,
		TimeInMeshCap:                   1,
		FirstMessageDeliveriesWeight:    1,
		FirstMessageDeliveriesDecay:     0.9928,
		FirstMessageDeliveriesCap:       5,
		MeshMessageDeliveriesDecay:      0.9928,
		MeshMessageDeliveriesCap:        10,
		MeshMessageDeliveriesWindow:     10 * time.Millisecond,
		MeshMessageDeliveriesActivation: time.Minute,
		MeshFailurePenaltyDecay:         0.9928,
		InvalidMessageDeliveriesWeight:  -1000,
		InvalidMessageDeliveriesDecay:   0.9928,
	}
}

// NewGossipSub builds the pub/sub instance Join's callers should join
// topics on, with §4.8's peer scoring wired in from construction time:
// unlike a topic's own weight (set after the fact by Join, via
// SetScoreParams), the overall PeerScoreParams/Thresholds pair can
// only be installed when the PubSub itself is created.
func NewGossipSub(ctx context.Context, h host.Host, netName string) (*pubsub.PubSub, error) {
	return pubsub.NewGossipSub(ctx, h, pubsub.WithPeerScore(DefaultScoreParams(netName), DefaultScoreThresholds()))
}

// Binding owns one joined topic and its subscription, with an explicit
// Cancel that detaches the subscription and leaves the topic.
type Binding struct {
	topic *pubsub.Topic
	sub   *pubsub.Subscription
}

// Join joins topicName on ps, installs that topic's score weight, and
// subscribes to it.
func Join(ps *pubsub.PubSub, topicName string) (*Binding, error) {
	topic, err := ps.Join(topicName)
	if err != nil {
		return nil, err
	}
	if err := topic.SetScoreParams(topicScoreParamsFor(topicName)); err != nil {
		_ = topic.Close()
		return nil, err
	}
	s, err := topic.Subscribe()
	if err != nil {
		_ = topic.Close()
		return nil, err
	}
	return &Binding{topic: topic, sub: s}, nil
}

func topicScoreParamsFor(topicName string) *pubsub.TopicScoreParams {
	if strings.HasPrefix(topicName, blocksPrefix) {
		return blocksTopicScoreParams()
	}
	return messagesTopicScoreParams()
}

// Publish sends data on the bound topic.
func (b *Binding) Publish(ctx context.Context, data []byte) error {
	return b.topic.Publish(ctx, data)
}

// Cancel detaches the subscription and leaves the topic.
func (b *Binding) Cancel() error {
	b.sub.Cancel()
	return b.topic.Close()
}

// HandleIncomingBlocks decodes each gossiped BlockMsg and invokes
// onBlock, until ctx is cancelled. Decode failures are logged and
// skipped; they never tear down the subscription.
func HandleIncomingBlocks(ctx context.Context, binding *Binding, onBlock func(from peer.ID, blk *types.BlockMsg)) error {
	for {
		msg, err := binding.sub.Next(ctx)
		if err != nil {
			return err
		}
		blk, err := types.DecodeBlockMsg(msg.GetData())
		if err != nil {
			log.Warnf("invalid block over pubsub: %s", err)
			continue
		}
		onBlock(msg.GetFrom(), blk)
	}
}

// HandleIncomingMessages decodes each gossiped SignedMessage and
// invokes onMessage, until ctx is cancelled.
func HandleIncomingMessages(ctx context.Context, binding *Binding, onMessage func(from peer.ID, msg *types.SignedMessage)) error {
	for {
		msg, err := binding.sub.Next(ctx)
		if err != nil {
			return err
		}
		m, err := types.DecodeSignedMessage(msg.GetData())
		if err != nil {
			log.Warnf("invalid signed message over pubsub: %s", err)
			continue
		}
		onMessage(msg.GetFrom(), m)
	}
}
