package sub

import (
	"context"
	"testing"
	"time"

	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/stretchr/testify/require"
)

func TestTopicNames(t *testing.T) {
	if got, want := BlocksTopic("calibnet"), "/fil/blocks/calibnet"; got != want {
		t.Fatalf("BlocksTopic() = %q, want %q", got, want)
	}
	if got, want := MessagesTopic("calibnet"), "/fil/msgs/calibnet"; got != want {
		t.Fatalf("MessagesTopic() = %q, want %q", got, want)
	}
}

func TestDefaultScoreParamsNonNil(t *testing.T) {
	p := DefaultScoreParams("calibnet")
	if p == nil {
		t.Fatal("DefaultScoreParams() returned nil")
	}
	if p.AppSpecificScore == nil {
		t.Fatal("AppSpecificScore must be set; go-libp2p-pubsub panics without one")
	}
}

// TestDefaultScoreParamsCoversRequiredFields pins down §4.8's five
// required score knobs: per-topic weight for both topics, an overall
// topic score cap, behaviour-penalty decay, and a gossip threshold.
func TestDefaultScoreParamsCoversRequiredFields(t *testing.T) {
	netName := "calibnet"
	p := DefaultScoreParams(netName)

	blocks, ok := p.Topics[BlocksTopic(netName)]
	if !ok || blocks.TopicWeight <= 0 {
		t.Fatalf("blocks topic weight not set: %+v", blocks)
	}
	messages, ok := p.Topics[MessagesTopic(netName)]
	if !ok || messages.TopicWeight <= 0 {
		t.Fatalf("messages topic weight not set: %+v", messages)
	}
	if blocks.TopicWeight <= messages.TopicWeight {
		t.Fatalf("expected blocks topic to outweigh messages: blocks=%v messages=%v", blocks.TopicWeight, messages.TopicWeight)
	}
	if p.TopicScoreCap <= 0 {
		t.Fatalf("TopicScoreCap not set: %v", p.TopicScoreCap)
	}
	if p.BehaviourPenaltyDecay <= 0 || p.BehaviourPenaltyDecay >= 1 {
		t.Fatalf("BehaviourPenaltyDecay out of range: %v", p.BehaviourPenaltyDecay)
	}

	th := DefaultScoreThresholds()
	if th.GossipThreshold >= 0 {
		t.Fatalf("GossipThreshold must be negative: %v", th.GossipThreshold)
	}
}

func TestTopicScoreParamsForPicksRightTopic(t *testing.T) {
	netName := "calibnet"
	if got, want := topicScoreParamsFor(BlocksTopic(netName)).TopicWeight, blocksTopicScoreParams().TopicWeight; got != want {
		t.Fatalf("topicScoreParamsFor(blocks) TopicWeight = %v, want %v", got, want)
	}
	if got, want := topicScoreParamsFor(MessagesTopic(netName)).TopicWeight, messagesTopicScoreParams().TopicWeight; got != want {
		t.Fatalf("topicScoreParamsFor(messages) TopicWeight = %v, want %v", got, want)
	}
}

// TestJoinAppliesTopicScoreParams checks that Join succeeds in
// installing a joined topic's per-topic score weight, which requires
// peer scoring to have been enabled when the PubSub itself was built
// — exactly what NewGossipSub does.
func TestJoinAppliesTopicScoreParams(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mn, err := mocknet.WithNPeers(1)
	require.NoError(t, err)
	require.NoError(t, mn.LinkAll())

	ps, err := NewGossipSub(ctx, mn.Hosts()[0], "calibnet")
	require.NoError(t, err)

	b, err := Join(ps, BlocksTopic("calibnet"))
	require.NoError(t, err)
	require.NoError(t, b.Cancel())
}
