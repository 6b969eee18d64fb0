// Package gossip implements the discovery overlay of spec.md §4.5: a
// single fixed gossipsub topic used for presence announcements, grounded
// on the geanlabs-gean and b0ase-path402 pubsub-over-libp2p patterns in
// the retrieval pack (see DESIGN.md).
package gossip

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/clawnet/clawnet/internal/clawerr"
	"github.com/clawnet/clawnet/internal/overlay"
)

// topicSeed is hashed to produce the discovery topic id, spec.md §4.5/§6.
const topicSeed = "openclaw-bot-discovery-v1"

// eventBacklog bounds how many undelivered events Events() will buffer.
const eventBacklog = 64

// TopicID returns SHA-256(topicSeed), spec.md's discovery topic id.
func TopicID() [32]byte {
	return sha256.Sum256([]byte(topicSeed))
}

func topicName() string {
	id := TopicID()
	return "/clawnet/discovery/" + hex.EncodeToString(id[:])
}

// Event is a gossip event delivered to a subscriber. Spec.md §4.5: only
// Received events carry announcement bytes; other pubsub-internal event
// kinds (peer join/leave at the mesh layer) are never surfaced here —
// Topic only reads from the message subscription, never from a topic
// event handler.
type Event struct {
	Payload []byte
}

// Topic is a joined discovery topic: a broadcast-only sender and a
// receive-only event stream.
type Topic struct {
	ps     *pubsub.PubSub
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	events chan Event
	cancel context.CancelFunc
}

// Subscribe joins the discovery topic over ep. bootstrap peers are dialed
// best-effort in the background; the join succeeds locally even if none
// are reachable, per spec.md §4.5 ("bootstrap list may be empty").
func Subscribe(ctx context.Context, ep *overlay.Endpoint, bootstrap []peer.AddrInfo) (*Topic, error) {
	ps, err := pubsub.NewGossipSub(ctx, ep.Host())
	if err != nil {
		return nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("create gossipsub: %w", err))
	}

	topic, err := ps.Join(topicName())
	if err != nil {
		return nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("join discovery topic: %w", err))
	}

	sub, err := topic.Subscribe()
	if err != nil {
		topic.Close()
		return nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("subscribe discovery topic: %w", err))
	}

	for _, bp := range bootstrap {
		go ep.Host().Connect(ctx, bp) //nolint:errcheck // best-effort; peers are also learned via announcements
	}

	loopCtx, cancel := context.WithCancel(ctx)
	t := &Topic{ps: ps, topic: topic, sub: sub, events: make(chan Event, eventBacklog), cancel: cancel}
	go t.readLoop(loopCtx)
	return t, nil
}

func (t *Topic) readLoop(ctx context.Context) {
	defer close(t.events)
	for {
		msg, err := t.sub.Next(ctx)
		if err != nil {
			return
		}
		select {
		case t.events <- Event{Payload: msg.Data}:
		case <-ctx.Done():
			return
		}
	}
}

// Publish broadcasts payload on the topic.
func (t *Topic) Publish(ctx context.Context, payload []byte) error {
	if err := t.topic.Publish(ctx, payload); err != nil {
		return clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("publish to discovery topic: %w", err))
	}
	return nil
}

// Events returns the channel of Received events. It is closed when the
// subscription ends (Close called or its context cancelled).
func (t *Topic) Events() <-chan Event {
	return t.events
}

// Close cancels the subscription and leaves the topic.
func (t *Topic) Close() error {
	t.cancel()
	t.sub.Cancel()
	return t.topic.Close()
}
