package gossip

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/clawnet/clawnet/internal/identity"
	"github.com/clawnet/clawnet/internal/overlay"
)

func TestTopicIDIsDeterministic(t *testing.T) {
	a := TopicID()
	b := TopicID()
	if a != b {
		t.Fatal("TopicID() is not deterministic")
	}
}

func newTestEndpoint(t *testing.T) *overlay.Endpoint {
	t.Helper()
	id, err := identity.LoadOrGenerate(filepath.Join(t.TempDir(), "identity.key"))
	if err != nil {
		t.Fatalf("LoadOrGenerate() error = %v", err)
	}
	ep, err := overlay.Spawn(id, "/ip4/127.0.0.1/udp/0/quic-v1")
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	t.Cleanup(func() { ep.Shutdown(context.Background()) })
	return ep
}

func TestPublishIsDeliveredToSubscriber(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := newTestEndpoint(t)
	b := newTestEndpoint(t)

	if err := a.Host().Connect(ctx, peer.AddrInfo{ID: b.Host().ID(), Addrs: b.Host().Addrs()}); err != nil {
		t.Fatalf("connect a->b: %v", err)
	}

	topicA, err := Subscribe(ctx, a, nil)
	if err != nil {
		t.Fatalf("Subscribe(a) error = %v", err)
	}
	defer topicA.Close()

	topicB, err := Subscribe(ctx, b, nil)
	if err != nil {
		t.Fatalf("Subscribe(b) error = %v", err)
	}
	defer topicB.Close()

	payload := []byte("announce-payload")

	// Mesh formation is asynchronous; retry publishing until b observes it
	// or the context deadline is hit.
	deadline := time.After(8 * time.Second)
	for {
		if err := topicA.Publish(ctx, payload); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		select {
		case ev := <-topicB.Events():
			if !bytes.Equal(ev.Payload, payload) {
				t.Fatalf("got payload %q, want %q", ev.Payload, payload)
			}
			return
		case <-time.After(300 * time.Millisecond):
			// mesh likely not formed yet, retry
		case <-deadline:
			t.Fatal("subscriber never observed the published message")
		}
	}
}

func TestEventsChannelClosesOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := newTestEndpoint(t)
	subCtx, subCancel := context.WithCancel(ctx)
	topic, err := Subscribe(subCtx, a, nil)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	subCancel()

	select {
	case _, ok := <-topic.Events():
		if ok {
			t.Fatal("expected Events() channel to be closed, got a value instead")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Events() channel never closed after context cancellation")
	}
}
