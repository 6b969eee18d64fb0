package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/clawnet/clawnet/internal/directmsg"
	"github.com/clawnet/clawnet/internal/gossip"
	"github.com/clawnet/clawnet/internal/identity"
	"github.com/clawnet/clawnet/internal/overlay"
	"github.com/clawnet/clawnet/internal/peercache"
	"github.com/clawnet/clawnet/internal/wire"
)

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

func TestDaemonAcceptorDispatchesDirectMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	server := newTestEndpoint(t)
	client := newTestEndpoint(t)

	topic, err := gossip.Subscribe(ctx, server, nil)
	if err != nil {
		t.Fatalf("gossip.Subscribe() error = %v", err)
	}
	defer topic.Close()

	store := peercache.New(filepath.Join(t.TempDir(), "peers.json"))
	d := New(server, topic, nil, store, Config{}, nil)

	runCtx, runCancel := context.WithCancel(ctx)
	runDone := make(chan struct{})
	go func() {
		d.Run(runCtx)
		close(runDone)
	}()
	defer func() {
		runCancel()
		<-runDone
	}()

	target := peer.AddrInfo{ID: server.Host().ID(), Addrs: server.Host().Addrs()}
	stream, err := client.Connect(ctx, target, overlay.DirectMsgProtocol)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	reply, err := directmsg.SendText(stream, "client", "hello", 1)
	if err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if reply == nil || reply.Content != "received" {
		t.Fatalf("reply = %+v, want Content=received", reply)
	}
}

func TestDaemonHandleGossipEventUpsertsPeerAndDropsSelf(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	server := newTestEndpoint(t)
	topic, err := gossip.Subscribe(ctx, server, nil)
	if err != nil {
		t.Fatalf("gossip.Subscribe() error = %v", err)
	}
	defer topic.Close()

	store := peercache.New(filepath.Join(t.TempDir(), "peers.json"))
	d := New(server, topic, nil, store, Config{}, nil)

	// Self message: must be dropped, no cache write, no counter increment.
	selfMsg := wire.NewAnnounce(wire.Announcement{NodeID: d.nodeID, Name: "me", Timestamp: time.Now().Unix(), TTL: 60})
	d.handleGossipEvent(wire.EncodeGossip(selfMsg))
	if d.peersDiscovered.Load() != 0 {
		t.Fatal("self announcement incremented peersDiscovered")
	}

	// Peer message: must upsert and increment.
	peerMsg := wire.NewAnnounce(wire.Announcement{NodeID: "remote-1", Name: "remote", Capabilities: []string{"chat"}, Timestamp: time.Now().Unix(), TTL: 60})
	d.handleGossipEvent(wire.EncodeGossip(peerMsg))
	if d.peersDiscovered.Load() != 1 {
		t.Fatalf("peersDiscovered = %d, want 1", d.peersDiscovered.Load())
	}

	list, err := store.List(true)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range list {
		if r.NodeID == "remote-1" {
			found = true
		}
	}
	if !found {
		t.Fatal("remote-1 was not upserted into the peer cache")
	}
}

func TestDaemonStatusReflectsRunningState(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	server := newTestEndpoint(t)
	topic, err := gossip.Subscribe(ctx, server, nil)
	if err != nil {
		t.Fatalf("gossip.Subscribe() error = %v", err)
	}
	defer topic.Close()

	store := peercache.New(filepath.Join(t.TempDir(), "peers.json"))
	d := New(server, topic, nil, store, Config{}, nil)

	if d.Status().Running {
		t.Fatal("daemon reports running before Run is called")
	}

	runCtx, runCancel := context.WithCancel(ctx)
	runDone := make(chan struct{})
	go func() {
		d.Run(runCtx)
		close(runDone)
	}()

	deadline := time.After(3 * time.Second)
	for !d.Status().Running {
		select {
		case <-deadline:
			t.Fatal("daemon never reported running")
		case <-time.After(10 * time.Millisecond):
		}
	}

	runCancel()
	<-runDone

	if d.Status().Running {
		t.Fatal("daemon still reports running after Run returned")
	}
}
