// Package overlay wraps a libp2p host as ClawNet's authenticated,
// QUIC-transported endpoint: the single socket shared by the gossip
// overlay and the direct-stream protocol, dispatched by protocol label
// (libp2p's protocol.ID standing in for the spec's ALPN). See spec.md §4.4.
package overlay

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"

	"github.com/clawnet/clawnet/internal/clawerr"
	"github.com/clawnet/clawnet/internal/identity"
)

// DirectMsgProtocol is the protocol label routed to the direct-stream
// handler, spec.md §4.4/§6 ("clawnet/msg/1").
const DirectMsgProtocol = protocol.ID("/clawnet/msg/1")

// DefaultListenAddr binds an ephemeral UDP port on all interfaces using
// the QUIC transport.
const DefaultListenAddr = "/ip4/0.0.0.0/udp/0/quic-v1"

// incomingStreamBacklog bounds how many accepted-but-unhandled streams
// Accept() will buffer before further inbound streams are reset.
const incomingStreamBacklog = 32

// Endpoint is the overlay endpoint: one libp2p host, router dispatch by
// protocol label.
type Endpoint struct {
	host     host.Host
	incoming chan network.Stream
}

// Spawn binds an authenticated endpoint using id's key and registers the
// direct-stream protocol handler. Gossip attaches to the same host
// separately (internal/gossip), dispatched by its own protocol label.
func Spawn(id *identity.Identity, listenAddr string) (*Endpoint, error) {
	if listenAddr == "" {
		listenAddr = DefaultListenAddr
	}

	h, err := libp2p.New(
		libp2p.Identity(id.PrivKey()),
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.ListenAddrStrings(listenAddr),
	)
	if err != nil {
		return nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("create overlay endpoint: %w", err))
	}

	e := &Endpoint{
		host:     h,
		incoming: make(chan network.Stream, incomingStreamBacklog),
	}
	h.SetStreamHandler(DirectMsgProtocol, e.dispatch)
	return e, nil
}

func (e *Endpoint) dispatch(s network.Stream) {
	select {
	case e.incoming <- s:
	default:
		s.Reset()
	}
}

// Host returns the underlying libp2p host, for components (gossip) that
// need to attach their own protocol handlers to the same endpoint.
func (e *Endpoint) Host() host.Host {
	return e.host
}

// ID returns the node id string form.
func (e *Endpoint) ID() string {
	return e.host.ID().String()
}

// BoundSockets returns the endpoint's bound multiaddrs, for publication
// in discovery responses and status output.
func (e *Endpoint) BoundSockets() []string {
	addrs := e.host.Addrs()
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

// Connect dials target (if not already connected) and opens a new stream
// labelled proto.
func (e *Endpoint) Connect(ctx context.Context, target peer.AddrInfo, proto protocol.ID) (network.Stream, error) {
	if err := e.host.Connect(ctx, target); err != nil {
		return nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("connect to %s: %w", target.ID, err))
	}
	s, err := e.host.NewStream(ctx, target.ID, proto)
	if err != nil {
		return nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("open stream to %s: %w", target.ID, err))
	}
	return s, nil
}

// Accept returns the channel of inbound direct-message streams.
func (e *Endpoint) Accept() <-chan network.Stream {
	return e.incoming
}

// Shutdown gracefully closes the endpoint.
func (e *Endpoint) Shutdown(_ context.Context) error {
	return e.host.Close()
}
