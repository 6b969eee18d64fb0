package daemon

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clawnet/clawnet/internal/directmsg"
	"github.com/clawnet/clawnet/internal/discovery"
	"github.com/clawnet/clawnet/internal/gossip"
	"github.com/clawnet/clawnet/internal/overlay"
	"github.com/clawnet/clawnet/internal/peercache"
	"github.com/clawnet/clawnet/internal/wire"
)

// announceTTLSeconds is the TTL embedded in every Announce this daemon
// broadcasts, consumed by peers as the expiry window on the cached record.
const announceTTLSeconds = 120

// Config bundles the supervisor's tunable parameters, spec.md §4.8. The
// yaml tags follow the teacher's internal/config struct convention so an
// optional file-based override (LoadConfig) slots in without changing
// daemon internals — config-file format itself stays out of scope
// (spec.md §1 Non-goals), but the struct is shaped to carry one.
type Config struct {
	Name             string        `yaml:"name,omitempty"`
	Version          string        `yaml:"version,omitempty"`
	Capabilities     []string      `yaml:"capabilities,omitempty"`
	AnnounceInterval time.Duration `yaml:"announce_interval,omitempty"`
	DiscoveryPort    int           `yaml:"discovery_port,omitempty"`
}

// Counters are status fields updated atomically from the running activities.
type Counters struct {
	AnnouncementsSent int64
	PeersDiscovered   int64
}

// Status is a point-in-time snapshot returned by Daemon.Status.
type Status struct {
	Running   bool
	StartedAt time.Time
	Counters  Counters
}

// Daemon is the supervisor of spec.md §4.8: one overlay endpoint, one
// discovery topic, one UDP listener, and the four cooperating activities
// that drive them (acceptor, announce ticker, gossip receiver, main loop).
type Daemon struct {
	endpoint *overlay.Endpoint
	topic    *gossip.Topic
	listener *discovery.Listener
	cache    *peercache.Store
	cfg      Config
	nodeID   string
	metrics  *Metrics

	announcementsSent atomic.Int64
	peersDiscovered   atomic.Int64

	mu        sync.Mutex
	running   bool
	startedAt time.Time
}

// New builds a Daemon from already-constructed components. listener may
// be nil (discovery disabled); metrics may be nil (no instrumentation).
func New(endpoint *overlay.Endpoint, topic *gossip.Topic, listener *discovery.Listener, cache *peercache.Store, cfg Config, metrics *Metrics) *Daemon {
	return &Daemon{
		endpoint: endpoint,
		topic:    topic,
		listener: listener,
		cache:    cache,
		cfg:      cfg,
		nodeID:   endpoint.ID(),
		metrics:  metrics,
	}
}

// Run binds the UDP discovery port in the background (non-fatal on
// failure, per spec.md §4.8 — logged and skipped), spawns the acceptor,
// announce ticker, and gossip receiver, and blocks until ctx is
// cancelled. On cancellation it broadcasts one final Leave and shuts
// down the overlay endpoint before returning.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	d.running = true
	d.startedAt = time.Now()
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	if d.listener != nil && d.cfg.DiscoveryPort != 0 {
		go func() {
			if err := d.listener.Run(ctx, d.cfg.DiscoveryPort); err != nil && ctx.Err() == nil {
				slog.Warn("discovery listener exited, UDP discovery disabled for this run", "error", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { d.runAcceptor(gctx); return nil })
	g.Go(func() error { d.runAnnounceTicker(gctx); return nil })
	g.Go(func() error { d.runGossipReceiver(gctx); return nil })

	<-ctx.Done()
	d.broadcastLeave()
	if err := d.endpoint.Shutdown(context.Background()); err != nil {
		slog.Warn("overlay endpoint shutdown error", "error", err)
	}

	return g.Wait()
}

// Status returns a snapshot of the daemon's running state and counters.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Running:   d.running,
		StartedAt: d.startedAt,
		Counters: Counters{
			AnnouncementsSent: d.announcementsSent.Load(),
			PeersDiscovered:   d.peersDiscovered.Load(),
		},
	}
}

func (d *Daemon) runAcceptor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case stream, ok := <-d.endpoint.Accept():
			if !ok {
				return
			}
			go directmsg.HandleStream(stream, d.nodeID, d.logChatLine)
		}
	}
}

func (d *Daemon) logChatLine(line directmsg.ChatLine) {
	slog.Info("chat message", "from", line.From, "content", line.Content)
}

func (d *Daemon) runAnnounceTicker(ctx context.Context) {
	if d.cfg.AnnounceInterval <= 0 {
		return
	}
	ticker := time.NewTicker(d.cfg.AnnounceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.broadcastAnnounce(ctx)
		}
	}
}

func (d *Daemon) broadcastAnnounce(ctx context.Context) {
	ann := wire.NewAnnounce(wire.Announcement{
		NodeID:       d.nodeID,
		Name:         d.cfg.Name,
		Version:      d.cfg.Version,
		Capabilities: d.cfg.Capabilities,
		Timestamp:    time.Now().Unix(),
		TTL:          announceTTLSeconds,
	})
	if err := d.topic.Publish(ctx, wire.EncodeGossip(ann)); err != nil {
		slog.Debug("announce broadcast failed", "error", err)
		return
	}
	d.announcementsSent.Add(1)
	d.metrics.incAnnouncementsSent()
}

func (d *Daemon) broadcastLeave() {
	leave := wire.NewLeave(wire.Leave{NodeID: d.nodeID, Timestamp: time.Now().Unix()})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.topic.Publish(ctx, wire.EncodeGossip(leave)); err != nil {
		slog.Debug("leave broadcast failed", "error", err)
	}
}

// runGossipReceiver consumes discovery-topic events; malformed payloads
// are logged at debug and the loop continues, per spec.md §7's
// propagation policy for cooperative loops.
func (d *Daemon) runGossipReceiver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.topic.Events():
			if !ok {
				return
			}
			d.handleGossipEvent(ev.Payload)
		}
	}
}

func (d *Daemon) handleGossipEvent(payload []byte) {
	msg, err := wire.DecodeGossip(payload)
	if err != nil {
		slog.Debug("gossip receiver: decode failed", "error", err)
		return
	}

	switch msg.Variant {
	case wire.GossipVariantAnnounce:
		a := msg.Announce
		if a.NodeID == d.nodeID {
			return // drop self messages, spec.md §4.8
		}
		if d.cache != nil {
			record := peercache.PeerRecord{
				NodeID:       a.NodeID,
				Name:         a.Name,
				Capabilities: a.Capabilities,
				LastSeen:     time.Now().Unix(),
				TTL:          a.TTL,
				Metadata:     a.Metadata,
			}
			if err := d.cache.Upsert(record); err != nil {
				slog.Debug("gossip receiver: upsert failed", "error", err)
				return
			}
		}
		d.peersDiscovered.Add(1)
		d.metrics.incPeersDiscovered()

	case wire.GossipVariantLeave:
		slog.Info("peer left", "node_id", msg.LeaveMsg.NodeID)
	}
}
