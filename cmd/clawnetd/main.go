// Command clawnetd is the ClawNet bot agent daemon: it loads (or
// generates) a node identity, opens the overlay endpoint, joins the
// discovery gossip topic, optionally binds the UDP scan-probe listener,
// and serves direct-stream connections until interrupted.
//
// Full CLI/config-file parsing is out of scope (spec.md §1 Non-goals);
// clawnetd takes a handful of bare flags plus an optional yaml overlay
// and otherwise relies on environment defaults.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/multiformats/go-multiaddr"

	"github.com/clawnet/clawnet/internal/daemon"
	"github.com/clawnet/clawnet/internal/discovery"
	"github.com/clawnet/clawnet/internal/gossip"
	"github.com/clawnet/clawnet/internal/identity"
	"github.com/clawnet/clawnet/internal/overlay"
	"github.com/clawnet/clawnet/internal/peercache"
)

// Set via -ldflags at build time, matching the teacher's entrypoint convention.
var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	var (
		dataDir      = flag.String("data-dir", "", "directory holding identity.key and peers.json (default: ~/.config/clawnet)")
		name         = flag.String("name", "", "bot name advertised in announcements")
		capabilities = flag.String("capabilities", "chat", "comma-separated capability tags advertised in announcements")
		listenAddr   = flag.String("listen", overlay.DefaultListenAddr, "overlay listen multiaddr")
		discoverPort = flag.Int("discovery-port", discovery.DefaultPort, "UDP scan-probe listener port (0 disables it)")
		announce     = flag.Duration("announce-interval", 30*time.Second, "presence announcement interval")
		configPath   = flag.String("config", "", "optional yaml file overriding name/capabilities/announce-interval/discovery-port")
	)
	flag.Parse()

	if err := run(*dataDir, *name, *capabilities, *listenAddr, *discoverPort, *announce, *configPath); err != nil {
		slog.Error("clawnetd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(dataDir, name, capabilitiesCSV, listenAddr string, discoverPort int, announceInterval time.Duration, configPath string) error {
	dir, err := resolveDataDir(dataDir)
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create data directory %s: %w", dir, err)
	}

	cfg := daemon.Config{
		Name:             name,
		Version:          version,
		Capabilities:     splitCapabilities(capabilitiesCSV),
		AnnounceInterval: announceInterval,
		DiscoveryPort:    discoverPort,
	}
	if configPath != "" {
		loaded, err := daemon.LoadConfig(configPath, cfg)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	id, err := identity.LoadOrGenerate(filepath.Join(dir, "identity.key"))
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	slog.Info("identity loaded", "node_id", id.NodeID())

	cache := peercache.New(filepath.Join(dir, "peers.json"))

	ep, err := overlay.Spawn(id, listenAddr)
	if err != nil {
		return fmt.Errorf("spawn overlay endpoint: %w", err)
	}
	slog.Info("overlay endpoint bound", "addrs", ep.BoundSockets())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topic, err := gossip.Subscribe(ctx, ep, nil)
	if err != nil {
		return fmt.Errorf("subscribe discovery topic: %w", err)
	}
	defer topic.Close()

	var listener *discovery.Listener
	if cfg.DiscoveryPort != 0 {
		listener = discovery.NewListener(discovery.BotMeta{
			NodeID:       id.NodeID(),
			Name:         cfg.Name,
			Version:      version,
			Capabilities: cfg.Capabilities,
			QUICPort:     quicPort(ep),
		})
	}

	d := daemon.New(ep, topic, listener, cache, cfg, nil)

	slog.Info("clawnetd running", "version", version)
	return d.Run(ctx)
}

func resolveDataDir(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "clawnet"), nil
}

func splitCapabilities(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				out = append(out, csv[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// quicPort extracts the UDP port from the endpoint's first bound
// multiaddr, for advertisement in scan-probe responses.
func quicPort(ep *overlay.Endpoint) uint16 {
	for _, s := range ep.BoundSockets() {
		addr, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			continue
		}
		if port, err := addr.ValueForProtocol(multiaddr.P_UDP); err == nil {
			var p int
			fmt.Sscanf(port, "%d", &p)
			if p > 0 && p <= 65535 {
				return uint16(p)
			}
		}
	}
	return 0
}
