package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clawnetd.yaml")
	content := "name: scout-1\ncapabilities: [chat, scan]\nannounce_interval: 45s\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	defaults := Config{Name: "default", Version: "0.1.0", AnnounceInterval: 30 * time.Second, DiscoveryPort: 19851}
	cfg, err := LoadConfig(path, defaults)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Name != "scout-1" {
		t.Fatalf("cfg.Name = %q, want scout-1", cfg.Name)
	}
	if cfg.Version != "0.1.0" {
		t.Fatalf("cfg.Version = %q, want default %q to survive unset field", cfg.Version, "0.1.0")
	}
	if len(cfg.Capabilities) != 2 || cfg.Capabilities[0] != "chat" || cfg.Capabilities[1] != "scan" {
		t.Fatalf("cfg.Capabilities = %v, want [chat scan]", cfg.Capabilities)
	}
	if cfg.AnnounceInterval != 45*time.Second {
		t.Fatalf("cfg.AnnounceInterval = %v, want 45s", cfg.AnnounceInterval)
	}
	if cfg.DiscoveryPort != 19851 {
		t.Fatalf("cfg.DiscoveryPort = %d, want default 19851 to survive unset field", cfg.DiscoveryPort)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), Config{})
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
