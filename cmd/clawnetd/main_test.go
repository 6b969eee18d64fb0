package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitCapabilities(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"chat", []string{"chat"}},
		{"chat,scan,relay", []string{"chat", "scan", "relay"}},
		{"chat,,scan", []string{"chat", "scan"}},
	}
	for _, tt := range tests {
		got := splitCapabilities(tt.in)
		if len(got) != len(tt.want) {
			t.Fatalf("splitCapabilities(%q) = %v, want %v", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("splitCapabilities(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}

func TestResolveDataDirExplicit(t *testing.T) {
	dir, err := resolveDataDir("/tmp/explicit-dir")
	if err != nil {
		t.Fatalf("resolveDataDir() error = %v", err)
	}
	if dir != "/tmp/explicit-dir" {
		t.Fatalf("dir = %q, want /tmp/explicit-dir", dir)
	}
}

func TestResolveDataDirDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "cfg"))
	dir, err := resolveDataDir("")
	if err != nil {
		t.Fatalf("resolveDataDir() error = %v", err)
	}
	base, _ := os.UserConfigDir()
	want := filepath.Join(base, "clawnet")
	if dir != want {
		t.Fatalf("dir = %q, want %q", dir, want)
	}
}
