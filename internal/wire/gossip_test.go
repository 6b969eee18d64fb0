package wire

import "testing"

func gossipEqual(a, b GossipMessage) bool {
	if a.Variant != b.Variant {
		return false
	}
	switch a.Variant {
	case GossipVariantAnnounce:
		x, y := a.Announce, b.Announce
		if x.NodeID != y.NodeID || x.Name != y.Name || x.Version != y.Version ||
			x.Timestamp != y.Timestamp || x.TTL != y.TTL || len(x.Capabilities) != len(y.Capabilities) {
			return false
		}
		for i := range x.Capabilities {
			if x.Capabilities[i] != y.Capabilities[i] {
				return false
			}
		}
		return true
	case GossipVariantLeave:
		return *a.LeaveMsg == *b.LeaveMsg
	default:
		return false
	}
}

func TestGossipMessageRoundTrip(t *testing.T) {
	mode := "dedicated"
	appVersion := "1.2.3"
	cases := []GossipMessage{
		NewAnnounce(Announcement{
			NodeID:       "node-1",
			Name:         "scout",
			Version:      "0.1.0",
			Capabilities: []string{"chat", "ping"},
			AppVersion:   &appVersion,
			Mode:         &mode,
			Timestamp:    1000,
			TTL:          60,
			Metadata:     map[string]string{"region": "us-east"},
		}),
		NewAnnounce(Announcement{
			NodeID:       "node-2",
			Name:         "n2",
			Version:      "0.1.0",
			Capabilities: nil,
			Timestamp:    2000,
			TTL:          30,
		}),
		NewLeave(Leave{NodeID: "node-1", Timestamp: 3000}),
	}

	for _, c := range cases {
		encoded := EncodeGossip(c)
		decoded, err := DecodeGossip(encoded)
		if err != nil {
			t.Fatalf("DecodeGossip(EncodeGossip(m)) error = %v", err)
		}
		if !gossipEqual(decoded, c) {
			t.Fatalf("DecodeGossip(EncodeGossip(m)) = %+v, want %+v", decoded, c)
		}
	}
}

func TestDecodeGossipUnknownTagErrors(t *testing.T) {
	if _, err := DecodeGossip([]byte{0xFF}); err == nil {
		t.Fatal("DecodeGossip(unknown tag) error = nil, want error")
	}
}
