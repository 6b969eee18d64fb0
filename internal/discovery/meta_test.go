package discovery

import (
	"bytes"
	"fmt"
	"reflect"
	"testing"
)

func TestProbeBuildAndValidate(t *testing.T) {
	probe := BuildProbe()
	if len(probe) != 5 {
		t.Fatalf("len(probe) = %d, want 5", len(probe))
	}
	if !IsValidProbe(probe) {
		t.Fatal("IsValidProbe(valid probe) = false")
	}
}

func TestProbeIgnoredWrongMagic(t *testing.T) {
	// [0x43,0x4C,0x41,0x58,0x01] — last magic byte wrong ('X' not 'W').
	probe := []byte{0x43, 0x4C, 0x41, 0x58, 0x01}
	if IsValidProbe(probe) {
		t.Fatal("IsValidProbe(wrong magic) = true, want false")
	}
}

func TestProbeIgnoredWrongVersion(t *testing.T) {
	probe := []byte{0x43, 0x4C, 0x41, 0x57, 0x02}
	if IsValidProbe(probe) {
		t.Fatal("IsValidProbe(wrong version) = true, want false")
	}
}

func TestResponseRoundTrip(t *testing.T) {
	meta := BotMeta{NodeID: "abc", Name: "n", Version: "0.1.0", Capabilities: []string{"chat"}, QUICPort: 12345}
	resp := BuildResponse(meta)

	if !bytes.Equal(resp[:4], magic[:]) {
		t.Fatal("response missing magic")
	}
	if resp[4] != protocolVersion {
		t.Fatal("response missing version byte")
	}

	parsed, err := ParseResponse(resp)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if !reflect.DeepEqual(parsed, meta) {
		t.Fatalf("ParseResponse() = %+v, want %+v", parsed, meta)
	}
}

func TestResponseTruncation(t *testing.T) {
	caps := make([]string, 200)
	for i := range caps {
		caps[i] = fmt.Sprintf("cap%05d", i) // 8 bytes each
	}
	meta := BotMeta{NodeID: "abc", Name: "n", Version: "0.1.0", Capabilities: caps, QUICPort: 1}

	resp := BuildResponse(meta)
	if len(resp) > maxPacketSize {
		t.Fatalf("len(resp) = %d, want <= %d", len(resp), maxPacketSize)
	}

	parsed, err := ParseResponse(resp)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if len(parsed.Capabilities) == 0 || len(parsed.Capabilities) > len(caps) {
		t.Fatalf("len(parsed.Capabilities) = %d, want between 1 and %d", len(parsed.Capabilities), len(caps))
	}
	for i, c := range parsed.Capabilities {
		if c != caps[i] {
			t.Fatalf("parsed.Capabilities[%d] = %q, want %q (prefix of original)", i, c, caps[i])
		}
	}
}

func TestResponseTruncatesNameWhenCapabilitiesAloneNotEnough(t *testing.T) {
	longName := ""
	for i := 0; i < 600; i++ {
		longName += "x"
	}
	meta := BotMeta{NodeID: "abc", Name: longName, Version: "0.1.0"}

	resp := BuildResponse(meta)
	if len(resp) > maxPacketSize {
		t.Fatalf("len(resp) = %d, want <= %d", len(resp), maxPacketSize)
	}

	parsed, err := ParseResponse(resp)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if parsed.Name != truncateName(longName) {
		t.Fatalf("parsed.Name = %q, want %q", parsed.Name, truncateName(longName))
	}
}

func TestTruncateNameDeterministic(t *testing.T) {
	got := truncateName("abcdefghijklmnopqrstuvwxyz")
	want := "abcdefghijklmnop..."
	if got != want {
		t.Fatalf("truncateName() = %q, want %q", got, want)
	}
}

func TestParseResponseMissingMagic(t *testing.T) {
	if _, err := ParseResponse([]byte{0, 0, 0, 0, 0}); err == nil {
		t.Fatal("ParseResponse(bad magic) error = nil, want error")
	}
}
