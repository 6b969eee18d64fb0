// Package discovery implements the UDP scan protocol of spec.md §4.6: a
// listener that answers "are you a ClawNet node?" probes with bot
// metadata, and a scanner that probes a CIDR range and aggregates
// responses into the peer cache.
package discovery

import (
	"fmt"

	"github.com/clawnet/clawnet/internal/clawerr"
	"github.com/clawnet/clawnet/internal/wire"
)

// DefaultPort is the well-known UDP port for discovery, spec.md §6.
const DefaultPort = 19851

// protocolVersion is the single byte following the magic in both probe
// and response headers.
const protocolVersion byte = 0x01

// magic is the literal 4-byte "C L A W" probe/response prefix.
var magic = [4]byte{'C', 'L', 'A', 'W'}

// headerLen is len(magic) + len(version byte).
const headerLen = len(magic) + 1

// maxPacketSize bounds a response to a single unfragmented IPv4 UDP
// datagram, spec.md §4.6.
const maxPacketSize = 508

// nameTruncateLen is how many leading characters of Name survive
// truncation before the "..." suffix is appended.
const nameTruncateLen = 16

// BotMeta is the metadata carried in a scan response, spec.md §3.
type BotMeta struct {
	NodeID       string
	Name         string
	Version      string
	Capabilities []string
	QUICPort     uint16
}

// BuildProbe returns the 5-byte probe datagram.
func BuildProbe() []byte {
	return append(append([]byte{}, magic[:]...), protocolVersion)
}

// IsValidProbe reports whether data is a well-formed probe: at least 5
// bytes whose first 5 equal the magic + protocol version.
func IsValidProbe(data []byte) bool {
	if len(data) < headerLen {
		return false
	}
	return data[0] == magic[0] && data[1] == magic[1] && data[2] == magic[2] && data[3] == magic[3] && data[4] == protocolVersion
}

func encodeMeta(meta BotMeta) []byte {
	e := wire.NewEncoder()
	e.PutString(meta.NodeID)
	e.PutString(meta.Name)
	e.PutString(meta.Version)
	e.PutStringSlice(meta.Capabilities)
	e.PutUint16(meta.QUICPort)
	return e.Bytes()
}

func assembleResponse(meta BotMeta) []byte {
	packet := make([]byte, 0, headerLen+64)
	packet = append(packet, magic[:]...)
	packet = append(packet, protocolVersion)
	return append(packet, encodeMeta(meta)...)
}

// truncateName keeps the first 16 runes of name and appends "...",
// deterministically, per spec.md §8's truncation rule.
func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) > nameTruncateLen {
		runes = runes[:nameTruncateLen]
	}
	return string(runes) + "..."
}

// BuildResponse assembles a scan response for meta, degrading it to fit
// within maxPacketSize per spec.md §4.6: capabilities are popped from the
// end one at a time, and if that alone isn't enough, Name is truncated.
func BuildResponse(meta BotMeta) []byte {
	working := meta
	packet := assembleResponse(working)

	for len(packet) > maxPacketSize && len(working.Capabilities) > 0 {
		working.Capabilities = working.Capabilities[:len(working.Capabilities)-1]
		packet = assembleResponse(working)
	}

	if len(packet) > maxPacketSize {
		working.Name = truncateName(working.Name)
		packet = assembleResponse(working)
	}

	return packet
}

// ParseResponse parses a scan response datagram back into BotMeta.
func ParseResponse(data []byte) (BotMeta, error) {
	if len(data) < headerLen {
		return BotMeta{}, clawerr.Wrap(clawerr.KindProtocolError, fmt.Errorf("%w: response too short (%d bytes)", clawerr.ErrMissingMagic, len(data)))
	}
	if data[0] != magic[0] || data[1] != magic[1] || data[2] != magic[2] || data[3] != magic[3] {
		return BotMeta{}, clawerr.Wrap(clawerr.KindProtocolError, clawerr.ErrMissingMagic)
	}
	if data[4] != protocolVersion {
		return BotMeta{}, clawerr.Wrap(clawerr.KindProtocolError, fmt.Errorf("%w: version 0x%02x", clawerr.ErrUnsupportedWire, data[4]))
	}

	d := wire.NewDecoder(data[headerLen:])
	nodeID, err := d.String()
	if err != nil {
		return BotMeta{}, err
	}
	name, err := d.String()
	if err != nil {
		return BotMeta{}, err
	}
	version, err := d.String()
	if err != nil {
		return BotMeta{}, err
	}
	caps, err := d.StringSlice()
	if err != nil {
		return BotMeta{}, err
	}
	port, err := d.Uint16()
	if err != nil {
		return BotMeta{}, err
	}

	return BotMeta{NodeID: nodeID, Name: name, Version: version, Capabilities: caps, QUICPort: port}, nil
}
