package wire

import (
	"fmt"

	"github.com/clawnet/clawnet/internal/clawerr"
)

// GossipVariant tags the GossipMessage union. Unlike WireMessage, there is
// no version byte: the topic name itself is versioned (spec.md §4.3(c)).
type GossipVariant byte

const (
	GossipVariantAnnounce GossipVariant = 0x01
	GossipVariantLeave    GossipVariant = 0x02
)

// Announcement is the gossip payload advertising a node's presence,
// spec.md §3.
type Announcement struct {
	NodeID       string
	Name         string
	Version      string
	Capabilities []string
	AppVersion   *string
	Mode         *string
	Timestamp    int64
	TTL          int64
	Metadata     map[string]string
}

// Leave announces that a node is departing the overlay.
type Leave struct {
	NodeID    string
	Timestamp int64
}

// GossipMessage is the tagged union carried on the discovery topic.
// Exactly one of Announce or LeaveMsg is non-nil, matching Variant.
type GossipMessage struct {
	Variant  GossipVariant
	Announce *Announcement
	LeaveMsg *Leave
}

// NewAnnounce wraps a as an Announce variant.
func NewAnnounce(a Announcement) GossipMessage {
	return GossipMessage{Variant: GossipVariantAnnounce, Announce: &a}
}

// NewLeave wraps l as a Leave variant.
func NewLeave(l Leave) GossipMessage {
	return GossipMessage{Variant: GossipVariantLeave, LeaveMsg: &l}
}

// EncodeGossip serializes m with a leading tag byte and no version byte.
func EncodeGossip(m GossipMessage) []byte {
	e := NewEncoder()
	e.PutByte(byte(m.Variant))

	switch m.Variant {
	case GossipVariantAnnounce:
		a := m.Announce
		e.PutString(a.NodeID)
		e.PutString(a.Name)
		e.PutString(a.Version)
		e.PutStringSlice(a.Capabilities)
		e.PutOptionalString(a.AppVersion)
		e.PutOptionalString(a.Mode)
		e.PutUint64(uint64(a.Timestamp))
		e.PutUint64(uint64(a.TTL))
		e.PutStringMap(a.Metadata)
	case GossipVariantLeave:
		e.PutString(m.LeaveMsg.NodeID)
		e.PutUint64(uint64(m.LeaveMsg.Timestamp))
	}
	return e.Bytes()
}

// DecodeGossip parses a gossip topic payload.
func DecodeGossip(data []byte) (GossipMessage, error) {
	d := NewDecoder(data)
	tag, err := d.Byte()
	if err != nil {
		return GossipMessage{}, err
	}

	switch GossipVariant(tag) {
	case GossipVariantAnnounce:
		nodeID, err := d.String()
		if err != nil {
			return GossipMessage{}, err
		}
		name, err := d.String()
		if err != nil {
			return GossipMessage{}, err
		}
		version, err := d.String()
		if err != nil {
			return GossipMessage{}, err
		}
		caps, err := d.StringSlice()
		if err != nil {
			return GossipMessage{}, err
		}
		appVersion, err := d.OptionalString()
		if err != nil {
			return GossipMessage{}, err
		}
		mode, err := d.OptionalString()
		if err != nil {
			return GossipMessage{}, err
		}
		ts, err := d.Uint64()
		if err != nil {
			return GossipMessage{}, err
		}
		ttl, err := d.Uint64()
		if err != nil {
			return GossipMessage{}, err
		}
		metadata, err := d.StringMap()
		if err != nil {
			return GossipMessage{}, err
		}
		return NewAnnounce(Announcement{
			NodeID:       nodeID,
			Name:         name,
			Version:      version,
			Capabilities: caps,
			AppVersion:   appVersion,
			Mode:         mode,
			Timestamp:    int64(ts),
			TTL:          int64(ttl),
			Metadata:     metadata,
		}), nil
	case GossipVariantLeave:
		nodeID, err := d.String()
		if err != nil {
			return GossipMessage{}, err
		}
		ts, err := d.Uint64()
		if err != nil {
			return GossipMessage{}, err
		}
		return NewLeave(Leave{NodeID: nodeID, Timestamp: int64(ts)}), nil
	default:
		return GossipMessage{}, clawerr.Wrap(clawerr.KindProtocolError, fmt.Errorf("%w: gossip tag 0x%02x", clawerr.ErrUnexpectedVariant, tag))
	}
}
