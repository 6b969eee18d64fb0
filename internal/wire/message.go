package wire

import (
	"fmt"

	"github.com/clawnet/clawnet/internal/clawerr"
)

// versionByte is the only version this codec understands. New senders
// must always write it; receivers try the version-prefixed path first,
// then fall back to decoding the whole frame as a bare DirectMessage.
const versionByte = 0x01

// Variant tags the union carried inside a WireMessage envelope.
type Variant byte

const (
	VariantText    Variant = 0x01
	VariantPing    Variant = 0x02
	VariantPong    Variant = 0x03
	VariantChat    Variant = 0x04
	VariantChatEnd Variant = 0x05
)

// DirectMessage is a one-shot text message, spec.md §3.
type DirectMessage struct {
	From      string
	Content   string
	Timestamp int64
}

// PingPayload is the Ping variant's fields.
type PingPayload struct {
	From      string
	Seq       uint32
	Timestamp uint64
}

// PongPayload is the Pong variant's fields.
type PongPayload struct {
	From          string
	Seq           uint32
	EchoTimestamp uint64
	Timestamp     uint64
}

// ChatPayload is the Chat variant's fields.
type ChatPayload struct {
	From      string
	Content   string
	Timestamp uint64
}

// ChatEndPayload is the ChatEnd variant's fields.
type ChatEndPayload struct {
	From      string
	Timestamp uint64
}

// WireMessage is the tagged union carried in a direct-stream frame's body,
// after the version byte. Exactly one of the payload fields matching
// Variant is non-nil.
type WireMessage struct {
	Variant Variant
	Text    *DirectMessage
	Ping    *PingPayload
	Pong    *PongPayload
	Chat    *ChatPayload
	ChatEnd *ChatEndPayload
}

// NewText wraps dm as a Text variant.
func NewText(dm DirectMessage) WireMessage {
	return WireMessage{Variant: VariantText, Text: &dm}
}

// NewPing builds a Ping variant.
func NewPing(p PingPayload) WireMessage {
	return WireMessage{Variant: VariantPing, Ping: &p}
}

// NewPong builds a Pong variant.
func NewPong(p PongPayload) WireMessage {
	return WireMessage{Variant: VariantPong, Pong: &p}
}

// NewChat builds a Chat variant.
func NewChat(p ChatPayload) WireMessage {
	return WireMessage{Variant: VariantChat, Chat: &p}
}

// NewChatEnd builds a ChatEnd variant.
func NewChatEnd(p ChatEndPayload) WireMessage {
	return WireMessage{Variant: VariantChatEnd, ChatEnd: &p}
}

// Equal reports whether m and other encode to the same value. WireMessage
// holds pointer fields, so structural comparison can't use ==.
func (m WireMessage) Equal(other WireMessage) bool {
	if m.Variant != other.Variant {
		return false
	}
	switch m.Variant {
	case VariantText:
		return *m.Text == *other.Text
	case VariantPing:
		return *m.Ping == *other.Ping
	case VariantPong:
		return *m.Pong == *other.Pong
	case VariantChat:
		return *m.Chat == *other.Chat
	case VariantChatEnd:
		return *m.ChatEnd == *other.ChatEnd
	default:
		return false
	}
}

// Encode serializes m as a version-prefixed frame body: 0x01, then the
// variant tag, then the variant's compact binary payload.
func (m WireMessage) Encode() []byte {
	e := NewEncoder()
	e.PutByte(versionByte)
	e.PutByte(byte(m.Variant))

	switch m.Variant {
	case VariantText:
		putDirectMessage(e, *m.Text)
	case VariantPing:
		e.PutString(m.Ping.From)
		e.PutUint32(m.Ping.Seq)
		e.PutUint64(m.Ping.Timestamp)
	case VariantPong:
		e.PutString(m.Pong.From)
		e.PutUint32(m.Pong.Seq)
		e.PutUint64(m.Pong.EchoTimestamp)
		e.PutUint64(m.Pong.Timestamp)
	case VariantChat:
		e.PutString(m.Chat.From)
		e.PutString(m.Chat.Content)
		e.PutUint64(m.Chat.Timestamp)
	case VariantChatEnd:
		e.PutString(m.ChatEnd.From)
		e.PutUint64(m.ChatEnd.Timestamp)
	}
	return e.Bytes()
}

// EncodeBareDirectMessage encodes dm with no version byte and no variant
// tag: the legacy format understood by Decode's fallback path.
func EncodeBareDirectMessage(dm DirectMessage) []byte {
	e := NewEncoder()
	putDirectMessage(e, dm)
	return e.Bytes()
}

func putDirectMessage(e *Encoder, dm DirectMessage) {
	e.PutString(dm.From)
	e.PutString(dm.Content)
	e.PutUint64(uint64(dm.Timestamp))
}

func getDirectMessage(d *Decoder) (DirectMessage, error) {
	from, err := d.String()
	if err != nil {
		return DirectMessage{}, err
	}
	content, err := d.String()
	if err != nil {
		return DirectMessage{}, err
	}
	ts, err := d.Uint64()
	if err != nil {
		return DirectMessage{}, err
	}
	return DirectMessage{From: from, Content: content, Timestamp: int64(ts)}, nil
}

// Decode parses a frame body into a WireMessage. If the first byte is not
// the version byte, the whole body is decoded as a bare DirectMessage and
// wrapped as Text (spec.md §4.3, legacy fallback).
func Decode(body []byte) (WireMessage, error) {
	if len(body) == 0 {
		return WireMessage{}, clawerr.Wrap(clawerr.KindProtocolError, fmt.Errorf("%w: empty frame body", clawerr.ErrUnexpectedVariant))
	}

	if body[0] != versionByte {
		dm, err := getDirectMessage(NewDecoder(body))
		if err != nil {
			return WireMessage{}, err
		}
		return NewText(dm), nil
	}

	d := NewDecoder(body[1:])
	tag, err := d.Byte()
	if err != nil {
		return WireMessage{}, err
	}

	switch Variant(tag) {
	case VariantText:
		dm, err := getDirectMessage(d)
		if err != nil {
			return WireMessage{}, err
		}
		return NewText(dm), nil
	case VariantPing:
		from, err := d.String()
		if err != nil {
			return WireMessage{}, err
		}
		seq, err := d.Uint32()
		if err != nil {
			return WireMessage{}, err
		}
		ts, err := d.Uint64()
		if err != nil {
			return WireMessage{}, err
		}
		return NewPing(PingPayload{From: from, Seq: seq, Timestamp: ts}), nil
	case VariantPong:
		from, err := d.String()
		if err != nil {
			return WireMessage{}, err
		}
		seq, err := d.Uint32()
		if err != nil {
			return WireMessage{}, err
		}
		echo, err := d.Uint64()
		if err != nil {
			return WireMessage{}, err
		}
		ts, err := d.Uint64()
		if err != nil {
			return WireMessage{}, err
		}
		return NewPong(PongPayload{From: from, Seq: seq, EchoTimestamp: echo, Timestamp: ts}), nil
	case VariantChat:
		from, err := d.String()
		if err != nil {
			return WireMessage{}, err
		}
		content, err := d.String()
		if err != nil {
			return WireMessage{}, err
		}
		ts, err := d.Uint64()
		if err != nil {
			return WireMessage{}, err
		}
		return NewChat(ChatPayload{From: from, Content: content, Timestamp: ts}), nil
	case VariantChatEnd:
		from, err := d.String()
		if err != nil {
			return WireMessage{}, err
		}
		ts, err := d.Uint64()
		if err != nil {
			return WireMessage{}, err
		}
		return NewChatEnd(ChatEndPayload{From: from, Timestamp: ts}), nil
	default:
		return WireMessage{}, clawerr.Wrap(clawerr.KindProtocolError, fmt.Errorf("%w: tag 0x%02x", clawerr.ErrUnexpectedVariant, tag))
	}
}
