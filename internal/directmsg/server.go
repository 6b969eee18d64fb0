// Package directmsg implements the direct-stream protocol of spec.md
// §4.7: one framed WireMessage dispatch per accepted stream, plus the
// client-side Text/Ping/Chat session helpers.
package directmsg

import (
	"io"
	"log/slog"
	"time"

	"github.com/clawnet/clawnet/internal/wire"
)

// ChatLine is one line of chat received from a peer and delivered to a
// local sink, either by HandleStream or during a client Chat session.
type ChatLine struct {
	From    string
	Content string
}

// HandleStream services one accepted bidirectional stream per spec.md
// §4.7's dispatch table. It reads exactly one leading frame and branches
// on its variant; Chat sessions keep reading subsequent frames until
// ChatEnd or the stream closes. chatSink receives each Chat line the peer
// sends, if non-nil. serverID is this node's id, echoed back as the
// responder in Pong replies.
func HandleStream(stream io.ReadWriteCloser, serverID string, chatSink func(ChatLine)) {
	defer stream.Close()

	body, err := wire.ReadFrame(stream)
	if err != nil {
		slog.Debug("directmsg: failed to read leading frame", "error", err)
		return
	}
	msg, err := wire.Decode(body)
	if err != nil {
		slog.Debug("directmsg: failed to decode leading frame", "error", err)
		return
	}

	switch msg.Variant {
	case wire.VariantText:
		ack := wire.NewText(wire.DirectMessage{From: "", Content: "received", Timestamp: msg.Text.Timestamp})
		writeFrame(stream, ack)

	case wire.VariantPing:
		pong := wire.NewPong(wire.PongPayload{
			From:          serverID,
			Seq:           msg.Ping.Seq,
			EchoTimestamp: msg.Ping.Timestamp,
			Timestamp:     uint64(time.Now().Unix()),
		})
		writeFrame(stream, pong)

	case wire.VariantChat:
		if chatSink != nil && msg.Chat != nil {
			chatSink(ChatLine{From: msg.Chat.From, Content: msg.Chat.Content})
		}
		chatLoop(stream, chatSink)

	case wire.VariantChatEnd, wire.VariantPong:
		// stray, per spec.md §4.7's dispatch table: ignored.

	default:
		slog.Debug("directmsg: unexpected leading variant", "variant", msg.Variant)
	}
}

// chatLoop reads further frames after the first Chat frame, delivering
// each Chat line to chatSink until ChatEnd arrives or the stream ends.
func chatLoop(stream io.Reader, chatSink func(ChatLine)) {
	for {
		body, err := wire.ReadFrame(stream)
		if err != nil {
			return
		}
		msg, err := wire.Decode(body)
		if err != nil {
			slog.Debug("directmsg: chat frame decode failed", "error", err)
			continue
		}
		switch msg.Variant {
		case wire.VariantChat:
			if chatSink != nil && msg.Chat != nil {
				chatSink(ChatLine{From: msg.Chat.From, Content: msg.Chat.Content})
			}
		case wire.VariantChatEnd:
			return
		default:
			// stray Ping/Text/Pong mid-chat: ignored, keep looping.
		}
	}
}

func writeFrame(w io.Writer, msg wire.WireMessage) {
	if err := wire.WriteFrame(w, msg.Encode()); err != nil {
		slog.Debug("directmsg: failed to write reply frame", "error", err)
	}
}
