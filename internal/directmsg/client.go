package directmsg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/clawnet/clawnet/internal/clawerr"
	"github.com/clawnet/clawnet/internal/wire"
)

// replyDeadline bounds how long SendText and Ping wait for a reply frame,
// spec.md §4.7.
const replyDeadline = 5 * time.Second

// pingInterval is the pause between successive pings in a Ping session,
// not applied after the last one.
const pingInterval = 1 * time.Second

// deadlineStream is satisfied by libp2p's network.Stream (and any other
// stream type with a read deadline), kept narrow so tests can fake it.
type deadlineStream interface {
	io.ReadWriteCloser
	SetReadDeadline(time.Time) error
	CloseWrite() error
}

// SendText sends one Text frame on an already-open stream, and waits up to
// replyDeadline for a reply. A missing or malformed reply is not an
// error: spec.md §4.7 says the caller still reports "sent" with no
// response in that case.
func SendText(stream deadlineStream, from, content string, now int64) (reply *wire.DirectMessage, err error) {
	defer stream.Close()

	msg := wire.NewText(wire.DirectMessage{From: from, Content: content, Timestamp: now})
	if err := wire.WriteFrame(stream, msg.Encode()); err != nil {
		return nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("send text: %w", err))
	}
	if err := stream.CloseWrite(); err != nil {
		return nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("close send side: %w", err))
	}

	_ = stream.SetReadDeadline(time.Now().Add(replyDeadline))
	body, err := wire.ReadFrame(stream)
	if err != nil {
		return nil, nil // sent, no response: not an error per spec.md §4.7
	}
	reply1, err := wire.Decode(body)
	if err != nil || reply1.Text == nil {
		return nil, nil
	}
	return reply1.Text, nil
}

// PingResult is one round-trip measurement from a Ping session.
type PingResult struct {
	Seq int
	RTT time.Duration
}

// Ping opens one bidirectional stream per ping and sends count pings
// (or runs until ctx is cancelled if count <= 0), waiting pingInterval
// between sends (not after the last). openStream is called once per
// ping to obtain a fresh stream, mirroring "open bi-stream per ping".
func Ping(ctx context.Context, from string, count int, openStream func(context.Context) (deadlineStream, error), results chan<- PingResult) error {
	for seq := 1; count <= 0 || seq <= count; seq++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rtt, err := pingOnce(openStream, ctx, from, uint32(seq))
		if err != nil {
			return err
		}
		results <- PingResult{Seq: seq, RTT: rtt}

		if count > 0 && seq == count {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pingInterval):
		}
	}
	return nil
}

func pingOnce(openStream func(context.Context) (deadlineStream, error), ctx context.Context, from string, seq uint32) (time.Duration, error) {
	start := time.Now()
	stream, err := openStream(ctx)
	if err != nil {
		return 0, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("open ping stream: %w", err))
	}
	defer stream.Close()

	ts := uint64(start.UnixMilli())
	msg := wire.NewPing(wire.PingPayload{From: from, Seq: seq, Timestamp: ts})
	if err := wire.WriteFrame(stream, msg.Encode()); err != nil {
		return 0, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("send ping: %w", err))
	}
	if err := stream.CloseWrite(); err != nil {
		return 0, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("close send side: %w", err))
	}

	_ = stream.SetReadDeadline(time.Now().Add(replyDeadline))
	body, err := wire.ReadFrame(stream)
	if err != nil {
		return 0, clawerr.Wrap(clawerr.KindTimeout, fmt.Errorf("read pong: %w", err))
	}
	reply, err := wire.Decode(body)
	if err != nil || reply.Pong == nil {
		return 0, clawerr.Wrap(clawerr.KindProtocolError, fmt.Errorf("%w: expected pong", clawerr.ErrUnexpectedVariant))
	}
	if reply.Pong.Seq != seq {
		return 0, clawerr.Wrap(clawerr.KindProtocolError, fmt.Errorf("%w: seq %d, want %d", clawerr.ErrSeqMismatch, reply.Pong.Seq, seq))
	}
	return time.Since(start), nil
}

// Chat runs an interactive chat session over stream: it concurrently
// reads lines from in (sending each non-empty line as a Chat frame) and
// reads frames from the peer, delivering each Chat line to out and
// returning when the peer sends ChatEnd, in reaches EOF, or ctx is
// cancelled. On exit it always sends ChatEnd and closes the send side.
func Chat(ctx context.Context, stream deadlineStream, from string, in io.Reader, out func(ChatLine)) error {
	done := make(chan struct{})
	var once sync.Once
	closeDone := func() { once.Do(func() { close(done) }) }

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case <-done:
				return
			default:
			}
			line := scanner.Text()
			if line == "" {
				continue
			}
			msg := wire.NewChat(wire.ChatPayload{From: from, Content: line, Timestamp: uint64(time.Now().UnixMilli())})
			if err := wire.WriteFrame(stream, msg.Encode()); err != nil {
				closeDone()
				return
			}
		}
		closeDone() // stdin EOF
	}()

	go func() {
		for {
			body, err := wire.ReadFrame(stream)
			if err != nil {
				closeDone()
				return
			}
			msg, err := wire.Decode(body)
			if err != nil {
				continue
			}
			switch msg.Variant {
			case wire.VariantChat:
				if out != nil && msg.Chat != nil {
					out(ChatLine{From: msg.Chat.From, Content: msg.Chat.Content})
				}
			case wire.VariantChatEnd:
				closeDone()
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}

	end := wire.NewChatEnd(wire.ChatEndPayload{From: from, Timestamp: uint64(time.Now().UnixMilli())})
	_ = wire.WriteFrame(stream, end.Encode())
	_ = stream.CloseWrite()
	return stream.Close()
}
