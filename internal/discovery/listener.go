package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/clawnet/clawnet/internal/clawerr"
)

// pollTimeout bounds each blocking read so the cooperative loop can check
// ctx.Done() promptly, spec.md §4.6.
const pollTimeout = 1 * time.Second

// replyBurst and replyPerSecond throttle responses under a probe flood —
// a small addition the spec doesn't require but the UDP listener's
// unauthenticated nature invites; see SPEC_FULL.md §5.
const (
	replyPerSecond = 200
	replyBurst     = 400
)

// Listener answers scan probes on a UDP port with the configured bot
// metadata, spec.md §4.6.
type Listener struct {
	meta    BotMeta
	limiter *rate.Limiter
}

// NewListener returns a Listener that answers probes with meta.
func NewListener(meta BotMeta) *Listener {
	return &Listener{
		meta:    meta,
		limiter: rate.NewLimiter(rate.Limit(replyPerSecond), replyBurst),
	}
}

// Run binds 0.0.0.0:port and serves probes until ctx is cancelled. A bind
// failure is returned to the caller, who (per spec.md §4.8) may choose to
// log it and continue without discovery rather than treat it as fatal.
func (l *Listener) Run(ctx context.Context, port int) error {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("bind udp discovery port %d: %w", port, err))
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
			return clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("set read deadline: %w", err))
		}

		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			slog.Debug("discovery listener read error", "error", err)
			continue
		}

		if !IsValidProbe(buf[:n]) {
			continue
		}
		if !l.limiter.Allow() {
			slog.Debug("discovery listener dropped probe reply, rate limited", "from", src)
			continue
		}

		resp := BuildResponse(l.meta)
		if _, err := conn.WriteToUDP(resp, src); err != nil {
			slog.Debug("discovery listener reply failed", "from", src, "error", err)
		}
	}
}
