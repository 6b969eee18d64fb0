package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/clawnet/clawnet/internal/clawerr"
	"github.com/clawnet/clawnet/internal/peercache"
)

// MaxScanIPs is the pre-flight cap on host count, spec.md §4.6.
const MaxScanIPs = 1 << 20 // 1,048,576

// scanResultTTL is the peer cache TTL applied to scan-derived records,
// spec.md §4.6.
const scanResultTTL = 300 * time.Second

// ScanResult is a single probe response, spec.md §3.
type ScanResult struct {
	IP           string
	NodeID       string
	Name         string
	Version      string
	Capabilities []string
	QUICPort     uint16
	RTTMs        int64
}

// ScanStats summarizes a scan run, spec.md §4.6 step 5.
type ScanStats struct {
	// TotalIPs counts enumerated hosts, not confirmed-sent probes — the
	// sender spawns fire-and-forget sends, so there is no cheaper way to
	// know how many actually left the socket. See spec.md §9 (i).
	TotalIPs  int
	Responses int
	ElapsedMs int64
}

// hostAddrs enumerates the host addresses in cidr, excluding the network
// and broadcast address for prefixes shorter than /31 (which have no
// distinct network/broadcast address).
func hostAddrs(cidr string) ([]net.IP, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, clawerr.Wrap(clawerr.KindInvalidInput, fmt.Errorf("parse cidr %q: %w", cidr, err))
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, clawerr.Wrap(clawerr.KindInvalidInput, fmt.Errorf("cidr %q is not IPv4", cidr))
	}

	ones, bits := ipnet.Mask.Size()
	start := ipToUint32(ipnet.IP)
	count := uint64(1) << uint(bits-ones)
	end := start + uint32(count-1)

	var first, last uint32
	switch {
	case ones >= 31:
		first, last = start, end
	default:
		first, last = start+1, end-1
	}

	if last < first {
		return nil, clawerr.Wrap(clawerr.KindBounds, clawerr.ErrNoHostAddresses)
	}

	total := uint64(last-first) + 1
	if total > MaxScanIPs {
		return nil, clawerr.Wrap(clawerr.KindBounds, fmt.Errorf("%w: %d hosts", clawerr.ErrScanRangeTooLarge, total))
	}

	addrs := make([]net.IP, 0, total)
	for v := first; v <= last; v++ {
		addrs = append(addrs, uint32ToIP(v))
		if v == last { // avoid uint32 wraparound when last == 0xFFFFFFFF
			break
		}
	}
	return addrs, nil
}

func ipToUint32(ip net.IP) uint32 {
	ip4 := ip.To4()
	return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])
}

func uint32ToIP(v uint32) net.IP {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// Scan probes every host in cidr on port, bounded by concurrency
// simultaneous sends and an overall timeout, and upserts each response
// into cache with a 300s TTL. See spec.md §4.6.
func Scan(ctx context.Context, cidr string, concurrency int, timeout time.Duration, port int, cache *peercache.Store) (ScanStats, []ScanResult, error) {
	addrs, err := hostAddrs(cidr)
	if err != nil {
		return ScanStats{}, nil, err
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return ScanStats{}, nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("open scanner socket: %w", err))
	}
	defer conn.Close()

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	var mu sync.Mutex
	sendTimes := make(map[string]time.Time, len(addrs))
	var results []ScanResult

	var senderWG sync.WaitGroup
	sem := semaphore.NewWeighted(int64(concurrency))

	senderWG.Add(1)
	go func() {
		defer senderWG.Done()
		probe := BuildProbe()
		for _, ip := range addrs {
			if err := sem.Acquire(scanCtx, 1); err != nil {
				return // deadline hit; remaining sends are skipped
			}
			senderWG.Add(1)
			go func(ip net.IP) {
				defer senderWG.Done()
				defer sem.Release(1)

				mu.Lock()
				sendTimes[ip.String()] = time.Now()
				mu.Unlock()

				conn.WriteToUDP(probe, &net.UDPAddr{IP: ip, Port: port})
			}(ip)
		}
	}()

	var receiverWG sync.WaitGroup
	receiverWG.Add(1)
	go func() {
		defer receiverWG.Done()
		buf := make([]byte, 2048)
		for {
			remaining := time.Until(deadlineOf(scanCtx))
			if remaining <= 0 {
				return
			}
			conn.SetReadDeadline(time.Now().Add(minDuration(remaining, pollTimeout)))

			n, src, err := conn.ReadFromUDP(buf)
			if err != nil {
				if scanCtx.Err() != nil {
					return
				}
				continue
			}

			meta, err := ParseResponse(buf[:n])
			if err != nil {
				continue
			}

			ipStr := src.IP.String()
			mu.Lock()
			sentAt, known := sendTimes[ipStr]
			mu.Unlock()

			rtt := int64(0)
			if known {
				rtt = time.Since(sentAt).Milliseconds()
			}

			mu.Lock()
			results = append(results, ScanResult{
				IP:           ipStr,
				NodeID:       meta.NodeID,
				Name:         meta.Name,
				Version:      meta.Version,
				Capabilities: meta.Capabilities,
				QUICPort:     meta.QUICPort,
				RTTMs:        rtt,
			})
			mu.Unlock()
		}
	}()

	senderWG.Wait()
	receiverWG.Wait()

	sort.Slice(results, func(i, j int) bool { return ipLess(results[i].IP, results[j].IP) })

	if cache != nil {
		now := time.Now().Unix()
		for _, r := range results {
			cache.Upsert(peercache.PeerRecord{
				NodeID:       r.NodeID,
				Name:         r.Name,
				Capabilities: r.Capabilities,
				LastSeen:     now,
				TTL:          int64(scanResultTTL.Seconds()),
				Addresses:    []string{r.IP},
			})
		}
	}

	return ScanStats{
		TotalIPs:  len(addrs),
		Responses: len(results),
		ElapsedMs: time.Since(start).Milliseconds(),
	}, results, nil
}

func deadlineOf(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return time.Now().Add(pollTimeout)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// ipLess orders dotted-decimal (or IPv6) addresses numerically ascending,
// per spec.md §4.6 step 4. A plain string compare puts "192.168.0.10"
// before "192.168.0.2"; comparing the parsed 16-byte form fixes that.
func ipLess(a, b string) bool {
	ipA, ipB := net.ParseIP(a), net.ParseIP(b)
	if ipA == nil || ipB == nil {
		return a < b
	}
	return bytes.Compare(ipA.To16(), ipB.To16()) < 0
}
