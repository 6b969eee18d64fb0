package daemon

import "github.com/prometheus/client_golang/prometheus"

// Metrics is optional (nil-safe): every method tolerates a nil receiver,
// mirroring the teacher's pattern for optional Prometheus instrumentation.
type Metrics struct {
	announcementsSent prometheus.Counter
	peersDiscovered   prometheus.Counter
}

// NewMetrics registers the daemon's counters on reg and returns a Metrics.
// Pass a nil *Metrics anywhere instrumentation is optional.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		announcementsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clawnet_announcements_sent_total",
			Help: "Total number of presence announcements broadcast on the discovery topic.",
		}),
		peersDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clawnet_peers_discovered_total",
			Help: "Total number of peer announcements received from other nodes.",
		}),
	}
	reg.MustRegister(m.announcementsSent, m.peersDiscovered)
	return m
}

func (m *Metrics) incAnnouncementsSent() {
	if m == nil {
		return
	}
	m.announcementsSent.Inc()
}

func (m *Metrics) incPeersDiscovered() {
	if m == nil {
		return
	}
	m.peersDiscovered.Inc()
}
