package overlay

// Summary is a small status-reporting snapshot of an endpoint's bound
// addresses, trimmed down from the teacher's broader InterfaceSummary
// concept (pkg/p2pnet/interfaces.go) to what status queries need here.
type Summary struct {
	NodeID    string
	Addresses []string
}

// Summarize returns a Summary of e's current identity and bound sockets.
func (e *Endpoint) Summarize() Summary {
	return Summary{
		NodeID:    e.ID(),
		Addresses: e.BoundSockets(),
	}
}
