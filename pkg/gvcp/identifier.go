package gvcp

// idGenerator hands out the 16-bit packet identifiers used to match a
// request to its ack. Zero is reserved (unsolicited/broadcast traffic
// uses it), so the sequence wraps from 65535 back to 1, never to 0.
type idGenerator struct {
	next uint16
}

// newIDGenerator seeds the sequence at StartPacketID, so wraparound is
// exercised early in a session's life rather than only after 65k
// exchanges.
func newIDGenerator() *idGenerator {
	return &idGenerator{next: StartPacketID}
}

// Next returns the next identifier and advances the sequence. It must be
// called once per wire retransmit (the initial send and every retry), but
// not for a pending-ack-driven deadline extension, which reuses the
// identifier of the attempt it belongs to.
func (g *idGenerator) Next() uint16 {
	id := g.next
	if g.next == 0xffff {
		g.next = 1
	} else {
		g.next++
	}
	if id == 0 {
		id = 1
	}
	return id
}
