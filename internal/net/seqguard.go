package net

// ForwardWindow is the largest sequence advance accepted in one packet.
const ForwardWindow = 128

// Stream names an independently sequenced packet stream.
type Stream uint8

const (
	StreamMove Stream = iota
	StreamTarget
	numStreams
)

// SeqDistance is the signed modular distance from last to incoming.
func SeqDistance(incoming, last uint16) int16 {
	return int16(incoming - last)
}

// SeqGuard rejects duplicate, stale and implausibly far-ahead sequence
// numbers on one stream. The first sequence seen is always accepted.
type SeqGuard struct {
	last    uint16
	started bool
}

// Fresh reports whether seq would be accepted, without recording it.
func (g *SeqGuard) Fresh(seq uint16) bool {
	if !g.started {
		return true
	}
	d := SeqDistance(seq, g.last)
	return d > 0 && d <= ForwardWindow
}

// Accept records seq and reports whether it is fresh.
func (g *SeqGuard) Accept(seq uint16) bool {
	if !g.Fresh(seq) {
		return false
	}
	g.started = true
	g.last = seq
	return true
}

// Last returns the last accepted sequence.
func (g *SeqGuard) Last() (uint16, bool) { return g.last, g.started }

func (g *SeqGuard) Reset() { *g = SeqGuard{} }
