package radio

import "github.com/eddyswens/crazyflie-firmware/internal/tdoa"

// LPPSendTimeout is the default number of driver events without an
// opportunity to transmit a queued short packet to its intended
// destination before it is discarded. The driver itself takes the cap
// from config.TuningConfig.GetLPPSendTimeoutEvents, whose default is
// the same value.
const LPPSendTimeout = 10

// ShortPacket is one queued outgoing LPP short packet: Dest identifies
// the anchor by id, Data is the payload following the short-packet
// header byte (spec §6.2).
type ShortPacket struct {
	Dest byte
	Data []byte
}

// Encode serializes the short packet's payload, i.e. everything after
// the MAC header: the LPP short-packet marker followed by the user
// bytes.
func (p ShortPacket) Encode() []byte {
	buf := make([]byte, 1+len(p.Data))
	buf[0] = tdoa.LPPHeaderShortPacket
	copy(buf[1:], p.Data)
	return buf
}

// LppQueue holds at most one outgoing short packet at a time, matching
// the original single-slot design: a new Push overwrites whatever was
// pending, since only the most recent LPP intent (e.g. an updated
// anchor config write) matters.
type LppQueue struct {
	pending  ShortPacket
	hasValue bool
}

// Push queues p, replacing any packet not yet sent.
func (q *LppQueue) Push(p ShortPacket) {
	q.pending = p
	q.hasValue = true
}

// Pop removes and returns the queued packet, if any.
func (q *LppQueue) Pop() (ShortPacket, bool) {
	if !q.hasValue {
		return ShortPacket{}, false
	}
	q.hasValue = false
	return q.pending, true
}

// Peek reports the queued packet without removing it.
func (q *LppQueue) Peek() (ShortPacket, bool) {
	return q.pending, q.hasValue
}
