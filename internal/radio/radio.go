// Package radio implements the tag-driver boundary that sits between
// a UWB transceiver and the TDoA engine: the event-dispatcher state
// machine, LPP short-packet TX pacing, and the ranging-state bitmap.
//
// The transceiver itself (packet RX/TX, timestamped arrival,
// idle/receive/transmit modes) is an external collaborator, expressed
// here as the Radio interface so the driver can be tested without
// hardware and swapped onto a real UWB module or a bench serial rig
// (see internal/radio/serialradio).
package radio

// Event is one of the events a radio task dispatches into the driver.
type Event int

const (
	EventPacketReceived Event = iota
	EventReceiveTimeout
	EventReceiveFailed
	EventTimeout
	EventPacketSent
)

func (e Event) String() string {
	switch e {
	case EventPacketReceived:
		return "PacketReceived"
	case EventReceiveTimeout:
		return "ReceiveTimeout"
	case EventReceiveFailed:
		return "ReceiveFailed"
	case EventTimeout:
		return "Timeout"
	case EventPacketSent:
		return "PacketSent"
	default:
		return "Unknown"
	}
}

// Packet is one frame lifted off the air, MAC header already stripped
// down to the fields the driver needs.
type Packet struct {
	SourceAddress    uint64
	Payload          []byte
	ArrivalTimestamp uint64 // tag-clock ticks at the moment the tag received it
}

// Radio is the transceiver contract the driver drives. Implementations
// never block inside these calls except where hardware genuinely
// requires it (SetData/StartTransmit on real silicon); the mock and
// the serial-rig implementation are both non-blocking.
type Radio interface {
	// Idle stops any in-flight RX/TX and returns the radio to idle.
	Idle()
	// StartReceive arms the radio to receive the next packet.
	StartReceive()
	// Transmit sends payload to dst and returns; the radio re-arms
	// receive automatically once the transmission completes
	// (signaled later by EventPacketSent).
	Transmit(dst uint64, payload []byte)
	// LastReceivedPacket returns the packet that triggered the most
	// recent EventPacketReceived. Valid only for the duration of that
	// event's OnEvent call.
	LastReceivedPacket() (Packet, bool)
}
