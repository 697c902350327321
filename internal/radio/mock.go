package radio

// MockRadio is an in-memory Radio for driver tests: it never touches
// hardware, and lets a test script feed packets and inspect what the
// driver transmitted.
type MockRadio struct {
	idleCalls    int
	receiveCalls int

	pending *Packet

	Transmitted []TransmittedFrame
}

// TransmittedFrame records one MockRadio.Transmit call for assertions.
type TransmittedFrame struct {
	Dest    uint64
	Payload []byte
}

// FeedPacket arms the mock to return pkt from the next
// LastReceivedPacket call, simulating a hardware RX event.
func (m *MockRadio) FeedPacket(pkt Packet) {
	m.pending = &pkt
}

func (m *MockRadio) Idle()         { m.idleCalls++ }
func (m *MockRadio) StartReceive() { m.receiveCalls++ }

func (m *MockRadio) Transmit(dst uint64, payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.Transmitted = append(m.Transmitted, TransmittedFrame{Dest: dst, Payload: cp})
}

func (m *MockRadio) LastReceivedPacket() (Packet, bool) {
	if m.pending == nil {
		return Packet{}, false
	}
	pkt := *m.pending
	m.pending = nil
	return pkt, true
}

// ReceiveCalls reports how many times StartReceive was called, for
// assertions on re-arm behavior.
func (m *MockRadio) ReceiveCalls() int { return m.receiveCalls }

var _ Radio = (*MockRadio)(nil)
