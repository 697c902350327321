// Package serialradio implements radio.Radio over a serial-attached
// UWB bench rig: a USB-tethered anchor/tag pair that frames range
// packets as length-prefixed binary records instead of broadcasting
// them over the air. It exists so the driver and engine can be
// exercised against real (if wired) hardware without a full radio
// stack.
package serialradio

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"

	"go.bug.st/serial"

	"github.com/eddyswens/crazyflie-firmware/internal/radio"
)

// frameHeaderSize is the fixed prefix on every bench-rig frame:
// 2-byte little-endian payload length, 8-byte source address,
// 8-byte tag-clock arrival timestamp.
const frameHeaderSize = 2 + 8 + 8

// PortInterface is the subset of serial.Port behavior this package
// depends on, narrowed for mocking in tests.
type PortInterface interface {
	io.ReadWriteCloser
}

// MockPort is an in-memory PortInterface backed by a pipe, for tests
// that want to exercise SerialRadio.Monitor without real hardware.
type MockPort struct {
	io.Reader
	io.Writer
}

// Close implements PortInterface; MockPort has nothing to release.
func (m *MockPort) Close() error { return nil }

// SerialRadio implements radio.Radio over a framed serial connection.
// Reading happens on a background goroutine (Monitor); OnEvent-driven
// calls (StartReceive, Transmit) are non-blocking, matching the
// contract every radio.Radio implementation must uphold.
type SerialRadio struct {
	port PortInterface

	frames  chan radio.Packet
	pending *radio.Packet

	tsFreqHz float64
}

// Open connects to portName at the bench rig's fixed baud rate.
func Open(portName string, tsFreqHz float64) (*SerialRadio, error) {
	mode := &serial.Mode{
		BaudRate: 921600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("serialradio: open %s: %w", portName, err)
	}

	return NewSerialRadio(port, tsFreqHz), nil
}

// NewSerialRadio wraps an already-open port, for tests and for
// callers that manage the underlying port lifecycle themselves.
func NewSerialRadio(port PortInterface, tsFreqHz float64) *SerialRadio {
	return &SerialRadio{
		port:     port,
		frames:   make(chan radio.Packet, 64),
		tsFreqHz: tsFreqHz,
	}
}

// Monitor reads framed packets from the port until ctx is canceled or
// the port errs. It must run on its own goroutine; decoded frames
// arrive on r.frames, which OnEvent's PacketReceived handling drains
// via LastReceivedPacket.
func (r *SerialRadio) Monitor(ctx context.Context) error {
	defer r.port.Close()
	reader := bufio.NewReaderSize(r.port, 4096)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		pkt, err := readFrame(reader)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			log.Printf("serialradio: frame read error: %v", err)
			continue
		}

		select {
		case r.frames <- pkt:
		case <-ctx.Done():
			return nil
		}
	}
}

func readFrame(r *bufio.Reader) (radio.Packet, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return radio.Packet{}, err
	}

	length := binary.LittleEndian.Uint16(header[0:2])
	src := binary.LittleEndian.Uint64(header[2:10])
	arrival := binary.LittleEndian.Uint64(header[10:18])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return radio.Packet{}, err
	}

	return radio.Packet{
		SourceAddress:    src,
		Payload:          payload,
		ArrivalTimestamp: arrival,
	}, nil
}

// Idle is a no-op: the bench rig has no separate idle mode to enter.
func (r *SerialRadio) Idle() {}

// StartReceive is a no-op: Monitor's read loop is always armed.
func (r *SerialRadio) StartReceive() {}

// Transmit writes a framed outgoing packet to the port.
func (r *SerialRadio) Transmit(dst uint64, payload []byte) {
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(frame[0:2], uint16(len(payload)))
	binary.LittleEndian.PutUint64(frame[2:10], dst)
	binary.LittleEndian.PutUint64(frame[10:18], 0) // arrival timestamp is meaningless on TX
	copy(frame[frameHeaderSize:], payload)

	if _, err := r.port.Write(frame); err != nil {
		log.Printf("serialradio: write error: %v", err)
	}
}

// LastReceivedPacket returns the oldest buffered frame, if any is
// ready without blocking.
func (r *SerialRadio) LastReceivedPacket() (radio.Packet, bool) {
	select {
	case pkt := <-r.frames:
		return pkt, true
	default:
		return radio.Packet{}, false
	}
}

var _ radio.Radio = (*SerialRadio)(nil)
