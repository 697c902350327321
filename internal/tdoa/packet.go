package tdoa

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PacketTypeTDoA2 is the range-packet type byte carried by every
// TDoA2 broadcast.
const PacketTypeTDoA2 = 0x22

// NumAnchors is the fixed number of anchor slots a TDoA2 range packet
// carries, regardless of how many are actually populated.
const NumAnchors = 8

// LPPHeaderShortPacket marks the start of an LPP short-packet payload
// trailing a range packet.
const LPPHeaderShortPacket = 0xf0

// LPPShortAnchorPos is the LPP short-packet subtype carrying an
// anchor's surveyed (x, y, z) position.
const LPPShortAnchorPos = 0x01

// timestampSize is the wire width of one 40-bit anchor timestamp.
const timestampSize = 5

// RangePacket is a decoded TDoA2 range packet: one anchor's view of
// its own transmission plus everything it heard from its neighbors
// since the last broadcast.
type RangePacket struct {
	Type        byte
	Timestamps  [NumAnchors]uint64
	SequenceNrs [NumAnchors]byte
	Distances   [NumAnchors]uint16
	LPP         []byte
}

// DecodeRangePacket parses a raw TDoA2 range packet payload (the MAC
// payload, not including any MAC header). It returns an error for a
// payload too short to hold the fixed anchor tables; a wrong type
// byte is not an error here — callers check Type themselves, matching
// the driver's silent-drop policy for malformed packets (spec §7).
func DecodeRangePacket(payload []byte) (RangePacket, error) {
	const fixedSize = 1 + NumAnchors*timestampSize + NumAnchors + NumAnchors*2
	if len(payload) < fixedSize {
		return RangePacket{}, fmt.Errorf("tdoa: range packet too short: %d bytes, want at least %d", len(payload), fixedSize)
	}

	var p RangePacket
	p.Type = payload[0]
	off := 1

	for i := 0; i < NumAnchors; i++ {
		p.Timestamps[i] = readUint40LE(payload[off : off+timestampSize])
		off += timestampSize
	}
	for i := 0; i < NumAnchors; i++ {
		p.SequenceNrs[i] = payload[off] & 0x7f
		off++
	}
	for i := 0; i < NumAnchors; i++ {
		p.Distances[i] = binary.LittleEndian.Uint16(payload[off : off+2])
		off += 2
	}

	if off < len(payload) {
		p.LPP = payload[off:]
	}
	return p, nil
}

func readUint40LE(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 | uint64(b[4])<<32
}

func writeUint40LE(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
}

// EncodeRangePacket serializes p back to wire format, mainly for tests
// and the bench simulator (cmd/tdoa-sim).
func EncodeRangePacket(p RangePacket) []byte {
	const fixedSize = 1 + NumAnchors*timestampSize + NumAnchors + NumAnchors*2
	buf := make([]byte, fixedSize+len(p.LPP))
	buf[0] = p.Type
	off := 1
	for i := 0; i < NumAnchors; i++ {
		writeUint40LE(buf[off:off+timestampSize], p.Timestamps[i]&TimestampMask)
		off += timestampSize
	}
	for i := 0; i < NumAnchors; i++ {
		buf[off] = p.SequenceNrs[i] & 0x7f
		off++
	}
	for i := 0; i < NumAnchors; i++ {
		binary.LittleEndian.PutUint16(buf[off:off+2], p.Distances[i])
		off += 2
	}
	copy(buf[off:], p.LPP)
	return buf
}

// AnchorPosition is the body of an LPP_SHORT_ANCHORPOS record.
type AnchorPosition struct {
	X, Y, Z float32
}

// DecodeLPPShortPacket inspects an optional trailing LPP payload and,
// if it carries an anchor position record, returns it. ok is false for
// any other LPP short-packet type or a payload too short to parse —
// the driver only acts on anchor-position records (spec §6.3).
func DecodeLPPShortPacket(lpp []byte) (pos AnchorPosition, ok bool) {
	if len(lpp) < 1+1+12 || lpp[0] != LPPHeaderShortPacket || lpp[1] != LPPShortAnchorPos {
		return AnchorPosition{}, false
	}
	body := lpp[2:]
	pos.X = decodeFloat32LE(body[0:4])
	pos.Y = decodeFloat32LE(body[4:8])
	pos.Z = decodeFloat32LE(body[8:12])
	return pos, true
}

func decodeFloat32LE(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func encodeFloat32LE(b []byte, f float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
}
