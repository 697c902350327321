// Package testutil provides small test helpers for the TDoA engine
// and driver: building range packets and asserting on errors and
// float values.
package testutil

import (
	"math"
	"testing"

	"github.com/eddyswens/crazyflie-firmware/internal/tdoa"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertFloatClose fails the test if got and want differ by more than
// tolerance, for floating-point values such as clock corrections and
// distance differences.
func AssertFloatClose(t *testing.T, got, want, tolerance float64) {
	t.Helper()
	if math.Abs(got-want) > tolerance {
		t.Fatalf("got %v, want %v (tolerance %v)", got, want, tolerance)
	}
}

// RangePacket builds a minimal decodable TDoA2 range packet reporting
// one anchor's own transmission timestamp and sequence number, for
// tests that only care about a single anchor's slot.
func RangePacket(anchorID byte, ts uint64, seq byte) tdoa.RangePacket {
	var rp tdoa.RangePacket
	rp.Type = tdoa.PacketTypeTDoA2
	rp.Timestamps[anchorID] = ts
	rp.SequenceNrs[anchorID] = seq
	return rp
}

// EncodeRangePacket builds and encodes a single-anchor range packet
// in one call, for tests that feed raw bytes straight to a Radio mock.
func EncodeRangePacket(anchorID byte, ts uint64, seq byte) []byte {
	return tdoa.EncodeRangePacket(RangePacket(anchorID, ts, seq))
}
