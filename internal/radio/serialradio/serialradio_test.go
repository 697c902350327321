package serialradio

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeFrame(t *testing.T, src, arrival uint64, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(payload)))
	binary.LittleEndian.PutUint64(buf[2:10], src)
	binary.LittleEndian.PutUint64(buf[10:18], arrival)
	copy(buf[frameHeaderSize:], payload)
	return buf
}

func TestSerialRadioMonitorDecodesFrames(t *testing.T) {
	t.Parallel()

	frame := encodeFrame(t, 0xbccf000000000003, 1000, []byte{0x22, 0x01, 0x02})
	port := &MockPort{Reader: bytes.NewReader(frame), Writer: &bytes.Buffer{}}
	r := NewSerialRadio(port, 63.8976e9)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Monitor(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := r.LastReceivedPacket()
		return ok
	}, time.Second, time.Millisecond, "expected a decoded frame")
}

func TestSerialRadioLastReceivedPacketEmptyWhenIdle(t *testing.T) {
	t.Parallel()

	port := &MockPort{Reader: bytes.NewReader(nil), Writer: &bytes.Buffer{}}
	r := NewSerialRadio(port, 63.8976e9)

	_, ok := r.LastReceivedPacket()
	assert.False(t, ok)
}

func TestSerialRadioTransmitWritesFramedPacket(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	port := &MockPort{Reader: bytes.NewReader(nil), Writer: &out}
	r := NewSerialRadio(port, 63.8976e9)

	r.Transmit(0xbccf000000000002, []byte{0xf0, 0x01})

	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out.Bytes()[0:2]))
	assert.Equal(t, uint64(0xbccf000000000002), binary.LittleEndian.Uint64(out.Bytes()[2:10]))
}
