package replay

import (
	"testing"

	"github.com/google/gopacket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddyswens/crazyflie-firmware/internal/tdoa"
)

func TestLayerDecodeFromBytes(t *testing.T) {
	t.Parallel()

	var rp tdoa.RangePacket
	rp.Type = tdoa.PacketTypeTDoA2
	rp.Timestamps[2] = 12345
	raw := tdoa.EncodeRangePacket(rp)

	l := &Layer{}
	err := l.DecodeFromBytes(raw, gopacket.NilDecodeFeedback)
	require.NoError(t, err)

	assert.Equal(t, LayerTypeTDoA2, l.LayerType())
	assert.Equal(t, uint64(12345), l.Packet.Timestamps[2])
	assert.Equal(t, raw, l.LayerContents())
	assert.Nil(t, l.LayerPayload())
}

func TestLayerDecodeFromBytesTooShort(t *testing.T) {
	t.Parallel()

	l := &Layer{}
	err := l.DecodeFromBytes([]byte{0x01}, gopacket.NilDecodeFeedback)
	assert.Error(t, err)
}
