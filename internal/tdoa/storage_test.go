package tdoa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageGetOrCreate(t *testing.T) {
	t.Parallel()

	t.Run("creates a fresh record on first sight of an id", func(t *testing.T) {
		s := NewStorage(4, 4)
		ctx, found := s.GetOrCreate(3, 1000)
		require.True(t, ctx.Valid())
		assert.False(t, found)
		assert.Equal(t, byte(3), ctx.ID())
	})

	t.Run("returns the same record on repeat lookups", func(t *testing.T) {
		s := NewStorage(4, 4)
		s.GetOrCreate(3, 1000)
		ctx, found := s.GetOrCreate(3, 2000)
		assert.True(t, found)
		assert.Equal(t, byte(3), ctx.ID())
	})

	t.Run("evicts the least-recently-updated slot once full", func(t *testing.T) {
		s := NewStorage(2, 2)
		a, _ := s.GetOrCreate(1, 1000)
		a.SetRxTxData(10, 20, 1)
		b, _ := s.GetOrCreate(2, 2000)
		b.SetRxTxData(10, 20, 1)

		// id 1 is older (last updated at 1000), so it is evicted for id 3.
		ctx, found := s.GetOrCreate(3, 3000)
		assert.False(t, found)
		assert.Equal(t, byte(3), ctx.ID())
		assert.False(t, s.IsInStorage(1))
		assert.True(t, s.IsInStorage(2))
	})
}

func TestStorageGet(t *testing.T) {
	t.Parallel()

	t.Run("unknown id yields an invalid context", func(t *testing.T) {
		s := NewStorage(4, 4)
		ctx := s.Get(9, 1000)
		assert.False(t, ctx.Valid())
	})

	t.Run("known id resolves without creating", func(t *testing.T) {
		s := NewStorage(4, 4)
		s.GetOrCreate(3, 1000)
		ctx := s.Get(3, 1000)
		require.True(t, ctx.Valid())
		assert.Equal(t, byte(3), ctx.ID())
	})
}

func TestStorageListIDs(t *testing.T) {
	t.Parallel()

	s := NewStorage(4, 4)
	s.GetOrCreate(1, 1000)
	s.GetOrCreate(2, 1000)

	ids := s.ListIDs(nil, 10)
	assert.ElementsMatch(t, []byte{1, 2}, ids)
}

func TestStorageListActiveIDs(t *testing.T) {
	t.Parallel()

	s := NewStorage(4, 4)
	old, _ := s.GetOrCreate(1, 0)
	old.SetRxTxData(1, 1, 0)
	fresh, _ := s.GetOrCreate(2, 5000)
	fresh.SetRxTxData(1, 1, 0)

	active := s.ListActiveIDs(nil, 10, 5000)
	assert.ElementsMatch(t, []byte{2}, active)
}

func TestAnchorContextPosition(t *testing.T) {
	t.Parallel()

	t.Run("position expires after PositionValidityMS", func(t *testing.T) {
		s := NewStorage(4, 4)
		ctx, _ := s.GetOrCreate(3, 1000)
		ctx.SetPosition(1, 2, 3)

		later := s.Get(3, 1000+PositionValidityMS+1)
		_, ok := later.Position()
		assert.False(t, ok)
	})

	t.Run("position within window is valid", func(t *testing.T) {
		s := NewStorage(4, 4)
		ctx, _ := s.GetOrCreate(3, 1000)
		ctx.SetPosition(1, 2, 3)

		later := s.Get(3, 1000+PositionValidityMS-1)
		pos, ok := later.Position()
		require.True(t, ok)
		assert.Equal(t, float32(1), pos.X)
	})
}

func TestAnchorContextRemoteRx(t *testing.T) {
	t.Parallel()

	t.Run("round trips a remote observation", func(t *testing.T) {
		s := NewStorage(4, 4)
		ctx, _ := s.GetOrCreate(1, 1000)
		ctx.SetRemoteRx(2, 555, 7)

		rxTime, seqNr, ok := ctx.GetRemoteRx(2)
		require.True(t, ok)
		assert.Equal(t, uint64(555), rxTime)
		assert.Equal(t, byte(7), seqNr)
	})

	t.Run("expires after RemoteDataValidityMS", func(t *testing.T) {
		s := NewStorage(4, 4)
		ctx, _ := s.GetOrCreate(1, 1000)
		ctx.SetRemoteRx(2, 555, 7)

		expired := s.Get(1, 1000+RemoteDataValidityMS+1)
		_, _, ok := expired.GetRemoteRx(2)
		assert.False(t, ok)
	})

	t.Run("evicts the oldest cache slot when full", func(t *testing.T) {
		s := NewStorage(4, 2)
		ctx, _ := s.GetOrCreate(1, 1000)
		ctx.SetRemoteRx(2, 1, 0)
		ctx.SetRemoteRx(3, 1, 0)
		// Both slots occupied with the same end-of-life; the third insert
		// must claim one of them rather than silently drop.
		ctx.SetRemoteRx(4, 1, 0)

		seen := ctx.ListRemoteSeq(nil)
		assert.Len(t, seen, 2)
	})
}

func TestAnchorContextRemoteTof(t *testing.T) {
	t.Parallel()

	s := NewStorage(4, 4)
	ctx, _ := s.GetOrCreate(1, 1000)
	ctx.SetRemoteTof(2, 42)

	tof, ok := ctx.GetRemoteTof(2)
	require.True(t, ok)
	assert.Equal(t, uint64(42), tof)

	expired := s.Get(1, 1000+TimeOfFlightValidityMS+1)
	_, ok = expired.GetRemoteTof(2)
	assert.False(t, ok)
}
