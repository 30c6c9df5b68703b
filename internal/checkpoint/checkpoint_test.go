package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MithrilMan/BlockExplorer/internal/store"
)

func TestLoadOnFreshStreamReturnsNotOK(t *testing.T) {
	ctx := context.Background()
	cp, err := New(ctx, store.NewMemStore(), "checkpoints", "default")
	require.NoError(t, err)

	_, ok, err := cp.Load(ctx, StreamBlocks)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	ctx := context.Background()
	cp, err := New(ctx, store.NewMemStore(), "checkpoints", "default")
	require.NoError(t, err)

	loc := BuildLocator(50, hashForHeight)
	require.NoError(t, cp.Save(ctx, StreamTransactions, loc))

	back, ok, err := cp.Load(ctx, StreamTransactions)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, loc.TipHeight, back.TipHeight)
	require.Equal(t, loc.Entries, back.Entries)
}

func TestResetClearsCheckpoint(t *testing.T) {
	ctx := context.Background()
	cp, err := New(ctx, store.NewMemStore(), "checkpoints", "default")
	require.NoError(t, err)

	require.NoError(t, cp.Save(ctx, StreamBalances, BuildLocator(10, hashForHeight)))
	require.NoError(t, cp.Reset(ctx, StreamBalances))

	_, ok, err := cp.Load(ctx, StreamBalances)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreTipIsMinimumAcrossStreams(t *testing.T) {
	tip := StoreTip(map[Stream]uint32{
		StreamBlocks:         100,
		StreamTransactions:   97,
		StreamBalances:       99,
		StreamWalletBalances: 101,
	})
	require.Equal(t, uint32(97), tip)
}

func TestStoreTipOfEmptySetIsZero(t *testing.T) {
	require.Equal(t, uint32(0), StoreTip(nil))
}
