package bulk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MithrilMan/BlockExplorer/internal/store"
)

func TestAddReportsReadyAtThreshold(t *testing.T) {
	b := New("blocks", 2)
	require.False(t, b.Add(&store.BlockRow{}))
	require.True(t, b.Add(&store.BlockRow{}))
}

func TestDrainResetsBuffer(t *testing.T) {
	b := New("blocks", 10)
	b.Add(&store.BlockRow{Hash: "a"}, &store.BlockRow{Hash: "b"})
	require.Equal(t, 2, b.Len())

	rows := b.Drain()
	require.Len(t, rows, 2)
	require.Equal(t, 0, b.Len())
}

func TestNewWithNonPositiveMaxRowsUsesDefault(t *testing.T) {
	b := New("blocks", 0)
	require.Equal(t, DefaultMaxRows, b.maxRows)
}
