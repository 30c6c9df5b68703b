package checkpoint

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func hashForHeight(h uint32) common.Hash {
	var b common.Hash
	b[0] = byte(h)
	b[1] = byte(h >> 8)
	b[31] = 1 // keep height 0 from mapping to the zero hash BuildLocator skips
	return b
}

func TestBuildLocatorIncludesTip(t *testing.T) {
	loc := BuildLocator(100, hashForHeight)
	require.NotEmpty(t, loc.Entries)
	require.Equal(t, hashForHeight(100), loc.Entries[0])
}

func TestBuildLocatorReachesGenesis(t *testing.T) {
	loc := BuildLocator(5, hashForHeight)
	require.Equal(t, hashForHeight(0), loc.Entries[len(loc.Entries)-1])
}

func TestLocatorSerializeRoundTrip(t *testing.T) {
	loc := BuildLocator(42, hashForHeight)
	data, err := Serialize(loc)
	require.NoError(t, err)

	back, err := Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, loc.TipHeight, back.TipHeight)
	require.Equal(t, loc.Entries, back.Entries)

	data2, err := Serialize(back)
	require.NoError(t, err)
	require.Equal(t, data, data2)
}
