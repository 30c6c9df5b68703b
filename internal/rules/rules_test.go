package rules

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileRejectsInvalidExpression(t *testing.T) {
	_, err := Compile("w1", "this is not valid bexpr ((")
	require.Error(t, err)
}

func TestRuleMatchesPositiveDelta(t *testing.T) {
	r, err := Compile("w1", "delta > 0")
	require.NoError(t, err)

	ok, err := r.Matches(Change{Address: "addr1", Delta: 100, Height: 10})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Matches(Change{Address: "addr1", Delta: -50, Height: 10})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetMatchReturnsAllMatchingWallets(t *testing.T) {
	r1, err := Compile("w1", "delta > 0")
	require.NoError(t, err)
	r2, err := Compile("w2", `address == "addr1"`)
	require.NoError(t, err)

	set := Set{r1, r2}
	matched := set.Match(Change{Address: "addr1", Delta: 5})
	require.ElementsMatch(t, []string{"w1", "w2"}, matched)
}

func TestSetMatchSkipsNoMatch(t *testing.T) {
	r1, err := Compile("w1", "delta > 0")
	require.NoError(t, err)
	set := Set{r1}
	matched := set.Match(Change{Address: "addr1", Delta: -1})
	require.Empty(t, matched)
}
