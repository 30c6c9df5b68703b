package fetch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/stretchr/testify/require"

	"github.com/MithrilMan/BlockExplorer/internal/chainmodel"
)

type fakeSource struct {
	fail     uint32
	failOn   bool
	inflight atomic.Int32
	maxSeen  atomic.Int32
}

func (s *fakeSource) BlockByHeight(_ context.Context, height uint32) (chainmodel.Block, error) {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		cur := s.maxSeen.Load()
		if n <= cur || s.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	if s.failOn && height == s.fail {
		return chainmodel.Block{}, fmt.Errorf("boom at %d", height)
	}
	return chainmodel.Block{Header: chainmodel.Header{Height: height}}, nil
}

func TestFetchRangeReturnsBlocksInOrder(t *testing.T) {
	f := New(&fakeSource{}, 4)
	blocks, err := f.FetchRange(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, blocks, 11)
	for i, b := range blocks {
		require.Equal(t, uint32(10+i), b.Header.Height)
	}
}

func TestFetchRangeSingleBlock(t *testing.T) {
	f := New(&fakeSource{}, 4)
	blocks, err := f.FetchRange(context.Background(), 5, 5)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, uint32(5), blocks[0].Header.Height)
}

func TestFetchRangePropagatesError(t *testing.T) {
	f := New(&fakeSource{fail: 15, failOn: true}, 4)
	_, err := f.FetchRange(context.Background(), 10, 20)
	require.Error(t, err)
}

type gappySource struct {
	missing map[uint32]bool
}

func (s *gappySource) BlockByHeight(_ context.Context, height uint32) (chainmodel.Block, error) {
	if s.missing[height] {
		return chainmodel.Block{}, ethereum.NotFound
	}
	return chainmodel.Block{Header: chainmodel.Header{Height: height}}, nil
}

func TestFetchRangeSkipsUnresolvableHeights(t *testing.T) {
	f := New(&gappySource{missing: map[uint32]bool{15: true, 17: true}}, 4)
	blocks, err := f.FetchRange(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, blocks, 9)
	for _, b := range blocks {
		require.NotEqual(t, uint32(15), b.Header.Height)
		require.NotEqual(t, uint32(17), b.Header.Height)
	}
}

func TestFetchRangeEmptyWhenToBeforeFrom(t *testing.T) {
	f := New(&fakeSource{}, 4)
	blocks, err := f.FetchRange(context.Background(), 20, 10)
	require.NoError(t, err)
	require.Nil(t, blocks)
}
