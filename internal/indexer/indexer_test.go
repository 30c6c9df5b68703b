package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MithrilMan/BlockExplorer/internal/chainmodel"
	"github.com/MithrilMan/BlockExplorer/internal/checkpoint"
	"github.com/MithrilMan/BlockExplorer/internal/fetch"
	"github.com/MithrilMan/BlockExplorer/internal/projection"
	"github.com/MithrilMan/BlockExplorer/internal/scheduler"
	"github.com/MithrilMan/BlockExplorer/internal/store"
)

type flatSource struct{}

func (flatSource) BlockByHeight(_ context.Context, height uint32) (chainmodel.Block, error) {
	return chainmodel.Block{Header: chainmodel.Header{Height: height}}, nil
}

func TestStreamLoopStopsOnContextCancel(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemStore()
	checkpoints, err := checkpoint.New(ctx, mem, "checkpoints", "default")
	require.NoError(t, err)
	require.NoError(t, mem.CreateTableIfAbsent(ctx, "blocks"))

	sched := scheduler.New(mem, 1, 4)
	fetcher := fetch.New(flatSource{}, 1)

	loop := &streamLoop{
		name:         checkpoint.StreamBlocks,
		task:         projection.BlocksTask{},
		tableName:    "blocks",
		fromHeight:   0,
		batchSize:    5,
		checkpoints:  checkpoints,
		fetcher:      fetcher,
		sched:        sched,
		headHeight:   func() uint32 { return 3 },
		findFork:     func(_ context.Context, _ checkpoint.Locator) (uint32, error) { return 0, nil },
		pollInterval: time.Millisecond,
	}

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	loop.run(runCtx)

	loc, ok, err := checkpoints.Load(ctx, checkpoint.StreamBlocks)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(3), loc.TipHeight)
}

func TestStreamLoopExitsImmediatelyWhenToHeightIsZero(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemStore()
	checkpoints, err := checkpoint.New(ctx, mem, "checkpoints", "default")
	require.NoError(t, err)
	require.NoError(t, mem.CreateTableIfAbsent(ctx, "blocks"))

	loop := &streamLoop{
		name:        checkpoint.StreamBlocks,
		task:        projection.BlocksTask{},
		tableName:   "blocks",
		toHeight:    0,
		toHeightSet: true,
		checkpoints: checkpoints,
		fetcher:     fetch.New(flatSource{}, 1),
		sched:       scheduler.New(mem, 1, 4),
		headHeight:  func() uint32 { return 100 },
		findFork:    func(_ context.Context, _ checkpoint.Locator) (uint32, error) { return 0, nil },
	}

	loop.run(ctx)

	_, ok, err := checkpoints.Load(ctx, checkpoint.StreamBlocks)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStreamLoopStopsAtConfiguredToHeight(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemStore()
	checkpoints, err := checkpoint.New(ctx, mem, "checkpoints", "default")
	require.NoError(t, err)
	require.NoError(t, mem.CreateTableIfAbsent(ctx, "blocks"))

	loop := &streamLoop{
		name:         checkpoint.StreamBlocks,
		task:         projection.BlocksTask{},
		tableName:    "blocks",
		fromHeight:   0,
		batchSize:    100,
		toHeight:     2,
		toHeightSet:  true,
		checkpoints:  checkpoints,
		fetcher:      fetch.New(flatSource{}, 1),
		sched:        scheduler.New(mem, 1, 4),
		headHeight:   func() uint32 { return 100 },
		findFork:     func(_ context.Context, _ checkpoint.Locator) (uint32, error) { return 0, nil },
		pollInterval: time.Millisecond,
	}

	runCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	loop.run(runCtx)

	loc, ok, err := checkpoints.Load(ctx, checkpoint.StreamBlocks)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(2), loc.TipHeight)
}
