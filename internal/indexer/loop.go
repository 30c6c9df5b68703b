package indexer

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/MithrilMan/BlockExplorer/internal/checkpoint"
	"github.com/MithrilMan/BlockExplorer/internal/fetch"
	"github.com/MithrilMan/BlockExplorer/internal/projection"
	"github.com/MithrilMan/BlockExplorer/internal/scheduler"
)

// streamLoop runs one projection stream to completion-and-repeat: resolve
// the fork point against the cached chain view, fetch the next batch,
// project it, hand the rows to the scheduler, then checkpoint. On error it
// logs, backs off and retries the same batch; it never advances the
// checkpoint past a batch that failed to write.
type streamLoop struct {
	name       checkpoint.Stream
	task       projection.Task
	tableName  string
	fromHeight uint32
	batchSize  uint32

	// toHeight/toHeightSet bound the stream from above. toHeightSet false
	// means unbounded: the loop follows the live chain head forever.
	// toHeightSet true and toHeight == 0 is the degenerate range that exits
	// immediately without processing anything.
	toHeight    uint32
	toHeightSet bool

	// checkpointInterval, when nonzero, caps how many blocks a single
	// batch advances the checkpoint by, independent of batchSize.
	checkpointInterval uint32

	checkpoints *checkpoint.Store
	fetcher     *fetch.Fetcher
	sched       *scheduler.Scheduler

	headHeight func() uint32
	findFork   func(ctx context.Context, loc checkpoint.Locator) (uint32, error)

	// onCommit, if set, is called after each successful checkpoint save
	// with the newly committed height, letting the caller track this
	// stream's progress for the aggregate store tip.
	onCommit func(height uint32)

	pollInterval time.Duration
}

func (l *streamLoop) run(ctx context.Context) {
	batchesMeter := metrics.NewRegisteredMeter(string(l.name)+"/batches", nil)
	errMeter := metrics.NewRegisteredMeter(string(l.name)+"/errors", nil)

	if l.toHeightSet && l.toHeight == 0 {
		log.Info("Stream range is empty, exiting without processing", "stream", l.name)
		return
	}

	loc, ok, err := l.checkpoints.Load(ctx, l.name)
	if err != nil {
		log.Error("Load checkpoint failed", "stream", l.name, "err", err)
	}
	var from uint32
	if ok {
		fork, err := l.findFork(ctx, loc)
		if err != nil {
			log.Error("Find fork failed, resuming at checkpoint tip", "stream", l.name, "err", err)
			fork = loc.TipHeight
		}
		from = fork + 1
	} else {
		from = l.fromHeight
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if l.toHeightSet && from > l.toHeight {
			log.Info("Stream reached its configured upper bound, exiting", "stream", l.name, "to_height", l.toHeight)
			return
		}

		head := l.headHeight()
		if from > head {
			time.Sleep(l.pollInterval)
			continue
		}
		to := from + l.batchSize - 1
		if to > head {
			to = head
		}
		if l.toHeightSet && to > l.toHeight {
			to = l.toHeight
		}
		if l.checkpointInterval > 0 {
			if capped := from + l.checkpointInterval - 1; capped < to {
				to = capped
			}
		}

		blocks, err := l.fetcher.FetchRange(ctx, from, to)
		if err != nil {
			errMeter.Mark(1)
			log.Error("Fetch range failed", "stream", l.name, "from", from, "to", to, "err", err)
			time.Sleep(l.pollInterval)
			continue
		}

		rows, err := l.task.Project(ctx, blocks)
		if err != nil {
			errMeter.Mark(1)
			log.Error("Projection failed", "stream", l.name, "from", from, "to", to, "err", err)
			time.Sleep(l.pollInterval)
			continue
		}

		// the loop advances its checkpoint only after the batch is durable,
		// so it waits for this batch's write without stopping the shared pool
		if err := l.sched.SubmitAndWait(ctx, l.tableName, rows); err != nil {
			errMeter.Mark(1)
			log.Error("Write batch failed", "stream", l.name, "from", from, "to", to, "err", err)
			time.Sleep(l.pollInterval)
			continue
		}

		hashByHeight := make(map[uint32]common.Hash, len(blocks))
		for _, b := range blocks {
			hashByHeight[b.Header.Height] = b.Header.Hash
		}
		newLoc := checkpoint.BuildLocator(to, func(h uint32) common.Hash {
			return hashByHeight[h]
		})
		if err := l.checkpoints.Save(ctx, l.name, newLoc); err != nil {
			errMeter.Mark(1)
			log.Error("Save checkpoint failed", "stream", l.name, "to", to, "err", err)
			time.Sleep(l.pollInterval)
			continue
		}

		batchesMeter.Mark(1)
		log.Debug("Stream batch committed", "stream", l.name, "from", from, "to", to, "rows", len(rows))
		if l.onCommit != nil {
			l.onCommit(to)
		}
		from = to + 1
	}
}
