// Package fetch retrieves a contiguous run of blocks from the upstream
// node with bounded concurrency, reassembling them back into height order
// even though individual fetches complete out of order.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/log"

	"github.com/MithrilMan/BlockExplorer/internal/chainmodel"
)

// BlockSource is the upstream dependency fetched blocks are pulled from.
type BlockSource interface {
	BlockByHeight(ctx context.Context, height uint32) (chainmodel.Block, error)
}

// Fetcher pulls ranges of blocks from a BlockSource using a bounded pool
// of concurrent workers, the same ordered-reassembly-over-concurrent-fetch
// shape used to fill the fetch side of a checkpointed streaming pipeline.
type Fetcher struct {
	source  BlockSource
	workers int
}

// New builds a Fetcher with the given worker concurrency.
func New(source BlockSource, workers int) *Fetcher {
	if workers < 1 {
		workers = 1
	}
	return &Fetcher{source: source, workers: workers}
}

type job struct {
	height uint32
}

type result struct {
	height uint32
	block  chainmodel.Block
	err    error
}

// FetchRange fetches every block in [from, to] (inclusive), returning them
// in ascending height order. Concurrency is bounded to f.workers. A height
// the upstream node reports as not found is a gap: it is logged and
// skipped rather than failing the batch, since a permanently-missing
// height would otherwise wedge the stream forever. Any other error aborts
// the whole range and is returned once all in-flight fetches have drained.
func (f *Fetcher) FetchRange(ctx context.Context, from, to uint32) ([]chainmodel.Block, error) {
	if to < from {
		return nil, nil
	}
	count := int(to-from) + 1

	jobs := make(chan job, count)
	results := make(chan result, count)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				blk, err := f.source.BlockByHeight(ctx, j.height)
				select {
				case results <- result{height: j.height, block: blk, err: err}:
				case <-ctx.Done():
					return
				}
				// a gap at one height doesn't stop this worker from
				// fetching the rest of the batch; any other error does,
				// since the shared ctx is cancelled right after it.
				if err != nil && !errors.Is(err, ethereum.NotFound) {
					return
				}
			}
		}()
	}
	for h := from; h <= to; h++ {
		jobs <- job{height: h}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	byHeight := make(map[uint32]chainmodel.Block, count)
	gaps := make(map[uint32]struct{})
	var firstErr error
	for r := range results {
		if r.err != nil {
			if errors.Is(r.err, ethereum.NotFound) {
				gaps[r.height] = struct{}{}
				continue
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch: block %d: %w", r.height, r.err)
				cancel()
			}
			continue
		}
		byHeight[r.height] = r.block
	}
	if firstErr != nil {
		return nil, firstErr
	}

	blocks := make([]chainmodel.Block, 0, count)
	for h := from; h <= to; h++ {
		if _, skipped := gaps[h]; skipped {
			log.Warn("Skipping unresolvable block height, will not be retried this batch", "height", h)
			continue
		}
		blk, ok := byHeight[h]
		if !ok {
			return nil, fmt.Errorf("fetch: missing block %d in fetched range", h)
		}
		blocks = append(blocks, blk)
	}
	log.Debug("Fetched block range", "from", from, "to", to, "count", len(blocks), "gaps", len(gaps))
	return blocks, nil
}
