package indexer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/MithrilMan/BlockExplorer/internal/chain"
	"github.com/MithrilMan/BlockExplorer/internal/store"
)

// chainTipPartition/chainTipRowKey address the bookkeeping row that records
// how far the chain table's header projection has advanced, distinct from
// the header rows themselves so a Scan over a height partition never sees it.
const (
	chainTipPartition = "meta"
	chainTipRowKey    = "tip"
)

// chainTipRow is the chain table's own resume marker: on restart the loop
// reads this back instead of re-walking the whole header chain from genesis.
type chainTipRow struct {
	height uint32
}

func (r *chainTipRow) PartitionKey() string { return chainTipPartition }
func (r *chainTipRow) RowKey() string       { return chainTipRowKey }
func (r *chainTipRow) Properties() map[string]any {
	return map[string]any{"Height": int64(r.height)}
}

// chainSyncLoop periodically refreshes the cached chain view's head so
// every stream loop's headHeight() call is cheap and doesn't each hit the
// node independently, and projects the local header chain into a dedicated
// table: walking from the stored chain-table tip forward, appending header
// rows until caught up. It runs independent of the stream checkpoints.
type chainSyncLoop struct {
	view          *chain.View
	table         store.TableStore
	tableName     string
	genesisHeight uint32
	pollInterval  time.Duration
	head          atomic.Uint32
}

func newChainSyncLoop(view *chain.View, table store.TableStore, tableName string, genesisHeight uint32, pollInterval time.Duration) *chainSyncLoop {
	l := &chainSyncLoop{
		view:          view,
		table:         table,
		tableName:     tableName,
		genesisHeight: genesisHeight,
		pollInterval:  pollInterval,
	}
	l.head.Store(view.CurrentHeader().Height)
	return l
}

func (l *chainSyncLoop) run(ctx context.Context) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			height, err := l.view.Sync(ctx)
			if err != nil {
				log.Error("Chain sync failed", "err", err)
				continue
			}
			l.head.Store(height)
			if err := l.projectHeaders(ctx, height); err != nil {
				log.Error("Chain table projection failed", "err", err)
			}
		}
	}
}

// projectHeaders walks the header chain forward from the stored chain-table
// tip (or genesisHeight, if the table has never been projected) and writes
// one HeaderRow per height up to and including head, plus an updated tip
// marker, in a single bulk upsert.
func (l *chainSyncLoop) projectHeaders(ctx context.Context, head uint32) error {
	tip, found, err := l.loadTip(ctx)
	if err != nil {
		return err
	}
	from := l.genesisHeight
	if found {
		from = tip + 1
	}
	if from > head {
		return nil
	}

	rows := make([]store.Row, 0, head-from+2)
	for height := from; height <= head; height++ {
		hdr, err := l.view.HeaderByHeight(ctx, height)
		if err != nil {
			return err
		}
		rows = append(rows, &store.HeaderRow{
			Partition:  store.ChainPartition(height),
			RowKeyVal:  store.ChainRowKey(height),
			Height:     height,
			Hash:       hdr.Hash.Hex(),
			ParentHash: hdr.ParentHash.Hex(),
		})
	}
	rows = append(rows, &chainTipRow{height: head})

	if err := l.table.BulkUpsert(ctx, l.tableName, rows); err != nil {
		return err
	}
	log.Debug("Chain table projection advanced", "from", from, "to", head)
	return nil
}

func (l *chainSyncLoop) loadTip(ctx context.Context) (height uint32, found bool, err error) {
	props, err := l.table.Get(ctx, l.tableName, chainTipPartition, chainTipRowKey)
	if err != nil {
		if err == store.ErrNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	h, _ := props["Height"].(int64)
	return uint32(h), true, nil
}

func (l *chainSyncLoop) headHeight() uint32 {
	return l.head.Load()
}
