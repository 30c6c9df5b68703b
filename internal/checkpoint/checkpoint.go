// Package checkpoint implements the per-stream checkpoint store: each
// projection stream (blocks, transactions, balances, wallet-balances,
// smartcontracts) persists its own locator after every successfully
// committed batch, and resumes from it on restart. Checkpoints are
// crash-safe by construction:
// a batch is only checkpointed after its rows have been durably written, so
// a crash mid-batch simply replays that batch (idempotent by row-key
// overwrite) rather than losing or double-counting it.
package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/MithrilMan/BlockExplorer/internal/store"
)

// Stream names the projection streams that each keep an independent
// checkpoint while advancing over the same underlying chain.
type Stream string

const (
	StreamBlocks         Stream = "blocks"
	StreamTransactions   Stream = "transactions"
	StreamBalances       Stream = "balances"
	StreamWalletBalances Stream = "wallet-balances"
	StreamSmartContracts Stream = "smartcontracts"
)

// Store persists and retrieves one Locator per Stream, under a named
// checkpoint set so more than one indexing run can share a checkpoints
// table without clobbering each other's progress.
type Store struct {
	table         store.TableStore
	tableName     string
	checkpointSet string
}

// New builds a checkpoint Store over the given table store, creating the
// checkpoint table (tableName, already namespaced by the caller) if it does
// not already exist. checkpointSet distinguishes this store's rows from any
// other indexing run sharing the same table.
func New(ctx context.Context, table store.TableStore, tableName, checkpointSet string) (*Store, error) {
	if err := table.CreateTableIfAbsent(ctx, tableName); err != nil {
		return nil, fmt.Errorf("checkpoint: create table: %w", err)
	}
	return &Store{table: table, tableName: tableName, checkpointSet: checkpointSet}, nil
}

// Load returns the persisted locator for stream, or ok=false if the stream
// has never been checkpointed (a fresh start at its configured from_height).
func (s *Store) Load(ctx context.Context, stream Stream) (loc Locator, ok bool, err error) {
	props, err := s.table.Get(ctx, s.tableName, store.CheckpointPartition(), store.CheckpointRowKey(s.checkpointSet, string(stream)))
	if err != nil {
		if err == store.ErrNotFound {
			return Locator{}, false, nil
		}
		return Locator{}, false, err
	}
	if set, _ := props["Set"].(bool); !set {
		return Locator{}, false, nil
	}
	raw, ok := props["Locator"].([]byte)
	if !ok {
		return Locator{}, false, fmt.Errorf("checkpoint: stream %s: malformed locator property", stream)
	}
	loc, err = Deserialize(raw)
	if err != nil {
		return Locator{}, false, fmt.Errorf("checkpoint: stream %s: %w", stream, err)
	}
	return loc, true, nil
}

// Save persists loc as stream's checkpoint. Callers must only call this
// after the batch it describes has been durably committed to the table
// store, never before.
func (s *Store) Save(ctx context.Context, stream Stream, loc Locator) error {
	data, err := Serialize(loc)
	if err != nil {
		return fmt.Errorf("checkpoint: stream %s: %w", stream, err)
	}
	row := &checkpointRow{stream: string(stream), set: true, checkpointSet: s.checkpointSet, locator: data}
	if err := s.table.BulkUpsert(ctx, s.tableName, []store.Row{row}); err != nil {
		return fmt.Errorf("checkpoint: stream %s: save: %w", stream, err)
	}
	log.Debug("Checkpoint saved", "stream", stream, "height", loc.TipHeight)
	return nil
}

// Reset clears stream's checkpoint so the next indexing pass treats it as
// never checkpointed and restarts from its configured from_height. Used by
// the ignore_checkpoints maintenance path; the row itself is not deleted,
// since TableStore has no delete-row primitive, only upsert.
func (s *Store) Reset(ctx context.Context, stream Stream) error {
	row := &checkpointRow{stream: string(stream), set: false, checkpointSet: s.checkpointSet}
	return s.table.BulkUpsert(ctx, s.tableName, []store.Row{row})
}

// StoreTip computes the conservative store tip across all streams: the
// minimum of their checkpointed heights. This is the height up to which
// it is safe to prune cached chain data, since no stream has advanced
// past it yet.
func StoreTip(heights map[Stream]uint32) uint32 {
	var min uint32
	first := true
	for _, h := range heights {
		if first || h < min {
			min = h
			first = false
		}
	}
	return min
}

type checkpointRow struct {
	stream        string
	checkpointSet string
	locator       []byte
	set           bool
}

func (r *checkpointRow) PartitionKey() string { return store.CheckpointPartition() }
func (r *checkpointRow) RowKey() string       { return store.CheckpointRowKey(r.checkpointSet, r.stream) }
func (r *checkpointRow) Properties() map[string]any {
	return map[string]any{"Locator": r.locator, "Set": r.set, "SavedAt": time.Now().UTC()}
}
