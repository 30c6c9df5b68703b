package projection

import (
	"context"
	"fmt"

	"github.com/MithrilMan/BlockExplorer/internal/chainmodel"
	"github.com/MithrilMan/BlockExplorer/internal/store"
)

// OutputResolver resolves the owning address and value of a previously
// indexed transaction output, needed to turn a spend (which only
// references the output it consumes) into a signed balance delta.
type OutputResolver interface {
	ResolveOutput(ctx context.Context, out chainmodel.TxOutpoint) (address string, value int64, err error)
}

// BalancesTask projects every transaction's inputs and outputs into an
// ordered stream of per-address balance changes, keyed by
// (height, tx index, change index) so a partition scan replays an
// address's history in the order it occurred.
type BalancesTask struct {
	Resolver OutputResolver
}

func (BalancesTask) Table() string { return "balances" }

func (t BalancesTask) Project(ctx context.Context, blocks []chainmodel.Block) ([]store.Row, error) {
	var rows []store.Row
	for _, blk := range blocks {
		blockHashShort := store.ShortBlockHash(blk.Header.Hash.Hex())
		for txIndex, tx := range blk.Transactions {
			changeIndex := 0
			if !tx.IsCoinbase() {
				for _, in := range tx.Inputs {
					addr, value, err := t.Resolver.ResolveOutput(ctx, in.PreviousOutput)
					if err != nil {
						return nil, fmt.Errorf("balances: resolve input %s:%d: %w",
							in.PreviousOutput.Hash.Hex(), in.PreviousOutput.Index, err)
					}
					rows = append(rows, t.row(blk.Header.Height, blockHashShort, txIndex, changeIndex, addr, -value, tx.Hash.Hex()))
					changeIndex++
				}
			}
			for _, out := range tx.Outputs {
				if isZeroAddress(out.Address) {
					// non-standard script with no resolvable address;
					// nothing to credit.
					continue
				}
				rows = append(rows, t.row(blk.Header.Height, blockHashShort, txIndex, changeIndex, out.Address.Hex(), out.Value, tx.Hash.Hex()))
				changeIndex++
			}
		}
	}
	return rows, nil
}

func (BalancesTask) row(height uint32, blockHashShort string, txIndex, changeIndex int, address string, delta int64, txHash string) *store.BalanceChangeRow {
	return &store.BalanceChangeRow{
		Partition: store.BalancePartition(address),
		RowKeyVal: store.BalanceRowKey(height, blockHashShort, txIndex, changeIndex),
		Address:   address,
		Height:    height,
		TxHash:    txHash,
		Delta:     delta,
	}
}
