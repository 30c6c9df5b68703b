package projection

import (
	"context"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/MithrilMan/BlockExplorer/internal/chainmodel"
	"github.com/MithrilMan/BlockExplorer/internal/store"
)

// TransactionsTask projects each transaction in each block into its own row.
type TransactionsTask struct{}

func (TransactionsTask) Table() string { return "transactions" }

func (TransactionsTask) Project(_ context.Context, blocks []chainmodel.Block) ([]store.Row, error) {
	var rows []store.Row
	for _, blk := range blocks {
		for _, tx := range blk.Transactions {
			payload, err := rlp.EncodeToBytes(tx)
			if err != nil {
				return nil, err
			}
			hashHex := tx.Hash.Hex()
			rows = append(rows, &store.TransactionRow{
				Partition:  store.TransactionPartition(hashHex),
				RowKeyVal:  store.TransactionRowKey(hashHex),
				BlockHash:  blk.Header.Hash.Hex(),
				Height:     blk.Header.Height,
				IsCoinbase: tx.IsCoinbase(),
				RLP:        payload,
			})
		}
	}
	return rows, nil
}
