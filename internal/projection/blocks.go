package projection

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/MithrilMan/BlockExplorer/internal/chainmodel"
	"github.com/MithrilMan/BlockExplorer/internal/store"
)

// BlocksTask projects each block into a single row: header plus ordered
// transaction id list, keyed by height.
type BlocksTask struct{}

func (BlocksTask) Table() string { return "blocks" }

func (BlocksTask) Project(_ context.Context, blocks []chainmodel.Block) ([]store.Row, error) {
	rows := make([]store.Row, 0, len(blocks))
	for _, blk := range blocks {
		payload, err := rlp.EncodeToBytes(struct {
			Header chainmodel.Header
			TxIDs  []common.Hash
		}{Header: blk.Header, TxIDs: blk.TxIDs()})
		if err != nil {
			return nil, err
		}
		rows = append(rows, &store.BlockRow{
			Partition: store.BlockPartition(blk.Header.Height),
			RowKeyVal: store.BlockRowKey(blk.Header.Height),
			Height:    blk.Header.Height,
			Hash:      blk.Header.Hash.Hex(),
			RLP:       payload,
		})
	}
	return rows, nil
}
