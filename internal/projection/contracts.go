package projection

import (
	"context"

	"github.com/MithrilMan/BlockExplorer/internal/chainmodel"
	"github.com/MithrilMan/BlockExplorer/internal/store"
)

// SmartContractsTask projects every contract-creation transaction into the
// smart contracts table, independent of whether any configured wallet rule
// matches the deploying or deployed address.
type SmartContractsTask struct{}

func (SmartContractsTask) Table() string { return "smartcontracts" }

func (SmartContractsTask) Project(ctx context.Context, blocks []chainmodel.Block) ([]store.Row, error) {
	var rows []store.Row
	for _, blk := range blocks {
		for _, tx := range blk.Transactions {
			if tx.Contract == nil {
				continue
			}
			addrHex := tx.Contract.ContractAddress.Hex()
			rows = append(rows, &store.SmartContractRow{
				Partition:       store.SmartContractPartition(addrHex),
				RowKeyVal:       store.SmartContractRowKey(addrHex),
				ContractAddress: addrHex,
				Height:          blk.Header.Height,
				TxHash:          tx.Hash.Hex(),
				Code:            tx.Contract.Code,
			})
		}
	}
	return rows, nil
}
