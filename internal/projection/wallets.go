package projection

import (
	"context"
	"fmt"

	"github.com/MithrilMan/BlockExplorer/internal/chainmodel"
	"github.com/MithrilMan/BlockExplorer/internal/rules"
	"github.com/MithrilMan/BlockExplorer/internal/store"
)

// WalletBalancesTask mirrors BalancesTask but only emits changes matched by
// at least one configured wallet rule, one row per matching wallet. It also
// carries the smart-contract auxiliary projection: a transaction that
// deploys a contract and touches a matched wallet's address gets its code
// attached to the row.
type WalletBalancesTask struct {
	Resolver OutputResolver
	Rules    rules.Set
}

func (WalletBalancesTask) Table() string { return "wallets" }

func (t WalletBalancesTask) Project(ctx context.Context, blocks []chainmodel.Block) ([]store.Row, error) {
	var rows []store.Row
	for _, blk := range blocks {
		blockHashShort := store.ShortBlockHash(blk.Header.Hash.Hex())
		for txIndex, tx := range blk.Transactions {
			changeIndex := 0
			if !tx.IsCoinbase() {
				for _, in := range tx.Inputs {
					addr, value, err := t.Resolver.ResolveOutput(ctx, in.PreviousOutput)
					if err != nil {
						return nil, fmt.Errorf("wallet-balances: resolve input %s:%d: %w",
							in.PreviousOutput.Hash.Hex(), in.PreviousOutput.Index, err)
					}
					rows = append(rows, t.matchAndBuild(blk.Header.Height, blockHashShort, txIndex, changeIndex, addr, -value, tx, nil)...)
					changeIndex++
				}
			}
			for _, out := range tx.Outputs {
				if isZeroAddress(out.Address) {
					continue
				}
				rows = append(rows, t.matchAndBuild(blk.Header.Height, blockHashShort, txIndex, changeIndex, out.Address.Hex(), out.Value, tx, tx.Contract)...)
				changeIndex++
			}
		}
	}
	return rows, nil
}

func (t WalletBalancesTask) matchAndBuild(
	height uint32, blockHashShort string, txIndex, changeIndex int, address string, delta int64,
	tx *chainmodel.Tx, contract *chainmodel.ContractDeployment,
) []store.Row {
	wallets := t.Rules.Match(rules.Change{Address: address, Delta: delta, Height: height})
	if len(wallets) == 0 {
		return nil
	}
	rows := make([]store.Row, 0, len(wallets))
	for _, walletID := range wallets {
		row := &store.WalletBalanceRow{
			Partition: store.WalletBalancePartition(walletID),
			RowKeyVal: store.WalletBalanceRowKey(height, blockHashShort, txIndex, changeIndex),
			Address:   address,
			Height:    height,
			TxHash:    tx.Hash.Hex(),
			Delta:     delta,
			WalletID:  walletID,
		}
		if contract != nil && contract.ContractAddress.Hex() == address {
			row.ContractCode = contract.Code
		}
		rows = append(rows, row)
	}
	return rows
}
