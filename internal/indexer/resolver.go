package indexer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/MithrilMan/BlockExplorer/internal/chainmodel"
	"github.com/MithrilMan/BlockExplorer/internal/store"
)

// storeResolver implements projection.OutputResolver by looking the
// spending transaction's previous output up in the transactions table.
// The balances and wallet-balances streams run independently of the
// transactions stream, so a lookup for a transaction that stream has not
// written yet fails; the stream loop then retries the whole batch after
// its poll interval.
type storeResolver struct {
	table             store.TableStore
	transactionsTable string
}

func (r *storeResolver) ResolveOutput(ctx context.Context, out chainmodel.TxOutpoint) (string, int64, error) {
	hashHex := out.Hash.Hex()
	props, err := r.table.Get(ctx, r.transactionsTable, store.TransactionPartition(hashHex), store.TransactionRowKey(hashHex))
	if err != nil {
		return "", 0, fmt.Errorf("resolve output: lookup tx %s: %w", hashHex, err)
	}
	raw, ok := props["RLP"].([]byte)
	if !ok {
		return "", 0, fmt.Errorf("resolve output: tx %s: malformed row", hashHex)
	}
	var tx chainmodel.Tx
	if err := rlp.DecodeBytes(raw, &tx); err != nil {
		return "", 0, fmt.Errorf("resolve output: decode tx %s: %w", hashHex, err)
	}
	if int(out.Index) >= len(tx.Outputs) {
		return "", 0, fmt.Errorf("resolve output: tx %s has no output %d", hashHex, out.Index)
	}
	o := tx.Outputs[out.Index]
	return o.Address.Hex(), o.Value, nil
}
