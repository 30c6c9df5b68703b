package projection

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/MithrilMan/BlockExplorer/internal/chainmodel"
	"github.com/MithrilMan/BlockExplorer/internal/rules"
)

func sampleBlock() chainmodel.Block {
	coinbase := &chainmodel.Tx{
		Hash:   common.HexToHash("0x01"),
		Inputs: []chainmodel.TxIn{{PreviousOutput: chainmodel.TxOutpoint{}}},
		Outputs: []chainmodel.TxOut{
			{Value: 5000, Address: common.HexToAddress("0xaa")},
		},
	}
	spend := &chainmodel.Tx{
		Hash: common.HexToHash("0x02"),
		Inputs: []chainmodel.TxIn{
			{PreviousOutput: chainmodel.TxOutpoint{Hash: common.HexToHash("0x03"), Index: 0}},
		},
		Outputs: []chainmodel.TxOut{
			{Value: 300, Address: common.HexToAddress("0xdest")},
		},
	}
	return chainmodel.Block{
		Header:       chainmodel.Header{Hash: common.HexToHash("0xblock"), Height: 10},
		Transactions: []*chainmodel.Tx{coinbase, spend},
	}
}

type fakeResolver struct{}

func (fakeResolver) ResolveOutput(_ context.Context, out chainmodel.TxOutpoint) (string, int64, error) {
	return common.HexToAddress("0xsource").Hex(), 400, nil
}

func TestBlocksTaskProjectsOneRowPerBlock(t *testing.T) {
	rows, err := BlocksTask{}.Project(context.Background(), []chainmodel.Block{sampleBlock()})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestTransactionsTaskProjectsOneRowPerTx(t *testing.T) {
	rows, err := TransactionsTask{}.Project(context.Background(), []chainmodel.Block{sampleBlock()})
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestBalancesTaskSkipsCoinbaseInputButCreditsOutput(t *testing.T) {
	task := BalancesTask{Resolver: fakeResolver{}}
	rows, err := task.Project(context.Background(), []chainmodel.Block{sampleBlock()})
	require.NoError(t, err)
	// coinbase: 1 output credit; spend: 1 input debit + 1 output credit
	require.Len(t, rows, 3)
}

func TestWalletBalancesTaskOnlyEmitsMatchedWallets(t *testing.T) {
	rule, err := rules.Compile("w1", `address == "`+common.HexToAddress("0xdest").Hex()+`"`)
	require.NoError(t, err)

	task := WalletBalancesTask{Resolver: fakeResolver{}, Rules: rules.Set{rule}}
	rows, err := task.Project(context.Background(), []chainmodel.Block{sampleBlock()})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
