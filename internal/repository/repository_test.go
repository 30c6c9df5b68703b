package repository

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestToChainHeaderCopiesFields(t *testing.T) {
	h := &types.Header{
		ParentHash: common.HexToHash("0xaa"),
		Number:     big.NewInt(7),
		Time:       1234,
		Difficulty: big.NewInt(5000),
		Nonce:      types.EncodeNonce(9),
	}
	out := toChainHeader(h)
	require.Equal(t, h.Hash(), out.Hash)
	require.Equal(t, common.HexToHash("0xaa"), out.ParentHash)
	require.Equal(t, uint32(7), out.Height)
	require.Equal(t, uint64(1234), out.Time)
	require.Equal(t, uint32(5000), out.Bits)
	require.Equal(t, uint32(9), out.Nonce)
}

func TestToChainTxMarksContractDeployment(t *testing.T) {
	tx := types.NewContractCreation(0, big.NewInt(0), 100000, big.NewInt(1), []byte{0xde, 0xad, 0xbe, 0xef})
	out := toChainTx(tx)
	require.NotNil(t, out.Contract)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, out.Contract.Code)
}

func TestToChainTxLeavesContractNilForTransfer(t *testing.T) {
	to := common.HexToAddress("0xbb")
	tx := types.NewTransaction(0, to, big.NewInt(0), 21000, big.NewInt(1), nil)
	out := toChainTx(tx)
	require.Nil(t, out.Contract)
}
