package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStoreBulkUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	require.NoError(t, m.CreateTableIfAbsent(ctx, "blocks"))

	row := &BlockRow{
		Partition: BlockPartition(10),
		RowKeyVal: BlockRowKey(10),
		Height:    10,
		Hash:      "0xabc",
		RLP:       []byte{1, 2, 3},
	}
	require.NoError(t, m.BulkUpsert(ctx, "blocks", []Row{row}))

	props, err := m.Get(ctx, "blocks", row.PartitionKey(), row.RowKey())
	require.NoError(t, err)
	require.Equal(t, "0xabc", props["Hash"])
}

func TestMemStoreGetMissingReturnsErrNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	_, err := m.Get(ctx, "blocks", "p", "r")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreScanOrdersByRowKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	require.NoError(t, m.CreateTableIfAbsent(ctx, "blocks"))

	rows := []Row{
		&BlockRow{Partition: "p", RowKeyVal: BlockRowKey(3), Height: 3, Hash: "c"},
		&BlockRow{Partition: "p", RowKeyVal: BlockRowKey(1), Height: 1, Hash: "a"},
		&BlockRow{Partition: "p", RowKeyVal: BlockRowKey(2), Height: 2, Hash: "b"},
	}
	require.NoError(t, m.BulkUpsert(ctx, "blocks", rows))

	var hashes []string
	err := m.Scan(ctx, "blocks", "p", func(props map[string]any) bool {
		hashes = append(hashes, props["Hash"].(string))
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, hashes)
}

func TestWalletBalanceRowUsesCorrectedFieldName(t *testing.T) {
	row := &WalletBalanceRow{
		Partition:    "p",
		RowKeyVal:    "r",
		ContractCode: []byte{0xde, 0xad},
	}
	props := row.Properties()
	_, hasOldField := props["CShartCode"]
	require.False(t, hasOldField)
	require.Equal(t, []byte{0xde, 0xad}, props["CSharpCode"])
}

func TestContractCodeFromPropertiesReadsHistoricalField(t *testing.T) {
	code := contractCodeFromProperties(map[string]any{"CShartCode": []byte{1}})
	require.Equal(t, []byte{1}, code)

	code = contractCodeFromProperties(map[string]any{"CSharpCode": []byte{2}})
	require.Equal(t, []byte{2}, code)
}
