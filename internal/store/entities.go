// Package store persists projection output into a partitioned remote table
// store. The domain type is Row: a self-describing entity that knows its own
// partition key, row key and property bag, encoded the way aztables expects
// (github.com/Azure/azure-sdk-for-go/sdk/data/aztables, the sibling of the
// azblob client the go-ethereum fork of this stack already depends on).
package store

// Row is anything that can be bulk-upserted into a partitioned table.
type Row interface {
	PartitionKey() string
	RowKey() string

	// Properties returns the entity body, excluding PartitionKey/RowKey,
	// using types aztables.EDMEntity accepts directly (string, int64,
	// float64, bool, []byte, time.Time).
	Properties() map[string]any
}

// HeaderRow is the chain table's representation of one accepted header:
// keyed by height, carrying hash and parent hash so a reader can walk the
// chain backward without touching the upstream node.
type HeaderRow struct {
	Partition  string
	RowKeyVal  string
	Height     uint32
	Hash       string
	ParentHash string
}

func (r *HeaderRow) PartitionKey() string { return r.Partition }
func (r *HeaderRow) RowKey() string       { return r.RowKeyVal }

func (r *HeaderRow) Properties() map[string]any {
	return map[string]any{
		"Height":     int64(r.Height),
		"Hash":       r.Hash,
		"ParentHash": r.ParentHash,
	}
}

// BlockRow is the table representation of a block: header plus the ordered
// list of its transaction ids, keyed by height so a range scan over a
// partition returns blocks in chain order.
type BlockRow struct {
	Partition string
	RowKeyVal string
	Height    uint32
	Hash      string
	RLP       []byte // header + tx id list, RLP-encoded
}

func (r *BlockRow) PartitionKey() string { return r.Partition }
func (r *BlockRow) RowKey() string       { return r.RowKeyVal }

func (r *BlockRow) Properties() map[string]any {
	return map[string]any{
		"Height": int64(r.Height),
		"Hash":   r.Hash,
		"RLP":    r.RLP,
	}
}

// TransactionRow is the table representation of a single transaction.
type TransactionRow struct {
	Partition   string
	RowKeyVal   string
	BlockHash   string
	Height      uint32
	IsCoinbase  bool
	RLP         []byte
}

func (r *TransactionRow) PartitionKey() string { return r.Partition }
func (r *TransactionRow) RowKey() string       { return r.RowKeyVal }

func (r *TransactionRow) Properties() map[string]any {
	return map[string]any{
		"BlockHash":  r.BlockHash,
		"Height":     int64(r.Height),
		"IsCoinbase": r.IsCoinbase,
		"RLP":        r.RLP,
	}
}

// BalanceChangeRow is one ordered entry in an address's balance-change
// stream: keyed by (height, tx index, change index) so a partition scan
// replays changes in the order they occurred.
type BalanceChangeRow struct {
	Partition string
	RowKeyVal string
	Address   string
	Height    uint32
	TxHash    string
	Delta     int64
}

func (r *BalanceChangeRow) PartitionKey() string { return r.Partition }
func (r *BalanceChangeRow) RowKey() string        { return r.RowKeyVal }

func (r *BalanceChangeRow) Properties() map[string]any {
	return map[string]any{
		"Address": r.Address,
		"Height":  int64(r.Height),
		"TxHash":  r.TxHash,
		"Delta":   r.Delta,
	}
}

// WalletBalanceRow mirrors BalanceChangeRow for addresses matched by a
// wallet rule, plus the optional smart-contract auxiliary projection. The
// historical field was misspelled CShartCode by the original importer;
// readers must still accept rows written under that name, writers always
// use the corrected CSharpCode.
type WalletBalanceRow struct {
	Partition    string
	RowKeyVal    string
	Address      string
	Height       uint32
	TxHash       string
	Delta        int64
	WalletID     string
	ContractCode []byte // nil unless this change is a contract deployment
}

func (r *WalletBalanceRow) PartitionKey() string { return r.Partition }
func (r *WalletBalanceRow) RowKey() string        { return r.RowKeyVal }

func (r *WalletBalanceRow) Properties() map[string]any {
	props := map[string]any{
		"Address":  r.Address,
		"Height":   int64(r.Height),
		"TxHash":   r.TxHash,
		"Delta":    r.Delta,
		"WalletID": r.WalletID,
	}
	if r.ContractCode != nil {
		props["CSharpCode"] = r.ContractCode
	}
	return props
}

// SmartContractRow is the table representation of one contract deployment,
// keyed by contract address so a reader can look a contract's code up
// directly without scanning the wallet or transaction streams for it.
type SmartContractRow struct {
	Partition       string
	RowKeyVal       string
	ContractAddress string
	Height          uint32
	TxHash          string
	Code            []byte
}

func (r *SmartContractRow) PartitionKey() string { return r.Partition }
func (r *SmartContractRow) RowKey() string       { return r.RowKeyVal }

func (r *SmartContractRow) Properties() map[string]any {
	return map[string]any{
		"ContractAddress": r.ContractAddress,
		"Height":          int64(r.Height),
		"TxHash":          r.TxHash,
		"Code":            r.Code,
	}
}

// contractCodeFromProperties reads the contract-code property off a
// decoded entity, preferring the corrected field name but falling back to
// the historical misspelling so rows written by the original importer
// still decode correctly.
func contractCodeFromProperties(props map[string]any) []byte {
	if v, ok := props["CSharpCode"]; ok {
		if b, ok := v.([]byte); ok {
			return b
		}
	}
	if v, ok := props["CShartCode"]; ok {
		if b, ok := v.([]byte); ok {
			return b
		}
	}
	return nil
}
