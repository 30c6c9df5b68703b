// Package chainmodel defines the chain primitives shared by every projection
// stream: headers, blocks, transactions and their inputs/outputs. The core
// never writes these to the host node's block store — it only reads them
// through internal/repository and internal/chain.
package chainmodel

import (
	"github.com/ethereum/go-ethereum/common"
)

// Header is a chained block header: enough to walk the best chain and to
// build block locators, without any of the execution-layer fields (state
// root, receipts root, bloom, gas) an EVM-derived header would carry.
type Header struct {
	Hash       common.Hash
	ParentHash common.Hash
	Height     uint32
	Time       uint64
	Bits       uint32 // compact difficulty target, opaque to the indexer
	Nonce      uint32
}

// TxOutpoint references one output of a previous transaction.
type TxOutpoint struct {
	Hash  common.Hash
	Index uint32
}

// TxIn is one input of a transaction.
type TxIn struct {
	PreviousOutput TxOutpoint
	ScriptSig      []byte
	Witness        [][]byte
	Sequence       uint32
}

// TxOut is one output of a transaction. Address is the common.Address
// derived from ScriptPubKey when the script resolves to a standard
// pay-to-address pattern; it is the zero address for non-standard scripts,
// in which case only ScriptPubKey identifies the output's owner.
type TxOut struct {
	Value        int64
	ScriptPubKey []byte
	Address      common.Address
}

// ContractDeployment is populated on transactions that deploy smart-contract
// bytecode; nil otherwise. It feeds the optional smart-contract projection.
type ContractDeployment struct {
	ContractAddress common.Address
	Code            []byte
}

// Tx is one transaction as it appears in a block.
type Tx struct {
	Hash     common.Hash
	Version  int32
	LockTime uint32
	Inputs   []TxIn
	Outputs  []TxOut
	Contract *ContractDeployment // nil unless this tx deploys a contract
}

// IsCoinbase reports whether tx is a block-reward transaction: exactly one
// input referencing the zero hash.
func (tx *Tx) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PreviousOutput.Hash == (common.Hash{})
}

// Block is a full block: header plus its ordered transaction list.
type Block struct {
	Header       Header
	Transactions []*Tx
}

// TxIDs returns the ordered list of transaction hashes, the form persisted
// on the block row alongside the header.
func (b *Block) TxIDs() []common.Hash {
	ids := make([]common.Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		ids[i] = tx.Hash
	}
	return ids
}

// Tx deliberately carries no custom RLP methods: its fields are all
// plain RLP-encodable types, so the default reflection-based codec (the one
// `rlp.EncodeToBytes` falls back to for any type without an EncodeRLP
// method) handles it directly.
