package store

import (
	"fmt"
	"hash/fnv"
)

// bucketCount bounds how many partitions a single logical stream is spread
// across, keeping any one partition's row count within what a single
// partition server can serve comfortably.
const bucketCount = 64

// TableName prefixes base with the configured storage namespace, so one
// storage account can host more than one independent deployment's tables
// ({ns}blocks, {ns}chain, ...). An empty namespace leaves base unchanged.
func TableName(namespace, base string) string {
	return namespace + base
}

// ChainPartition buckets chain-table header rows by height, the same
// bucketing BlockPartition uses, so a growing chain spreads across
// partitions instead of hotspotting one.
func ChainPartition(height uint32) string {
	return fmt.Sprintf("chain-%02d", (height/10000)%bucketCount)
}

// ChainRowKey zero-pads height so lexicographic row-key order matches
// numeric height order within a partition, the chain table's required
// persisted layout (one row per accepted header, keyed by height).
func ChainRowKey(height uint32) string {
	return fmt.Sprintf("%020d", height)
}

// BlockPartition buckets block rows by height so writes spread across
// partitions as the chain grows, while a single partition still holds a
// contiguous height range for efficient ranged reads.
func BlockPartition(height uint32) string {
	return fmt.Sprintf("blocks-%02d", (height/10000)%bucketCount)
}

// BlockRowKey zero-pads height to a fixed width so lexicographic row-key
// order matches numeric height order within a partition.
func BlockRowKey(height uint32) string {
	return fmt.Sprintf("%020d", height)
}

// TransactionPartition buckets transaction rows by an FNV-1a hash of the
// tx hash string, distributing writes independently of block height so a single
// large block doesn't hotspot one partition.
func TransactionPartition(txHashHex string) string {
	return fmt.Sprintf("txs-%02d", bucketOf(txHashHex))
}

// TransactionRowKey is the row key for a transaction row: the hash itself,
// since transactions are looked up by hash, never by range.
func TransactionRowKey(txHashHex string) string {
	return txHashHex
}

// BalancePartition buckets an address's balance-change stream by the
// address itself, so every change for a given address lands in the same
// partition and a partition scan replays its full history.
func BalancePartition(address string) string {
	return fmt.Sprintf("balances-%s", address)
}

// ShortBlockHash truncates a block hash to the prefix used in balance row
// keys: enough to disambiguate same-height rows across a reorg without
// carrying the full 32-byte hash into every row key.
func ShortBlockHash(hashHex string) string {
	const shortLen = 10 // "0x" + 8 hex digits
	if len(hashHex) > shortLen {
		return hashHex[:shortLen]
	}
	return hashHex
}

// BalanceRowKey orders an address's balance changes by (height,
// block-hash-short, tx index, change index), all zero-padded or fixed
// width so lexicographic order matches chronological order.
func BalanceRowKey(height uint32, blockHashShort string, txIndex, changeIndex int) string {
	return fmt.Sprintf("%020d-%s-%010d-%010d", height, blockHashShort, txIndex, changeIndex)
}

// WalletBalancePartition is the wallet-rule id alone: every row matched by
// a given rule lands in that rule's partition regardless of which address
// it touched, so a partition scan replays one wallet's full history.
func WalletBalancePartition(walletID string) string {
	return walletID
}

// WalletBalanceRowKey mirrors BalanceRowKey for the wallet-matched stream.
func WalletBalanceRowKey(height uint32, blockHashShort string, txIndex, changeIndex int) string {
	return fmt.Sprintf("%020d-%s-%010d-%010d", height, blockHashShort, txIndex, changeIndex)
}

// SmartContractPartition buckets deployed-contract rows by an FNV-1a hash
// of the contract address string, spreading writes the same way TransactionPartition
// does for transactions.
func SmartContractPartition(contractAddressHex string) string {
	return fmt.Sprintf("contracts-%02d", bucketOf(contractAddressHex))
}

// SmartContractRowKey is the row key for a deployed contract: the address
// itself, since contracts are looked up by address, never by range.
func SmartContractRowKey(contractAddressHex string) string {
	return contractAddressHex
}

// CheckpointPartition is the single fixed partition holding one row per
// projection stream's checkpoint.
func CheckpointPartition() string {
	return "checkpoints"
}

// CheckpointRowKey is the row key for a given stream's checkpoint row,
// namespaced by checkpoint set so more than one indexing run can share a
// checkpoints table without clobbering each other's progress.
func CheckpointRowKey(checkpointSet, streamName string) string {
	return checkpointSet + "/" + streamName
}

func bucketOf(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % bucketCount
}
