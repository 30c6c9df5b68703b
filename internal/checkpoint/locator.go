package checkpoint

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Locator is an exponentially thinning list of block hashes from a tip
// backward, used to find the most recent common ancestor with another
// chain. Entries[0] is the tip hash whenever that hash is known; heights
// whose hash is unknown (the zero hash) are left out.
type Locator struct {
	TipHeight uint32
	Entries   []common.Hash
}

// BuildLocator constructs the standard locator for a chain of the given
// height, given a function that resolves a height to its canonical hash.
// Step doubles after the first 10 entries, matching the well known
// block-locator construction used by UTXO chains.
func BuildLocator(tipHeight uint32, hashAt func(height uint32) common.Hash) Locator {
	loc := Locator{TipHeight: tipHeight}
	step := uint32(1)
	height := tipHeight
	for {
		hash := hashAt(height)
		if hash != (common.Hash{}) {
			loc.Entries = append(loc.Entries, hash)
		}
		if height == 0 {
			break
		}
		if len(loc.Entries) >= 10 {
			step *= 2
		}
		if height < step {
			height = 0
		} else {
			height -= step
		}
	}
	return loc
}

// Genesis returns the synthetic locator used when a stream starts at a
// configured from_height with no prior checkpoint: a locator with that tip
// height and no entries, so find_fork always falls back to genesis until
// the real hash is learned from the chain view.
func Genesis(fromHeight uint32) Locator {
	return Locator{TipHeight: fromHeight}
}

// rlpLocator is the wire form encoded/decoded for persistence; Entries is
// RLP-friendly as-is ([]common.Hash), kept as a separate type only so the
// round-trip law (serialize -> deserialize -> serialize is a fixed point)
// is obviously satisfied by construction.
type rlpLocator struct {
	TipHeight uint32
	Entries   []common.Hash
}

// Serialize encodes the locator for storage.
func Serialize(l Locator) ([]byte, error) {
	return rlp.EncodeToBytes(rlpLocator{TipHeight: l.TipHeight, Entries: l.Entries})
}

// Deserialize decodes a locator previously produced by Serialize.
func Deserialize(data []byte) (Locator, error) {
	var w rlpLocator
	if err := rlp.DecodeBytes(data, &w); err != nil {
		return Locator{}, err
	}
	return Locator{TipHeight: w.TipHeight, Entries: w.Entries}, nil
}
