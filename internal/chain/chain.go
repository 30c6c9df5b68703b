// Package chain maintains a local, cached view of the canonical header
// chain exposed by the upstream node: enough to build block locators,
// detect forks, and walk ancestors without round-tripping to the node for
// every lookup. It is deliberately not a full consensus client — header
// validity is assumed, since the upstream node has already done that work.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/MithrilMan/BlockExplorer/internal/chainmodel"
	"github.com/MithrilMan/BlockExplorer/internal/checkpoint"
)

const (
	headerCacheLimit = 4096
	heightCacheLimit = 4096
)

// ErrNoGenesis is returned when the configured genesis height has no
// corresponding header on the upstream node.
var ErrNoGenesis = errors.New("chain: genesis header not found")

var headHeightGauge = metrics.NewRegisteredGauge("chain/head/height", nil)

// NodeClient is the subset of the upstream node's interface the chain view
// needs to resolve headers it doesn't already have cached. Implemented by
// internal/repository against a live node, and by a fake in tests.
type NodeClient interface {
	HeaderByHeight(ctx context.Context, height uint32) (chainmodel.Header, error)
	HeaderByHash(ctx context.Context, hash common.Hash) (chainmodel.Header, error)
	BestHeight(ctx context.Context) (uint32, error)
}

// View is a cached, read-through projection of the upstream node's header
// chain.
type View struct {
	node   NodeClient
	genesisHeight uint32

	currentHeader atomic.Pointer[chainmodel.Header]

	headerCache *lru.Cache[common.Hash, chainmodel.Header]
	heightCache *lru.Cache[uint32, common.Hash]
}

// New builds a View rooted at genesisHeight, fetching the genesis header
// from node to seed the cache.
func New(ctx context.Context, node NodeClient, genesisHeight uint32) (*View, error) {
	v := &View{
		node:          node,
		genesisHeight: genesisHeight,
		headerCache:   lru.NewCache[common.Hash, chainmodel.Header](headerCacheLimit),
		heightCache:   lru.NewCache[uint32, common.Hash](heightCacheLimit),
	}
	genesis, err := node.HeaderByHeight(ctx, genesisHeight)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGenesis, err)
	}
	v.cache(genesis)
	v.currentHeader.Store(&genesis)

	best, err := v.refreshHead(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("Chain view initialized", "genesis", genesisHeight, "head", best)
	return v, nil
}

func (v *View) cache(h chainmodel.Header) {
	v.headerCache.Add(h.Hash, h)
	v.heightCache.Add(h.Height, h.Hash)
}

// refreshHead advances the cached current header to the upstream node's
// best height, walking forward one header at a time so every intermediate
// header is cached too.
func (v *View) refreshHead(ctx context.Context) (uint32, error) {
	best, err := v.node.BestHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: best height: %w", err)
	}
	current := v.CurrentHeader()
	for current.Height < best {
		next, err := v.node.HeaderByHeight(ctx, current.Height+1)
		if err != nil {
			return 0, fmt.Errorf("chain: header at %d: %w", current.Height+1, err)
		}
		v.cache(next)
		v.currentHeader.Store(&next)
		current = next
	}
	headHeightGauge.Update(int64(current.Height))
	return current.Height, nil
}

// Sync advances the view to the upstream node's current best header,
// returning the new head height.
func (v *View) Sync(ctx context.Context) (uint32, error) {
	return v.refreshHead(ctx)
}

// CurrentHeader returns the most recently observed head header.
func (v *View) CurrentHeader() chainmodel.Header {
	return *v.currentHeader.Load()
}

// HeaderByHash returns the header for hash, consulting the cache before
// falling back to the node.
func (v *View) HeaderByHash(ctx context.Context, hash common.Hash) (chainmodel.Header, error) {
	if h, ok := v.headerCache.Get(hash); ok {
		return h, nil
	}
	h, err := v.node.HeaderByHash(ctx, hash)
	if err != nil {
		return chainmodel.Header{}, err
	}
	v.cache(h)
	return h, nil
}

// HeaderByHeight returns the canonical header at height, consulting the
// cache before falling back to the node.
func (v *View) HeaderByHeight(ctx context.Context, height uint32) (chainmodel.Header, error) {
	if hash, ok := v.heightCache.Get(height); ok {
		if h, ok := v.headerCache.Get(hash); ok {
			return h, nil
		}
	}
	h, err := v.node.HeaderByHeight(ctx, height)
	if err != nil {
		return chainmodel.Header{}, err
	}
	v.cache(h)
	return h, nil
}

// GetAncestor walks back ancestor generations from (hash, height),
// returning the hash and height it lands on.
func (v *View) GetAncestor(ctx context.Context, hash common.Hash, height, ancestor uint32) (common.Hash, uint32, error) {
	if ancestor > height {
		return common.Hash{}, 0, fmt.Errorf("chain: ancestor %d exceeds height %d", ancestor, height)
	}
	h := hash
	for i := uint32(0); i < ancestor; i++ {
		hdr, err := v.HeaderByHash(ctx, h)
		if err != nil {
			return common.Hash{}, 0, err
		}
		h = hdr.ParentHash
	}
	return h, height - ancestor, nil
}

// FindFork walks a locator against the cached view and returns the height
// of the most recent entry that is still on the node's canonical chain. If
// none of the locator's entries are canonical, it returns the genesis
// height: the conservative fallback that forces a full re-derivation
// rather than risking a missed reorg.
func (v *View) FindFork(ctx context.Context, loc checkpoint.Locator) (uint32, error) {
	for _, hash := range loc.Entries {
		hdr, err := v.HeaderByHash(ctx, hash)
		if err != nil {
			continue // not known to the node under this hash; keep walking back
		}
		canon, err := v.HeaderByHeight(ctx, hdr.Height)
		if err != nil {
			continue
		}
		if canon.Hash == hdr.Hash {
			return hdr.Height, nil
		}
	}
	return v.genesisHeight, nil
}
