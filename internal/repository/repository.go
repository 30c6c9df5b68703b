// Package repository adapts the upstream node's JSON-RPC surface into the
// chainmodel types the rest of the indexer works with. It is the only
// package that talks to the node directly.
package repository

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"

	"github.com/MithrilMan/BlockExplorer/internal/chainmodel"
)

// Client talks to a single upstream node over JSON-RPC and retries
// transient failures with exponential backoff, mirroring the dial-once,
// call-many lifecycle around an ethclient connection.
type Client struct {
	rpc *ethclient.Client

	backoffInitial time.Duration
	backoffMax     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBackoff overrides the default retry backoff bounds.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Client) {
		c.backoffInitial = initial
		c.backoffMax = max
	}
}

// Dial connects to the node at url via ethclient.DialContext.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("repository: dial %s: %w", url, err)
	}
	c := &Client{
		rpc:            rpc,
		backoffInitial: 200 * time.Millisecond,
		backoffMax:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoffInitial
	b.MaxInterval = c.backoffMax
	b.MaxElapsedTime = 0 // retry until ctx is cancelled
	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := op()
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				// a missing height is never transient; surface it
				// immediately so the caller can decide (fetch treats it
				// as a gap) instead of retrying forever.
				return backoff.Permanent(err)
			}
			log.Warn("Node call failed, retrying", "err", err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

// BestHeight returns the upstream node's current chain height.
func (c *Client) BestHeight(ctx context.Context) (uint32, error) {
	var height uint64
	err := c.retry(ctx, func() error {
		h, err := c.rpc.BlockNumber(ctx)
		if err != nil {
			return err
		}
		height = h
		return nil
	})
	return uint32(height), err
}

// HeaderByHeight fetches the header at the given height.
func (c *Client) HeaderByHeight(ctx context.Context, height uint32) (chainmodel.Header, error) {
	var out chainmodel.Header
	err := c.retry(ctx, func() error {
		hdr, err := c.rpc.HeaderByNumber(ctx, new(big.Int).SetUint64(uint64(height)))
		if err != nil {
			return err
		}
		out = toChainHeader(hdr)
		return nil
	})
	return out, err
}

// HeaderByHash fetches the header with the given hash.
func (c *Client) HeaderByHash(ctx context.Context, hash common.Hash) (chainmodel.Header, error) {
	var out chainmodel.Header
	err := c.retry(ctx, func() error {
		hdr, err := c.rpc.HeaderByHash(ctx, hash)
		if err != nil {
			return err
		}
		out = toChainHeader(hdr)
		return nil
	})
	return out, err
}

// BlockByHeight fetches a full block, including its transactions, at the
// given height.
func (c *Client) BlockByHeight(ctx context.Context, height uint32) (chainmodel.Block, error) {
	var out chainmodel.Block
	err := c.retry(ctx, func() error {
		blk, err := c.rpc.BlockByNumber(ctx, new(big.Int).SetUint64(uint64(height)))
		if err != nil {
			return err
		}
		out = toChainBlock(blk, height)
		return nil
	})
	return out, err
}

// toChainHeader narrows the node's *types.Header down to the fields
// chainmodel.Header needs; bits/nonce carry the node's difficulty and
// proof-of-work nonce truncated to their low 32 bits, opaque to everything
// past this package.
func toChainHeader(h *types.Header) chainmodel.Header {
	return chainmodel.Header{
		Hash:       h.Hash(),
		ParentHash: h.ParentHash,
		Height:     uint32(h.Number.Uint64()),
		Time:       h.Time,
		Bits:       uint32(h.Difficulty.Uint64()),
		Nonce:      uint32(h.Nonce.Uint64()),
	}
}

// toChainBlock narrows the node's *types.Block down to chainmodel.Block,
// adapting each of its transactions with toChainTx and forcing the header
// height to the requested height.
func toChainBlock(b *types.Block, height uint32) chainmodel.Block {
	blk := chainmodel.Block{Header: toChainHeader(b.Header())}
	blk.Header.Height = height
	for _, tx := range b.Transactions() {
		blk.Transactions = append(blk.Transactions, toChainTx(tx))
	}
	return blk
}

// toChainTx adapts a node transaction into chainmodel.Tx. The upstream
// node's RPC exposes transactions in its own account-model shape; only the
// hash and contract-deployment data are carried over. Inputs and Outputs
// are left empty, and no other package fills them in, so the balance
// projections emit no rows for transactions read through this client.
func toChainTx(tx *types.Transaction) *chainmodel.Tx {
	out := &chainmodel.Tx{Hash: tx.Hash()}
	if tx.To() == nil {
		// nil recipient is the node's convention for a contract-creation
		// transaction.
		addr := crypto.CreateAddress(common.Address{}, tx.Nonce())
		out.Contract = &chainmodel.ContractDeployment{
			ContractAddress: addr,
			Code:            tx.Data(),
		}
	}
	return out
}
