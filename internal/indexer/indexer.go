// Package indexer wires the chain view, fetcher, projection tasks and
// write scheduler into the checkpointed projection streams and runs them
// to convergence with the chain tip, following a conventional Start()/Stop()
// service lifecycle.
package indexer

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/MithrilMan/BlockExplorer/internal/chain"
	"github.com/MithrilMan/BlockExplorer/internal/checkpoint"
	"github.com/MithrilMan/BlockExplorer/internal/config"
	"github.com/MithrilMan/BlockExplorer/internal/fetch"
	"github.com/MithrilMan/BlockExplorer/internal/projection"
	"github.com/MithrilMan/BlockExplorer/internal/repository"
	"github.com/MithrilMan/BlockExplorer/internal/rules"
	"github.com/MithrilMan/BlockExplorer/internal/scheduler"
	"github.com/MithrilMan/BlockExplorer/internal/store"
)

// Indexer is the top-level service: dial the node, build the chain view,
// the projection stream loops and the chain-sync loop, then run them until
// Stop.
type Indexer struct {
	cfg config.Config

	repo        *repository.Client
	chainView   *chain.View
	checkpoints *checkpoint.Store
	table       store.TableStore
	sched       *scheduler.Scheduler
	fetcher     *fetch.Fetcher

	chainSync *chainSyncLoop
	streams   []*streamLoop

	heightsMu     sync.Mutex
	streamHeights map[checkpoint.Stream]uint32

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Indexer from cfg and table, dialing the upstream node and
// priming the chain view at cfg.GenesisHeight.
func New(ctx context.Context, cfg config.Config, table store.TableStore) (*Indexer, error) {
	repo, err := repository.Dial(ctx, cfg.NodeRPCURL)
	if err != nil {
		return nil, fmt.Errorf("indexer: %w", err)
	}

	view, err := chain.New(ctx, repo, cfg.GenesisHeight)
	if err != nil {
		return nil, fmt.Errorf("indexer: %w", err)
	}

	ns := cfg.StorageNamespace
	checkpointsTable := store.TableName(ns, "checkpoints")
	chainTable := store.TableName(ns, "chain")
	transactionsTable := store.TableName(ns, "transactions")

	checkpoints, err := checkpoint.New(ctx, table, checkpointsTable, cfg.CheckpointSetName)
	if err != nil {
		return nil, fmt.Errorf("indexer: %w", err)
	}

	for _, name := range []string{
		store.TableName(ns, "blocks"), transactionsTable, store.TableName(ns, "balances"),
		store.TableName(ns, "wallets"), chainTable, store.TableName(ns, "smartcontracts"),
	} {
		if err := table.CreateTableIfAbsent(ctx, name); err != nil {
			return nil, fmt.Errorf("indexer: create table %s: %w", name, err)
		}
	}

	walletRules, err := compileWalletRules(cfg.WalletRules)
	if err != nil {
		return nil, fmt.Errorf("indexer: %w", err)
	}

	resolver := &storeResolver{table: table, transactionsTable: transactionsTable}
	sched := scheduler.New(table, cfg.Scheduler.ReadyWorkers, cfg.Scheduler.QueueCap)
	fetcher := fetch.New(repo, cfg.FetchWorkers)

	idx := &Indexer{
		cfg:           cfg,
		repo:          repo,
		chainView:     view,
		checkpoints:   checkpoints,
		table:         table,
		sched:         sched,
		fetcher:       fetcher,
		chainSync:     newChainSyncLoop(view, table, chainTable, cfg.GenesisHeight, cfg.PollInterval),
		streamHeights: make(map[checkpoint.Stream]uint32),
	}

	idx.streams = []*streamLoop{
		idx.buildStream(checkpoint.StreamBlocks, projection.BlocksTask{}, store.TableName(ns, "blocks"), cfg.Blocks),
		idx.buildStream(checkpoint.StreamTransactions, projection.TransactionsTask{}, transactionsTable, cfg.Transactions),
		idx.buildStream(checkpoint.StreamBalances, projection.BalancesTask{Resolver: resolver}, store.TableName(ns, "balances"), cfg.Balances),
		idx.buildStream(checkpoint.StreamWalletBalances, projection.WalletBalancesTask{Resolver: resolver, Rules: walletRules}, store.TableName(ns, "wallets"), cfg.WalletBalances),
		idx.buildStream(checkpoint.StreamSmartContracts, projection.SmartContractsTask{}, store.TableName(ns, "smartcontracts"), cfg.SmartContracts),
	}

	if cfg.IgnoreCheckpoints {
		for _, s := range idx.streams {
			if err := checkpoints.Reset(ctx, s.name); err != nil {
				return nil, fmt.Errorf("indexer: reset checkpoint %s: %w", s.name, err)
			}
		}
	}

	return idx, nil
}

func (idx *Indexer) buildStream(name checkpoint.Stream, task projection.Task, tableName string, sc config.StreamConfig) *streamLoop {
	batchSize := sc.BatchSize
	if batchSize == 0 {
		batchSize = 2000
	}
	l := &streamLoop{
		name:               name,
		task:               task,
		tableName:          tableName,
		fromHeight:         sc.FromHeight,
		batchSize:          batchSize,
		checkpointInterval: idx.cfg.CheckpointInterval,
		checkpoints:        idx.checkpoints,
		fetcher:            idx.fetcher,
		sched:              idx.sched,
		headHeight:         idx.chainSync.headHeight,
		findFork:           idx.chainView.FindFork,
		pollInterval:       idx.cfg.PollInterval,
	}
	if idx.cfg.ToHeight != nil {
		l.toHeightSet = true
		l.toHeight = *idx.cfg.ToHeight
	}
	l.onCommit = func(height uint32) { idx.recordHeight(name, height) }
	return l
}

// recordHeight tracks the latest committed height for stream, feeding the
// aggregate store tip exposed by StoreTip.
func (idx *Indexer) recordHeight(stream checkpoint.Stream, height uint32) {
	idx.heightsMu.Lock()
	defer idx.heightsMu.Unlock()
	idx.streamHeights[stream] = height
}

// StoreTip returns the crash-safe aggregate progress marker: the minimum
// committed height across every stream. A stream that has not yet
// committed any batch is excluded, so StoreTip is only meaningful once all
// streams have advanced past their starting point at least once.
func (idx *Indexer) StoreTip() uint32 {
	idx.heightsMu.Lock()
	defer idx.heightsMu.Unlock()
	heights := make(map[checkpoint.Stream]uint32, len(idx.streamHeights))
	for k, v := range idx.streamHeights {
		heights[k] = v
	}
	return checkpoint.StoreTip(heights)
}

func compileWalletRules(configured []config.WalletRule) (rules.Set, error) {
	set := make(rules.Set, 0, len(configured))
	for _, w := range configured {
		r, err := rules.Compile(w.ID, w.Expression)
		if err != nil {
			return nil, err
		}
		set = append(set, r)
	}
	return set, nil
}

// Start begins the chain-sync loop and every stream loop as independent
// goroutines, returning immediately.
func (idx *Indexer) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	idx.cancel = cancel

	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		idx.chainSync.run(ctx)
	}()

	for _, s := range idx.streams {
		s := s
		idx.wg.Add(1)
		go func() {
			defer idx.wg.Done()
			s.run(ctx)
		}()
	}

	log.Info("Indexer started", "streams", len(idx.streams))
	return nil
}

// Stop cancels every running loop and blocks until they have all
// returned, then drains the write scheduler so no submitted batch is
// abandoned mid-flight.
func (idx *Indexer) Stop() error {
	if idx.cancel != nil {
		idx.cancel()
	}
	idx.wg.Wait()
	idx.sched.Drain()
	log.Info("Indexer stopped")
	return nil
}
