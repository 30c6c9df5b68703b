// Package scheduler runs bulk-upsert writes against the table store with
// bounded parallelism, independent of how much concurrency the fetch side
// uses. It caps both how many writes are in flight and how many are
// queued waiting for a worker, so a slow store applies backpressure to
// producers instead of letting memory grow without bound.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/JekaMas/workerpool"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/MithrilMan/BlockExplorer/internal/store"
)

// Defaults match the pipeline's bounded-parallelism budget: 30 writes may
// be in flight at once, with up to 100 more queued before Submit blocks.
const (
	DefaultReadyWorkers = 30
	DefaultQueueCap     = 100
)

var (
	queueDepthGauge = metrics.NewRegisteredGauge("scheduler/queue/depth", nil)
	writeErrorMeter = metrics.NewRegisteredMeter("scheduler/write/errors", nil)
	writeTimer      = metrics.NewRegisteredTimer("scheduler/write", nil)
)

// Scheduler submits bulk-upsert jobs against a store.TableStore with
// bounded worker concurrency and a hard cap on queued work.
type Scheduler struct {
	table    store.TableStore
	pool     *workerpool.WorkerPool
	queueCap int

	backoffInitial time.Duration
	backoffMax     time.Duration

	wg sync.WaitGroup
}

// New builds a Scheduler with readyWorkers concurrent writers and room for
// queueCap queued jobs beyond that.
func New(table store.TableStore, readyWorkers, queueCap int) *Scheduler {
	if readyWorkers <= 0 {
		readyWorkers = DefaultReadyWorkers
	}
	if queueCap <= 0 {
		queueCap = DefaultQueueCap
	}
	return &Scheduler{
		table:          table,
		pool:           workerpool.New(readyWorkers),
		queueCap:       queueCap,
		backoffInitial: 200 * time.Millisecond,
		backoffMax:     10 * time.Second,
	}
}

// Submit enqueues a bulk upsert of rows into tableName and returns without
// waiting for it to complete. It blocks if the pool already has queueCap
// jobs waiting, providing the backpressure that keeps a slow store from
// causing unbounded memory growth upstream. The submitted job is tracked
// by Wait/SubmitAndWait the same as one submitted through either of those.
func (s *Scheduler) Submit(ctx context.Context, tableName string, rows []store.Row) {
	s.enqueue(ctx, tableName, rows)
}

// SubmitAndWait enqueues a bulk upsert the same way Submit does, then
// blocks until that specific job has finished (or ctx is cancelled first),
// returning its write error. Callers that must not advance past a batch
// until it is durable — every stream loop — use this instead of
// Submit+Drain, since Drain stops the pool for good.
func (s *Scheduler) SubmitAndWait(ctx context.Context, tableName string, rows []store.Row) error {
	done := s.enqueue(ctx, tableName, rows)
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue applies queue-depth backpressure, submits the write job to the
// pool and returns a buffered channel that receives its result exactly
// once.
func (s *Scheduler) enqueue(ctx context.Context, tableName string, rows []store.Row) <-chan error {
	for s.pool.WaitingQueueSize() >= s.queueCap {
		time.Sleep(10 * time.Millisecond)
		if ctx.Err() != nil {
			done := make(chan error, 1)
			done <- ctx.Err()
			return done
		}
	}
	queueDepthGauge.Update(int64(s.pool.WaitingQueueSize()))

	done := make(chan error, 1)
	s.wg.Add(1)
	s.pool.Submit(func() {
		defer s.wg.Done()
		start := time.Now()
		defer writeTimer.UpdateSince(start)
		err := s.writeWithRetry(ctx, tableName, rows)
		if err != nil {
			writeErrorMeter.Mark(1)
			log.Error("Bulk write failed permanently", "table", tableName, "rows", len(rows), "err", err)
		}
		done <- err
	})
	return done
}

// Wait blocks until every job submitted so far has completed, without
// stopping the pool; the pool stays usable for the next
// Submit/SubmitAndWait call afterward.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) writeWithRetry(ctx context.Context, tableName string, rows []store.Row) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.backoffInitial
	b.MaxInterval = s.backoffMax
	b.MaxElapsedTime = 0
	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := s.table.BulkUpsert(ctx, tableName, rows)
		if err != nil {
			log.Warn("Bulk write attempt failed, retrying", "table", tableName, "rows", len(rows), "err", err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

// Drain blocks until every submitted job has completed, then stops the
// underlying pool for good. No further Submit/SubmitAndWait calls are
// valid afterward; only call this from Stop(), never between batches.
func (s *Scheduler) Drain() {
	s.wg.Wait()
	s.pool.StopWait()
}

// QueueDepth reports how many jobs are currently waiting for a worker.
func (s *Scheduler) QueueDepth() int {
	return s.pool.WaitingQueueSize()
}
