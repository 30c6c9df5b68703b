package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

// ErrNotFound is returned by Get when no row matches the given keys.
var ErrNotFound = errors.New("store: row not found")

var (
	bulkUpsertTimer = metrics.NewRegisteredTimer("store/bulkupsert", nil)
	bulkUpsertMeter = metrics.NewRegisteredMeter("store/bulkupsert/rows", nil)
	getTimer        = metrics.NewRegisteredTimer("store/get", nil)
)

// TableStore is the partitioned remote table the indexer writes every
// projection stream into. Implementations must make BulkUpsert safe to
// retry: re-submitting the same batch after a partial failure must not
// produce duplicate or inconsistent rows, since entity upsert is an
// overwrite-by-key operation in the underlying service.
type TableStore interface {
	// CreateTableIfAbsent ensures the named table exists.
	CreateTableIfAbsent(ctx context.Context, table string) error

	// DeleteTable drops the named table.
	DeleteTable(ctx context.Context, table string) error

	// BulkUpsert writes rows to table in batches grouped by partition key,
	// since the underlying service only allows batched writes within a
	// single partition.
	BulkUpsert(ctx context.Context, table string, rows []Row) error

	// Get fetches a single row by its keys. Returns ErrNotFound if absent.
	Get(ctx context.Context, table, partitionKey, rowKey string) (map[string]any, error)

	// Scan iterates every row in a partition in row-key order, calling fn
	// for each until fn returns false or the partition is exhausted.
	Scan(ctx context.Context, table, partitionKey string, fn func(map[string]any) bool) error
}

// azTableStore implements TableStore against Azure Table Storage (or an
// emulator exposing the same wire protocol) via aztables.
type azTableStore struct {
	service *aztables.ServiceClient
}

// NewAzureTableStore builds a TableStore backed by an already-configured
// aztables.ServiceClient. Callers construct the client with
// aztables.NewServiceClientWithSharedKey for a live account, or
// aztables.NewServiceClientWithNoCredential against the local emulator.
func NewAzureTableStore(service *aztables.ServiceClient) TableStore {
	return &azTableStore{service: service}
}

func (s *azTableStore) CreateTableIfAbsent(ctx context.Context, table string) error {
	_, err := s.service.CreateTable(ctx, table, nil)
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("store: create table %s: %w", table, err)
	}
	return nil
}

func (s *azTableStore) DeleteTable(ctx context.Context, table string) error {
	_, err := s.service.DeleteTable(ctx, table, nil)
	if err != nil && !isNotFoundErr(err) {
		return fmt.Errorf("store: delete table %s: %w", table, err)
	}
	return nil
}

func (s *azTableStore) BulkUpsert(ctx context.Context, table string, rows []Row) error {
	start := time.Now()
	defer bulkUpsertTimer.UpdateSince(start)
	if len(rows) == 0 {
		return nil
	}
	client := s.service.NewClient(table)

	byPartition := make(map[string][]Row)
	var order []string
	for _, r := range rows {
		pk := r.PartitionKey()
		if _, ok := byPartition[pk]; !ok {
			order = append(order, pk)
		}
		byPartition[pk] = append(byPartition[pk], r)
	}

	for _, pk := range order {
		batch := byPartition[pk]
		// aztables batches are capped at 100 entities; split larger
		// partitions into chunks to respect that limit.
		for start := 0; start < len(batch); start += 100 {
			end := start + 100
			if end > len(batch) {
				end = len(batch)
			}
			if err := s.submitBatch(ctx, client, batch[start:end]); err != nil {
				return err
			}
			bulkUpsertMeter.Mark(int64(end - start))
		}
	}
	return nil
}

func (s *azTableStore) submitBatch(ctx context.Context, client *aztables.Client, rows []Row) error {
	actions := make([]aztables.TransactionAction, 0, len(rows))
	for _, r := range rows {
		entity := aztables.EDMEntity{
			Entity: aztables.Entity{
				PartitionKey: r.PartitionKey(),
				RowKey:       r.RowKey(),
			},
			Properties: r.Properties(),
		}
		body, err := entity.MarshalJSON()
		if err != nil {
			return fmt.Errorf("store: marshal entity %s/%s: %w", r.PartitionKey(), r.RowKey(), err)
		}
		actions = append(actions, aztables.TransactionAction{
			ActionType: aztables.TransactionTypeUpsertReplace,
			Entity:     body,
		})
	}
	if len(actions) == 1 {
		_, err := client.UpsertEntity(ctx, actions[0].Entity, &aztables.UpsertEntityOptions{
			UpdateMode: aztables.UpdateModeReplace,
		})
		return err
	}
	_, err := client.SubmitTransaction(ctx, actions, nil)
	if err != nil {
		log.Error("Bulk upsert batch failed", "partition", rows[0].PartitionKey(), "rows", len(rows), "err", err)
	}
	return err
}

func (s *azTableStore) Get(ctx context.Context, table, partitionKey, rowKey string) (map[string]any, error) {
	start := time.Now()
	defer getTimer.UpdateSince(start)
	client := s.service.NewClient(table)
	resp, err := client.GetEntity(ctx, partitionKey, rowKey, nil)
	if err != nil {
		if isNotFoundErr(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var entity aztables.EDMEntity
	if err := entity.UnmarshalJSON(resp.Value); err != nil {
		return nil, err
	}
	return entity.Properties, nil
}

func (s *azTableStore) Scan(ctx context.Context, table, partitionKey string, fn func(map[string]any) bool) error {
	client := s.service.NewClient(table)
	filter := fmt.Sprintf("PartitionKey eq '%s'", partitionKey)
	pager := client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, raw := range page.Entities {
			var entity aztables.EDMEntity
			if err := entity.UnmarshalJSON(raw); err != nil {
				return err
			}
			if !fn(entity.Properties) {
				return nil
			}
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	return errContains(err, "TableAlreadyExists")
}

func isNotFoundErr(err error) bool {
	return errContains(err, "ResourceNotFound") || errContains(err, "TableNotFound")
}

func errContains(err error, substr string) bool {
	return err != nil && fmt.Sprint(err) != "" && (contains(err.Error(), substr))
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
