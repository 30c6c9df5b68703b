package store

import (
	"context"
	"sort"
)

// MemStore is an in-process TableStore used by tests in place of a real
// Azure Table Storage account or emulator.
type MemStore struct {
	tables map[string]map[string]map[string]map[string]any // table -> partition -> row -> props
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{tables: make(map[string]map[string]map[string]map[string]any)}
}

func (m *MemStore) CreateTableIfAbsent(_ context.Context, table string) error {
	if _, ok := m.tables[table]; !ok {
		m.tables[table] = make(map[string]map[string]map[string]any)
	}
	return nil
}

func (m *MemStore) DeleteTable(_ context.Context, table string) error {
	delete(m.tables, table)
	return nil
}

func (m *MemStore) BulkUpsert(_ context.Context, table string, rows []Row) error {
	partitions, ok := m.tables[table]
	if !ok {
		partitions = make(map[string]map[string]map[string]any)
		m.tables[table] = partitions
	}
	for _, r := range rows {
		pk, rk := r.PartitionKey(), r.RowKey()
		rowsInPartition, ok := partitions[pk]
		if !ok {
			rowsInPartition = make(map[string]map[string]any)
			partitions[pk] = rowsInPartition
		}
		rowsInPartition[rk] = r.Properties()
	}
	return nil
}

func (m *MemStore) Get(_ context.Context, table, partitionKey, rowKey string) (map[string]any, error) {
	partitions, ok := m.tables[table]
	if !ok {
		return nil, ErrNotFound
	}
	rows, ok := partitions[partitionKey]
	if !ok {
		return nil, ErrNotFound
	}
	props, ok := rows[rowKey]
	if !ok {
		return nil, ErrNotFound
	}
	return props, nil
}

func (m *MemStore) Scan(_ context.Context, table, partitionKey string, fn func(map[string]any) bool) error {
	partitions, ok := m.tables[table]
	if !ok {
		return nil
	}
	rows, ok := partitions[partitionKey]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn(rows[k]) {
			return nil
		}
	}
	return nil
}
