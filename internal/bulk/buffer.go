// Package bulk buffers projected rows until there are enough of them to
// justify a write; the caller then drains the batch and hands it to the
// write scheduler. It never reorders rows: everything added before a
// Drain is included in that Drain's batch.
package bulk

import (
	"github.com/MithrilMan/BlockExplorer/internal/store"
)

// DefaultMaxRows is the row count at which Buffer.Add reports the buffer
// is ready to flush.
const DefaultMaxRows = 500

// Buffer accumulates rows destined for a single table.
type Buffer struct {
	table   string
	maxRows int
	rows    []store.Row
}

// New builds an empty Buffer for the given table.
func New(table string, maxRows int) *Buffer {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Buffer{table: table, maxRows: maxRows}
}

// Table returns the destination table name.
func (b *Buffer) Table() string { return b.table }

// Len returns the number of rows currently buffered.
func (b *Buffer) Len() int { return len(b.rows) }

// Add appends rows to the buffer and reports whether it has reached its
// configured threshold and should be flushed.
func (b *Buffer) Add(rows ...store.Row) (ready bool) {
	b.rows = append(b.rows, rows...)
	return len(b.rows) >= b.maxRows
}

// Drain returns the buffered rows and resets the buffer to empty.
func (b *Buffer) Drain() []store.Row {
	rows := b.rows
	b.rows = nil
	return rows
}
