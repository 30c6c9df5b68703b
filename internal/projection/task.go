// Package projection turns fetched blocks into the rows each output
// stream writes to the table store. Every task is pure: given the same
// blocks it always produces the same rows, which is what makes replaying
// a batch after a crash safe.
package projection

import (
	"context"

	"github.com/MithrilMan/BlockExplorer/internal/chainmodel"
	"github.com/MithrilMan/BlockExplorer/internal/store"
)

// Task projects a contiguous run of blocks into the rows for one output
// stream's table. ctx bounds any lookups a task needs to perform while
// projecting, such as resolving a spent output's value.
type Task interface {
	// Table is the destination table name for this task's rows.
	Table() string

	// Project returns the rows produced by projecting blocks, in the
	// order they should be written.
	Project(ctx context.Context, blocks []chainmodel.Block) ([]store.Row, error)
}
