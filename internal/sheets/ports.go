// Package sheets defines the snapshot export port and the row layout shared by
// its adapters.
package sheets

import (
	"context"

	"goalplanner/internal/core"
)

// Result describes a completed export.
type Result struct {
	Range string
	Rows  int
}

// GoalExporter writes a snapshot of the collection somewhere tabular.
type GoalExporter interface {
	Export(ctx context.Context, goals []core.Goal, today core.Date) (Result, error)
}
