// Package memory holds exporters that never leave the process: a recorder for
// tests and a plain-text table for dry runs.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"goalplanner/internal/core"
	"goalplanner/internal/sheets"
)

// Recorder keeps the rows of every export in memory.
type Recorder struct {
	mu      sync.Mutex
	exports [][][]any
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Export(_ context.Context, goals []core.Goal, today core.Date) (sheets.Result, error) {
	rows := sheets.BuildRows(goals, today)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports = append(r.exports, rows)
	return sheets.Result{Range: fmt.Sprintf("mem:%d", len(r.exports)), Rows: len(rows)}, nil
}

// Last returns the rows of the most recent export, or nil.
func (r *Recorder) Last() [][]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.exports) == 0 {
		return nil
	}
	return r.exports[len(r.exports)-1]
}

// Count is the number of exports recorded so far.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.exports)
}

// Table writes each export as aligned columns.
type Table struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTable(out io.Writer) *Table { return &Table{out: out} }

func (t *Table) Export(_ context.Context, goals []core.Goal, today core.Date) (sheets.Result, error) {
	rows := sheets.BuildRows(goals, today)
	t.mu.Lock()
	defer t.mu.Unlock()

	tw := tabwriter.NewWriter(t.out, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return sheets.Result{}, fmt.Errorf("write table: %w", err)
	}
	return sheets.Result{Range: "stdout", Rows: len(rows)}, nil
}

var (
	_ sheets.GoalExporter = (*Recorder)(nil)
	_ sheets.GoalExporter = (*Table)(nil)
)
