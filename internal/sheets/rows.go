package sheets

import "goalplanner/internal/core"

// Header is the first row of every export.
var Header = []any{
	"ID", "Name", "Category", "Target", "Saved", "Remaining",
	"Progress %", "Deadline", "Days Remaining", "Status", "Created",
}

// LastColumn is the spreadsheet column letter of the last Header entry.
const LastColumn = "K"

// BuildRows renders the header, one row per goal and a totals row. Amounts are
// two-decimal strings so the sheet parses them as numbers.
func BuildRows(goals []core.Goal, today core.Date) [][]any {
	rows := make([][]any, 0, len(goals)+2)
	rows = append(rows, Header)
	for _, v := range core.DescribeAll(goals, today) {
		rows = append(rows, []any{
			v.ID,
			v.Name,
			v.Category,
			core.FormatFixed(v.TargetAmount),
			core.FormatFixed(v.SavedAmount),
			core.FormatFixed(v.Remaining),
			v.Progress,
			v.Deadline.String(),
			v.DaysRemaining,
			v.Status.Label(),
			v.CreatedAt.String(),
		})
	}

	ov := core.ComputeOverview(goals, today)
	rows = append(rows, []any{
		"TOTAL",
		"",
		"",
		core.FormatFixed(ov.TotalTarget),
		core.FormatFixed(ov.TotalSaved),
		core.FormatFixed(ov.TotalTarget.Sub(ov.TotalSaved)),
		ov.OverallProgress,
		"",
		"",
		"",
		"",
	})
	return rows
}
