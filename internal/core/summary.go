package core

import "github.com/shopspring/decimal"

// Overview is the aggregate summary of the whole collection for one day.
type Overview struct {
	TotalGoals      int
	CompletedGoals  int
	UrgentGoals     int
	OverdueGoals    int
	TotalSaved      decimal.Decimal
	TotalTarget     decimal.Decimal
	OverallProgress int
}

// ComputeOverview aggregates goals. Status counts use Classify so a goal is
// counted in at most one of completed, urgent and overdue. OverallProgress is
// not clamped and is 0 when the total target is 0.
func ComputeOverview(goals []Goal, today Date) Overview {
	ov := Overview{
		TotalGoals:  len(goals),
		TotalSaved:  decimal.Zero,
		TotalTarget: decimal.Zero,
	}
	for _, g := range goals {
		ov.TotalSaved = ov.TotalSaved.Add(g.SavedAmount)
		ov.TotalTarget = ov.TotalTarget.Add(g.TargetAmount)
		switch Classify(g, today) {
		case StatusCompleted:
			ov.CompletedGoals++
		case StatusUrgent:
			ov.UrgentGoals++
		case StatusOverdue:
			ov.OverdueGoals++
		}
	}
	if !ov.TotalTarget.IsZero() {
		ov.OverallProgress = int(ov.TotalSaved.Div(ov.TotalTarget).Mul(hundred).Round(0).IntPart())
	}
	return ov
}
