package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// UrgentWindowDays is how close a deadline has to be for an open goal to be urgent.
const UrgentWindowDays = 30

// Status is the classification of a goal on a given day.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
	StatusUrgent    Status = "urgent"
	StatusNormal    Status = "normal"
)

// Label is the display name of the status.
func (s Status) Label() string {
	switch s {
	case StatusCompleted:
		return "Completed"
	case StatusOverdue:
		return "Overdue"
	case StatusUrgent:
		return "Urgent"
	default:
		return "Normal"
	}
}

// GoalView bundles a goal with the values derived from it for one day.
type GoalView struct {
	Goal
	Progress      int
	Remaining     decimal.Decimal
	DaysRemaining int
	Status        Status
}

// IsCompleted reports whether the saved amount has reached the target.
func IsCompleted(g Goal) bool {
	return g.SavedAmount.GreaterThanOrEqual(g.TargetAmount)
}

// ProgressPercentage is round(saved/target*100) clamped to [0,100].
// A zero target has no meaningful progress and reports 0.
func ProgressPercentage(g Goal) int {
	if g.TargetAmount.IsZero() {
		return 0
	}
	pct := g.SavedAmount.Div(g.TargetAmount).Mul(hundred).Round(0).IntPart()
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// ProgressRatio is saved/target, 0 when the target is 0. Not clamped.
func ProgressRatio(g Goal) decimal.Decimal {
	if g.TargetAmount.IsZero() {
		return decimal.Zero
	}
	return g.SavedAmount.Div(g.TargetAmount)
}

// RemainingRaw is target - saved, which is the most a deposit may add.
func RemainingRaw(g Goal) decimal.Decimal {
	return g.TargetAmount.Sub(g.SavedAmount)
}

// Remaining is the amount still missing, never below zero.
func Remaining(g Goal) decimal.Decimal {
	r := RemainingRaw(g)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// DaysRemaining is ceil((deadline - today) / 1 day). Negative once the deadline has passed.
func DaysRemaining(g Goal, today Date) int {
	diff := g.Deadline.Time.Sub(today.Time)
	days := diff / (24 * time.Hour)
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return int(days)
}

// Classify returns exactly one status. Completed wins over Overdue; a goal due
// today (0 days remaining) is Normal.
func Classify(g Goal, today Date) Status {
	if IsCompleted(g) {
		return StatusCompleted
	}
	days := DaysRemaining(g, today)
	switch {
	case days < 0:
		return StatusOverdue
	case days > 0 && days <= UrgentWindowDays:
		return StatusUrgent
	default:
		return StatusNormal
	}
}

// Describe computes every derived value of g for today.
func Describe(g Goal, today Date) GoalView {
	return GoalView{
		Goal:          g,
		Progress:      ProgressPercentage(g),
		Remaining:     Remaining(g),
		DaysRemaining: DaysRemaining(g, today),
		Status:        Classify(g, today),
	}
}

// DescribeAll describes goals in order.
func DescribeAll(goals []Goal, today Date) []GoalView {
	out := make([]GoalView, len(goals))
	for i, g := range goals {
		out[i] = Describe(g, today)
	}
	return out
}
