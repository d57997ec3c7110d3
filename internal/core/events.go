package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind names a reconciled mutation of the collection.
type EventKind string

const (
	EventCreated   EventKind = "goal.created"
	EventUpdated   EventKind = "goal.updated"
	EventDeleted   EventKind = "goal.deleted"
	EventDeposit   EventKind = "goal.deposit"
	EventCompleted EventKind = "goal.completed"
)

// GoalEvent describes one mutation after the backend confirmed it.
// Amount is only set for deposits.
type GoalEvent struct {
	Kind   EventKind
	Goal   Goal
	Amount decimal.Decimal
	At     time.Time
}

// EventObserver receives goal events. Implementations must be safe for concurrent use.
type EventObserver interface {
	ObserveGoalEvent(ctx context.Context, ev GoalEvent) error
}

// ObserverFunc adapts a function to EventObserver.
type ObserverFunc func(ctx context.Context, ev GoalEvent) error

func (f ObserverFunc) ObserveGoalEvent(ctx context.Context, ev GoalEvent) error {
	return f(ctx, ev)
}
