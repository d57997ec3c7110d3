// Package goals defines the outbound ports to the goal persistence backend.
package goals

import (
	"context"
	"errors"

	"goalplanner/internal/core"
)

// ErrNotFound is returned by backends when no goal has the requested id.
var ErrNotFound = errors.New("goal not found")

// Ports for outbound adapters.
type (
	GoalLister interface {
		// ListGoals returns the full current collection.
		ListGoals(ctx context.Context) ([]core.Goal, error)
	}

	GoalCreator interface {
		// CreateGoal stores a draft and returns the canonical record with its id.
		CreateGoal(ctx context.Context, d core.Draft) (core.Goal, error)
	}

	// GoalPatcher applies partial or full updates. A patch carrying only
	// SavedAmount is a deposit.
	GoalPatcher interface {
		PatchGoal(ctx context.Context, id string, p core.GoalPatch) (core.Goal, error)
	}

	GoalDeleter interface {
		DeleteGoal(ctx context.Context, id string) error
	}

	// Backend is everything the goal store needs from persistence.
	Backend interface {
		GoalLister
		GoalCreator
		GoalPatcher
		GoalDeleter
	}
)
