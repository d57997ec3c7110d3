// Package store owns the in-memory goal collection and reconciles it with the
// backend after every mutation.
//
// Local state only changes once the backend has confirmed a call; the entry for
// an id is then replaced wholesale by the backend's response. Concurrent
// mutations of the same goal race and the last response wins.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"goalplanner/internal/core"
	"goalplanner/internal/goals"
	"goalplanner/internal/log"
)

type Store struct {
	backend   goals.Backend
	observers []core.EventObserver
	logger    *log.Logger
	now       func() time.Time
	adds      singleflight.Group

	mu      sync.RWMutex
	goals   []core.Goal
	loaded  bool
	lastErr string
}

type Option func(*Store)

// WithObserver registers an observer notified after each reconciled mutation.
func WithObserver(o core.EventObserver) Option {
	return func(s *Store) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentStore)
		}
	}
}

// WithClock overrides time.Now, used for event timestamps and Today.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(backend goals.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  log.Wrap(nil, log.ComponentStore),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the calendar date used for derived values.
func (s *Store) Today() core.Date {
	return core.Today(s.now())
}

// Goals returns a copy of the collection in backend order.
func (s *Store) Goals() []core.Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Goal(nil), s.goals...)
}

// Goal looks up one entry of the local collection.
func (s *Store) Goal(id string) (core.Goal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.goals {
		if g.ID == id {
			return g, true
		}
	}
	return core.Goal{}, false
}

// Loaded reports whether a FetchAll has succeeded at least once.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// LastError returns the most recent failure message, or "".
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// ClearError dismisses the current error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

// FetchAll replaces the collection with the backend listing and clears the
// error slot. On failure the previous collection is kept.
func (s *Store) FetchAll(ctx context.Context) error {
	list, err := s.backend.ListGoals(ctx)
	if err != nil {
		return s.fail(ctx, OpFetch, KindRemote, err, "")
	}
	s.mu.Lock()
	s.goals = append([]core.Goal(nil), list...)
	s.loaded = true
	s.lastErr = ""
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "Goals fetched", log.FieldCount, len(list))
	return nil
}

// AddGoal creates the draft and appends the backend's record. Identical drafts
// submitted while one is in flight share its single backend call. The shared
// call runs detached from any one caller, so a caller that goes away returns
// early without failing the others; the backend client's timeout bounds it.
func (s *Store) AddGoal(ctx context.Context, d core.Draft) (core.Goal, error) {
	ch := s.adds.DoChan(draftKey(d), func() (any, error) {
		sctx := context.WithoutCancel(ctx)
		g, err := s.backend.CreateGoal(sctx, d)
		if err != nil {
			return core.Goal{}, err
		}
		s.mu.Lock()
		s.goals = append(s.goals, g)
		s.mu.Unlock()
		s.emit(sctx, core.GoalEvent{Kind: core.EventCreated, Goal: g, At: s.now()})
		return g, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return core.Goal{}, &Error{Op: OpAdd, Kind: KindRemote, Err: ctx.Err()}
	}
	if res.Err != nil {
		return core.Goal{}, s.fail(ctx, OpAdd, KindRemote, res.Err, "")
	}
	g := res.Val.(core.Goal)
	if res.Shared {
		s.logger.InfoContext(ctx, "Duplicate add collapsed", log.NewFields().WithGoal(g.ID, g.Name, "").ToSlice()...)
	}
	return g, nil
}

// UpdateGoal sends every mutable field of g and replaces the local entry with
// the response.
func (s *Store) UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if g.ID == "" {
		return core.Goal{}, s.fail(ctx, OpUpdate, KindInvalid, ErrMissingID, "")
	}
	updated, err := s.backend.PatchGoal(ctx, g.ID, g.FullPatch())
	if err != nil {
		return core.Goal{}, s.fail(ctx, OpUpdate, KindRemote, err, g.ID)
	}
	s.replace(g.ID, updated)
	s.emit(ctx, core.GoalEvent{Kind: core.EventUpdated, Goal: updated, At: s.now()})
	return updated, nil
}

// DeleteGoal removes the local entry once the backend confirms.
func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	if id == "" {
		return s.fail(ctx, OpDelete, KindInvalid, ErrMissingID, "")
	}
	prev, _ := s.Goal(id)
	if err := s.backend.DeleteGoal(ctx, id); err != nil {
		return s.fail(ctx, OpDelete, KindRemote, err, id)
	}
	s.mu.Lock()
	for i, g := range s.goals {
		if g.ID == id {
			s.goals = append(s.goals[:i], s.goals[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	if prev.ID == "" {
		prev.ID = id
	}
	s.emit(ctx, core.GoalEvent{Kind: core.EventDeleted, Goal: prev, At: s.now()})
	return nil
}

// MakeDeposit adds amount to the goal's saved amount. Only the new savedAmount
// is sent. Unknown ids and non-positive amounts fail without a backend call.
func (s *Store) MakeDeposit(ctx context.Context, id string, amount decimal.Decimal) (core.Goal, error) {
	current, ok := s.Goal(id)
	if !ok {
		return core.Goal{}, s.fail(ctx, OpDeposit, KindNotFound, ErrGoalNotFound, id)
	}
	if !amount.IsPositive() {
		return core.Goal{}, s.fail(ctx, OpDeposit, KindInvalid, ErrInvalidAmount, id)
	}

	saved := current.SavedAmount.Add(amount)
	updated, err := s.backend.PatchGoal(ctx, id, core.SavedAmountPatch(saved))
	if err != nil {
		return core.Goal{}, s.fail(ctx, OpDeposit, KindRemote, err, id)
	}
	s.replace(id, updated)

	at := s.now()
	s.emit(ctx, core.GoalEvent{Kind: core.EventDeposit, Goal: updated, Amount: amount, At: at})
	if !core.IsCompleted(current) && core.IsCompleted(updated) {
		s.emit(ctx, core.GoalEvent{Kind: core.EventCompleted, Goal: updated, At: at})
	}
	return updated, nil
}

func (s *Store) replace(id string, g core.Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID == id {
			s.goals[i] = g
			return
		}
	}
}

// fail records the message in the error slot and returns the typed error.
func (s *Store) fail(ctx context.Context, op Op, kind Kind, cause error, goalID string) error {
	err := &Error{Op: op, Kind: kind, Err: cause}
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()

	fields := log.NewFields().
		WithOperation(string(op)).
		WithErrorType(kind.logType()).
		WithGoal(goalID, "", "").
		WithError(cause)
	s.logger.WarnContext(ctx, "Goal operation failed", fields.ToSlice()...)
	return err
}

func (s *Store) emit(ctx context.Context, ev core.GoalEvent) {
	for _, o := range s.observers {
		if err := o.ObserveGoalEvent(ctx, ev); err != nil {
			fields := log.NewFields().
				WithOperation(log.OpObserve).
				WithGoal(ev.Goal.ID, ev.Goal.Name, "").
				WithError(err)
			s.logger.WarnContext(ctx, "Goal event observer failed", append(fields.ToSlice(), log.FieldEvent, string(ev.Kind))...)
		}
	}
}

func draftKey(d core.Draft) string {
	return d.Name + "\x00" + d.Category + "\x00" + d.TargetAmount.String() + "\x00" +
		d.SavedAmount.String() + "\x00" + d.Deadline.String() + "\x00" + d.CreatedAt.String()
}
