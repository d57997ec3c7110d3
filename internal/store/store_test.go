package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"goalplanner/internal/core"
	"goalplanner/internal/goals/memory"
)

var fixedNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

// fakeBackend records calls and can be told to fail.
type fakeBackend struct {
	mu      sync.Mutex
	goals   []core.Goal
	nextID  int
	calls   int
	patches []core.GoalPatch
	failAll error
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeBackend) ListGoals(ctx context.Context) ([]core.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll != nil {
		return nil, f.failAll
	}
	return append([]core.Goal(nil), f.goals...), nil
}

func (f *fakeBackend) CreateGoal(ctx context.Context, d core.Draft) (core.Goal, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return core.Goal{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll != nil {
		return core.Goal{}, f.failAll
	}
	f.nextID++
	g := core.Goal{
		ID:           strconv.Itoa(f.nextID),
		Name:         d.Name,
		Category:     d.Category,
		TargetAmount: d.TargetAmount,
		SavedAmount:  d.SavedAmount,
		Deadline:     d.Deadline,
		CreatedAt:    d.CreatedAt,
	}
	f.goals = append(f.goals, g)
	return g, nil
}

func (f *fakeBackend) PatchGoal(ctx context.Context, id string, p core.GoalPatch) (core.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.patches = append(f.patches, p)
	if f.failAll != nil {
		return core.Goal{}, f.failAll
	}
	for i, g := range f.goals {
		if g.ID == id {
			f.goals[i] = p.Apply(g)
			// The server normalizes names.
			f.goals[i].Name = f.goals[i].Name + "*"
			return f.goals[i], nil
		}
	}
	return core.Goal{}, errors.New("Failed to update goal")
}

func (f *fakeBackend) DeleteGoal(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll != nil {
		return f.failAll
	}
	for i, g := range f.goals {
		if g.ID == id {
			f.goals = append(f.goals[:i], f.goals[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func savingsGoal(id string, target, saved int64) core.Goal {
	return core.Goal{
		ID:           id,
		Name:         "goal " + id,
		Category:     "Savings",
		TargetAmount: decimal.NewFromInt(target),
		SavedAmount:  decimal.NewFromInt(saved),
		Deadline:     core.NewDate(2026, 10, 24),
		CreatedAt:    core.NewDate(2026, 1, 1),
	}
}

func newLoaded(t *testing.T, be *fakeBackend, opts ...Option) *Store {
	t.Helper()
	s := New(be, append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
	if err := s.FetchAll(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	return s
}

func TestFetchAllFailureKeepsStateAndRecordsError(t *testing.T) {
	be := &fakeBackend{goals: []core.Goal{savingsGoal("1", 100, 0)}}
	s := newLoaded(t, be)

	be.failAll = errors.New("Failed to fetch goals")
	err := s.FetchAll(context.Background())
	if err == nil || err.Error() != "Error fetching goals: Failed to fetch goals" {
		t.Fatalf("unexpected error %v", err)
	}
	if len(s.Goals()) != 1 {
		t.Fatalf("collection should be kept on failure")
	}
	if s.LastError() != err.Error() {
		t.Fatalf("error slot not set: %q", s.LastError())
	}

	be.failAll = nil
	if err := s.FetchAll(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if s.LastError() != "" {
		t.Fatalf("successful fetch should clear the error slot")
	}
}

func TestFirstFetchFailureLeavesEmpty(t *testing.T) {
	s := New(&fakeBackend{failAll: errors.New("offline")})
	if err := s.FetchAll(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if s.Loaded() || len(s.Goals()) != 0 {
		t.Fatalf("expected empty, unloaded store")
	}
}

func TestAddGoalAppendsServerRecord(t *testing.T) {
	be := &fakeBackend{goals: []core.Goal{savingsGoal("x", 100, 0)}, nextID: 41}
	s := newLoaded(t, be)
	before := len(s.Goals())

	g, err := s.AddGoal(context.Background(), savingsGoal("", 500, 0).Draft())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	after := s.Goals()
	if len(after) != before+1 {
		t.Fatalf("expected %d goals, got %d", before+1, len(after))
	}
	if g.ID != "42" || after[len(after)-1].ID != "42" {
		t.Fatalf("expected server id 42, got %q", g.ID)
	}
}

func TestAddGoalFailureLeavesCollection(t *testing.T) {
	be := &fakeBackend{}
	s := newLoaded(t, be)
	be.failAll = errors.New("Failed to add goal")
	if _, err := s.AddGoal(context.Background(), savingsGoal("", 1, 0).Draft()); err == nil {
		t.Fatalf("expected error")
	}
	if len(s.Goals()) != 0 {
		t.Fatalf("collection changed on failure")
	}
	if s.LastError() != "Error adding goal: Failed to add goal" {
		t.Fatalf("unexpected error slot %q", s.LastError())
	}
}

func TestAddGoalCollapsesConcurrentDuplicates(t *testing.T) {
	be := &fakeBackend{gate: make(chan struct{}), entered: make(chan struct{}, 4)}
	s := newLoaded(t, be)
	d := savingsGoal("", 300, 0).Draft()

	var wg sync.WaitGroup
	results := make([]core.Goal, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = s.AddGoal(context.Background(), d)
	}()
	<-be.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = s.AddGoal(context.Background(), d)
	}()
	// Give the second caller time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(be.gate)
	wg.Wait()

	if got := len(s.Goals()); got != 1 {
		t.Fatalf("expected 1 goal, got %d", got)
	}
	if results[0].ID != results[1].ID {
		t.Fatalf("callers got different goals %q %q", results[0].ID, results[1].ID)
	}
}

func TestAddGoalSurvivesCancelledDuplicate(t *testing.T) {
	be := &fakeBackend{gate: make(chan struct{}), entered: make(chan struct{}, 4)}
	s := newLoaded(t, be)
	d := savingsGoal("", 300, 0).Draft()

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	var wg sync.WaitGroup
	var errA, errB error
	var gotB core.Goal
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errA = s.AddGoal(ctxA, d)
	}()
	<-be.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		gotB, errB = s.AddGoal(context.Background(), d)
	}()
	time.Sleep(50 * time.Millisecond)
	cancelA()
	time.Sleep(20 * time.Millisecond)
	close(be.gate)
	wg.Wait()

	if !errors.Is(errA, context.Canceled) {
		t.Errorf("cancelled caller: expected context.Canceled, got %v", errA)
	}
	if errB != nil {
		t.Fatalf("live caller failed: %v", errB)
	}
	if gotB.ID == "" {
		t.Fatal("live caller got no goal")
	}
	if got := len(s.Goals()); got != 1 {
		t.Fatalf("expected 1 goal, got %d", got)
	}
	if msg := s.LastError(); msg != "" {
		t.Errorf("error slot should stay empty, got %q", msg)
	}
}

func TestUpdateGoalReplacesWithServerResponse(t *testing.T) {
	be := &fakeBackend{goals: []core.Goal{savingsGoal("1", 100, 10), savingsGoal("2", 100, 10)}}
	s := newLoaded(t, be)

	edit := savingsGoal("1", 200, 10)
	edit.Name = "Renamed"
	got, err := s.UpdateGoal(context.Background(), edit)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Renamed*" {
		t.Fatalf("expected normalized name, got %q", got.Name)
	}
	local, _ := s.Goal("1")
	if local.Name != "Renamed*" || !local.TargetAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("local entry not replaced: %+v", local)
	}
	if other, _ := s.Goal("2"); other.Name != "goal 2" {
		t.Fatalf("unrelated entry changed: %+v", other)
	}
}

func TestUpdateGoalRequiresID(t *testing.T) {
	be := &fakeBackend{}
	s := newLoaded(t, be)
	calls := be.callCount()
	_, err := s.UpdateGoal(context.Background(), core.Goal{Name: "x"})
	if !errors.Is(err, ErrMissingID) || KindOf(err) != KindInvalid {
		t.Fatalf("expected invalid missing id, got %v", err)
	}
	if be.callCount() != calls {
		t.Fatalf("backend was called")
	}
}

func TestUpdateGoalFailureKeepsLocal(t *testing.T) {
	be := &fakeBackend{goals: []core.Goal{savingsGoal("1", 100, 10)}}
	s := newLoaded(t, be)
	be.failAll = errors.New("Failed to update goal")
	edit := savingsGoal("1", 999, 10)
	if _, err := s.UpdateGoal(context.Background(), edit); err == nil {
		t.Fatalf("expected error")
	}
	if local, _ := s.Goal("1"); !local.TargetAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("local entry changed on failure")
	}
}

func TestDeleteGoal(t *testing.T) {
	be := &fakeBackend{goals: []core.Goal{savingsGoal("1", 100, 0), savingsGoal("2", 100, 0)}}
	s := newLoaded(t, be)

	be.failAll = errors.New("Failed to delete goal")
	if err := s.DeleteGoal(context.Background(), "1"); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := s.Goal("1"); !ok {
		t.Fatalf("entry removed despite failure")
	}

	be.failAll = nil
	if err := s.DeleteGoal(context.Background(), "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.Goal("1"); ok {
		t.Fatalf("entry still present after delete")
	}
	if len(s.Goals()) != 1 {
		t.Fatalf("expected one goal left")
	}
}

func TestMakeDepositSendsOnlySavedAmount(t *testing.T) {
	be := &fakeBackend{goals: []core.Goal{savingsGoal("1", 1000, 400)}}
	s := newLoaded(t, be)

	got, err := s.MakeDeposit(context.Background(), "1", decimal.NewFromInt(150))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !got.SavedAmount.Equal(decimal.NewFromInt(550)) {
		t.Fatalf("expected 550, got %s", got.SavedAmount)
	}
	p := be.patches[len(be.patches)-1]
	if !p.IsDeposit() || !p.SavedAmount.Equal(decimal.NewFromInt(550)) {
		t.Fatalf("unexpected patch %+v", p)
	}
	if local, _ := s.Goal("1"); local.Name != "goal 1*" {
		t.Fatalf("local entry not replaced by response: %+v", local)
	}
}

func TestMakeDepositPreconditionsSkipBackend(t *testing.T) {
	be := &fakeBackend{goals: []core.Goal{savingsGoal("1", 1000, 400)}}
	s := newLoaded(t, be)
	calls := be.callCount()

	_, err := s.MakeDeposit(context.Background(), "missing", decimal.NewFromInt(10))
	if !errors.Is(err, ErrGoalNotFound) || KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err.Error() != "Error making deposit: Goal not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	for _, amt := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		_, err := s.MakeDeposit(context.Background(), "1", amt)
		if !errors.Is(err, ErrInvalidAmount) || KindOf(err) != KindInvalid {
			t.Fatalf("amount %s: expected invalid, got %v", amt, err)
		}
	}
	if be.callCount() != calls {
		t.Fatalf("backend called %d times", be.callCount()-calls)
	}
}

func TestStaleErrorPersistsUntilFetchOrDismiss(t *testing.T) {
	be := &fakeBackend{goals: []core.Goal{savingsGoal("1", 1000, 400)}}
	s := newLoaded(t, be)

	_, _ = s.MakeDeposit(context.Background(), "missing", decimal.NewFromInt(1))
	stale := s.LastError()
	if stale == "" {
		t.Fatalf("expected error")
	}
	if _, err := s.MakeDeposit(context.Background(), "1", decimal.NewFromInt(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if s.LastError() != stale {
		t.Fatalf("successful mutation should leave the stale message, got %q", s.LastError())
	}
	s.ClearError()
	if s.LastError() != "" {
		t.Fatalf("ClearError did not clear")
	}
}

func TestObserversReceiveEvents(t *testing.T) {
	be := &fakeBackend{goals: []core.Goal{savingsGoal("1", 1000, 900)}}
	var mu sync.Mutex
	var kinds []core.EventKind
	obs := core.ObserverFunc(func(_ context.Context, ev core.GoalEvent) error {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
		if !ev.At.Equal(fixedNow) {
			t.Errorf("unexpected timestamp %v", ev.At)
		}
		return errors.New("observer errors are only logged")
	})
	s := newLoaded(t, be, WithObserver(obs))

	if _, err := s.MakeDeposit(context.Background(), "1", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := s.AddGoal(context.Background(), savingsGoal("", 5, 0).Draft()); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.DeleteGoal(context.Background(), "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []core.EventKind{core.EventDeposit, core.EventCompleted, core.EventCreated, core.EventDeleted}
	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
	}
}

func TestWithMemoryBackend(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(savingsGoal("seed", 1000, 400)))
	if err := s.FetchAll(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	g, err := s.MakeDeposit(ctx, "seed", decimal.NewFromInt(150))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !g.SavedAmount.Equal(decimal.NewFromInt(550)) {
		t.Fatalf("expected 550, got %s", g.SavedAmount)
	}
}

func TestReturnedGoalsAreCopies(t *testing.T) {
	be := &fakeBackend{goals: []core.Goal{savingsGoal("1", 1, 0)}}
	s := newLoaded(t, be)
	list := s.Goals()
	list[0].Name = "changed"
	if g, _ := s.Goal("1"); g.Name == "changed" {
		t.Fatalf("Goals leaked internal slice")
	}
}
