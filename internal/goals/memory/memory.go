// Package memory is an in-process goals backend for development and tests.
package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"goalplanner/internal/core"
	"goalplanner/internal/goals"
)

// SeedFile is the name of the optional seed file inside the data directory.
const SeedFile = "goals.json"

type Store struct {
	mu    sync.Mutex
	items []core.Goal
	now   func() time.Time
}

func New(seed ...core.Goal) *Store {
	items := make([]core.Goal, 0, len(seed))
	items = append(items, seed...)
	return &Store{items: items, now: time.Now}
}

// NewFromFiles seeds the store from <base>/goals.json. A missing or unreadable
// file yields an empty store.
func NewFromFiles(base string) *Store {
	goals, err := readSeed(filepath.Join(base, SeedFile))
	if err != nil {
		return New()
	}
	return New(goals...)
}

func (s *Store) ListGoals(_ context.Context) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Goal(nil), s.items...), nil
}

func (s *Store) CreateGoal(_ context.Context, d core.Draft) (core.Goal, error) {
	if err := d.Validate(); err != nil {
		return core.Goal{}, err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = core.Today(s.now())
	}
	g := core.Goal{
		ID:           uuid.NewString(),
		Name:         d.Name,
		Category:     d.Category,
		TargetAmount: d.TargetAmount,
		SavedAmount:  d.SavedAmount,
		Deadline:     d.Deadline,
		CreatedAt:    d.CreatedAt,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, g)
	return g, nil
}

// PatchGoal applies p to the goal. createdAt is immutable once stored.
func (s *Store) PatchGoal(_ context.Context, id string, p core.GoalPatch) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Goal{}, fmt.Errorf("patch %s: %w", id, goals.ErrNotFound)
	}
	p.CreatedAt = nil
	updated := p.Apply(s.items[i])
	if err := updated.Validate(); err != nil {
		return core.Goal{}, err
	}
	s.items[i] = updated
	return updated, nil
}

func (s *Store) DeleteGoal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, goals.ErrNotFound)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) indexOf(id string) int {
	for i, g := range s.items {
		if g.ID == id {
			return i
		}
	}
	return -1
}

type seedGoal struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	SavedAmount  decimal.Decimal `json:"savedAmount"`
	Deadline     string          `json:"deadline"`
	CreatedAt    string          `json:"createdAt"`
}

func readSeed(path string) ([]core.Goal, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []seedGoal
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make([]core.Goal, 0, len(raw))
	for _, r := range raw {
		deadline, err := core.ParseDate(r.Deadline)
		if err != nil {
			return nil, fmt.Errorf("seed goal %q deadline: %w", r.Name, err)
		}
		created, _ := core.ParseDate(r.CreatedAt)
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, core.Goal{
			ID:           id,
			Name:         r.Name,
			Category:     r.Category,
			TargetAmount: r.TargetAmount,
			SavedAmount:  r.SavedAmount,
			Deadline:     deadline,
			CreatedAt:    created,
		})
	}
	return out, nil
}

// Interface conformance.
var _ goals.Backend = (*Store)(nil)
