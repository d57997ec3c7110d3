package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and form format of calendar dates.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar date with no time of day, stored at UTC midnight.
	Date struct {
		time.Time
	}

	// Goal is a tracked savings objective as the backend returns it.
	Goal struct {
		ID           string
		Name         string
		Category     string
		TargetAmount decimal.Decimal
		SavedAmount  decimal.Decimal
		Deadline     Date
		CreatedAt    Date
	}

	// Draft is a goal that has not been assigned an id yet.
	Draft struct {
		Name         string
		Category     string
		TargetAmount decimal.Decimal
		SavedAmount  decimal.Decimal
		Deadline     Date
		CreatedAt    Date
	}

	// GoalPatch is a partial update. Nil fields are left untouched by the backend.
	GoalPatch struct {
		Name         *string
		Category     *string
		TargetAmount *decimal.Decimal
		SavedAmount  *decimal.Decimal
		Deadline     *Date
		CreatedAt    *Date
	}
)

var (
	ErrEmptyName       = errors.New("empty goal name")
	ErrEmptyCategory   = errors.New("empty category")
	ErrNegativeAmount  = errors.New("amount cannot be negative")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrMissingDeadline = errors.New("missing deadline")
	ErrInvalidDate     = errors.New("invalid date")
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today truncates now to the calendar date it falls on in its own location.
func Today(now time.Time) Date {
	y, m, d := now.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the date n calendar days later (earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is an earlier calendar day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// Draft returns the goal without its id, as sent on create.
func (g Goal) Draft() Draft {
	return Draft{
		Name:         g.Name,
		Category:     g.Category,
		TargetAmount: g.TargetAmount,
		SavedAmount:  g.SavedAmount,
		Deadline:     g.Deadline,
		CreatedAt:    g.CreatedAt,
	}
}

// FullPatch returns a patch overwriting every mutable field of g.
func (g Goal) FullPatch() GoalPatch {
	name, category := g.Name, g.Category
	target, saved := g.TargetAmount, g.SavedAmount
	deadline, created := g.Deadline, g.CreatedAt
	p := GoalPatch{
		Name:         &name,
		Category:     &category,
		TargetAmount: &target,
		SavedAmount:  &saved,
		Deadline:     &deadline,
	}
	if !created.IsZero() {
		p.CreatedAt = &created
	}
	return p
}

// SavedAmountPatch returns a patch that only sets savedAmount.
func SavedAmountPatch(saved decimal.Decimal) GoalPatch {
	return GoalPatch{SavedAmount: &saved}
}

// IsDeposit reports whether the patch only sets savedAmount.
func (p GoalPatch) IsDeposit() bool {
	return p.SavedAmount != nil && p.Name == nil && p.Category == nil &&
		p.TargetAmount == nil && p.Deadline == nil && p.CreatedAt == nil
}

// Apply returns g with the non-nil patch fields overwritten.
func (p GoalPatch) Apply(g Goal) Goal {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Category != nil {
		g.Category = *p.Category
	}
	if p.TargetAmount != nil {
		g.TargetAmount = *p.TargetAmount
	}
	if p.SavedAmount != nil {
		g.SavedAmount = *p.SavedAmount
	}
	if p.Deadline != nil {
		g.Deadline = *p.Deadline
	}
	if p.CreatedAt != nil {
		g.CreatedAt = *p.CreatedAt
	}
	return g
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(d.Category) == "" {
		return ErrEmptyCategory
	}
	if d.TargetAmount.IsNegative() || d.SavedAmount.IsNegative() {
		return ErrNegativeAmount
	}
	if d.Deadline.IsZero() {
		return ErrMissingDeadline
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return errors.New("missing goal id")
	}
	return g.Draft().Validate()
}
