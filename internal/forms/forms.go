// Package forms parses and validates the add-goal, edit-goal and deposit forms.
package forms

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"goalplanner/internal/core"
)

// Form field names.
const (
	FieldName         = "name"
	FieldTargetAmount = "targetAmount"
	FieldSavedAmount  = "savedAmount"
	FieldCategory     = "category"
	FieldDeadline     = "deadline"
	FieldGoalID       = "goalId"
	FieldAmount       = "amount"
	FieldSubmit       = "submit"
)

const maxTextLen = 200

// FieldErrors maps a field name to its message.
type FieldErrors map[string]string

func (e FieldErrors) Any() bool { return len(e) > 0 }

func (e FieldErrors) Get(field string) string { return e[field] }

// GoalFields holds the raw values as typed, for re-rendering a form.
type GoalFields struct {
	Name         string
	TargetAmount string
	SavedAmount  string
	Category     string
	Deadline     string
}

// AddGoalForm is a parsed add-goal submission.
type AddGoalForm struct {
	Fields GoalFields
	Draft  core.Draft
}

// ParseGoalForm reads an add-goal submission. Amounts that fail to parse become
// 0 and createdAt is stamped with today.
func ParseGoalForm(values url.Values, today core.Date) AddGoalForm {
	f := GoalFields{
		Name:         clean(values.Get(FieldName)),
		TargetAmount: strings.TrimSpace(values.Get(FieldTargetAmount)),
		SavedAmount:  strings.TrimSpace(values.Get(FieldSavedAmount)),
		Category:     clean(values.Get(FieldCategory)),
		Deadline:     strings.TrimSpace(values.Get(FieldDeadline)),
	}
	deadline, _ := core.ParseDate(f.Deadline)
	return AddGoalForm{
		Fields: f,
		Draft: core.Draft{
			Name:         f.Name,
			Category:     f.Category,
			TargetAmount: parseFloatOrZero(f.TargetAmount),
			SavedAmount:  parseFloatOrZero(f.SavedAmount),
			Deadline:     deadline,
			CreatedAt:    today,
		},
	}
}

// Validate reports the required fields that are missing.
func (f AddGoalForm) Validate() FieldErrors {
	return requireGoalFields(f.Fields)
}

// ParseEditForm overwrites name, target amount, category and deadline of g.
// saved amount, id and createdAt are kept.
func ParseEditForm(values url.Values, g core.Goal) (core.Goal, FieldErrors) {
	f := GoalFields{
		Name:         clean(values.Get(FieldName)),
		TargetAmount: strings.TrimSpace(values.Get(FieldTargetAmount)),
		Category:     clean(values.Get(FieldCategory)),
		Deadline:     strings.TrimSpace(values.Get(FieldDeadline)),
	}
	errs := requireGoalFields(f)
	if errs.Any() {
		return g, errs
	}
	deadline, _ := core.ParseDate(f.Deadline)
	g.Name = f.Name
	g.TargetAmount = parseFloatOrZero(f.TargetAmount)
	g.Category = f.Category
	g.Deadline = deadline
	return g, nil
}

func requireGoalFields(f GoalFields) FieldErrors {
	errs := FieldErrors{}
	if f.Name == "" {
		errs[FieldName] = "Goal name is required"
	}
	if f.TargetAmount == "" {
		errs[FieldTargetAmount] = "Target amount is required"
	} else if v, err := strconv.ParseFloat(f.TargetAmount, 64); err == nil && v < 0 {
		errs[FieldTargetAmount] = "Target amount cannot be negative"
	}
	if f.SavedAmount != "" {
		if v, err := strconv.ParseFloat(f.SavedAmount, 64); err == nil && v < 0 {
			errs[FieldSavedAmount] = "Saved amount cannot be negative"
		}
	}
	if f.Category == "" {
		errs[FieldCategory] = "Category is required"
	}
	if f.Deadline == "" {
		errs[FieldDeadline] = "Deadline is required"
	} else if _, err := core.ParseDate(f.Deadline); err != nil {
		errs[FieldDeadline] = "Deadline must be a valid date"
	}
	return errs
}

// CategoryControl describes how the category input renders: a select of the
// known categories, or a free-text input when there are none yet.
type CategoryControl struct {
	Options  []string
	FreeText bool
}

func NewCategoryControl(goals []core.Goal) CategoryControl {
	cats := core.Categories(goals)
	return CategoryControl{Options: cats, FreeText: len(cats) == 0}
}

// DepositForm is a deposit submission as typed.
type DepositForm struct {
	GoalID string
	Amount string
}

func ParseDepositForm(values url.Values) DepositForm {
	return DepositForm{
		GoalID: strings.TrimSpace(values.Get(FieldGoalID)),
		Amount: strings.TrimSpace(values.Get(FieldAmount)),
	}
}

// ParsedAmount is the amount as a number input would coerce it; unparsable input is 0.
func (f DepositForm) ParsedAmount() decimal.Decimal {
	return parseFloatOrZero(f.Amount)
}

// Selected returns the selected goal from goals, if any.
func (f DepositForm) Selected(goals []core.Goal) (core.Goal, bool) {
	if f.GoalID == "" {
		return core.Goal{}, false
	}
	for _, g := range goals {
		if g.ID == f.GoalID {
			return g, true
		}
	}
	return core.Goal{}, false
}

// Validate checks every rule and returns all failures together. The remaining
// cap is only checked when the selected goal is known.
func (f DepositForm) Validate(goals []core.Goal) FieldErrors {
	errs := FieldErrors{}
	if f.GoalID == "" {
		errs[FieldGoalID] = "Please select a goal"
	}
	amount := f.ParsedAmount()
	if f.Amount == "" || !amount.IsPositive() {
		errs[FieldAmount] = "Amount must be greater than 0"
	} else if g, ok := f.Selected(goals); ok {
		remaining := core.RemainingRaw(g)
		if amount.GreaterThan(remaining) {
			errs[FieldAmount] = fmt.Sprintf("Amount exceeds the remaining goal amount (%s)", core.FormatFixed(remaining))
		}
	}
	return errs
}

// GoalOption is one entry of the deposit goal selector.
type GoalOption struct {
	ID    string
	Label string
}

// ActiveGoals lists the goals that can still receive deposits.
func ActiveGoals(goals []core.Goal) []GoalOption {
	out := make([]GoalOption, 0, len(goals))
	for _, g := range goals {
		if core.IsCompleted(g) {
			continue
		}
		pct := core.ProgressRatio(g).Mul(decimal.NewFromInt(100)).Round(0)
		out = append(out, GoalOption{
			ID:    g.ID,
			Label: fmt.Sprintf("%s (%s%% complete)", g.Name, pct.String()),
		})
	}
	return out
}

// parseFloatOrZero mirrors number inputs: the value is read as a float and
// falls back to 0.
func parseFloatOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NewFromFloat(v)
	}
	return d
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s)
	if r := []rune(s); len(r) > maxTextLen {
		s = string(r[:maxTextLen])
	}
	return s
}
