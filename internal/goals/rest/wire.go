package rest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"goalplanner/internal/core"
)

// amount is a decimal that travels as a bare JSON number.
type amount struct {
	decimal.Decimal
}

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *amount) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}
	return a.Decimal.UnmarshalJSON(b)
}

// goalID accepts both string and numeric ids.
type goalID string

func (id *goalID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = goalID(s)
		return nil
	}
	*id = goalID(b)
	return nil
}

type goalJSON struct {
	ID           goalID `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	TargetAmount amount `json:"targetAmount"`
	SavedAmount  amount `json:"savedAmount"`
	Deadline     string `json:"deadline"`
	CreatedAt    string `json:"createdAt"`
}

type draftJSON struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	TargetAmount amount `json:"targetAmount"`
	SavedAmount  amount `json:"savedAmount"`
	Deadline     string `json:"deadline"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

type patchJSON struct {
	Name         *string `json:"name,omitempty"`
	Category     *string `json:"category,omitempty"`
	TargetAmount *amount `json:"targetAmount,omitempty"`
	SavedAmount  *amount `json:"savedAmount,omitempty"`
	Deadline     *string `json:"deadline,omitempty"`
	CreatedAt    *string `json:"createdAt,omitempty"`
}

func toDraftJSON(d core.Draft) draftJSON {
	return draftJSON{
		Name:         d.Name,
		Category:     d.Category,
		TargetAmount: amount{d.TargetAmount},
		SavedAmount:  amount{d.SavedAmount},
		Deadline:     d.Deadline.String(),
		CreatedAt:    d.CreatedAt.String(),
	}
}

func toPatchJSON(p core.GoalPatch) patchJSON {
	var out patchJSON
	out.Name = p.Name
	out.Category = p.Category
	if p.TargetAmount != nil {
		out.TargetAmount = &amount{*p.TargetAmount}
	}
	if p.SavedAmount != nil {
		out.SavedAmount = &amount{*p.SavedAmount}
	}
	if p.Deadline != nil {
		s := p.Deadline.String()
		out.Deadline = &s
	}
	if p.CreatedAt != nil {
		s := p.CreatedAt.String()
		out.CreatedAt = &s
	}
	return out
}

func (g goalJSON) toCore() (core.Goal, error) {
	out, err := g.decode()
	if err != nil {
		return core.Goal{}, err
	}
	return out, nil
}

// decode converts the record, leaving a date that does not parse as the zero
// date and reporting it in the returned error.
func (g goalJSON) decode() (core.Goal, error) {
	var errs []error
	deadline, err := parseWireDate(g.Deadline)
	if err != nil {
		errs = append(errs, fmt.Errorf("goal %s deadline %q: %w", g.ID, g.Deadline, err))
	}
	created, err := parseWireDate(g.CreatedAt)
	if err != nil {
		errs = append(errs, fmt.Errorf("goal %s createdAt %q: %w", g.ID, g.CreatedAt, err))
	}
	return core.Goal{
		ID:           string(g.ID),
		Name:         g.Name,
		Category:     g.Category,
		TargetAmount: g.TargetAmount.Decimal,
		SavedAmount:  g.SavedAmount.Decimal,
		Deadline:     deadline,
		CreatedAt:    created,
	}, errors.Join(errs...)
}

// parseWireDate accepts YYYY-MM-DD and full timestamps, keeping only the date.
// An empty value maps to the zero date.
func parseWireDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, nil
	}
	if len(s) > len(core.DateLayout) {
		s = s[:len(core.DateLayout)]
	}
	return core.ParseDate(s)
}
