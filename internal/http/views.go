package http

import (
	"context"
	"net/url"
	"slices"

	"goalplanner/internal/core"
	"goalplanner/internal/forms"
	"goalplanner/internal/journal"
	"goalplanner/internal/log"
)

type pageData struct {
	Loading     bool
	Banner      bannerData
	Overview    core.Overview
	List        listData
	GoalForm    goalFormData
	DepositForm depositFormData
	Activity    activityData
}

type bannerData struct {
	Message string
}

type listData struct {
	Sort       string
	Category   string
	Categories []string
	Items      []core.GoalView
}

type editData struct {
	ID     string
	Fields forms.GoalFields
	Errors forms.FieldErrors
}

type goalFormData struct {
	Fields   forms.GoalFields
	Errors   forms.FieldErrors
	Category forms.CategoryControl
}

type depositFormData struct {
	Form     forms.DepositForm
	Errors   forms.FieldErrors
	Options  []forms.GoalOption
	Selected *core.GoalView
}

type activityData struct {
	Enabled bool
	Entries []journal.Entry
	Err     error
}

func (s *Server) page(ctx context.Context, q url.Values) pageData {
	goals := s.store.Goals()
	today := s.store.Today()
	msg := s.store.LastError()
	return pageData{
		Loading:     !s.store.Loaded() && msg == "",
		Banner:      bannerData{Message: msg},
		Overview:    core.ComputeOverview(goals, today),
		List:        newListData(goals, today, q),
		GoalForm:    newGoalFormData(goals, forms.GoalFields{}, nil),
		DepositForm: newDepositFormData(goals, today, forms.DepositForm{}, nil),
		Activity:    s.recentActivity(ctx),
	}
}

// newListData applies the sort and category query to the collection. A
// requested category nobody uses any more stays selectable so the filter
// control keeps showing it.
func newListData(goals []core.Goal, today core.Date, q url.Values) listData {
	opts := core.ListOptions{
		Category: q.Get("category"),
		Sort:     core.ParseSortKey(q.Get("sort")),
	}
	cats := core.Categories(goals)
	if opts.Category != "" && !slices.Contains(cats, opts.Category) {
		cats = append(cats, opts.Category)
	}
	return listData{
		Sort:       string(opts.Sort),
		Category:   opts.Category,
		Categories: cats,
		Items:      core.DescribeAll(core.ListView(goals, opts), today),
	}
}

func newGoalFormData(goals []core.Goal, fields forms.GoalFields, errs forms.FieldErrors) goalFormData {
	return goalFormData{
		Fields:   fields,
		Errors:   errs,
		Category: forms.NewCategoryControl(goals),
	}
}

func newDepositFormData(goals []core.Goal, today core.Date, f forms.DepositForm, errs forms.FieldErrors) depositFormData {
	d := depositFormData{
		Form:    f,
		Errors:  errs,
		Options: forms.ActiveGoals(goals),
	}
	if g, ok := f.Selected(goals); ok {
		v := core.Describe(g, today)
		d.Selected = &v
	}
	return d
}

func editFields(g core.Goal) forms.GoalFields {
	return forms.GoalFields{
		Name:         g.Name,
		TargetAmount: g.TargetAmount.String(),
		SavedAmount:  g.SavedAmount.String(),
		Category:     g.Category,
		Deadline:     g.Deadline.String(),
	}
}

func submittedEditFields(values url.Values) forms.GoalFields {
	return forms.GoalFields{
		Name:         values.Get(forms.FieldName),
		TargetAmount: values.Get(forms.FieldTargetAmount),
		Category:     values.Get(forms.FieldCategory),
		Deadline:     values.Get(forms.FieldDeadline),
	}
}

func (s *Server) recentActivity(ctx context.Context) activityData {
	if s.activity == nil {
		return activityData{}
	}
	entries, err := s.activity.Recent(ctx, journal.DefaultRecentLimit)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Failed to read activity journal", log.FieldError, err)
	}
	return activityData{Enabled: true, Entries: entries, Err: err}
}
