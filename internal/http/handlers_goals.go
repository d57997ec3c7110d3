package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"goalplanner/internal/core"
	"goalplanner/internal/forms"
	"goalplanner/internal/log"
	"goalplanner/internal/store"
)

// handleCreateGoal validates the add form and creates the goal. Once the
// submission reached the store the form comes back empty whatever the outcome.
func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := parseForm(w, r); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Parse form error", log.FieldError, err)
		BadRequestError("Invalid form submission").Write(w)
		return
	}

	f := forms.ParseGoalForm(r.PostForm, s.store.Today())
	if errs := f.Validate(); errs.Any() {
		data := newGoalFormData(s.store.Goals(), f.Fields, errs)
		s.render(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "goal_form", data)
		return
	}

	g, err := s.store.AddGoal(ctx, f.Draft)
	if !isHTMX(r) {
		redirectHome(w, r)
		return
	}

	b := NewHTMXResponse().TriggerFormReset()
	if err != nil {
		b.TriggerErrorChanged().TriggerErrorNotification(err.Error())
	} else {
		log.FromContext(ctx).InfoContext(ctx, "Goal created",
			log.NewFields().WithOperation(log.OpAdd).WithGoal(g.ID, g.Name, g.Category).ToSlice()...)
		b.TriggerGoalsChanged().TriggerSuccessNotification(fmt.Sprintf("Goal %q added", g.Name))
	}
	s.render(w, r, b, "goal_form", newGoalFormData(s.store.Goals(), forms.GoalFields{}, nil))
}

// handleUpdateGoal saves the edit form. The card leaves edit mode after any
// store outcome, showing the backend's record on success and the unchanged
// local entry on failure.
func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]
	current, ok := s.store.Goal(id)
	if !ok {
		NotFoundError("Goal not found").Write(w)
		return
	}
	if err := parseForm(w, r); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Parse form error", log.FieldError, err)
		BadRequestError("Invalid form submission").Write(w)
		return
	}

	edited, errs := forms.ParseEditForm(r.PostForm, current)
	if errs.Any() {
		data := editData{ID: id, Fields: submittedEditFields(r.PostForm), Errors: errs}
		s.render(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "goal_edit", data)
		return
	}

	saved, err := s.store.UpdateGoal(ctx, edited)
	if !isHTMX(r) {
		redirectHome(w, r)
		return
	}

	b := NewHTMXResponse()
	shown := saved
	if err != nil {
		b.TriggerErrorChanged().TriggerErrorNotification(err.Error())
		if g, ok := s.store.Goal(id); ok {
			shown = g
		} else {
			shown = current
		}
	} else {
		log.FromContext(ctx).InfoContext(ctx, "Goal updated",
			log.NewFields().WithOperation(log.OpUpdate).WithGoal(saved.ID, saved.Name, saved.Category).ToSlice()...)
		b.TriggerGoalsChanged().TriggerSuccessNotification("Goal updated")
	}
	s.render(w, r, b, "goal_item", core.Describe(shown, s.store.Today()))
}

// handleDeleteGoal removes the card on success. On failure nothing is swapped
// and only the banner refreshes.
func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]
	prev, _ := s.store.Goal(id)

	if err := s.store.DeleteGoal(ctx, id); err != nil {
		NewHTMXResponse().
			Status(http.StatusNoContent).
			TriggerErrorChanged().
			TriggerErrorNotification(err.Error()).
			Write(w)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Goal deleted",
		log.NewFields().WithOperation(log.OpDelete).WithGoal(id, prev.Name, prev.Category).ToSlice()...)
	NewHTMXResponse().
		TriggerGoalsChanged().
		TriggerSuccessNotification("Goal deleted").
		BodyHTML("").
		Write(w)
}

// handleDeposit validates the deposit form against the local collection and
// submits it. A store failure keeps the typed values and shows the cause under
// the submit button.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := parseForm(w, r); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Parse form error", log.FieldError, err)
		BadRequestError("Invalid form submission").Write(w)
		return
	}

	f := forms.ParseDepositForm(r.PostForm)
	if errs := f.Validate(s.store.Goals()); errs.Any() {
		data := newDepositFormData(s.store.Goals(), s.store.Today(), f, errs)
		s.render(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "deposit_form", data)
		return
	}

	amount := f.ParsedAmount()
	g, err := s.store.MakeDeposit(ctx, f.GoalID, amount)
	if !isHTMX(r) {
		redirectHome(w, r)
		return
	}

	if err != nil {
		errs := forms.FieldErrors{forms.FieldSubmit: failureCause(err)}
		data := newDepositFormData(s.store.Goals(), s.store.Today(), f, errs)
		b := NewHTMXResponse().TriggerErrorChanged().TriggerErrorNotification(err.Error())
		s.render(w, r, b, "deposit_form", data)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Deposit made",
		log.NewFields().
			WithOperation(log.OpDeposit).
			WithGoal(g.ID, g.Name, g.Category).
			WithAmount(amount.String()).
			ToSlice()...)

	msg := fmt.Sprintf("Deposited %s to %q", core.FormatCurrency(amount), g.Name)
	if core.IsCompleted(g) {
		msg = fmt.Sprintf("Goal %q completed!", g.Name)
	}
	b := NewHTMXResponse().TriggerGoalsChanged().TriggerSuccessNotification(msg)
	data := newDepositFormData(s.store.Goals(), s.store.Today(), forms.DepositForm{}, nil)
	s.render(w, r, b, "deposit_form", data)
}

// failureCause is the message of the error a store operation failed with,
// without the operation prefix.
func failureCause(err error) string {
	var se *store.Error
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}
