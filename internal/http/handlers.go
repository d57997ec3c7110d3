package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"goalplanner/internal/core"
	"goalplanner/internal/forms"
	"goalplanner/internal/log"
)

// handleIndex reloads the collection and renders the whole page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.store.FetchAll(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Rendering page from cached goals", log.FieldError, err)
	}
	s.render(w, r, NewHTMXResponse(), "index", s.page(ctx, r.URL.Query()))
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov := core.ComputeOverview(s.store.Goals(), s.store.Today())
	s.render(w, r, NewHTMXResponse(), "overview", ov)
}

func (s *Server) handleGoalList(w http.ResponseWriter, r *http.Request) {
	data := newListData(s.store.Goals(), s.store.Today(), r.URL.Query())
	s.render(w, r, NewHTMXResponse(), "goal_list", data)
}

func (s *Server) handleGoalItem(w http.ResponseWriter, r *http.Request) {
	g, ok := s.store.Goal(mux.Vars(r)["id"])
	if !ok {
		NotFoundError("Goal not found").Write(w)
		return
	}
	s.render(w, r, NewHTMXResponse(), "goal_item", core.Describe(g, s.store.Today()))
}

func (s *Server) handleGoalEdit(w http.ResponseWriter, r *http.Request) {
	g, ok := s.store.Goal(mux.Vars(r)["id"])
	if !ok {
		NotFoundError("Goal not found").Write(w)
		return
	}
	s.render(w, r, NewHTMXResponse(), "goal_edit", editData{ID: g.ID, Fields: editFields(g)})
}

func (s *Server) handleGoalForm(w http.ResponseWriter, r *http.Request) {
	data := newGoalFormData(s.store.Goals(), forms.GoalFields{}, nil)
	s.render(w, r, NewHTMXResponse(), "goal_form", data)
}

// handleDepositForm renders the deposit form, keeping a selection passed in
// the query so the remaining hint follows the selected goal.
func (s *Server) handleDepositForm(w http.ResponseWriter, r *http.Request) {
	f := forms.ParseDepositForm(r.URL.Query())
	data := newDepositFormData(s.store.Goals(), s.store.Today(), f, nil)
	s.render(w, r, NewHTMXResponse(), "deposit_form", data)
}

func (s *Server) handleErrorBanner(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, NewHTMXResponse(), "error_banner", bannerData{Message: s.store.LastError()})
}

func (s *Server) handleDismissError(w http.ResponseWriter, r *http.Request) {
	s.store.ClearError()
	if !isHTMX(r) {
		redirectHome(w, r)
		return
	}
	s.render(w, r, NewHTMXResponse(), "error_banner", bannerData{})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		NotFoundError("Activity journal is disabled").Write(w)
		return
	}
	s.render(w, r, NewHTMXResponse(), "activity", s.recentActivity(r.Context()))
}
