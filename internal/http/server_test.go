package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"goalplanner/internal/core"
	"goalplanner/internal/goals"
	"goalplanner/internal/goals/memory"
	"goalplanner/internal/journal"
	"goalplanner/internal/store"
)

var errBoom = errors.New("boom")

func fixedNow() time.Time {
	return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
}

// flakyBackend fails every mutation while failing is set.
type flakyBackend struct {
	goals.Backend
	failing atomic.Bool
}

func (f *flakyBackend) CreateGoal(ctx context.Context, d core.Draft) (core.Goal, error) {
	if f.failing.Load() {
		return core.Goal{}, errBoom
	}
	return f.Backend.CreateGoal(ctx, d)
}

func (f *flakyBackend) PatchGoal(ctx context.Context, id string, p core.GoalPatch) (core.Goal, error) {
	if f.failing.Load() {
		return core.Goal{}, errBoom
	}
	return f.Backend.PatchGoal(ctx, id, p)
}

func (f *flakyBackend) DeleteGoal(ctx context.Context, id string) error {
	if f.failing.Load() {
		return errBoom
	}
	return f.Backend.DeleteGoal(ctx, id)
}

func seedGoals() []core.Goal {
	return []core.Goal{
		{
			ID:           "car",
			Name:         "Car",
			Category:     "Transport",
			TargetAmount: decimal.NewFromInt(1000),
			SavedAmount:  decimal.NewFromInt(400),
			Deadline:     core.NewDate(2026, 10, 24),
			CreatedAt:    core.NewDate(2026, 1, 5),
		},
		{
			ID:           "trip",
			Name:         "Trip",
			Category:     "Travel",
			TargetAmount: decimal.NewFromInt(500),
			SavedAmount:  decimal.NewFromInt(500),
			Deadline:     core.NewDate(2027, 3, 1),
			CreatedAt:    core.NewDate(2026, 2, 1),
		},
	}
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *store.Store, *flakyBackend) {
	t.Helper()
	be := &flakyBackend{Backend: memory.New(seedGoals()...)}
	st := store.New(be, store.WithClock(fixedNow))
	if err := st.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	srv := NewServer(":0", st, opts...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, st, be
}

func do(srv *Server, method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("HX-Request", "true")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(srv, http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"Smart Goal Planner",
		"Savings Overview",
		"Your Goals",
		"Add New Goal",
		"Make a Deposit",
		"Urgent (10 days left)",
		"$900.00",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if strings.Contains(body, "Recent Activity") {
		t.Errorf("activity panel should be hidden without a journal")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s content type = %q", path, ct)
		}
	}
}

func TestReadyBeforeFirstFetch(t *testing.T) {
	st := store.New(memory.New(), store.WithClock(fixedNow))
	srv := NewServer(":0", st)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := do(srv, http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"goals_loaded":false`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(srv, http.MethodGet, "/ui/overview", nil)
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options = %q", rr.Header().Get("X-Frame-Options"))
	}
	if !strings.Contains(rr.Header().Get("Content-Security-Policy"), "https://unpkg.com") {
		t.Errorf("CSP = %q", rr.Header().Get("Content-Security-Policy"))
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID")
	}
}

func TestStaticAndNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(srv, http.MethodGet, "/static/app.css", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}

	rr = do(srv, http.MethodGet, "/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown route status=%d", rr.Code)
	}
}

func TestOverviewPartial(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(srv, http.MethodGet, "/ui/overview", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"of $1,500.00 target", "60%", "due within 30 days"} {
		if !strings.Contains(body, want) {
			t.Errorf("overview missing %q", want)
		}
	}
}

func TestGoalListSortAndFilter(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(srv, http.MethodGet, "/ui/goals?sort=progress", nil)
	body := rr.Body.String()
	if strings.Index(body, `id="goal-trip"`) > strings.Index(body, `id="goal-car"`) {
		t.Errorf("progress sort should list Trip first")
	}
	if !strings.Contains(body, `<option value="progress" selected>`) {
		t.Errorf("sort selection not kept")
	}

	rr = do(srv, http.MethodGet, "/ui/goals?category=Travel", nil)
	body = rr.Body.String()
	if strings.Contains(body, `id="goal-car"`) || !strings.Contains(body, `id="goal-trip"`) {
		t.Errorf("category filter not applied")
	}

	rr = do(srv, http.MethodGet, "/ui/goals?category=Nothing", nil)
	body = rr.Body.String()
	if !strings.Contains(body, "No goals found. Add a new goal to get started!") {
		t.Errorf("empty state missing")
	}
	if !strings.Contains(body, `<option value="Nothing" selected>`) {
		t.Errorf("unknown category should stay selected")
	}
}

func TestItemAndEditPartials(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(srv, http.MethodGet, "/ui/goals/trip", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Completed") {
		t.Fatalf("item partial status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(srv, http.MethodGet, "/ui/goals/car/edit", nil)
	body := rr.Body.String()
	if !strings.Contains(body, `value="2026-10-24"`) || !strings.Contains(body, "Save Changes") {
		t.Errorf("edit form missing values: %s", body)
	}

	rr = do(srv, http.MethodGet, "/ui/goals/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing item status=%d", rr.Code)
	}
}

func goalForm(name string) url.Values {
	return url.Values{
		"name":         {name},
		"targetAmount": {"2000"},
		"savedAmount":  {""},
		"category":     {"Home"},
		"deadline":     {"2027-06-30"},
	}
}

func TestCreateGoal(t *testing.T) {
	t.Run("validation keeps the typed values", func(t *testing.T) {
		srv, st, _ := newTestServer(t)
		form := goalForm("")
		rr := do(srv, http.MethodPost, "/goals", form)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status=%d", rr.Code)
		}
		body := rr.Body.String()
		if !strings.Contains(body, "Goal name is required") || !strings.Contains(body, `value="2000"`) {
			t.Errorf("body = %s", body)
		}
		if len(st.Goals()) != 2 {
			t.Errorf("nothing should be created")
		}
	})

	t.Run("success", func(t *testing.T) {
		srv, st, _ := newTestServer(t)
		rr := do(srv, http.MethodPost, "/goals", goalForm("House"))
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		trigger := rr.Header().Get("HX-Trigger")
		for _, want := range []string{EventGoalsChanged, EventFormReset, `"type":"success"`} {
			if !strings.Contains(trigger, want) {
				t.Errorf("HX-Trigger missing %q: %s", want, trigger)
			}
		}
		if strings.Contains(rr.Body.String(), `value="House"`) {
			t.Errorf("form should come back empty")
		}
		list := st.Goals()
		if len(list) != 3 || list[2].Name != "House" {
			t.Fatalf("goals = %+v", list)
		}
		if !list[2].CreatedAt.Equal(core.NewDate(2026, 10, 14).Time) {
			t.Errorf("createdAt = %s", list[2].CreatedAt)
		}
	})

	t.Run("backend failure still resets the form", func(t *testing.T) {
		srv, st, be := newTestServer(t)
		be.failing.Store(true)
		rr := do(srv, http.MethodPost, "/goals", goalForm("House"))
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		trigger := rr.Header().Get("HX-Trigger")
		if strings.Contains(trigger, EventGoalsChanged) || !strings.Contains(trigger, EventErrorChanged) {
			t.Errorf("HX-Trigger = %s", trigger)
		}
		if !strings.Contains(trigger, EventFormReset) {
			t.Errorf("form reset missing: %s", trigger)
		}
		if strings.Contains(rr.Body.String(), `value="House"`) {
			t.Errorf("form should be reset after a failed add")
		}
		if got := st.LastError(); got != "Error adding goal: boom" {
			t.Errorf("LastError() = %q", got)
		}
	})

	t.Run("plain form post redirects", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/goals", strings.NewReader(goalForm("House").Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
			t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
		}
	})
}

func editForm(name string) url.Values {
	return url.Values{
		"name":         {name},
		"targetAmount": {"1200"},
		"category":     {"Transport"},
		"deadline":     {"2026-12-31"},
	}
}

func TestUpdateGoal(t *testing.T) {
	t.Run("success keeps saved amount", func(t *testing.T) {
		srv, st, _ := newTestServer(t)
		rr := do(srv, http.MethodPost, "/goals/car", editForm("Car Fund"))
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "Car Fund") {
			t.Errorf("item not re-rendered")
		}
		g, _ := st.Goal("car")
		if g.Name != "Car Fund" || !g.SavedAmount.Equal(decimal.NewFromInt(400)) || !g.TargetAmount.Equal(decimal.NewFromInt(1200)) {
			t.Errorf("goal = %+v", g)
		}
		if !strings.Contains(rr.Header().Get("HX-Trigger"), EventGoalsChanged) {
			t.Errorf("missing goals:changed")
		}
	})

	t.Run("PATCH is accepted", func(t *testing.T) {
		srv, st, _ := newTestServer(t)
		rr := do(srv, http.MethodPatch, "/goals/car", editForm("Car Fund"))
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		if g, _ := st.Goal("car"); g.Name != "Car Fund" {
			t.Errorf("name = %q", g.Name)
		}
	})

	t.Run("validation", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		rr := do(srv, http.MethodPost, "/goals/car", editForm(""))
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status=%d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "Goal name is required") {
			t.Errorf("body = %s", rr.Body.String())
		}
	})

	t.Run("failure leaves edit mode with the old values", func(t *testing.T) {
		srv, st, be := newTestServer(t)
		be.failing.Store(true)
		rr := do(srv, http.MethodPost, "/goals/car", editForm("Car Fund"))
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		body := rr.Body.String()
		if strings.Contains(body, "Car Fund") || strings.Contains(body, "Save Changes") {
			t.Errorf("expected the unchanged card, got %s", body)
		}
		if st.LastError() != "Error updating goal: boom" {
			t.Errorf("LastError() = %q", st.LastError())
		}
	})

	t.Run("unknown goal", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		rr := do(srv, http.MethodPost, "/goals/missing", editForm("X"))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status=%d", rr.Code)
		}
	})
}

func TestDeleteGoal(t *testing.T) {
	srv, st, be := newTestServer(t)

	be.failing.Store(true)
	rr := do(srv, http.MethodDelete, "/goals/car", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("failed delete status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventErrorChanged) {
		t.Errorf("HX-Trigger = %s", rr.Header().Get("HX-Trigger"))
	}
	if _, ok := st.Goal("car"); !ok {
		t.Fatalf("goal removed despite failure")
	}

	be.failing.Store(false)
	rr = do(srv, http.MethodDelete, "/goals/car", nil)
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Fatalf("delete status=%d body=%q", rr.Code, rr.Body.String())
	}
	if _, ok := st.Goal("car"); ok {
		t.Fatalf("goal still present")
	}
}

func TestDeposit(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantCode   int
		wantInBody string
	}{
		{
			name:       "missing goal and amount",
			form:       url.Values{"goalId": {""}, "amount": {""}},
			wantCode:   http.StatusUnprocessableEntity,
			wantInBody: "Please select a goal",
		},
		{
			name:       "zero amount",
			form:       url.Values{"goalId": {"car"}, "amount": {"0"}},
			wantCode:   http.StatusUnprocessableEntity,
			wantInBody: "Amount must be greater than 0",
		},
		{
			name:       "over remaining",
			form:       url.Values{"goalId": {"car"}, "amount": {"700"}},
			wantCode:   http.StatusUnprocessableEntity,
			wantInBody: "Amount exceeds the remaining goal amount (600.00)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, st, _ := newTestServer(t)
			rr := do(srv, http.MethodPost, "/deposits", tt.form)
			if rr.Code != tt.wantCode {
				t.Fatalf("status=%d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.wantInBody) {
				t.Errorf("body missing %q", tt.wantInBody)
			}
			if g, _ := st.Goal("car"); !g.SavedAmount.Equal(decimal.NewFromInt(400)) {
				t.Errorf("saved amount changed to %s", g.SavedAmount)
			}
		})
	}

	t.Run("success", func(t *testing.T) {
		srv, st, _ := newTestServer(t)
		rr := do(srv, http.MethodPost, "/deposits", url.Values{"goalId": {"car"}, "amount": {"100"}})
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		if g, _ := st.Goal("car"); !g.SavedAmount.Equal(decimal.NewFromInt(500)) {
			t.Errorf("saved amount = %s", g.SavedAmount)
		}
		if !strings.Contains(rr.Header().Get("HX-Trigger"), EventGoalsChanged) {
			t.Errorf("missing goals:changed")
		}
		if strings.Contains(rr.Body.String(), `value="100"`) {
			t.Errorf("form should be cleared after success")
		}
	})

	t.Run("failure keeps values", func(t *testing.T) {
		srv, st, be := newTestServer(t)
		be.failing.Store(true)
		rr := do(srv, http.MethodPost, "/deposits", url.Values{"goalId": {"car"}, "amount": {"100"}})
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		body := rr.Body.String()
		if !strings.Contains(body, `value="100"`) || !strings.Contains(body, `<div class="alert alert-danger">boom</div>`) {
			t.Errorf("body = %s", body)
		}
		if st.LastError() != "Error making deposit: boom" {
			t.Errorf("LastError() = %q", st.LastError())
		}
	})
}

func TestDepositFormPartial(t *testing.T) {
	srv, st, _ := newTestServer(t)

	rr := do(srv, http.MethodGet, "/ui/deposit-form?goalId=car", nil)
	body := rr.Body.String()
	if !strings.Contains(body, "Remaining to goal: $600.00 of $1000.00") {
		t.Errorf("remaining hint missing: %s", body)
	}
	if strings.Contains(body, `value="trip"`) {
		t.Errorf("completed goals must not be offered")
	}

	if _, err := st.MakeDeposit(context.Background(), "car", decimal.NewFromInt(600)); err != nil {
		t.Fatal(err)
	}
	rr = do(srv, http.MethodGet, "/ui/deposit-form", nil)
	body = rr.Body.String()
	if !strings.Contains(body, "No active goals available") || !strings.Contains(body, "disabled>") {
		t.Errorf("expected disabled form without active goals: %s", body)
	}
}

func TestErrorBannerAndDismiss(t *testing.T) {
	srv, st, be := newTestServer(t)
	be.failing.Store(true)
	_ = st.DeleteGoal(context.Background(), "car")

	rr := do(srv, http.MethodGet, "/ui/error", nil)
	if !strings.Contains(rr.Body.String(), "Error deleting goal: boom") {
		t.Fatalf("banner = %s", rr.Body.String())
	}

	rr = do(srv, http.MethodPost, "/ui/error/dismiss", url.Values{})
	if rr.Code != http.StatusOK || strings.Contains(rr.Body.String(), "boom") {
		t.Fatalf("dismiss status=%d body=%s", rr.Code, rr.Body.String())
	}
	if st.LastError() != "" {
		t.Errorf("error slot not cleared")
	}
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	srv, _, _ := newTestServer(t, WithRateLimit(1))

	if rr := do(srv, http.MethodPost, "/ui/error/dismiss", url.Values{}); rr.Code != http.StatusOK {
		t.Fatalf("first mutation status=%d", rr.Code)
	}
	rr := do(srv, http.MethodPost, "/ui/error/dismiss", url.Values{})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second mutation status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Errorf("missing Retry-After")
	}
	if rr := do(srv, http.MethodGet, "/ui/overview", nil); rr.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, status=%d", rr.Code)
	}
}

func TestActivityPanel(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	st := store.New(memory.New(seedGoals()...), store.WithClock(fixedNow), store.WithObserver(j))
	if err := st.FetchAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	srv := NewServer(":0", st, WithActivity(j))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := do(srv, http.MethodGet, "/ui/activity", nil)
	if !strings.Contains(rr.Body.String(), "No activity yet.") {
		t.Fatalf("body = %s", rr.Body.String())
	}

	do(srv, http.MethodPost, "/deposits", url.Values{"goalId": {"car"}, "amount": {"100"}})
	rr = do(srv, http.MethodGet, "/ui/activity", nil)
	if !strings.Contains(rr.Body.String(), "Deposited $100.00") {
		t.Fatalf("body = %s", rr.Body.String())
	}

	rr = do(srv, http.MethodGet, "/", nil)
	if !strings.Contains(rr.Body.String(), "Recent Activity") {
		t.Errorf("index should show the activity panel")
	}
}

func TestActivityDisabled(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if rr := do(srv, http.MethodGet, "/ui/activity", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv, _, _ := newTestServer(t)
	do(srv, http.MethodGet, "/healthz", nil)

	rr := do(srv, http.MethodGet, "/metrics", nil)
	body := rr.Body.String()
	for _, want := range []string{"goalplanner_http_requests_total 1", "goalplanner_goals 2"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		view core.GoalView
		want string
	}{
		{core.GoalView{Status: core.StatusCompleted}, "Completed"},
		{core.GoalView{Status: core.StatusOverdue, DaysRemaining: -3}, "Overdue"},
		{core.GoalView{Status: core.StatusUrgent, DaysRemaining: 7}, "Urgent (7 days left)"},
		{core.GoalView{Status: core.StatusNormal, DaysRemaining: 0}, "0 days remaining"},
		{core.GoalView{Status: core.StatusNormal, DaysRemaining: 45}, "45 days remaining"},
	}
	for _, tt := range tests {
		if got := statusText(tt.view); got != tt.want {
			t.Errorf("statusText(%v) = %q, want %q", tt.view.Status, got, tt.want)
		}
	}
}
