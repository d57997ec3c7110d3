package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"goalplanner/internal/core"
	"goalplanner/internal/journal"
	"goalplanner/internal/log"
	"goalplanner/internal/middleware/ratelimit"
	"goalplanner/internal/middleware/security"
	"goalplanner/internal/middleware/trace"
	appweb "goalplanner/web"
)

// GoalStore is the part of the goal store the UI drives.
type GoalStore interface {
	Today() core.Date
	Goals() []core.Goal
	Goal(id string) (core.Goal, bool)
	Loaded() bool
	LastError() string
	ClearError()
	FetchAll(ctx context.Context) error
	AddGoal(ctx context.Context, d core.Draft) (core.Goal, error)
	UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
	DeleteGoal(ctx context.Context, id string) error
	MakeDeposit(ctx context.Context, id string, amount decimal.Decimal) (core.Goal, error)
}

// ActivityReader lists the most recent journal entries, newest first.
type ActivityReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

type Server struct {
	http.Server
	templates *template.Template
	store     GoalStore
	activity  ActivityReader
	logger    *log.Logger

	rateLimit int
	headers   security.HeadersConfig
	detector  *security.Detector
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

type Option func(*Server)

// WithActivity enables the activity panel.
func WithActivity(a ActivityReader) Option {
	return func(s *Server) {
		s.activity = a
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentHTTP)
		}
	}
}

// WithRateLimit sets the mutating requests allowed per client and minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		s.rateLimit = perMinute
	}
}

func WithHeaders(cfg security.HeadersConfig) Option {
	return func(s *Server) {
		s.headers = cfg
	}
}

// WithTrustedProxies adds CIDRs whose forwarding headers are believed.
func WithTrustedProxies(cidrs ...string) Option {
	return func(s *Server) {
		for _, cidr := range cidrs {
			if err := s.detector.AddTrustedProxy(cidr); err != nil {
				s.logger.Warn("Ignoring trusted proxy", "cidr", cidr, log.FieldError, err)
			}
		}
	}
}

// NewServer configures routes, templates and middleware, returning a ready-to-run server.
func NewServer(addr string, st GoalStore, opts ...Option) *Server {
	s := &Server{
		store:    st,
		logger:   log.Wrap(nil, log.ComponentHTTP),
		headers:  security.DefaultHeadersConfig(),
		detector: security.NewDetector(),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: s.rateLimit})
	s.tracer = trace.NewMiddleware(s.detector.ClientIP)

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	r := mux.NewRouter()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(security.StaticAssetCache(3600)(static)).Methods(http.MethodGet, http.MethodHead)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	ui := r.PathPrefix("/ui").Subrouter()
	ui.HandleFunc("/overview", s.handleOverview).Methods(http.MethodGet)
	ui.HandleFunc("/goals", s.handleGoalList).Methods(http.MethodGet)
	ui.HandleFunc("/goals/{id}", s.handleGoalItem).Methods(http.MethodGet)
	ui.HandleFunc("/goals/{id}/edit", s.handleGoalEdit).Methods(http.MethodGet)
	ui.HandleFunc("/goal-form", s.handleGoalForm).Methods(http.MethodGet)
	ui.HandleFunc("/deposit-form", s.handleDepositForm).Methods(http.MethodGet)
	ui.HandleFunc("/error", s.handleErrorBanner).Methods(http.MethodGet)
	ui.HandleFunc("/error/dismiss", s.handleDismissError).Methods(http.MethodPost)
	ui.HandleFunc("/activity", s.handleActivity).Methods(http.MethodGet)

	r.HandleFunc("/goals", s.handleCreateGoal).Methods(http.MethodPost)
	r.HandleFunc("/goals/{id}", s.handleUpdateGoal).Methods(http.MethodPost, http.MethodPatch)
	r.HandleFunc("/goals/{id}", s.handleDeleteGoal).Methods(http.MethodDelete)
	r.HandleFunc("/deposits", s.handleDeposit).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Not found").Write(w)
	})

	var h http.Handler = r
	h = s.limiter.Middleware(s.detector.ClientIP, ratelimit.Mutating, s.handleRateLimited)(h)
	h = s.detector.Middleware(h)
	h = security.Headers(s.headers)(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(s.logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError("Too many changes, please wait a moment and try again.").Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleReady reports ready once templates are parsed and goals were fetched once.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	templatesOK := s.templates != nil
	loaded := s.store.Loaded()
	status, code := "ready", http.StatusOK
	if !templatesOK || !loaded {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":       status,
		"templates":    templatesOK,
		"goals_loaded": loaded,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "goalplanner_http_requests_total %d\n", tm.TotalRequests)
	fmt.Fprintf(w, "goalplanner_http_requests_failed_total %d\n", tm.FailedRequests)
	fmt.Fprintf(w, "goalplanner_http_response_time_avg_microseconds %d\n", tm.AverageResponseTime)
	fmt.Fprintf(w, "goalplanner_rate_limit_rejected_total %d\n", rm.Rejected)
	fmt.Fprintf(w, "goalplanner_rate_limit_clients %d\n", rm.ClientCount)
	fmt.Fprintf(w, "goalplanner_suspicious_requests_total %d\n", s.detector.Suspicious())
	fmt.Fprintf(w, "goalplanner_goals %d\n", len(s.store.Goals()))
	fmt.Fprintf(w, "goalplanner_uptime_seconds %d\n", int64(time.Since(s.started).Seconds()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

// render writes one template with the given status. A template failure is a 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		InternalServerError("templates not loaded").Write(w)
		return
	}
	if err := b.Render(s.templates, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldOperation, log.OpRender,
			"template", name,
			log.FieldError, err)
		InternalServerError("Failed to render page").Write(w)
		return
	}
	b.Write(w)
}
