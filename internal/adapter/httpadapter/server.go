package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/fire-vulnerability-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultExtremes = 5
	defaultRunLimit = 20
	maxRunLimit     = 100
)

// ReportProvider supplies the latest published scoring report.
type ReportProvider interface {
	sharedobs.ReadinessChecker
	Latest() (*domain.Report, bool)
}

// RunHistory lists past scoring runs, newest first.
type RunHistory interface {
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
}

// Server exposes health, readiness, metrics and the scoring API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	reports    ReportProvider
	history    RunHistory
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api/v1 routes. history may be nil, in which case /api/v1/runs is not
// registered.
func NewServer(addr string, reports ReportProvider, history RunHistory, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      logRequests(logger, mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:  logger,
		reports: reports,
		history: history,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(reports))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/leaderboard", s.withReport(s.handleLeaderboard))
	mux.HandleFunc("GET /api/v1/choropleth", s.withReport(s.handleChoropleth))
	mux.HandleFunc("GET /api/v1/criteria", s.withReport(s.handleCriteria))
	mux.HandleFunc("GET /api/v1/criteria/{name}/ranks", s.withReport(s.handleCriterionRanks))
	mux.HandleFunc("GET /api/v1/criteria/{name}/extremes", s.withReport(s.handleExtremes))
	mux.HandleFunc("GET /api/v1/districts/{id}", s.withReport(s.handleDistrict))
	if history != nil {
		mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type reportHandler func(w http.ResponseWriter, r *http.Request, report *domain.Report)

// withReport answers 503 until the first report exists.
func (s *Server) withReport(h reportHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := s.reports.Latest()
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "no scoring run has completed yet")
			return
		}
		h(w, r, report)
	}
}

type leaderboardResponse struct {
	RunID       string                    `json:"run_id"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Entries     []domain.LeaderboardEntry `json:"entries"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, _ *http.Request, report *domain.Report) {
	sharedobs.WriteJSON(w, http.StatusOK, leaderboardResponse{
		RunID:       report.RunID,
		GeneratedAt: report.GeneratedAt,
		Entries:     report.Leaderboard,
	})
}

type choroplethResponse struct {
	RunID       string                 `json:"run_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Districts   []domain.DistrictScore `json:"districts"`
}

func (s *Server) handleChoropleth(w http.ResponseWriter, _ *http.Request, report *domain.Report) {
	sharedobs.WriteJSON(w, http.StatusOK, choroplethResponse{
		RunID:       report.RunID,
		GeneratedAt: report.GeneratedAt,
		Districts:   report.Districts,
	})
}

func (s *Server) handleCriteria(w http.ResponseWriter, _ *http.Request, report *domain.Report) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"criteria": report.Criteria})
}

type criterionRanksResponse struct {
	Criterion domain.Criterion   `json:"criterion"`
	Ranks     []domain.RankEntry `json:"ranks"`
}

func (s *Server) handleCriterionRanks(w http.ResponseWriter, r *http.Request, report *domain.Report) {
	c, ok := lookupCriterion(w, r, report)
	if !ok {
		return
	}
	ranked, ok := report.Result.CriterionRanks(c.Name)
	if !ok {
		writeError(w, http.StatusNotFound, "criterion has no ranks: "+c.Name)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, criterionRanksResponse{Criterion: c, Ranks: ranked.SortedRanks()})
}

type extremesResponse struct {
	Label string `json:"label,omitempty"`
	domain.Extremes
}

func (s *Server) handleExtremes(w http.ResponseWriter, r *http.Request, report *domain.Report) {
	c, ok := lookupCriterion(w, r, report)
	if !ok {
		return
	}
	n, err := intQuery(r, "n", defaultExtremes, report.Table.Len())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ex, err := domain.MostVulnerable(report.Table, c, n)
	if err != nil {
		s.logger.Error("extremes failed", "criterion", c.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "could not compute extremes")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, extremesResponse{Label: c.Label, Extremes: ex})
}

func (s *Server) handleDistrict(w http.ResponseWriter, r *http.Request, report *domain.Report) {
	id := domain.DistrictID(r.PathValue("id"))
	ds, ok := report.Result.District(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown district: "+string(id))
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, ds)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	if runs == nil {
		runs = []domain.RunSummary{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func lookupCriterion(w http.ResponseWriter, r *http.Request, report *domain.Report) (domain.Criterion, bool) {
	name := r.PathValue("name")
	c, ok := report.Criterion(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown criterion: "+name)
	}
	return c, ok
}

// intQuery parses a positive integer query parameter. Values above ceiling
// are clamped.
func intQuery(r *http.Request, key string, def, ceiling int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return min(def, max(ceiling, 1)), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return min(n, max(ceiling, 1)), nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
