// Package httpapi serves the dashboard to a browser front end as a local
// JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketwatch/internal/archive"
	"marketwatch/internal/dashboard"
	"marketwatch/internal/domain"
	"marketwatch/internal/poll"
	"marketwatch/internal/session"
	"marketwatch/pkg/marketwatch"
)

// Dashboard is the part of dashboard.App the server drives.
type Dashboard interface {
	Snapshot() dashboard.Snapshot
	SubmitAlert(ctx context.Context, symbol string, target decimal.Decimal) error
	DeleteAlert(ctx context.Context, id string) error
	RecordTransaction(ctx context.Context, txn domain.Transaction) error
	SearchAlerts(text string)
	SearchPortfolio(text string)
	RefreshNames(ctx context.Context) error
	Trigger(target string) error
	SetTheme(ctx context.Context, theme string) error
}

var _ Dashboard = (*dashboard.App)(nil)

// Server serves the dashboard HTTP API.
type Server struct {
	app     Dashboard
	archive *archive.Archive
	log     *slog.Logger
}

// NewServer returns a Server for app. archive may be nil, which disables
// the archive routes.
func NewServer(app Dashboard, arch *archive.Archive, log *slog.Logger) *Server {
	return &Server{app: app, archive: arch, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /api/alerts", s.handleAddAlert)
	mux.HandleFunc("DELETE /api/alerts/{id}", s.handleDeleteAlert)
	mux.HandleFunc("POST /api/transactions", s.handleTransaction)
	mux.HandleFunc("POST /api/search/{scope}", s.handleSearch)
	mux.HandleFunc("POST /api/names/refresh", s.handleRefreshNames)
	mux.HandleFunc("POST /api/refresh/{target}", s.handleRefresh)
	mux.HandleFunc("PUT /api/theme/{theme}", s.handleTheme)
	mux.HandleFunc("GET /api/archive/dates", s.handleArchiveDates)
	mux.HandleFunc("GET /api/archive/{date}", s.handleArchiveDay)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// statusFor maps an operation error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptySymbol),
		errors.Is(err, domain.ErrNonPositiveQuantity),
		errors.Is(err, domain.ErrNonPositivePrice),
		errors.Is(err, domain.ErrUnknownSide):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoSession), errors.Is(err, marketwatch.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, poll.ErrUnknownTarget):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Warn(op+" failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, convertSnapshot(s.app.Snapshot()))
}

func (s *Server) handleAddAlert(w http.ResponseWriter, r *http.Request) {
	var req AddAlertRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if err := s.app.SubmitAlert(r.Context(), req.Symbol, req.Target); err != nil {
		s.fail(w, "add alert", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DeleteAlert(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, "delete alert", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	txn := domain.Transaction{
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
		Price:    req.Price,
		Side:     domain.Side(req.Type),
	}
	if err := s.app.RecordTransaction(r.Context(), txn); err != nil {
		s.fail(w, "record transaction", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleSearch feeds one input event to a search panel. Results show up in
// the panel state of GET /api/dashboard once the lookup completes.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	switch r.PathValue("scope") {
	case "alerts":
		s.app.SearchAlerts(req.Text)
	case "portfolio":
		s.app.SearchPortfolio(req.Text)
	default:
		writeError(w, http.StatusNotFound, "scope must be alerts or portfolio")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRefreshNames(w http.ResponseWriter, r *http.Request) {
	if err := s.app.RefreshNames(r.Context()); err != nil {
		s.fail(w, "refresh names", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Trigger(r.PathValue("target")); err != nil {
		s.fail(w, "refresh", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	theme := strings.ToLower(r.PathValue("theme"))
	if theme != dashboard.ThemeDark && theme != dashboard.ThemeLight {
		writeError(w, http.StatusBadRequest, "theme must be dark or light")
		return
	}
	if err := s.app.SetTheme(r.Context(), theme); err != nil {
		s.fail(w, "set theme", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchiveDates(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}
	days, err := s.archive.ListDays()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list archive")
		return
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.Format(time.DateOnly))
	}
	writeJSON(w, out)
}

func (s *Server) handleArchiveDay(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}
	day, err := time.Parse(time.DateOnly, r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	snaps, err := s.archive.ReadHoldings(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read archive")
		return
	}

	times := make([]time.Time, 0, len(snaps))
	for t := range snaps {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	out := make([]ArchiveSnapshot, 0, len(times))
	for _, t := range times {
		out = append(out, ArchiveSnapshot{Time: t.Format(time.RFC3339), Holdings: snaps[t]})
	}
	writeJSON(w, out)
}
