// Package api exposes fund holdings, comparisons, and favorites over JSON HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/edgar"
	"github.com/sells-group/holdings-cli/internal/holdings"
	"github.com/sells-group/holdings-cli/internal/ingest"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/reconcile"
	"github.com/sells-group/holdings-cli/internal/store"
)

// Holdings is the boundary service the handlers read through.
type Holdings interface {
	FetchAndProcessHoldings(ctx context.Context, cik string, start, end time.Time) (*holdings.Snapshot, error)
	AddSubmissions(ctx context.Context, cik string, start, end time.Time) (*ingest.FetchResult, error)
	ProcessHoldings(snap *holdings.Snapshot) []reconcile.ComparisonRow
	ProcessMonitorHoldings(snap *holdings.Snapshot, n int) ([]reconcile.MonitorRow, []string)
}

// Feed reads the latest-filings feed.
type Feed interface {
	LatestFilings(ctx context.Context, form model.FilingType, count int) ([]edgar.LatestFiling, error)
}

// Options configures a Server.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server routes API requests.
type Server struct {
	router   chi.Router
	store    store.Store
	holdings Holdings
	feed     Feed
	opts     Options
}

// Response is the envelope of every API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewServer creates a Server with all routes mounted.
func NewServer(st store.Store, h Holdings, feed Feed, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Minute
	}
	s := &Server{store: st, holdings: h, feed: feed, opts: opts}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/funds", func(r chi.Router) {
		r.Get("/", s.handleSearchFunds)
		r.Route("/{cik}", func(r chi.Router) {
			r.Get("/holdings", s.handleHoldings)
			r.Get("/monitor", s.handleMonitor)
			r.Post("/submissions", s.handleAddSubmissions)
		})
	})

	r.Get("/submissions/{accession}", s.handleSubmission)
	r.Get("/filings/latest", s.handleLatestFilings)

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/favorites", s.handleListFavorites)
		r.Post("/favorites", s.handleAddFavorite)
		r.Delete("/favorites/{fundID}", s.handleRemoveFavorite)
		r.Get("/monitor", s.handleUserMonitor)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: write response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

// writeFailure maps domain errors to statuses. Unclassified errors are logged
// and reported without detail.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, holdings.ErrNoFilings):
		writeError(w, http.StatusNotFound, holdings.ErrNoFilings.Error())
	case errors.Is(err, holdings.ErrBadWindow):
		writeError(w, http.StatusBadRequest, "end is before start")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrAlreadyFavorite):
		writeError(w, http.StatusConflict, "fund is already in favorites")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
