package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sells-group/holdings-cli/internal/edgar"
	"github.com/sells-group/holdings-cli/internal/holdings"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/reconcile"
	"github.com/sells-group/holdings-cli/internal/store"
)

// HoldingsResponse is the comparison view of a fund.
type HoldingsResponse struct {
	CIK         string                        `json:"cik"`
	Fund        *model.Fund                   `json:"fund,omitempty"`
	Latest      model.Submission              `json:"latest_submission"`
	Submissions []reconcile.SubmissionSummary `json:"submissions"`
	Holdings    []reconcile.ComparisonRow     `json:"holdings"`
}

// MonitorResponse is the N-period share matrix of a fund.
type MonitorResponse struct {
	CIK     string                 `json:"cik"`
	Fund    *model.Fund            `json:"fund,omitempty"`
	Headers []string               `json:"headers"`
	Rows    []reconcile.MonitorRow `json:"rows"`
}

type windowRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type favoriteRequest struct {
	FundID string `json:"fund_id"`
	CIK    string `json:"cik"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearchFunds(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	funds, err := s.store.SearchFunds(r.Context(), store.FundFilter{
		Query: r.URL.Query().Get("q"),
		Limit: limit,
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if funds == nil {
		funds = []model.Fund{}
	}
	writeData(w, http.StatusOK, funds)
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	cik, ok := pathCIK(w, r)
	if !ok {
		return
	}
	start, end, ok := queryWindow(w, r)
	if !ok {
		return
	}

	snap, err := s.holdings.FetchAndProcessHoldings(r.Context(), cik, start, end)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, HoldingsResponse{
		CIK:         snap.CIK,
		Fund:        snap.Fund,
		Latest:      snap.Latest,
		Submissions: snap.Submissions,
		Holdings:    s.holdings.ProcessHoldings(snap),
	})
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	cik, ok := pathCIK(w, r)
	if !ok {
		return
	}
	s.writeMonitor(w, r, cik)
}

// handleUserMonitor shows the monitor view of the user's first favorite fund.
func (s *Server) handleUserMonitor(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	favs, err := s.store.ListFavorites(r.Context(), userID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if len(favs) == 0 {
		writeError(w, http.StatusNotFound, "user has no favorite funds")
		return
	}
	s.writeMonitor(w, r, favs[0].CIK)
}

func (s *Server) writeMonitor(w http.ResponseWriter, r *http.Request, cik string) {
	periods, ok := queryInt(w, r, "periods")
	if !ok {
		return
	}

	snap, err := s.holdings.FetchAndProcessHoldings(r.Context(), cik, time.Time{}, time.Time{})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	rows, headers := s.holdings.ProcessMonitorHoldings(snap, periods)
	writeData(w, http.StatusOK, MonitorResponse{
		CIK:     snap.CIK,
		Fund:    snap.Fund,
		Headers: headers,
		Rows:    rows,
	})
}

func (s *Server) handleAddSubmissions(w http.ResponseWriter, r *http.Request) {
	cik, ok := pathCIK(w, r)
	if !ok {
		return
	}

	var req windowRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	start, err := parseDate(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := parseDate(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		writeError(w, http.StatusBadRequest, "end is before start")
		return
	}

	res, err := s.holdings.AddSubmissions(r.Context(), cik, start, end)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.store.GetSubmission(r.Context(), chi.URLParam(r, "accession"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sub)
}

func (s *Server) handleLatestFilings(w http.ResponseWriter, r *http.Request) {
	form := model.FilingType13F
	if t := r.URL.Query().Get("type"); t != "" {
		switch model.FilingType(t) {
		case model.FilingType13F, model.FilingTypeNPORT:
			form = model.FilingType(t)
		default:
			writeError(w, http.StatusBadRequest, "type must be 13F-HR or NPORT-P")
			return
		}
	}
	count, ok := queryInt(w, r, "count")
	if !ok {
		return
	}

	filings, err := s.feed.LatestFilings(r.Context(), form, count)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if filings == nil {
		filings = []edgar.LatestFiling{}
	}
	writeData(w, http.StatusOK, filings)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	funds, err := s.store.ListFavorites(r.Context(), userID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if funds == nil {
		funds = []model.Fund{}
	}
	writeData(w, http.StatusOK, funds)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fundID := req.FundID
	switch {
	case fundID != "":
	case req.CIK != "":
		cik, err := model.NormalizeCIK(req.CIK)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cik")
			return
		}
		fund, err := s.store.GetFundByCIK(r.Context(), cik)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		fundID = fund.ID
	default:
		writeError(w, http.StatusBadRequest, "fund_id or cik is required")
		return
	}

	fav, err := s.store.AddFavorite(r.Context(), userID, fundID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, fav)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if err := s.store.RemoveFavorite(r.Context(), userID, chi.URLParam(r, "fundID")); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathCIK(w http.ResponseWriter, r *http.Request) (string, bool) {
	cik, err := model.NormalizeCIK(chi.URLParam(r, "cik"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cik")
		return "", false
	}
	return cik, true
}

func pathUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "user id must be a UUID")
		return "", false
	}
	return id.String(), true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return n, true
}

func queryWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	start, err := parseDate(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	end, err := parseDate(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		writeError(w, http.StatusBadRequest, "end is before start")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// parseDate accepts an empty string as the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}
