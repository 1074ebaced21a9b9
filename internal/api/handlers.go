package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olv-group/prospect-intel/internal/analysis"
	"github.com/olv-group/prospect-intel/internal/cnpj"
	"github.com/olv-group/prospect-intel/internal/maturity"
	"github.com/olv-group/prospect-intel/internal/model"
	"github.com/olv-group/prospect-intel/internal/store"
	"github.com/olv-group/prospect-intel/internal/vendorfit"
)

const healthTimeout = 2 * time.Second

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type normalizeRequest struct {
	Input string `json:"input"`
}

type normalizeResponse struct {
	CNPJ      string `json:"cnpj"`
	Valid     bool   `json:"valid"`
	Formatted string `json:"formatted"`
}

func (s *server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	v := cnpj.Validator{Strict: s.features.StrictCNPJ}
	writeJSON(w, http.StatusOK, normalizeResponse{
		CNPJ:      cnpj.Normalize(req.Input),
		Valid:     v.Valid(req.Input),
		Formatted: cnpj.Format(req.Input),
	})
}

// scoreRequest is a ScoringInput with an optional reference date.
type scoreRequest struct {
	model.ScoringInput
	AsOf *time.Time `json:"as_of,omitempty"`
}

func (s *server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	asOf := s.now().UTC()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}
	writeJSON(w, http.StatusOK, s.scorer.Calculate(req.ScoringInput, asOf))
}

func (s *server) handleMaturity(w http.ResponseWriter, r *http.Request) {
	var in maturity.Input
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, maturity.Compute(in))
}

func (s *server) handleFit(w http.ResponseWriter, r *http.Request) {
	var in vendorfit.Input
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendorfit.Suggest(in))
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis unavailable")
		return
	}
	var req analysis.Request
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	a, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis unavailable")
		return
	}
	report, err := s.analyzer.Get(r.Context(), chi.URLParam(r, "cnpj"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) handleListMutes(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alerts unavailable")
		return
	}
	mutes, err := s.alerts.ListActiveMutes(r.Context(), s.now().UTC())
	if err != nil {
		handleError(w, r, err)
		return
	}
	if mutes == nil {
		mutes = []model.AlertMute{}
	}
	writeJSON(w, http.StatusOK, mutes)
}

// muteRequest scopes a mute. Either Until or Duration (Go duration syntax,
// e.g. "24h") sets the deadline.
type muteRequest struct {
	RuleName  string     `json:"rule_name,omitempty"`
	CompanyID string     `json:"company_id,omitempty"`
	Vendor    string     `json:"vendor,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
	Duration  string     `json:"duration,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`
}

func (req muteRequest) toMute(now time.Time) (*model.AlertMute, error) {
	var until time.Time
	switch {
	case req.Until != nil && req.Duration != "":
		return nil, model.NewValidationError("until", "set either until or duration, not both")
	case req.Until != nil:
		until = req.Until.UTC()
	case req.Duration != "":
		d, err := time.ParseDuration(req.Duration)
		if err != nil || d <= 0 {
			return nil, model.NewValidationError("duration", "must be a positive duration such as 24h")
		}
		until = now.Add(d)
	default:
		return nil, model.NewValidationError("until", "until or duration is required")
	}
	if !until.After(now) {
		return nil, model.NewValidationError("until", "must be in the future")
	}

	return &model.AlertMute{
		RuleName:  optional(req.RuleName),
		CompanyID: optional(req.CompanyID),
		Vendor:    optional(strings.ToUpper(strings.TrimSpace(req.Vendor))),
		Until:     until,
		Reason:    req.Reason,
		CreatedBy: req.CreatedBy,
		CreatedAt: now,
	}, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (s *server) handleCreateMute(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alerts unavailable")
		return
	}
	var req muteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	m, err := req.toMute(s.now().UTC())
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.alerts.CreateMute(r.Context(), m); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *server) handleDeleteMute(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alerts unavailable")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.alerts.DeleteMute(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "alerts unavailable")
		return
	}
	res, err := s.sweeper.Sweep(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alerts unavailable")
		return
	}
	limit := store.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			handleError(w, r, model.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = n
	}
	events, err := s.alerts.ListAlertEvents(r.Context(), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if events == nil {
		events = []model.AlertEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
