package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	engine  *engine.Engine
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	version string
}

// NewHandler creates a new API handler.
func NewHandler(eng *engine.Engine, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		engine:  eng,
		repo:    repo,
		cache:   cache,
		bus:     bus,
		version: version,
	}
}

// PortfolioRequest is the request body for POST /portfolio/evaluate.
type PortfolioRequest struct {
	Profiles []domain.ApplicantProfile `json:"profiles"`
}

// LGDRequest is the request body for PUT /lgd/{product}.
type LGDRequest struct {
	Ratio float64 `json:"ratio"`
}

// Evaluate handles POST /evaluate: run the applicant through the
// policy waterfall.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req domain.ApplicantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Profile.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "profile.id is required",
		})
		return
	}

	decision, err := h.engine.EvaluateApplicant(ctx, tenantID, req.ToProfile())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// EvaluatePolicy handles POST /evaluate/{policy}: check the applicant
// against one named policy instead of the waterfall.
func (h *Handler) EvaluatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	policyName := chi.URLParam(r, "policy")

	var req domain.ApplicantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Profile.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "profile.id is required",
		})
		return
	}

	decision, err := h.engine.EvaluateAgainstPolicy(ctx, tenantID, req.ToProfile(), policyName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// EvaluatePortfolio handles POST /portfolio/evaluate: batch evaluation
// over a single policy snapshot.
func (h *Handler) EvaluatePortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Profiles) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "profiles must not be empty",
		})
		return
	}

	profiles := make([]*domain.ApplicantProfile, len(req.Profiles))
	for i := range req.Profiles {
		p := req.Profiles[i]
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		profiles[i] = &p
	}

	result, err := h.engine.EvaluatePortfolio(ctx, tenantID, profiles)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetDecision handles GET /decisions/{id}.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	decisionID := chi.URLParam(r, "id")

	if decisionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "decision id is required",
		})
		return
	}

	decision, err := h.engine.GetDecision(ctx, tenantID, decisionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// ListApplicantDecisions handles GET /applicants/{id}/decisions.
// An optional since query parameter (RFC 3339) bounds the lookback;
// the default is 90 days.
func (h *Handler) ListApplicantDecisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	applicantID := chi.URLParam(r, "id")

	if applicantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "applicant id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -90)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC 3339",
			})
			return
		}
		since = parsed
	}

	decisions, err := h.repo.GetDecisionsByApplicant(ctx, tenantID, applicantID, since)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"applicantId": applicantID,
		"decisions":   decisions,
		"count":       len(decisions),
	})
}

// ListPolicies handles GET /policies.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies := h.engine.Policies()

	writeJSON(w, http.StatusOK, map[string]any{
		"policies":      policies,
		"count":         len(policies),
		"configVersion": h.engine.Version(),
	})
}

// GetPolicy handles GET /policies/{name}.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy name is required",
		})
		return
	}

	policy, err := h.engine.GetPolicy(name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, policy)
}

// UpdatePolicy handles PUT /policies/{name}: validate and install a
// policy edit. The URL name wins over any name in the body.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	name := chi.URLParam(r, "name")

	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy name is required",
		})
		return
	}

	var policy domain.PolicyDefinition
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	policy.Name = name
	policy.UpdatedAt = time.Now().UTC()

	version, err := h.engine.UpdatePolicy(ctx, tenantID, &policy)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"policy":        &policy,
		"configVersion": version,
	})
}

// ResetPolicy handles POST /policies/{name}/reset: restore one policy
// to its compiled-in default.
func (h *Handler) ResetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	name := chi.URLParam(r, "name")

	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy name is required",
		})
		return
	}

	restored, version, err := h.engine.ResetPolicy(ctx, tenantID, name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"policy":        restored,
		"configVersion": version,
	})
}

// ListLGD handles GET /lgd.
func (h *Handler) ListLGD(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ratios":        h.engine.LGDRatios(),
		"configVersion": h.engine.Version(),
	})
}

// UpdateLGD handles PUT /lgd/{product}: set one product's
// loss-given-default ratio.
func (h *Handler) UpdateLGD(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	product := domain.ProductType(chi.URLParam(r, "product"))

	var req LGDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	version, err := h.engine.SetLGD(ctx, tenantID, product, req.Ratio)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"product":       product,
		"ratio":         req.Ratio,
		"configVersion": version,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// writeError maps the error taxonomy to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrApplicantData), errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConfiguration):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrScoringOracle):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}

	writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
