package leads

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

// Handler serves read-only lead lookups for operators.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// ListLeadsResponse is the response for listing leads
type ListLeadsResponse struct {
	Leads  []*Lead `json:"leads"`
	Count  int     `json:"count"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// ListLeads handles GET /admin/orgs/{orgID}/leads requests
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, "missing org_id", http.StatusBadRequest)
		return
	}

	filter := ListFilter{
		Limit:  50,
		Offset: 0,
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	switch tier := QualityTier(r.URL.Query().Get("tier")); tier {
	case "":
	case TierHot, TierWarm, TierCool, TierCold:
		filter.Tier = tier
	default:
		http.Error(w, "unknown tier", http.StatusBadRequest)
		return
	}

	leads, err := h.repo.ListByOrg(r.Context(), orgID, filter)
	if err != nil {
		h.logger.Error("failed to list leads", "error", err, "org_id", orgID)
		http.Error(w, "failed to list leads", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListLeadsResponse{
		Leads:  leads,
		Count:  len(leads),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

// GetLead handles GET /admin/orgs/{orgID}/leads/{leadID}. A leadID that looks like a phone
// number is looked up by phone.
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	leadID := chi.URLParam(r, "leadID")
	if orgID == "" || leadID == "" {
		http.Error(w, "missing org_id or lead id", http.StatusBadRequest)
		return
	}

	var (
		lead *Lead
		err  error
	)
	if leadID[0] == '+' {
		lead, err = h.repo.FindByPhone(r.Context(), orgID, NormalizePhone(leadID))
	} else {
		lead, err = h.repo.GetByID(r.Context(), orgID, leadID)
	}
	if errors.Is(err, ErrLeadNotFound) {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load lead", "error", err, "org_id", orgID, "lead", leadID)
		http.Error(w, "failed to load lead", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lead)
}
