package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/mux"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/internal/orchestrator"
	"github.com/kestrelworks/oppintel/internal/strategy"
	"github.com/kestrelworks/oppintel/pkg/logger"
	"github.com/kestrelworks/oppintel/pkg/redis"
)

// OpportunityHandler serves the active opportunity store and strategy
// generation over HTTP
type OpportunityHandler struct {
	orch      *orchestrator.Orchestrator
	generator *strategy.Generator
	cache     *redis.Cache // may be nil
	logger    *logger.Logger
}

// NewOpportunityHandler creates an opportunity handler
func NewOpportunityHandler(orch *orchestrator.Orchestrator, generator *strategy.Generator, cache *redis.Cache, log *logger.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		orch:      orch,
		generator: generator,
		cache:     cache,
		logger:    log,
	}
}

// Strategies are deterministic for identical inputs; a short TTL
// bounds staleness after the opportunity is re-scored.
const strategyCacheTTL = 5 * time.Minute

// List returns all active opportunities, sorted descending by score
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities": h.orch.ActiveOpportunities(),
	})
}

// Get returns one opportunity by id
func (h *OpportunityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	opp, ok := h.orch.Opportunity(id)
	if !ok {
		writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}

	writeJSON(w, http.StatusOK, opp)
}

// Remove deletes one opportunity from the active store
func (h *OpportunityHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !h.orch.RemoveOpportunity(id) {
		writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"removed": id})
}

// GenerateStrategy builds a campaign strategy for one opportunity.
// The request body carries optional constraints.
func (h *OpportunityHandler) GenerateStrategy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	opp, ok := h.orch.Opportunity(id)
	if !ok {
		writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}

	var constraints contracts.StrategyConstraints
	if r.Body != nil {
		// An empty body means default constraints
		_ = json.NewDecoder(r.Body).Decode(&constraints)
	}

	key := strategyCacheKey(id, constraints)
	if h.cache != nil {
		var cached contracts.CampaignStrategy
		if found, err := h.cache.Get(r.Context(), key, &cached); err == nil && found {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	result := h.generator.Generate(opp, constraints)

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), key, result, strategyCacheTTL); err != nil {
			h.logger.WithError(err).Warn("Failed to cache strategy")
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// strategyCacheKey keys a generated strategy by opportunity and the
// constraints it was generated under
func strategyCacheKey(id string, constraints contracts.StrategyConstraints) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%.2f", constraints.TotalBudget)
	for _, channel := range constraints.PreferredChannels {
		fmt.Fprintf(h, "|%s", channel)
	}
	return redis.StrategyKey(fmt.Sprintf("%s:%016x", id, h.Sum64()))
}

// Stats returns working-set statistics
func (h *OpportunityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Stats())
}

// writeJSON writes a JSON response with status code
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
