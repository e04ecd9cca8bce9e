package enedis

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/dbourene/consumerseek/internal/catchment"
)

type loadRequest struct {
	Communes    []string `json:"communes"`
	Annee       int      `json:"annee"`
	ForceReload bool     `json:"force_reload"`
}

// LoadConsumers handles POST /consumers/load: makes sure the requested
// communes have their year's consumption rows locally, fetching from the
// open-data portal when needed.
func LoadConsumers(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Communes) == 0 {
		http.Error(w, "At least one commune code is required", http.StatusBadRequest)
		return
	}
	if req.Annee == 0 {
		req.Annee = catchment.DefaultAnnee
	}

	result, err := LoadOnDemand(r.Context(), req.Communes, req.Annee, req.ForceReload)
	if err != nil {
		log.Printf("[Enedis] load: %v", err)
		http.Error(w, "Consumer load failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
