package geocode

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/dbourene/consumerseek/internal/catchment"
	"github.com/dbourene/consumerseek/internal/db"
	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type startJobRequest struct {
	Communes []string `json:"communes"`
	Annee    int      `json:"annee"`
	Limit    int      `json:"limit"`
}

// StartJobHandler handles POST /jobs: launches a bulk geocoding run and
// returns 202 with the job snapshot.
func StartJobHandler(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
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

	job, err := StartJob(req.Communes, req.Annee, req.Limit)
	if err != nil {
		log.Printf("[Geocode] start job: %v", err)
		http.Error(w, "Failed to start geocoding job", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, job)
}

// GetJobHandler handles GET /jobs/{id}.
func GetJobHandler(w http.ResponseWriter, r *http.Request) {
	job := GetJob(chi.URLParam(r, "id"))
	if job == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, job)
}

// ListJobsHandler handles GET /jobs.
func ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ListJobs())
}

// CancelJobHandler handles DELETE /jobs/{id}. Cancelling an already finished
// job is a 409, not an error worth retrying.
func CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if GetJob(id) == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if !CancelJob(id) {
		http.Error(w, "Job is not running", http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "cancelling"})
}

type updateAddressRequest struct {
	Adresse string `json:"adresse"`
}

// UpdateConsumerAddress handles PUT /consumers/{id}/address: a manual address
// correction. The new address must geocode before anything is written, and the
// row is marked source=manual so imports won't overwrite it.
func UpdateConsumerAddress(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid consumer id", http.StatusBadRequest)
		return
	}

	var req updateAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Adresse == "" {
		http.Error(w, "adresse is required", http.StatusBadRequest)
		return
	}

	var consumer catchment.Consommateur
	if err := db.DB.WithContext(r.Context()).First(&consumer, "id = ?", id).Error; err != nil {
		http.Error(w, "Consumer not found", http.StatusNotFound)
		return
	}

	result, err := client.Geocode(r.Context(), req.Adresse, consumer.CodeCommune, consumer.NomCommune)
	if err != nil {
		log.Printf("[Geocode] manual correction consumer=%d: %v", id, err)
		http.Error(w, "Geocoding service unavailable", http.StatusBadGateway)
		return
	}
	if result == nil {
		http.Error(w, "Address could not be geocoded", http.StatusUnprocessableEntity)
		return
	}

	fixed := FixEncoding(req.Adresse)
	updates := map[string]any{
		"adresse":              fixed,
		"adresse_standardisee": NormalizeAddress(fixed),
		"latitude":             result.Latitude,
		"longitude":            result.Longitude,
		"geocode_score":        result.Score,
		"geocode_source":       geocodeSource,
		"geocode_status":       catchment.GeocodeSuccess,
		"source":               "manual",
	}
	if err := db.DB.WithContext(r.Context()).
		Model(&catchment.Consommateur{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		log.Printf("[Geocode] manual correction consumer=%d: %v", id, err)
		http.Error(w, "Failed to save address", http.StatusInternalServerError)
		return
	}

	if err := db.DB.WithContext(r.Context()).First(&consumer, "id = ?", id).Error; err != nil {
		http.Error(w, "Failed to reload consumer", http.StatusInternalServerError)
		return
	}
	writeJSON(w, consumer)
}
