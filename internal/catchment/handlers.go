package catchment

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/dbourene/consumerseek/internal/db"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DefaultAnnee is the dataset vintage used when a request doesn't pin one.
const DefaultAnnee = 2024

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// ResolutionForZoom maps a Leaflet zoom level to a display resolution.
// Wide zooms collapse to one marker per installation, mid zooms to one per
// commune, close zooms show individual consumers.
func ResolutionForZoom(zoom int) Resolution {
	switch {
	case zoom <= 8:
		return ResolutionInstallation
	case zoom <= 12:
		return ResolutionCommune
	default:
		return ResolutionIndividual
	}
}

type mapDataInstallation struct {
	ID          *uuid.UUID `json:"id"`
	Nom         string     `json:"nom"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	MargeMetres float64    `json:"marge_metres"`
}

type mapDataRequest struct {
	Installations []mapDataInstallation `json:"installations"`
	Annee         int                   `json:"annee"`
	Zoom          int                   `json:"zoom"`
	Tranches      []string              `json:"tranches"`
	Categories    []string              `json:"categories"`
	CircleFilter  *CircleFilter         `json:"circle_filter"`
}

type mapDataResponse struct {
	Resolution     Resolution `json:"resolution"`
	Buckets        []Bucket   `json:"buckets"`
	NbSites        int        `json:"nb_sites"`
	ConsoTotaleMWh float64    `json:"conso_totale_mwh"`
}

// MapData handles POST /map-data: runs the eligibility filter for every
// active installation, applies the tranche/category filters and the optional
// manual circle, then aggregates for the requested zoom.
func MapData(w http.ResponseWriter, r *http.Request) {
	var req mapDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Installations) == 0 {
		http.Error(w, "At least one installation is required", http.StatusBadRequest)
		return
	}
	annee := req.Annee
	if annee == 0 {
		annee = DefaultAnnee
	}

	// The manual disk only makes sense with a single active installation.
	circle := req.CircleFilter
	if len(req.Installations) > 1 {
		circle = nil
	}

	ctx := r.Context()
	var all []Consommateur
	var groups []InstallationGroup

	for _, in := range req.Installations {
		region, err := resolver.ResolveRegion(ctx, in.Latitude, in.Longitude)
		if err != nil {
			if errors.Is(err, ErrRegionNotFound) {
				log.Printf("[Catchment] installation %q: %v", in.Nom, err)
				continue
			}
			http.Error(w, "Spatial lookup failed", http.StatusBadGateway)
			return
		}

		codes := region.CommuneCodes()
		densities, err := store.Densities(ctx, codes)
		if err != nil {
			http.Error(w, "Density lookup failed", http.StatusInternalServerError)
			return
		}
		candidates, err := store.GeocodedConsumers(ctx, codes, annee)
		if err != nil {
			http.Error(w, "Consumer lookup failed", http.StatusInternalServerError)
			return
		}

		inst := InstallationContext{
			Nom:         in.Nom,
			Latitude:    in.Latitude,
			Longitude:   in.Longitude,
			Density:     region.InstallationDensity(),
			MargeMetres: in.MargeMetres,
		}
		if in.ID != nil {
			inst.ID = *in.ID
		}

		eligible := ComputeEligibility(inst, candidates, densities, Options{Circle: circle})
		eligible = filterByBuckets(eligible, req.Tranches, req.Categories)

		groups = append(groups, InstallationGroup{Installation: inst, Eligible: eligible})
		all = append(all, eligible...)
	}

	resolution := ResolutionForZoom(req.Zoom)
	var buckets []Bucket
	var err error
	switch resolution {
	case ResolutionInstallation:
		buckets = AggregateByInstallation(groups)
	case ResolutionCommune:
		buckets, err = AggregateByCommune(ctx, all, store)
		if err != nil {
			http.Error(w, "Aggregation failed", http.StatusInternalServerError)
			return
		}
	default:
		buckets = AggregateIndividual(all)
	}

	nbSites, consoMWh := Totals(all)
	writeJSON(w, mapDataResponse{
		Resolution:     resolution,
		Buckets:        buckets,
		NbSites:        nbSites,
		ConsoTotaleMWh: consoMWh,
	})
}

// filterByBuckets keeps consumers matching the requested consumption tranches
// and activity categories. Empty filter slices mean "keep everything".
func filterByBuckets(consumers []Consommateur, tranches, categories []string) []Consommateur {
	if len(tranches) == 0 && len(categories) == 0 {
		return consumers
	}

	trancheSet := make(map[string]struct{}, len(tranches))
	for _, t := range tranches {
		trancheSet[t] = struct{}{}
	}
	categorySet := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		categorySet[c] = struct{}{}
	}

	kept := consumers[:0]
	for i := range consumers {
		if len(trancheSet) > 0 {
			if _, ok := trancheSet[consumers[i].TrancheConso]; !ok {
				continue
			}
		}
		if len(categorySet) > 0 {
			if _, ok := categorySet[consumers[i].CategorieActivite]; !ok {
				continue
			}
		}
		kept = append(kept, consumers[i])
	}
	return kept
}

type createInstallationRequest struct {
	Nom          string   `json:"nom"`
	PuissanceKWc *float64 `json:"puissance_kwc"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	MargeMetres  float64  `json:"marge_metres"`
}

// CreateInstallation handles POST /installations. The commune name is
// resolved from the point so the stored row is self-describing.
func CreateInstallation(w http.ResponseWriter, r *http.Request) {
	var req createInstallationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Nom == "" {
		http.Error(w, "nom is required", http.StatusBadRequest)
		return
	}
	if req.MargeMetres <= 0 {
		req.MargeMetres = DefaultMargeMetres
	}

	communeName := ""
	region, err := resolver.ResolveRegion(r.Context(), req.Latitude, req.Longitude)
	if err != nil {
		if !errors.Is(err, ErrRegionNotFound) {
			http.Error(w, "Spatial lookup failed", http.StatusBadGateway)
			return
		}
		http.Error(w, "Installation point is outside all known communes", http.StatusUnprocessableEntity)
		return
	}
	communeName = region.InstallationCommune.NomCommune

	installation := Installation{
		ID:           uuid.New(),
		Nom:          req.Nom,
		PuissanceKWc: req.PuissanceKWc,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Commune:      communeName,
		MargeMetres:  req.MargeMetres,
	}
	if err := db.DB.WithContext(r.Context()).Create(&installation).Error; err != nil {
		log.Printf("[Catchment] create installation: %v", err)
		http.Error(w, "Failed to save installation", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, installation)
}

// ListInstallations handles GET /installations.
func ListInstallations(w http.ResponseWriter, r *http.Request) {
	var installations []Installation
	if err := db.DB.WithContext(r.Context()).Order("created_at DESC").Find(&installations).Error; err != nil {
		http.Error(w, "Failed to list installations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, installations)
}

// LinkConsumers handles POST /installations/{id}/link: claims all eligible,
// still-unlinked consumers for the installation and reports the counts.
func LinkConsumers(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid installation id", http.StatusBadRequest)
		return
	}

	var body struct {
		Annee int `json:"annee"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	annee := body.Annee
	if annee == 0 {
		annee = DefaultAnnee
	}

	var installation Installation
	if err := db.DB.WithContext(r.Context()).First(&installation, "id = ?", id).Error; err != nil {
		http.Error(w, "Installation not found", http.StatusNotFound)
		return
	}

	result, err := linkage.LinkEligibleConsumers(
		r.Context(), installation.ID,
		installation.Latitude, installation.Longitude,
		installation.MargeMetres, annee,
	)
	if err != nil {
		if errors.Is(err, ErrRegionNotFound) {
			http.Error(w, fmt.Sprintf("No commune around installation %s", installation.Nom), http.StatusUnprocessableEntity)
			return
		}
		log.Printf("[Catchment] link installation=%s: %v", id, err)
		http.Error(w, "Linkage failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, result)
}
