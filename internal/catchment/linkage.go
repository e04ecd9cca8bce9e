package catchment

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// ConsumerStore is the slice of the consumer table the linkage path needs.
type ConsumerStore interface {
	// GeocodedConsumers returns successfully geocoded consumers of the given
	// year inside the commune list.
	GeocodedConsumers(ctx context.Context, communeCodes []string, annee int) ([]Consommateur, error)
	// LinkConsumers claims the given consumers for an installation. The write
	// is conditional on installation_recherche_id being null, so a consumer
	// already claimed by a concurrent run is silently skipped. Returns the
	// number of rows actually claimed.
	LinkConsumers(ctx context.Context, ids []int64, installationID uuid.UUID) (int64, error)
}

// DensityReader resolves commune codes to dens7 codes. Communes without a
// density record are absent from the map.
type DensityReader interface {
	Densities(ctx context.Context, codes []string) (map[string]int, error)
}

// LinkResult reports the outcome of a linkage run.
type LinkResult struct {
	Total         int   `json:"total"`
	Linked        int64 `json:"linked"`
	AlreadyLinked int   `json:"already_linked"`
}

// LinkageService persists eligibility as a durable consumer→installation
// relationship. A consumer belongs to at most one installation and the first
// claim wins: re-running linkage never reassigns.
type LinkageService struct {
	Resolver  RegionResolver
	Store     ConsumerStore
	Densities DensityReader
}

// LinkEligibleConsumers resolves the region around the installation, runs the
// eligibility filter over all geocoded consumers in the broad candidate set
// and claims the eligible, still-unlinked ones. Idempotent: a second run for
// the same installation links nothing and reports everything as already
// linked.
func (s *LinkageService) LinkEligibleConsumers(ctx context.Context, installationID uuid.UUID, lat, lon, marge float64, annee int) (LinkResult, error) {
	region, err := s.Resolver.ResolveRegion(ctx, lat, lon)
	if err != nil {
		if errors.Is(err, ErrRegionNotFound) {
			log.Printf("[Linkage] installation=%s no commune around point (%.5f, %.5f)", installationID, lat, lon)
			return LinkResult{}, err
		}
		return LinkResult{}, fmt.Errorf("resolve region: %w", err)
	}

	codes := region.CommuneCodes()
	densities, err := s.Densities.Densities(ctx, codes)
	if err != nil {
		return LinkResult{}, fmt.Errorf("density lookup: %w", err)
	}

	candidates, err := s.Store.GeocodedConsumers(ctx, codes, annee)
	if err != nil {
		return LinkResult{}, fmt.Errorf("load candidates: %w", err)
	}

	inst := InstallationContext{
		ID:          installationID,
		Latitude:    lat,
		Longitude:   lon,
		Density:     region.InstallationDensity(),
		MargeMetres: marge,
	}
	eligible := ComputeEligibility(inst, candidates, densities, Options{})

	var toLink []int64
	alreadyLinked := 0
	for i := range eligible {
		if eligible[i].InstallationRechercheID != nil {
			alreadyLinked++
			continue
		}
		toLink = append(toLink, eligible[i].ID)
	}

	var linked int64
	if len(toLink) > 0 {
		linked, err = s.Store.LinkConsumers(ctx, toLink, installationID)
		if err != nil {
			return LinkResult{}, fmt.Errorf("link consumers: %w", err)
		}
	}

	// Rows in toLink that the conditional write skipped were claimed by a
	// concurrent run; count them with the already-linked.
	alreadyLinked += len(toLink) - int(linked)

	log.Printf("[Linkage] installation=%s total=%d linked=%d already_linked=%d",
		installationID, len(eligible), linked, alreadyLinked)

	return LinkResult{
		Total:         len(eligible),
		Linked:        linked,
		AlreadyLinked: alreadyLinked,
	}, nil
}
