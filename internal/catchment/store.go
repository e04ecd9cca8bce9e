package catchment

import (
	"context"
	"fmt"

	"github.com/dbourene/consumerseek/internal/db"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// GormStore implements ConsumerStore, DensityReader and CentroidSource on the
// shared gorm connection.
type GormStore struct{}

// GeocodedConsumers returns all successfully geocoded consumers of a year in
// the given communes.
func (GormStore) GeocodedConsumers(ctx context.Context, communeCodes []string, annee int) ([]Consommateur, error) {
	if len(communeCodes) == 0 {
		return []Consommateur{}, nil
	}
	var consumers []Consommateur
	err := db.DB.WithContext(ctx).
		Where("code_commune IN ? AND annee = ?", communeCodes, annee).
		Where("geocode_status = ? AND latitude IS NOT NULL AND longitude IS NOT NULL", GeocodeSuccess).
		Find(&consumers).Error
	if err != nil {
		return nil, fmt.Errorf("select geocoded consumers: %w", err)
	}
	return consumers, nil
}

// LinkConsumers performs the conditional claim. The null guard closes the
// race between two linkage runs over the same unlinked consumer without an
// external lock.
func (GormStore) LinkConsumers(ctx context.Context, ids []int64, installationID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.DB.WithContext(ctx).Exec(`
		UPDATE consommateurs
		SET installation_recherche_id = ?
		WHERE id = ANY(?) AND installation_recherche_id IS NULL
	`, installationID, pq.Array(ids))
	if result.Error != nil {
		return 0, fmt.Errorf("conditional link update: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Densities batch-reads dens7 codes. Communes missing from the table are
// absent from the map; the eligibility filter applies its own fallback.
func (GormStore) Densities(ctx context.Context, codes []string) (map[string]int, error) {
	densities := make(map[string]int, len(codes))
	if len(codes) == 0 {
		return densities, nil
	}

	var rows []struct {
		CodGeo string
		Dens7  int
	}
	err := db.DB.WithContext(ctx).
		Model(&Commune{}).
		Select("codgeo AS cod_geo, dens7").
		Where("codgeo IN ?", codes).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select commune densities: %w", err)
	}

	for _, r := range rows {
		densities[r.CodGeo] = r.Dens7
	}
	return densities, nil
}

// Centroids batch-reads commune representative coordinates. Communes without
// a stored centroid are absent from the map.
func (GormStore) Centroids(ctx context.Context, codes []string) (map[string][2]float64, error) {
	coords := make(map[string][2]float64, len(codes))
	if len(codes) == 0 {
		return coords, nil
	}

	var rows []struct {
		CodGeo    string
		Latitude  *float64
		Longitude *float64
	}
	err := db.DB.WithContext(ctx).
		Model(&Commune{}).
		Select("codgeo AS cod_geo, latitude, longitude").
		Where("codgeo IN ?", codes).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select commune centroids: %w", err)
	}

	for _, r := range rows {
		if r.Latitude == nil || r.Longitude == nil {
			continue
		}
		coords[r.CodGeo] = [2]float64{*r.Latitude, *r.Longitude}
	}
	return coords, nil
}
