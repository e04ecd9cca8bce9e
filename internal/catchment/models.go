package catchment

import (
	"time"

	"github.com/google/uuid"
)

// Commune is INSEE reference data. Rows are written only by the
// cmd/seed-communes importer; the service treats them as immutable.
// The PostGIS geometry column stays in the database — the spatial RPC is the
// only thing that reads it.
type Commune struct {
	CodGeo     string   `json:"codgeo" gorm:"column:codgeo;primaryKey;size:5"`
	NomCommune string   `json:"nom_commune"`
	Dens7      int      `json:"dens7"`
	LibDens7   string   `json:"libdens7"`
	CodeEPCI   *string  `json:"code_epci"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

// Installation is a production site with a regulatory catchment perimeter.
type Installation struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Nom          string    `json:"nom"`
	PuissanceKWc *float64  `json:"puissance_kwc"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Commune      string    `json:"commune"`
	MargeMetres  float64   `json:"marge_metres" gorm:"default:200"`
	CreatedAt    time.Time `json:"created_at"`
}

// Consommateur is one row of the annual consumption-by-address dataset,
// enriched by the geocoding pipeline. Geocode fields are nil until a run has
// processed the row; GeocodeStatus stays nil so an interrupted bulk run can
// resume on the untouched remainder.
type Consommateur struct {
	ID                      int64      `json:"id" gorm:"primaryKey"`
	Annee                   int        `json:"annee" gorm:"index:idx_conso_commune_annee"`
	Adresse                 string     `json:"adresse"`
	AdresseStandardisee     *string    `json:"adresse_standardisee"`
	CodeCommune             string     `json:"code_commune" gorm:"index:idx_conso_commune_annee;size:5"`
	NomCommune              string     `json:"nom_commune"`
	NombreSites             int        `json:"nombre_sites"`
	ConsommationAnnuelleMWh float64    `json:"consommation_annuelle_mwh"`
	TrancheConso            string     `json:"tranche_conso"`
	CategorieActivite       string     `json:"categorie_activite"`
	Latitude                *float64   `json:"latitude"`
	Longitude               *float64   `json:"longitude"`
	GeocodeScore            *float64   `json:"geocode_score"`
	GeocodeSource           *string    `json:"geocode_source"`
	GeocodeStatus           *string    `json:"geocode_status" gorm:"index"`
	Source                  string     `json:"source" gorm:"default:api"` // "api" or "manual"
	InstallationRechercheID *uuid.UUID `json:"installation_recherche_id" gorm:"type:uuid;index"`
}

// Geocode status values.
const (
	GeocodeSuccess = "success"
	GeocodeFailed  = "failed"
)

func (Commune) TableName() string {
	return "communes"
}

func (Installation) TableName() string {
	return "installations"
}

func (Consommateur) TableName() string {
	return "consommateurs"
}

// HasCoordinates reports whether the row was geocoded successfully and
// carries a usable position.
func (c *Consommateur) HasCoordinates() bool {
	return c.GeocodeStatus != nil && *c.GeocodeStatus == GeocodeSuccess &&
		c.Latitude != nil && c.Longitude != nil
}
