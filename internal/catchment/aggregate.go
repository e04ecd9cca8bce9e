package catchment

import (
	"context"
	"fmt"
	"sort"
)

// Resolution selects the display granularity of aggregated consumers.
// The zoom-to-resolution mapping belongs to the HTTP layer; the engine only
// knows the three shapes.
type Resolution string

const (
	ResolutionIndividual   Resolution = "individual"
	ResolutionCommune      Resolution = "commune"
	ResolutionInstallation Resolution = "installation"
)

// Bucket is one spatial marker: a single consumer, a commune rollup or an
// installation rollup. Sums are plain addition; rounding is the caller's
// business.
type Bucket struct {
	CodeCommune       *string  `json:"code_commune"`
	NomCommune        string   `json:"nom_commune"`
	Annee             int      `json:"annee"`
	TrancheConso      string   `json:"tranche_conso"`
	CategorieActivite string   `json:"categorie_activite"`
	NbSites           int      `json:"nb_sites"`
	ConsoTotaleMWh    float64  `json:"conso_totale_mwh"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
}

// CentroidSource supplies the representative coordinate of a commune.
// Missing communes are absent from the returned map, not an error.
type CentroidSource interface {
	Centroids(ctx context.Context, codes []string) (map[string][2]float64, error)
}

// Totals sums sites and consumption over an eligible set. Aggregation never
// changes these totals; buckets dropped for lack of a centroid still count.
func Totals(eligible []Consommateur) (nbSites int, consoMWh float64) {
	for i := range eligible {
		nbSites += eligible[i].NombreSites
		consoMWh += eligible[i].ConsommationAnnuelleMWh
	}
	return nbSites, consoMWh
}

// AggregateIndividual passes eligible consumers through unchanged, one bucket
// per consumer.
func AggregateIndividual(eligible []Consommateur) []Bucket {
	buckets := make([]Bucket, 0, len(eligible))
	for i := range eligible {
		c := &eligible[i]
		code := c.CodeCommune
		buckets = append(buckets, Bucket{
			CodeCommune:       &code,
			NomCommune:        c.NomCommune,
			Annee:             c.Annee,
			TrancheConso:      c.TrancheConso,
			CategorieActivite: c.CategorieActivite,
			NbSites:           c.NombreSites,
			ConsoTotaleMWh:    c.ConsommationAnnuelleMWh,
			Latitude:          c.Latitude,
			Longitude:         c.Longitude,
		})
	}
	return buckets
}

// AggregateByCommune groups eligible consumers by exact commune code, sums
// sites and consumption, and re-attaches each commune's centroid. Groups
// whose commune has no resolvable centroid are dropped from the spatial
// output; callers report totals from the ungrouped set.
func AggregateByCommune(ctx context.Context, eligible []Consommateur, centroids CentroidSource) ([]Bucket, error) {
	grouped := make(map[string]*Bucket)
	order := make([]string, 0)

	for i := range eligible {
		c := &eligible[i]
		b, ok := grouped[c.CodeCommune]
		if !ok {
			code := c.CodeCommune
			b = &Bucket{
				CodeCommune: &code,
				NomCommune:  c.NomCommune,
				Annee:       c.Annee,
			}
			grouped[c.CodeCommune] = b
			order = append(order, c.CodeCommune)
		}
		b.NbSites += c.NombreSites
		b.ConsoTotaleMWh += c.ConsommationAnnuelleMWh
	}

	coords, err := centroids.Centroids(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("commune centroids: %w", err)
	}

	sort.Strings(order)
	buckets := make([]Bucket, 0, len(order))
	for _, code := range order {
		ll, ok := coords[code]
		if !ok {
			continue
		}
		b := grouped[code]
		lat, lon := ll[0], ll[1]
		b.Latitude = &lat
		b.Longitude = &lon
		buckets = append(buckets, *b)
	}
	return buckets, nil
}

// InstallationGroup pairs an installation with the consumers eligible for it.
type InstallationGroup struct {
	Installation InstallationContext
	Eligible     []Consommateur
}

// AggregateByInstallation collapses each installation's eligible consumers
// into one bucket at the installation's own coordinate. Installations with no
// eligible consumers produce no bucket.
func AggregateByInstallation(groups []InstallationGroup) []Bucket {
	buckets := make([]Bucket, 0, len(groups))
	for _, g := range groups {
		if len(g.Eligible) == 0 {
			continue
		}
		nbSites, consoMWh := Totals(g.Eligible)
		lat, lon := g.Installation.Latitude, g.Installation.Longitude
		buckets = append(buckets, Bucket{
			NomCommune:     g.Installation.Nom,
			Annee:          anneeOf(g.Eligible),
			NbSites:        nbSites,
			ConsoTotaleMWh: consoMWh,
			Latitude:       &lat,
			Longitude:      &lon,
		})
	}
	return buckets
}

func anneeOf(eligible []Consommateur) int {
	if len(eligible) == 0 {
		return 0
	}
	return eligible[0].Annee
}
