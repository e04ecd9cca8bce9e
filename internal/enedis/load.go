package enedis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/dbourene/consumerseek/internal/catchment"
	"github.com/dbourene/consumerseek/internal/db"
)

const insertBatchSize = 1000

// LoadResult summarizes one on-demand load.
type LoadResult struct {
	Communes        []string `json:"communes"`
	TotalConsumers  int64    `json:"total_consumers"`
	LoadedFromAPI   int      `json:"loaded_from_api"`
	LoadedFromCache int      `json:"loaded_from_cache"`
	DurationMs      int64    `json:"duration_ms"`
	Errors          []string `json:"errors"`
}

// technicalKey identifies a record independently of its address. Geocoding
// rewrites addresses (an empty one becomes the commune name), so an address
// based key would re-import already-known rows on every reload.
func technicalKey(codeCommune string, annee, sites int, consoMWh float64, tranche, categorie string) string {
	return fmt.Sprintf("%s|%d|%d|%s|%s|%s",
		codeCommune, annee, sites,
		strconv.FormatFloat(consoMWh, 'f', -1, 64),
		tranche, categorie)
}

func simplifiedKey(codeCommune string, annee, sites int, consoMWh float64) string {
	return fmt.Sprintf("%s|%d|%d|%s",
		codeCommune, annee, sites,
		strconv.FormatFloat(consoMWh, 'f', -1, 64))
}

func addressKey(codeCommune string, annee int, adresse string) string {
	return fmt.Sprintf("%s|%d|%s", codeCommune, annee, strings.ToLower(strings.TrimSpace(adresse)))
}

// LoadOnDemand makes sure consumers for the given communes and year are
// present locally, fetching from the open-data portal only for communes with
// no cached rows (or all of them when forceReload). Rows already present are
// never duplicated, and manually corrected addresses are never overwritten.
func LoadOnDemand(ctx context.Context, communes []string, annee int, forceReload bool) (*LoadResult, error) {
	start := time.Now()
	result := &LoadResult{Communes: communes, Errors: []string{}}

	toLoad := communes
	if !forceReload {
		cached, missing, err := splitByCache(ctx, communes, annee)
		if err != nil {
			return nil, fmt.Errorf("cache check: %w", err)
		}
		toLoad = missing
		result.LoadedFromCache = len(cached)
	}

	if len(toLoad) > 0 {
		if err := loadCommunes(ctx, toLoad, annee, result); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if err := db.DB.WithContext(ctx).
		Model(&catchment.Consommateur{}).
		Where("code_commune IN ? AND annee = ?", communes, annee).
		Count(&result.TotalConsumers).Error; err != nil {
		return nil, fmt.Errorf("final count: %w", err)
	}

	result.DurationMs = time.Since(start).Milliseconds()
	log.Printf("[Enedis] load done in %dms: total=%d api=%d cache=%d errors=%d",
		result.DurationMs, result.TotalConsumers, result.LoadedFromAPI,
		result.LoadedFromCache, len(result.Errors))
	return result, nil
}

// splitByCache partitions communes into those already holding rows for the
// year and those needing a fetch.
func splitByCache(ctx context.Context, communes []string, annee int) (cached, missing []string, err error) {
	type communeCount struct {
		CodeCommune string
		N           int64
	}
	var counts []communeCount
	err = db.DB.WithContext(ctx).
		Model(&catchment.Consommateur{}).
		Select("code_commune, COUNT(*) AS n").
		Where("code_commune IN ? AND annee = ?", communes, annee).
		Group("code_commune").
		Scan(&counts).Error
	if err != nil {
		return nil, nil, err
	}

	have := make(map[string]bool, len(counts))
	for _, c := range counts {
		if c.N > 0 {
			have[c.CodeCommune] = true
		}
	}
	for _, code := range communes {
		if have[code] {
			cached = append(cached, code)
		} else {
			missing = append(missing, code)
		}
	}
	return cached, missing, nil
}

func loadCommunes(ctx context.Context, communes []string, annee int, result *LoadResult) error {
	client := NewClient("")

	var fetched []catchment.Consommateur
	for _, code := range communes {
		records, err := client.FetchCommune(ctx, code, annee)
		if err != nil {
			return err
		}
		for _, rec := range records {
			codeCommune := rec.CodeCommune
			if codeCommune == "" {
				codeCommune = code
			}
			conso := rec.ConsommationMWh
			fetched = append(fetched, catchment.Consommateur{
				Annee:                   annee,
				Adresse:                 rec.Adresse,
				CodeCommune:             codeCommune,
				NomCommune:              rec.NomCommune,
				NombreSites:             rec.NombreDeSites,
				ConsommationAnnuelleMWh: conso,
				TrancheConso:            CalculateTrancheConso(conso),
				CategorieActivite:       ActivityCategory(rec.CodeSecteurNAF2, rec.CodeGrandSecteur),
				Source:                  "api",
			})
		}
		result.LoadedFromAPI++
	}

	newRows, err := dropExisting(ctx, fetched, communes, annee)
	if err != nil {
		return err
	}
	if len(newRows) == 0 {
		return nil
	}

	if err := db.DB.WithContext(ctx).CreateInBatches(&newRows, insertBatchSize).Error; err != nil {
		return fmt.Errorf("insert consumers: %w", err)
	}
	log.Printf("[Enedis] inserted %d new consumers (%d fetched)", len(newRows), len(fetched))
	return nil
}

// dropExisting filters fetched rows against what is already stored. Matching
// is on technical keys; address keys are only consulted for source=manual
// rows so a corrected address blocks its re-import.
func dropExisting(ctx context.Context, fetched []catchment.Consommateur, communes []string, annee int) ([]catchment.Consommateur, error) {
	var existing []catchment.Consommateur
	err := db.DB.WithContext(ctx).
		Select("code_commune, annee, nombre_sites, consommation_annuelle_mwh, tranche_conso, categorie_activite, adresse, source").
		Where("code_commune IN ? AND annee = ?", communes, annee).
		Find(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("load existing consumers: %w", err)
	}

	existingKeys := make(map[string]bool, 2*len(existing))
	manualAddresses := make(map[string]bool)
	for i := range existing {
		e := &existing[i]
		existingKeys[technicalKey(e.CodeCommune, e.Annee, e.NombreSites, e.ConsommationAnnuelleMWh, e.TrancheConso, e.CategorieActivite)] = true
		existingKeys[simplifiedKey(e.CodeCommune, e.Annee, e.NombreSites, e.ConsommationAnnuelleMWh)] = true
		if e.Source == "manual" && e.Adresse != "" {
			manualAddresses[addressKey(e.CodeCommune, e.Annee, e.Adresse)] = true
		}
	}

	var newRows []catchment.Consommateur
	for i := range fetched {
		c := &fetched[i]
		if existingKeys[technicalKey(c.CodeCommune, c.Annee, c.NombreSites, c.ConsommationAnnuelleMWh, c.TrancheConso, c.CategorieActivite)] {
			continue
		}
		if existingKeys[simplifiedKey(c.CodeCommune, c.Annee, c.NombreSites, c.ConsommationAnnuelleMWh)] {
			continue
		}
		if manualAddresses[addressKey(c.CodeCommune, c.Annee, c.Adresse)] {
			continue
		}
		newRows = append(newRows, *c)
	}
	return newRows, nil
}
