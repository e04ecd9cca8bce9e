package geocode

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dbourene/consumerseek/internal/catchment"
	"github.com/dbourene/consumerseek/internal/db"
	"github.com/google/uuid"
)

// geocodeSource marks rows resolved through the BAN pipeline.
const geocodeSource = "adresse.data.gouv.fr"

// pageSize for pulling pending consumers out of the store.
const pageSize = 1000

// Job tracks one bulk geocoding run. Progress is written per consumer, so a
// cancelled job leaves untouched rows in their prior state and a later run
// picks them up again.
type Job struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"` // "running", "completed", "completed_with_errors", "cancelled"
	Communes    []string   `json:"communes"`
	Annee       int        `json:"annee"`
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Success     int        `json:"success"`
	Failed      int        `json:"failed"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	cancel context.CancelFunc
}

var (
	jobs   = make(map[string]*Job)
	jobsMu sync.Mutex
)

// StartJob kicks off a bulk geocoding run over the pending consumers (status
// null or failed) of the given communes and year. limit 0 means no cap.
func StartJob(communes []string, annee, limit int) (*Job, error) {
	pending, err := pendingConsumers(context.Background(), communes, annee, limit)
	if err != nil {
		return nil, fmt.Errorf("load pending consumers: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:        uuid.New().String(),
		Status:    "running",
		Communes:  communes,
		Annee:     annee,
		Total:     len(pending),
		StartedAt: time.Now(),
		cancel:    cancel,
	}

	jobsMu.Lock()
	jobs[job.ID] = job
	jobsMu.Unlock()

	go runJob(ctx, job, pending)

	return job, nil
}

// GetJob returns a snapshot of a job, or nil when unknown.
func GetJob(id string) *Job {
	jobsMu.Lock()
	defer jobsMu.Unlock()
	job, ok := jobs[id]
	if !ok {
		return nil
	}
	snapshot := *job
	snapshot.cancel = nil
	return &snapshot
}

// ListJobs returns snapshots of all known jobs.
func ListJobs() []Job {
	jobsMu.Lock()
	defer jobsMu.Unlock()
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		snapshot := *job
		snapshot.cancel = nil
		out = append(out, snapshot)
	}
	return out
}

// CancelJob requests cancellation. The run stops before the next consumer;
// the current one finishes its write.
func CancelJob(id string) bool {
	jobsMu.Lock()
	defer jobsMu.Unlock()
	job, ok := jobs[id]
	if !ok || job.Status != "running" {
		return false
	}
	job.cancel()
	return true
}

// pendingConsumers pulls every consumer still needing geocoding, paged. The
// full set is materialized up front: rows leave the pending filter as the run
// updates them, which would make offset paging skip rows.
func pendingConsumers(ctx context.Context, communes []string, annee, limit int) ([]catchment.Consommateur, error) {
	var all []catchment.Consommateur
	for offset := 0; ; offset += pageSize {
		var page []catchment.Consommateur
		q := db.DB.WithContext(ctx).
			Where("code_commune IN ? AND annee = ?", communes, annee).
			Where("geocode_status IS NULL OR geocode_status = ?", catchment.GeocodeFailed).
			Order("id").
			Offset(offset).
			Limit(pageSize)
		if err := q.Find(&page).Error; err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
		if limit > 0 && len(all) >= limit {
			break
		}
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func runJob(ctx context.Context, job *Job, pending []catchment.Consommateur) {
	log.Printf("[Geocode] job=%s starting, %d consumers pending", job.ID, len(pending))

	for i := range pending {
		if ctx.Err() != nil {
			finishJob(job, "cancelled")
			log.Printf("[Geocode] job=%s cancelled after %d/%d", job.ID, i, len(pending))
			return
		}

		err := geocodeOne(ctx, &pending[i])

		jobsMu.Lock()
		job.Processed++
		if err != nil {
			job.Failed++
		} else {
			job.Success++
		}
		jobsMu.Unlock()
	}

	status := "completed"
	jobsMu.Lock()
	failed := job.Failed
	jobsMu.Unlock()
	if failed > 0 {
		status = "completed_with_errors"
	}
	finishJob(job, status)
	log.Printf("[Geocode] job=%s finished, success=%d failed=%d", job.ID, job.Total-failed, failed)
}

func finishJob(job *Job, status string) {
	now := time.Now()
	jobsMu.Lock()
	job.Status = status
	job.CompletedAt = &now
	jobsMu.Unlock()
}

// geocodeOne resolves one consumer and records the outcome on its row. A
// provider failure is recorded as status=failed and reported as an error to
// the job counters, but never aborts the run.
func geocodeOne(ctx context.Context, c *catchment.Consommateur) error {
	address := c.Adresse
	addressWasEmpty := false
	if address == "" {
		// No street address in the dataset: geocode the commune itself and
		// keep the substituted address so the row is self-explanatory.
		address = c.NomCommune
		addressWasEmpty = true
	}

	result, err := client.Geocode(ctx, address, c.CodeCommune, c.NomCommune)
	if err != nil || result == nil {
		updates := map[string]any{
			"geocode_status": catchment.GeocodeFailed,
			"geocode_source": geocodeSource,
			"nom_commune":    FixEncoding(c.NomCommune),
		}
		if dbErr := db.DB.WithContext(ctx).
			Model(&catchment.Consommateur{}).
			Where("id = ?", c.ID).
			Updates(updates).Error; dbErr != nil {
			return fmt.Errorf("record failure for consumer %d: %w", c.ID, dbErr)
		}
		if err != nil {
			return fmt.Errorf("geocode consumer %d: %w", c.ID, err)
		}
		return fmt.Errorf("no confident match for consumer %d", c.ID)
	}

	fixedAddress := FixEncoding(address)
	if !addressWasEmpty {
		fixedAddress = FixEncoding(c.Adresse)
	}
	updates := map[string]any{
		"latitude":             result.Latitude,
		"longitude":            result.Longitude,
		"geocode_score":        result.Score,
		"geocode_source":       geocodeSource,
		"geocode_status":       catchment.GeocodeSuccess,
		"adresse":              fixedAddress,
		"adresse_standardisee": NormalizeAddress(fixedAddress),
		"nom_commune":          FixEncoding(c.NomCommune),
	}
	if err := db.DB.WithContext(ctx).
		Model(&catchment.Consommateur{}).
		Where("id = ?", c.ID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("record success for consumer %d: %w", c.ID, err)
	}
	return nil
}
