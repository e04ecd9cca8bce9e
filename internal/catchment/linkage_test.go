package catchment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

// fixedResolver returns a canned region for any point.
type fixedResolver struct {
	region *Region
	err    error
}

func (r fixedResolver) ResolveRegion(ctx context.Context, lat, lon float64) (*Region, error) {
	return r.region, r.err
}

// memoryStore keeps consumers in a slice and applies the conditional claim in
// memory, mirroring the null-guarded UPDATE.
type memoryStore struct {
	consumers []Consommateur
	densities map[string]int
	centroids map[string][2]float64
}

func (s *memoryStore) GeocodedConsumers(ctx context.Context, communeCodes []string, annee int) ([]Consommateur, error) {
	codes := make(map[string]bool, len(communeCodes))
	for _, c := range communeCodes {
		codes[c] = true
	}
	var out []Consommateur
	for i := range s.consumers {
		c := s.consumers[i]
		if codes[c.CodeCommune] && c.Annee == annee && c.HasCoordinates() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memoryStore) LinkConsumers(ctx context.Context, ids []int64, installationID uuid.UUID) (int64, error) {
	var linked int64
	for _, id := range ids {
		for i := range s.consumers {
			if s.consumers[i].ID == id && s.consumers[i].InstallationRechercheID == nil {
				claimed := installationID
				s.consumers[i].InstallationRechercheID = &claimed
				linked++
			}
		}
	}
	return linked, nil
}

func (s *memoryStore) Densities(ctx context.Context, codes []string) (map[string]int, error) {
	return s.densities, nil
}

func parisRegion() *Region {
	return &Region{
		InstallationCommune: &Commune{CodGeo: "75056", NomCommune: "Paris", Dens7: 1},
		CommunesDansRayon:   []Commune{{CodGeo: "75056", NomCommune: "Paris", Dens7: 1}},
	}
}

// TestLinkEligibleConsumers_Idempotent runs linkage twice: the first run
// claims every eligible consumer, the second claims none and reports them all
// as already linked.
func TestLinkEligibleConsumers_Idempotent(t *testing.T) {
	store := &memoryStore{
		consumers: []Consommateur{
			geocodedConsumer(1, "75056", 48.8566, 2.3522),
			geocodedConsumer(2, "75056", 48.8566+latOffset(1000), 2.3522),
		},
		densities: map[string]int{"75056": 1},
	}
	svc := &LinkageService{
		Resolver:  fixedResolver{region: parisRegion()},
		Store:     store,
		Densities: store,
	}
	installationID := uuid.New()

	first, err := svc.LinkEligibleConsumers(context.Background(), installationID, 48.8566, 2.3522, 200, 2024)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Total != 2 || first.Linked != 2 || first.AlreadyLinked != 0 {
		t.Fatalf("first run: %+v", first)
	}

	second, err := svc.LinkEligibleConsumers(context.Background(), installationID, 48.8566, 2.3522, 200, 2024)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Total != 2 || second.Linked != 0 || second.AlreadyLinked != 2 {
		t.Fatalf("second run should link nothing: %+v", second)
	}
}

// TestLinkEligibleConsumers_FirstClaimWins verifies that a consumer already
// claimed by another installation is never reassigned.
func TestLinkEligibleConsumers_FirstClaimWins(t *testing.T) {
	otherID := uuid.New()
	claimed := geocodedConsumer(1, "75056", 48.8566, 2.3522)
	claimed.InstallationRechercheID = &otherID

	store := &memoryStore{
		consumers: []Consommateur{
			claimed,
			geocodedConsumer(2, "75056", 48.8566+latOffset(500), 2.3522),
		},
		densities: map[string]int{"75056": 1},
	}
	svc := &LinkageService{
		Resolver:  fixedResolver{region: parisRegion()},
		Store:     store,
		Densities: store,
	}

	result, err := svc.LinkEligibleConsumers(context.Background(), uuid.New(), 48.8566, 2.3522, 200, 2024)
	if err != nil {
		t.Fatalf("LinkEligibleConsumers: %v", err)
	}
	if result.Total != 2 || result.Linked != 1 || result.AlreadyLinked != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if *store.consumers[0].InstallationRechercheID != otherID {
		t.Error("claimed consumer was reassigned")
	}
}

// TestLinkEligibleConsumers_ConcurrentClaim counts rows skipped by the
// conditional write as already linked.
func TestLinkEligibleConsumers_ConcurrentClaim(t *testing.T) {
	store := &memoryStore{
		consumers: []Consommateur{geocodedConsumer(1, "75056", 48.8566, 2.3522)},
		densities: map[string]int{"75056": 1},
	}
	svc := &LinkageService{
		Resolver:  fixedResolver{region: parisRegion()},
		Store:     racingStore{store},
		Densities: store,
	}

	result, err := svc.LinkEligibleConsumers(context.Background(), uuid.New(), 48.8566, 2.3522, 200, 2024)
	if err != nil {
		t.Fatalf("LinkEligibleConsumers: %v", err)
	}
	if result.Linked != 0 || result.AlreadyLinked != 1 {
		t.Fatalf("concurrently claimed row should count as already linked: %+v", result)
	}
}

// racingStore simulates a concurrent run claiming every candidate between the
// read and the conditional write.
type racingStore struct {
	*memoryStore
}

func (r racingStore) LinkConsumers(ctx context.Context, ids []int64, installationID uuid.UUID) (int64, error) {
	winner := uuid.New()
	_, _ = r.memoryStore.LinkConsumers(ctx, ids, winner)
	return 0, nil
}

// TestLinkEligibleConsumers_RegionNotFound passes the sentinel through.
func TestLinkEligibleConsumers_RegionNotFound(t *testing.T) {
	svc := &LinkageService{
		Resolver:  fixedResolver{err: ErrRegionNotFound},
		Store:     &memoryStore{},
		Densities: &memoryStore{},
	}

	_, err := svc.LinkEligibleConsumers(context.Background(), uuid.New(), 0, 0, 200, 2024)
	if !errors.Is(err, ErrRegionNotFound) {
		t.Fatalf("expected ErrRegionNotFound, got %v", err)
	}
}
