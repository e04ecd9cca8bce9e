package catchment

import (
	"math"
	"testing"
)

// geocodedConsumer builds a successfully geocoded consumer at a position.
func geocodedConsumer(id int64, code string, lat, lon float64) Consommateur {
	status := GeocodeSuccess
	return Consommateur{
		ID:                      id,
		Annee:                   2024,
		CodeCommune:             code,
		NomCommune:              "Testville",
		NombreSites:             1,
		ConsommationAnnuelleMWh: 100,
		Latitude:                &lat,
		Longitude:               &lon,
		GeocodeStatus:           &status,
	}
}

// latOffset returns the latitude delta corresponding to a north-south
// displacement in meters on the sphere the distance function uses.
func latOffset(meters float64) float64 {
	return meters / (earthRadiusMeters * math.Pi / 180)
}

// TestIsEligible_InstallationRadius covers the plain case where both communes
// share a category: the installation's radius plus margin binds, boundary
// inclusive.
func TestIsEligible_InstallationRadius(t *testing.T) {
	inst := InstallationContext{Latitude: 48.8566, Longitude: 2.3522, Density: 1, MargeMetres: 200}

	atCutoff := geocodedConsumer(1, "75056", 48.8566+latOffset(2200), 2.3522)
	if !IsEligible(inst, &atCutoff, 1) {
		t.Error("consumer exactly at radius+margin should be eligible (inclusive boundary)")
	}

	beyond := geocodedConsumer(2, "75056", 48.8566+latOffset(2300), 2.3522)
	if IsEligible(inst, &beyond, 1) {
		t.Error("consumer beyond radius+margin should not be eligible")
	}
}

// TestIsEligible_ConsumerMoreRestrictive verifies the tie-break rule: a
// consumer in a denser (tighter) commune is tested against its own radius,
// not the installation's wider one.
func TestIsEligible_ConsumerMoreRestrictive(t *testing.T) {
	// Rural installation (20 km radius), dense-urban consumer (2 km radius),
	// margin 100 m: the cutoff is 2100 m, not 20100 m.
	inst := InstallationContext{Latitude: 45.0, Longitude: 3.0, Density: 7, MargeMetres: 100}

	near := geocodedConsumer(1, "63113", 45.0+latOffset(2050), 3.0)
	if !IsEligible(inst, &near, 1) {
		t.Error("consumer at 2050 m should be eligible against its own 2100 m cutoff")
	}

	far := geocodedConsumer(2, "63113", 45.0+latOffset(2150), 3.0)
	if IsEligible(inst, &far, 1) {
		t.Error("consumer at 2150 m should not be eligible against its own 2100 m cutoff")
	}
}

// TestIsEligible_InstallationMoreRestrictive verifies the other side of the
// tie-break: when the installation's commune is tighter, its radius binds even
// for consumers from looser communes.
func TestIsEligible_InstallationMoreRestrictive(t *testing.T) {
	inst := InstallationContext{Latitude: 45.0, Longitude: 3.0, Density: 1, MargeMetres: 200}

	c := geocodedConsumer(1, "63113", 45.0+latOffset(5000), 3.0)
	if IsEligible(inst, &c, 7) {
		t.Error("rural consumer at 5 km should fail the installation's 2200 m cutoff")
	}
}

// TestIsEligible_RequiresCoordinates rejects consumers without a successful
// geocode or without a commune code.
func TestIsEligible_RequiresCoordinates(t *testing.T) {
	inst := InstallationContext{Latitude: 45.0, Longitude: 3.0, Density: 1}

	ungeocode := Consommateur{ID: 1, CodeCommune: "63113"}
	if IsEligible(inst, &ungeocode, 1) {
		t.Error("consumer without coordinates should never be eligible")
	}

	failed := geocodedConsumer(2, "63113", 45.0, 3.0)
	status := GeocodeFailed
	failed.GeocodeStatus = &status
	if IsEligible(inst, &failed, 1) {
		t.Error("consumer with failed geocode should never be eligible")
	}

	noCommune := geocodedConsumer(3, "", 45.0, 3.0)
	if IsEligible(inst, &noCommune, 1) {
		t.Error("consumer without a commune code should never be eligible")
	}
}

// TestIsEligible_DefaultMargin verifies that an unset margin falls back to
// 200 m.
func TestIsEligible_DefaultMargin(t *testing.T) {
	inst := InstallationContext{Latitude: 48.8566, Longitude: 2.3522, Density: 1}

	c := geocodedConsumer(1, "75056", 48.8566+latOffset(2100), 2.3522)
	if !IsEligible(inst, &c, 1) {
		t.Error("2100 m should pass the default 2000+200 m cutoff")
	}
}

// TestComputeEligibility_Scenario runs the reference scenario: a rural
// installation (20 km radius, margin 200) with one consumer on top of it, one
// 25 km away and two dense-urban consumers straddling their own tighter
// 2200 m cutoff.
func TestComputeEligibility_Scenario(t *testing.T) {
	inst := InstallationContext{Latitude: 48.8566, Longitude: 2.3522, Density: 5, MargeMetres: 200}

	candidates := []Consommateur{
		geocodedConsumer(1, "77288", 48.8566, 2.3522),                  // on the installation
		geocodedConsumer(2, "77288", 48.8566+latOffset(25000), 2.3522), // beyond 20200 m
		geocodedConsumer(3, "75056", 48.8566+latOffset(2100), 2.3522),  // cat-1 commune, inside its 2200 m
		geocodedConsumer(4, "75056", 48.8566+latOffset(2300), 2.3522),  // cat-1 commune, outside its 2200 m
	}
	densities := map[string]int{"75056": 1, "77288": 5}

	eligible := ComputeEligibility(inst, candidates, densities, Options{})
	if len(eligible) != 2 {
		t.Fatalf("expected 2 eligible consumers, got %d", len(eligible))
	}
	if eligible[0].ID != 1 || eligible[1].ID != 3 {
		t.Errorf("unexpected eligible IDs: %d, %d", eligible[0].ID, eligible[1].ID)
	}
}

// TestIsEligible_MarginMonotonic checks that increasing the margin never
// removes a previously eligible consumer.
func TestIsEligible_MarginMonotonic(t *testing.T) {
	c := geocodedConsumer(1, "75056", 48.8566+latOffset(2150), 2.3522)

	wasEligible := false
	for marge := 100.0; marge <= 1000; marge += 50 {
		inst := InstallationContext{Latitude: 48.8566, Longitude: 2.3522, Density: 1, MargeMetres: marge}
		eligible := IsEligible(inst, &c, 1)
		if wasEligible && !eligible {
			t.Fatalf("margin %v removed a consumer eligible at a smaller margin", marge)
		}
		wasEligible = eligible
	}
	if !wasEligible {
		t.Error("consumer at 2150 m should be eligible at margin 1000")
	}
}

// TestComputeEligibility_DensityFallback treats a commune absent from the
// density map (or recorded as 0) as DefaultDensity.
func TestComputeEligibility_DensityFallback(t *testing.T) {
	// Installation in a rural commune. Consumer commune is unknown, so it gets
	// DefaultDensity (rural, same category): the installation's 20 km + margin
	// binds and 15 km passes.
	inst := InstallationContext{Latitude: 45.0, Longitude: 3.0, Density: 6, MargeMetres: 200}
	candidates := []Consommateur{
		geocodedConsumer(1, "99999", 45.0+latOffset(15000), 3.0),
	}

	eligible := ComputeEligibility(inst, candidates, map[string]int{}, Options{})
	if len(eligible) != 1 {
		t.Fatalf("expected the unknown-density consumer to fall back to rural, got %d eligible", len(eligible))
	}

	eligible = ComputeEligibility(inst, candidates, map[string]int{"99999": 0}, Options{})
	if len(eligible) != 1 {
		t.Fatalf("expected dens7=0 to fall back to rural, got %d eligible", len(eligible))
	}
}

// TestComputeEligibility_CircleFilter layers the manual disk on top of the
// regulatory test: half the installation radius plus 100 m.
func TestComputeEligibility_CircleFilter(t *testing.T) {
	inst := InstallationContext{Latitude: 48.8566, Longitude: 2.3522, Density: 1, MargeMetres: 200}
	circle := &CircleFilter{Latitude: 48.8566, Longitude: 2.3522}

	// Disk radius is 2000/2 + 100 = 1100 m.
	if r := CircleFilterRadius(RegulatoryRadius(inst.Density)); r != 1100 {
		t.Fatalf("CircleFilterRadius = %v, want 1100", r)
	}

	candidates := []Consommateur{
		geocodedConsumer(1, "75056", 48.8566+latOffset(1000), 2.3522), // inside disk
		geocodedConsumer(2, "75056", 48.8566+latOffset(1500), 2.3522), // regulatory yes, disk no
	}
	densities := map[string]int{"75056": 1}

	eligible := ComputeEligibility(inst, candidates, densities, Options{Circle: circle})
	if len(eligible) != 1 || eligible[0].ID != 1 {
		t.Fatalf("expected only the consumer inside the disk, got %d", len(eligible))
	}

	// Without the disk both pass.
	eligible = ComputeEligibility(inst, candidates, densities, Options{})
	if len(eligible) != 2 {
		t.Fatalf("expected both consumers without the disk, got %d", len(eligible))
	}
}

// TestComputeEligibility_Empty yields an empty slice, not nil or an error.
func TestComputeEligibility_Empty(t *testing.T) {
	inst := InstallationContext{Latitude: 45.0, Longitude: 3.0, Density: 1}
	eligible := ComputeEligibility(inst, nil, nil, Options{})
	if eligible == nil || len(eligible) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", eligible)
	}
}
