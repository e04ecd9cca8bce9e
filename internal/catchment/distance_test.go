package catchment

import (
	"math"
	"testing"
)

// TestDistanceMeters_SamePoint verifies a zero distance for identical points.
func TestDistanceMeters_SamePoint(t *testing.T) {
	if d := DistanceMeters(48.8566, 2.3522, 48.8566, 2.3522); d != 0 {
		t.Errorf("expected 0, got %v", d)
	}
}

// TestDistanceMeters_Symmetry verifies d(a,b) == d(b,a).
func TestDistanceMeters_Symmetry(t *testing.T) {
	d1 := DistanceMeters(48.8566, 2.3522, 43.2965, 5.3698)
	d2 := DistanceMeters(43.2965, 5.3698, 48.8566, 2.3522)
	if math.Abs(d1-d2) > 1e-6 {
		t.Errorf("distance not symmetric: %v vs %v", d1, d2)
	}
}

// TestDistanceMeters_ParisMarseille checks a known city-pair distance,
// roughly 660 km great-circle.
func TestDistanceMeters_ParisMarseille(t *testing.T) {
	d := DistanceMeters(48.8566, 2.3522, 43.2965, 5.3698)
	if d < 655000 || d > 665000 {
		t.Errorf("Paris-Marseille = %v m, want ~660 km", d)
	}
}

// TestDistanceMeters_OneDegreeLatitude checks the meridian arc length implied
// by the sphere radius: one degree of latitude is ~111.2 km.
func TestDistanceMeters_OneDegreeLatitude(t *testing.T) {
	want := earthRadiusMeters * math.Pi / 180
	d := DistanceMeters(45, 3, 46, 3)
	if math.Abs(d-want) > 1 {
		t.Errorf("one degree of latitude = %v m, want %v", d, want)
	}
}
