package catchment

// The perimeter an installation may recruit consumers from depends on the
// INSEE 7-level density grid of the commune (dens7, 1 = densest). The decree
// collapses the grid into three bands:
//
//	densities 1-2 (dense urban)      -> 2 km
//	densities 3-4 (urban/peri-urban) -> 10 km
//	densities 5-7 (rural)            -> 20 km
//
// Any density outside 1-7 (bad import, missing row) falls into the rural band.
// That is the documented fallback, not an error.

// DefaultDensity is assumed when a commune has no density record.
const DefaultDensity = 5

// RegulatoryRadius returns the catchment radius in meters for a dens7 code.
func RegulatoryRadius(density int) float64 {
	switch {
	case density == 1 || density == 2:
		return 2000
	case density == 3 || density == 4:
		return 10000
	default:
		return 20000
	}
}

// RegulatoryCategory maps a dens7 code onto its restrictiveness rank.
// Category 1 (densities 1-2) is the most restrictive, category 3 the least.
func RegulatoryCategory(density int) int {
	switch {
	case density == 1 || density == 2:
		return 1
	case density == 3 || density == 4:
		return 2
	default:
		return 3
	}
}

// IsMoreRestrictive reports whether category a imposes a tighter perimeter
// than category b. Lower rank = tighter.
func IsMoreRestrictive(a, b int) bool {
	return a < b
}
