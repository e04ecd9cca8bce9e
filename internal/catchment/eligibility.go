package catchment

import "github.com/google/uuid"

// DefaultMargeMetres is the safety margin added to the regulatory radius when
// an installation carries no override.
const DefaultMargeMetres = 200

// circleFilterSlackMetres is added to the half-radius of the manual circular
// sub-filter so consumers sitting on its edge are kept.
const circleFilterSlackMetres = 100

// InstallationContext is the slice of an installation the eligibility test
// needs: its position, the density of its commune and the safety margin.
type InstallationContext struct {
	ID          uuid.UUID
	Nom         string
	Latitude    float64
	Longitude   float64
	Density     int // dens7 of the installation's commune
	MargeMetres float64
}

// effectiveMarge returns the margin, defaulting when unset.
func (ic InstallationContext) effectiveMarge() float64 {
	if ic.MargeMetres <= 0 {
		return DefaultMargeMetres
	}
	return ic.MargeMetres
}

// CircleFilter is the user-positioned refinement disk layered on top of the
// regulatory test. Its radius derives from the installation's regulatory
// radius: half of it, plus a fixed 100 m slack.
type CircleFilter struct {
	Latitude  float64
	Longitude float64
}

// Options tunes a single eligibility run.
type Options struct {
	// Circle, when non-nil, restricts the eligible set to consumers inside
	// the manual disk. Only meaningful with a single active installation.
	Circle *CircleFilter
}

// CircleFilterRadius returns the effective radius of the manual sub-filter
// for an installation with the given regulatory radius.
func CircleFilterRadius(installationRadius float64) float64 {
	return installationRadius/2 + circleFilterSlackMetres
}

// IsEligible runs the regulatory distance test for one consumer against one
// installation. The binding radius is the stricter of the two communes: when
// the consumer's commune is in a more restrictive category than the
// installation's, the consumer's own (tighter) radius applies; otherwise the
// installation's does. The margin is added either way, and the boundary is
// inclusive.
func IsEligible(inst InstallationContext, c *Consommateur, consumerDensity int) bool {
	if !c.HasCoordinates() || c.CodeCommune == "" {
		return false
	}

	distance := DistanceMeters(inst.Latitude, inst.Longitude, *c.Latitude, *c.Longitude)
	marge := inst.effectiveMarge()

	instCategory := RegulatoryCategory(inst.Density)
	consumerCategory := RegulatoryCategory(consumerDensity)

	if IsMoreRestrictive(consumerCategory, instCategory) {
		return distance <= RegulatoryRadius(consumerDensity)+marge
	}
	return distance <= RegulatoryRadius(inst.Density)+marge
}

// ComputeEligibility filters candidates down to the consumers inside the
// installation's applicable catchment area. densities maps commune code to
// dens7; missing entries fall back to DefaultDensity. A consumer with no
// coordinates or no commune code is never eligible. An empty candidate list
// yields an empty result, not an error.
func ComputeEligibility(inst InstallationContext, candidates []Consommateur, densities map[string]int, opts Options) []Consommateur {
	eligible := make([]Consommateur, 0, len(candidates))

	for i := range candidates {
		c := &candidates[i]

		density, ok := densities[c.CodeCommune]
		if !ok || density == 0 {
			density = DefaultDensity
		}
		if !IsEligible(inst, c, density) {
			continue
		}

		if opts.Circle != nil {
			radius := CircleFilterRadius(RegulatoryRadius(inst.Density))
			d := DistanceMeters(opts.Circle.Latitude, opts.Circle.Longitude, *c.Latitude, *c.Longitude)
			if d > radius {
				continue
			}
		}

		eligible = append(eligible, *c)
	}

	return eligible
}
