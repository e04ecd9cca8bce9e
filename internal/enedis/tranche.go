// Package enedis imports annual consumption records from the Enedis open-data
// portal and derives the display attributes (consumption tranche, activity
// category) the map filters work with.
package enedis

// Tranches lists the consumption bands in ascending order, as exposed to the
// frontend filters.
var Tranches = []string{
	"[0-10]",
	"]10-50]",
	"]50-100]",
	"]100-250]",
	"]250-500]",
	"]500-1000]",
	"]1000-2000]",
	">2000",
}

// Categories lists the activity categories a consumer can carry.
var Categories = []string{
	"Agriculture",
	"Industrie",
	"Tertiaire",
	"Residentiel",
	"Etablissement public",
}

// CalculateTrancheConso buckets an annual consumption in MWh. Upper bounds are
// inclusive, matching the band labels.
func CalculateTrancheConso(consommationMWh float64) string {
	switch {
	case consommationMWh <= 10:
		return "[0-10]"
	case consommationMWh <= 50:
		return "]10-50]"
	case consommationMWh <= 100:
		return "]50-100]"
	case consommationMWh <= 250:
		return "]100-250]"
	case consommationMWh <= 500:
		return "]250-500]"
	case consommationMWh <= 1000:
		return "]500-1000]"
	case consommationMWh <= 2000:
		return "]1000-2000]"
	default:
		return ">2000"
	}
}

// NAF divisions 84-88 cover public administration, education, health and
// social action. They take precedence over the grand-secteur code.
var publicNAF2 = map[string]bool{
	"84": true, "85": true, "86": true, "87": true, "88": true,
}

var secteurCategories = map[string]string{
	"AGRICULTURE": "Agriculture",
	"INDUSTRIE":   "Industrie",
	"TERTIAIRE":   "Tertiaire",
	"RESIDENTIEL": "Residentiel",
}

// ActivityCategory derives the activity category from the dataset's NAF2
// division and grand-secteur codes. Unknown or empty codes fall back to
// Tertiaire, which is what the enterprise dataset's "Autres" rows are.
func ActivityCategory(codeSecteurNAF2, codeGrandSecteur string) string {
	if publicNAF2[codeSecteurNAF2] {
		return "Etablissement public"
	}
	if cat, ok := secteurCategories[codeGrandSecteur]; ok {
		return cat
	}
	return "Tertiaire"
}
