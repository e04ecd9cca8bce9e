package geocode

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// The consumption dataset arrives double-encoded often enough that a fixed
// replacement table beats guessing charsets. Pairs are ordered: multi-byte
// sequences first so shorter prefixes don't eat them.
var mojibakeReplacer = strings.NewReplacer(
	"Ã©", "é", "Ã¨", "è", "Ãª", "ê", "Ã«", "ë",
	"Ã ", "à", "Ã¢", "â", "Ã´", "ô", "Ã¹", "ù",
	"Ã»", "û", "Ã§", "ç", "Ã®", "î", "Ã¯", "ï",
	"Ã‰", "É", "Ãˆ", "È", "ÃŠ", "Ê", "Ã€", "À",
	"Ã‚", "Â", "Ã‡", "Ç", "ÃŽ", "Î",
	"â€™", "'", "â€˜", "'", "â€œ", `"`,
)

// FixEncoding repairs the common UTF-8-read-as-Latin-1 artifacts seen in
// imported addresses and commune names.
func FixEncoding(s string) string {
	if s == "" {
		return ""
	}
	return mojibakeReplacer.Replace(s)
}

var (
	multiSpaceRe = regexp.MustCompile(`\s+`)
	allCapsRe    = regexp.MustCompile(`([A-ZÀ-Ý])([A-ZÀ-Ý]{2,})`)
)

// Voie abbreviations the dataset uses, expanded for the address API.
var voieAbbreviations = map[string]string{
	"AV":    "Avenue",
	"BD":    "Boulevard",
	"CHE":   "Chemin",
	"IMP":   "Impasse",
	"PL":    "Place",
	"R":     "Rue",
	"RTE":   "Route",
	"ALL":   "Allée",
	"ALLEE": "Allée",
	"CRS":   "Cours",
	"QU":    "Quai",
	"SQ":    "Square",
	"ST":    "Saint",
	"STE":   "Sainte",
}

// NormalizeAddress cleans a raw dataset address for geocoding: whitespace
// collapsed, SHOUTING words title-cased, voie abbreviations expanded.
func NormalizeAddress(address string) string {
	if address == "" {
		return address
	}

	s := strings.TrimSpace(address)
	s = multiSpaceRe.ReplaceAllString(s, " ")

	s = allCapsRe.ReplaceAllStringFunc(s, func(m string) string {
		r := []rune(m)
		return string(r[0]) + strings.ToLower(string(r[1:]))
	})

	words := strings.Split(s, " ")
	for i, w := range words {
		if full, ok := voieAbbreviations[strings.ToUpper(strings.TrimSuffix(w, "."))]; ok {
			words[i] = full
		}
	}
	s = strings.Join(words, " ")

	s = strings.ReplaceAll(s, " ,", ",")
	return strings.TrimSpace(s)
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripDiacritics removes accents for case- and accent-insensitive matching
// (commune names, brand detection).
func StripDiacritics(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	return out
}

var lieuDitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(LE|LA|LES|L')\s+[A-Z]`),
	regexp.MustCompile(`(?i)LIEU[ -]DIT`),
	regexp.MustCompile(`(?i)^CHATEAU `),
	regexp.MustCompile(`(?i)^DOMAINE `),
	regexp.MustCompile(`(?i)^FERME `),
	regexp.MustCompile(`(?i)^MOULIN `),
}

var streetIndicatorRe = regexp.MustCompile(`(?i)\b(RUE|AVENUE|BOULEVARD|PLACE|CHEMIN|ROUTE|IMPASSE|ALLEE|COURS)\b`)

// IsLieuDit reports whether an address looks like a named place rather than a
// street address. Those geocode better with the commune name appended.
func IsLieuDit(address string) bool {
	upper := strings.ToUpper(StripDiacritics(address))

	for _, p := range lieuDitPatterns {
		if p.MatchString(upper) {
			return true
		}
	}

	hasNoStreet := !streetIndicatorRe.MatchString(upper)
	hasNoNumber := !startsWithDigit(upper)
	isAllCaps := strings.ToUpper(address) == address && len(address) > 3

	return hasNoStreet && hasNoNumber && isAllCaps
}

func startsWithDigit(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// Retail brands that show up as the whole "address" of a supermarket meter.
// Geocoding the brand name inside the commune usually resolves them.
var brandPatterns = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)\bAUCHAN\b`), "AUCHAN"},
	{regexp.MustCompile(`(?i)\bLECLERC\b`), "E.LECLERC"},
	{regexp.MustCompile(`(?i)\bCARREFOUR\b`), "CARREFOUR"},
	{regexp.MustCompile(`(?i)\bINTERMARCHE\b`), "INTERMARCHÉ"},
	{regexp.MustCompile(`(?i)\bCASINO\b`), "CASINO"},
	{regexp.MustCompile(`(?i)\bLIDL\b`), "LIDL"},
	{regexp.MustCompile(`(?i)\bALDI\b`), "ALDI"},
	{regexp.MustCompile(`(?i)\b(SUPER U|HYPER U)\b`), "SYSTÈME U"},
	{regexp.MustCompile(`(?i)\bMONOPRIX\b`), "MONOPRIX"},
	{regexp.MustCompile(`(?i)\bCORA\b`), "CORA"},
}

var commercialKeywords = []string{
	"CENTRE COMMERCIAL ", "HYPERMARCHE ", "SUPERMARCHE ", "GALERIE ",
	"ZONE ARTISANALE ", "ZONE INDUSTRIELLE ", "PARC D'ACTIVITES ",
	"PARC COMMERCIAL ", "MAIL ", "HYPER ", "SUPER ", "ZAC ", "ZI ", "CC ",
}

// CommercialInfo is what brand extraction found in a commercial address.
type CommercialInfo struct {
	BrandName  string   // empty when no known brand detected
	Variations []string // alternative query strings, most specific first
}

// ExtractCommercialInfo detects retail-brand addresses and produces query
// variations stripped of commercial noise words.
func ExtractCommercialInfo(address string) CommercialInfo {
	info := CommercialInfo{}
	upper := StripDiacritics(address)

	for _, b := range brandPatterns {
		if b.re.MatchString(upper) {
			info.BrandName = b.name
			break
		}
	}

	cleaned := address
	for _, kw := range commercialKeywords {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(kw))
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned != "" {
		info.Variations = append(info.Variations, cleaned)
	}

	for _, b := range brandPatterns {
		withoutBrand := strings.TrimSpace(b.re.ReplaceAllString(cleaned, ""))
		if withoutBrand != "" && withoutBrand != cleaned {
			info.Variations = append(info.Variations, withoutBrand)
			break
		}
	}

	if info.BrandName != "" {
		info.Variations = append(info.Variations, info.BrandName)
	}

	return info
}
