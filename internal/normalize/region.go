package normalize

import (
	"strings"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
)

var regionAliases = map[string]domain.Region{
	"dakar":           "Dakar",
	"diourbel":        "Diourbel",
	"fatick":          "Fatick",
	"kaffrine":        "Kaffrine",
	"kaolack":         "Kaolack",
	"kedougou":        "Kédougou",
	"kolda":           "Kolda",
	"louga":           "Louga",
	"matam":           "Matam",
	"saint louis":     "Saint-Louis",
	"st louis":        "Saint-Louis",
	"sedhiou":         "Sédhiou",
	"tambacounda":     "Tambacounda",
	"thies":           "Thiès",
	"ziguinchor":      "Ziguinchor",
	"national":        domain.RegionNational,
	"tout le senegal": domain.RegionNational,
	"senegal":         domain.RegionNational,
}

var regionPrefixes = []string{"region de ", "region du ", "region "}

var regionSeparators = strings.NewReplacer("-", " ", "_", " ", ".", " ", "'", " ")

// Region maps a free-form location to its canonical label. Unknown input is
// returned trimmed but otherwise unchanged; empty input means National.
func Region(raw string) domain.Region {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.RegionNational
	}

	key := collapseSpaces(regionSeparators.Replace(Fold(trimmed)))
	if region, ok := regionAliases[key]; ok {
		return region
	}
	for _, prefix := range regionPrefixes {
		if rest, found := strings.CutPrefix(key, prefix); found {
			if region, ok := regionAliases[rest]; ok {
				return region
			}
		}
	}
	return domain.Region(trimmed)
}

// Regions lists the canonical labels, National last.
func Regions() []domain.Region {
	return []domain.Region{
		"Dakar", "Diourbel", "Fatick", "Kaffrine", "Kaolack", "Kédougou", "Kolda",
		"Louga", "Matam", "Saint-Louis", "Sédhiou", "Tambacounda", "Thiès", "Ziguinchor",
		domain.RegionNational,
	}
}
