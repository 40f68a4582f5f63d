package parser

import (
	"dario.cat/mergo"
	"github.com/rotisserie/eris"
)

// Selectors lists, per field, the CSS selectors tried in order. The first
// selector yielding a non-empty value wins.
type Selectors struct {
	List         []string `yaml:"list"`
	Item         []string `yaml:"item"`
	Reference    []string `yaml:"reference"`
	Title        []string `yaml:"title"`
	Institution  []string `yaml:"institution"`
	Deadline     []string `yaml:"deadline"`
	Publication  []string `yaml:"publication"`
	Region       []string `yaml:"region"`
	Category     []string `yaml:"category"`
	Description  []string `yaml:"description"`
	Amount       []string `yaml:"amount"`
	DetailLink   []string `yaml:"detailLink"`
	DocumentLink []string `yaml:"documentLink"`
	NextPage     []string `yaml:"nextPage"`
}

// DefaultSelectors matches the known layouts of marchespublics.sn.
func DefaultSelectors() Selectors {
	return Selectors{
		List:         []string{".liste-avis", ".tender-list", "table.datatable tbody tr", ".ao-list-item"},
		Item:         []string{".avis-item", ".tender-item", "tr", ".ao-item"},
		Reference:    []string{".reference", ".numero-avis", "td:nth-child(1)", ".ao-ref"},
		Title:        []string{".titre", ".objet", "td:nth-child(2)", ".ao-title", "h3", "h4"},
		Institution:  []string{".autorite", ".institution", ".organisme", "td:nth-child(3)", ".ao-org"},
		Deadline:     []string{".date-limite", ".deadline", "td:nth-child(4)", ".ao-deadline"},
		Publication:  []string{".date-publication", ".published", "td:nth-child(5)", ".ao-pubdate"},
		Region:       []string{".region", ".localisation", ".lieu", "td:nth-child(6)", ".ao-location"},
		Category:     []string{".categorie", ".type", ".nature", ".ao-category"},
		Description:  []string{".description", ".contenu", ".detail-content", ".ao-description"},
		Amount:       []string{".montant", ".budget", ".estimation", ".ao-amount"},
		DetailLink:   []string{"a.detail", "a.voir-plus", `a[href*="detail"]`, `a[href*="view"]`},
		DocumentLink: []string{"a.download", `a[href*=".pdf"]`, `a[href*="document"]`, ".ao-download"},
		NextPage:     []string{".pagination a.next", ".page-suivante", `a[rel="next"]`, ".pagination li:last-child a"},
	}
}

// WithOverrides replaces every non-empty list of override in a copy of s.
func (s Selectors) WithOverrides(override Selectors) (Selectors, error) {
	out := s
	if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
		return Selectors{}, eris.Wrap(err, "merge selectors")
	}
	return out, nil
}
