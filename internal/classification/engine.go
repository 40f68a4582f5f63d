// Package classification routes tenders to business modules with a weighted
// keyword engine. The engine is deterministic: the same tables and inputs
// always produce the same result.
package classification

import (
	"math"
	"strings"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
)

// MaxKeywords caps the keyword evidence returned with a result.
const MaxKeywords = 10

// Rule match prefixes recorded in ClassificationResult.MatchedRules.
const (
	CategoryMatchPrefix = "category:"
	KeywordMatchPrefix  = "keyword:"
	RuleMatchPrefix     = "rule:"
)

type compiledKeyword struct {
	term   string
	lower  string
	weight int
}

type compiledModule struct {
	module   domain.Module
	keywords []compiledKeyword
}

type compiledAlias struct {
	alias string
	lower string
	index int
}

type compiledRule struct {
	name   string
	index  int
	bonus  int
	allOf  [][]string
	noneOf []string
}

// Engine classifies tenders against immutable tables.
type Engine struct {
	modules       []compiledModule
	aliases       []compiledAlias
	rules         []compiledRule
	categoryBonus int
	titleFactor   float64
	defaultModule domain.Module
}

// NewEngine validates tables and precomputes the lowercase forms.
func NewEngine(tables Tables) (*Engine, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}

	index := make(map[domain.Module]int, len(tables.Modules))
	e := &Engine{
		categoryBonus: tables.CategoryBonus,
		titleFactor:   tables.TitleBonusFactor,
		defaultModule: tables.DefaultModule,
	}
	for i, mk := range tables.Modules {
		index[mk.Module] = i
		cm := compiledModule{module: mk.Module, keywords: make([]compiledKeyword, 0, len(mk.Keywords))}
		for _, k := range mk.Keywords {
			cm.keywords = append(cm.keywords, compiledKeyword{term: k.Term, lower: strings.ToLower(k.Term), weight: k.Weight})
		}
		e.modules = append(e.modules, cm)
	}
	for _, a := range tables.CategoryAliases {
		e.aliases = append(e.aliases, compiledAlias{alias: a.Alias, lower: strings.ToLower(a.Alias), index: index[a.Module]})
	}
	for _, r := range tables.Rules {
		cr := compiledRule{name: r.Name, index: index[r.Module], bonus: tables.ruleBonus(r)}
		for _, group := range r.AllOf {
			cr.allOf = append(cr.allOf, lowerAll(group))
		}
		cr.noneOf = lowerAll(r.NoneOf)
		e.rules = append(e.rules, cr)
	}
	return e, nil
}

// NewDefaultEngine builds an engine over DefaultTables.
func NewDefaultEngine() *Engine {
	e, err := NewEngine(DefaultTables())
	if err != nil {
		panic(err)
	}
	return e
}

// Classify scores title, description and the optional source category and
// returns the winning module with its evidence.
func (e *Engine) Classify(title, description, category string) domain.ClassificationResult {
	text := strings.ToLower(title + " " + description)
	titleLower := strings.ToLower(title)
	scores := make([]int, len(e.modules))
	var matched, keywords []string

	if category != "" {
		categoryLower := strings.ToLower(category)
		for _, a := range e.aliases {
			if strings.Contains(categoryLower, a.lower) {
				scores[a.index] += e.categoryBonus
				matched = append(matched, CategoryMatchPrefix+a.alias)
			}
		}
	}

	for i, m := range e.modules {
		for _, k := range m.keywords {
			if !strings.Contains(text, k.lower) {
				continue
			}
			scores[i] += k.weight
			keywords = append(keywords, k.term)
			matched = append(matched, KeywordMatchPrefix+k.term)
			if strings.Contains(titleLower, k.lower) {
				scores[i] += int(math.Floor(float64(k.weight) * e.titleFactor))
			}
		}
	}

	for _, r := range e.rules {
		if r.matches(text) {
			scores[r.index] += r.bonus
			matched = append(matched, RuleMatchPrefix+r.name)
		}
	}

	best, total := 0, 0
	selected := e.defaultModule
	vector := make([]domain.ModuleScore, len(e.modules))
	for i, m := range e.modules {
		vector[i] = domain.ModuleScore{Module: m.module, Score: scores[i]}
		total += scores[i]
		if scores[i] > best {
			best = scores[i]
			selected = m.module
		}
	}

	confidence := 0.5
	if total > 0 {
		confidence = math.Min(float64(best)/float64(total), 1)
	}

	return domain.ClassificationResult{
		Module:       selected,
		Confidence:   confidence,
		Keywords:     firstUnique(keywords, MaxKeywords),
		MatchedRules: matched,
		Scores:       vector,
	}
}

// ExtractKeywords returns every known keyword found in text, deduplicated,
// in table order.
func (e *Engine) ExtractKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, m := range e.modules {
		for _, k := range m.keywords {
			if strings.Contains(lower, k.lower) {
				found = append(found, k.term)
			}
		}
	}
	return firstUnique(found, 0)
}

// ModuleKeywords lists the terms configured for module, or nil if unknown.
func (e *Engine) ModuleKeywords(module domain.Module) []string {
	for _, m := range e.modules {
		if m.module != module {
			continue
		}
		terms := make([]string, 0, len(m.keywords))
		for _, k := range m.keywords {
			terms = append(terms, k.term)
		}
		return terms
	}
	return nil
}

// Modules lists the modules in enumeration order.
func (e *Engine) Modules() []domain.Module {
	out := make([]domain.Module, 0, len(e.modules))
	for _, m := range e.modules {
		out = append(out, m.module)
	}
	return out
}

// DefaultModule is the fallback when nothing scores.
func (e *Engine) DefaultModule() domain.Module {
	return e.defaultModule
}

func (r compiledRule) matches(text string) bool {
	for _, group := range r.allOf {
		if !containsAny(text, group) {
			return false
		}
	}
	return !containsAny(text, r.noneOf)
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}

// firstUnique keeps first occurrences; limit <= 0 means no cap.
func firstUnique(in []string, limit int) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
