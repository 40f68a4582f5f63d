package classification

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
)

func scoreOf(t *testing.T, res domain.ClassificationResult, m domain.Module) int {
	t.Helper()
	for _, s := range res.Scores {
		if s.Module == m {
			return s.Score
		}
	}
	t.Fatalf("module %s missing from score vector", m)
	return 0
}

func TestDefaultTablesAreValid(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultTables().Validate())
	e := NewDefaultEngine()
	assert.Equal(t, domain.AllModules(), e.Modules())
	assert.Equal(t, domain.ModuleAchats, e.DefaultModule())
}

func TestClassifyCleaningNotice(t *testing.T) {
	t.Parallel()

	res := NewDefaultEngine().Classify("Marché de nettoyage des locaux", "", "")

	assert.Equal(t, domain.ModuleEntretiens, res.Module)
	assert.Contains(t, res.Keywords, "nettoyage")
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.Contains(t, res.MatchedRules, "keyword:nettoyage")
	assert.Contains(t, res.MatchedRules, "rule:marche_nettoyage")
	assert.Equal(t, 10+5+15, scoreOf(t, res, domain.ModuleEntretiens))
}

func TestClassifyTitleBonus(t *testing.T) {
	t.Parallel()

	e := NewDefaultEngine()

	bodyOnly := e.Classify("Avis", "nettoyage des locaux", "")
	assert.Equal(t, 10, scoreOf(t, bodyOnly, domain.ModuleEntretiens))

	inTitle := e.Classify("Nettoyage des locaux", "nettoyage des locaux", "")
	assert.Equal(t, 15, scoreOf(t, inTitle, domain.ModuleEntretiens))
}

func TestClassifyDefaultFallback(t *testing.T) {
	t.Parallel()

	res := NewDefaultEngine().Classify("Lorem ipsum", "dolor sit amet", "")

	assert.Equal(t, domain.ModuleAchats, res.Module)
	assert.InDelta(t, 0.5, res.Confidence, 1e-9)
	assert.Empty(t, res.Keywords)
	assert.Empty(t, res.MatchedRules)
	for _, s := range res.Scores {
		assert.Zero(t, s.Score, s.Module)
	}
}

func TestClassifyHospitalFurnitureGuard(t *testing.T) {
	t.Parallel()

	e := NewDefaultEngine()

	hospital := e.Classify("Acquisition de mobilier pour l'hôpital", "", "")
	assert.NotContains(t, hospital.MatchedRules, "rule:acquisition_mobilier")
	assert.Contains(t, hospital.MatchedRules, "rule:equipement_hospitalier")
	assert.Equal(t, 15, scoreOf(t, hospital, domain.ModuleMobilierHospitalier))
	assert.Equal(t, 25, scoreOf(t, hospital, domain.ModuleAchats))

	townHall := e.Classify("Acquisition de mobilier pour la mairie", "", "")
	assert.Contains(t, townHall.MatchedRules, "rule:acquisition_mobilier")
	assert.Zero(t, scoreOf(t, townHall, domain.ModuleMobilierHospitalier))
	assert.Equal(t, 40, scoreOf(t, townHall, domain.ModuleAchats))
}

func TestClassifyCategoryAliases(t *testing.T) {
	t.Parallel()

	res := NewDefaultEngine().Classify("Lorem", "", "Nettoyage et Gardiennage")

	assert.Equal(t, domain.ModuleEntretiens, res.Module)
	assert.Equal(t, []string{"category:nettoyage", "category:gardiennage"}, res.MatchedRules)
	assert.Equal(t, 40, scoreOf(t, res, domain.ModuleEntretiens))
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestClassifyKeywordEvidenceCapped(t *testing.T) {
	t.Parallel()

	desc := "nettoyage nettoiement propreté hygiène désinfection assainissement balayage lavage gardiennage surveillance vigile jardinage"
	res := NewDefaultEngine().Classify("Lorem", desc, "")

	require.Len(t, res.Keywords, MaxKeywords)
	assert.Equal(t, "nettoyage", res.Keywords[0])
	assert.Equal(t, "surveillance", res.Keywords[9])

	seen := map[string]bool{}
	for _, k := range res.Keywords {
		assert.False(t, seen[k], "duplicate keyword %s", k)
		seen[k] = true
	}
}

func TestClassifyDeterministicAndBounded(t *testing.T) {
	t.Parallel()

	e := NewDefaultEngine()
	inputs := [][3]string{
		{"Fourniture de tenues scolaires", "uniformes pour écoles", "Habillement"},
		{"Travaux de construction d'un pont", "génie civil et béton", "BTP"},
		{"Acquisition de véhicules", "pick-up 4x4", ""},
		{"Maintenance des groupes électrogènes", "machine industrielle", "Maintenance"},
		{"", "", ""},
	}
	for _, in := range inputs {
		first := e.Classify(in[0], in[1], in[2])
		second := e.Classify(in[0], in[1], in[2])
		assert.Equal(t, first, second)
		assert.Greater(t, first.Confidence, 0.0)
		assert.LessOrEqual(t, first.Confidence, 1.0)
		assert.LessOrEqual(t, len(first.Keywords), MaxKeywords)
	}
}

func TestClassifyTieBreaksByEnumerationOrder(t *testing.T) {
	t.Parallel()

	tables := Tables{
		Modules: []ModuleKeywords{
			{Module: domain.ModuleBTP, Keywords: []Keyword{{Term: "alpha", Weight: 5}}},
			{Module: domain.ModuleTenues, Keywords: []Keyword{{Term: "beta", Weight: 5}}},
		},
		CategoryBonus:    20,
		RuleBonus:        15,
		TitleBonusFactor: 0.5,
		DefaultModule:    domain.ModuleTenues,
	}
	e, err := NewEngine(tables)
	require.NoError(t, err)

	res := e.Classify("", "beta alpha", "")
	assert.Equal(t, domain.ModuleBTP, res.Module)
	assert.InDelta(t, 0.5, res.Confidence, 1e-9)

	res = e.Classify("beta", "alpha", "")
	assert.Equal(t, domain.ModuleTenues, res.Module)
	assert.Equal(t, 7, scoreOf(t, res, domain.ModuleTenues))
}

func TestValidateBonusOrdering(t *testing.T) {
	t.Parallel()

	tooHighRule := DefaultTables()
	tooHighRule.RuleBonus = 25
	assert.True(t, eris.Is(tooHighRule.Validate(), ErrInvalidTables))

	tooLowRule := DefaultTables()
	tooLowRule.RuleBonus = 10
	assert.True(t, eris.Is(tooLowRule.Validate(), ErrInvalidTables))

	unknownDefault := DefaultTables()
	unknownDefault.DefaultModule = "inconnu"
	assert.True(t, eris.Is(unknownDefault.Validate(), ErrInvalidTables))

	badAlias := DefaultTables()
	badAlias.CategoryAliases = append(badAlias.CategoryAliases, CategoryAlias{Alias: "x", Module: "nope"})
	_, err := NewEngine(badAlias)
	assert.True(t, eris.Is(err, ErrInvalidTables))

	tuned := DefaultTables()
	tuned.CategoryBonus = 30
	tuned.RuleBonus = 20
	assert.NoError(t, tuned.Validate())
}

func TestLoadTablesOverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categoryBonus: 30\nruleBonus: 18\n"), 0o600))

	tables, err := LoadTables(path)
	require.NoError(t, err)
	assert.Equal(t, 30, tables.CategoryBonus)
	assert.Equal(t, 18, tables.RuleBonus)
	assert.Len(t, tables.Modules, len(domain.AllModules()))
	assert.Len(t, tables.Rules, 12)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("categoryBonus: 12\n"), 0o600))
	_, err = LoadTables(bad)
	assert.True(t, eris.Is(err, ErrInvalidTables))
}

func TestKeywordHelpers(t *testing.T) {
	t.Parallel()

	e := NewDefaultEngine()

	found := e.ExtractKeywords("Achat de véhicules et pneus")
	assert.Contains(t, found, "achat")
	assert.Contains(t, found, "véhicule")
	assert.Contains(t, found, "véhicules")
	assert.Contains(t, found, "pneus")

	btp := e.ModuleKeywords(domain.ModuleBTP)
	require.NotEmpty(t, btp)
	assert.Equal(t, "btp", btp[0])
	assert.Nil(t, e.ModuleKeywords("inconnu"))
}
