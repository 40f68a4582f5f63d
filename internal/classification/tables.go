package classification

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
)

// ErrInvalidTables is wrapped by every Validate failure.
var ErrInvalidTables = eris.New("invalid classification tables")

// Keyword is a weighted term matched as a substring of the lowercased text.
type Keyword struct {
	Term   string `yaml:"term"`
	Weight int    `yaml:"weight"`
}

// ModuleKeywords holds one module's keyword list. The order of modules in
// Tables.Modules is the enumeration order used for tie-breaking.
type ModuleKeywords struct {
	Module   domain.Module `yaml:"module"`
	Keywords []Keyword     `yaml:"keywords"`
}

// CategoryAlias routes a source category substring to a module.
type CategoryAlias struct {
	Alias  string        `yaml:"alias"`
	Module domain.Module `yaml:"module"`
}

// Rule boosts Module when every AllOf group has at least one term present
// and no NoneOf term is present.
type Rule struct {
	Name   string        `yaml:"name"`
	Module domain.Module `yaml:"module"`
	AllOf  [][]string    `yaml:"allOf"`
	NoneOf []string      `yaml:"noneOf"`
	// Bonus overrides Tables.RuleBonus when positive.
	Bonus int `yaml:"bonus"`
}

// Tables is the complete, data-driven configuration of the engine.
type Tables struct {
	Modules          []ModuleKeywords `yaml:"modules"`
	CategoryAliases  []CategoryAlias  `yaml:"categoryAliases"`
	Rules            []Rule           `yaml:"rules"`
	CategoryBonus    int              `yaml:"categoryBonus"`
	RuleBonus        int              `yaml:"ruleBonus"`
	TitleBonusFactor float64          `yaml:"titleBonusFactor"`
	DefaultModule    domain.Module    `yaml:"defaultModule"`
}

// LoadTables overlays the YAML file at path onto DefaultTables. Sections
// absent from the file keep their defaults.
func LoadTables(path string) (Tables, error) {
	tables := DefaultTables()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, eris.Wrapf(err, "read classification tables %s", path)
	}
	if err := yaml.Unmarshal(raw, &tables); err != nil {
		return Tables{}, eris.Wrapf(err, "parse classification tables %s", path)
	}
	if err := tables.Validate(); err != nil {
		return Tables{}, err
	}
	return tables, nil
}

// ruleBonus resolves the bonus applied by r.
func (t Tables) ruleBonus(r Rule) int {
	if r.Bonus > 0 {
		return r.Bonus
	}
	return t.RuleBonus
}

// Validate checks referential integrity and the bonus ordering
// category bonus > rule bonus > keyword weight.
func (t Tables) Validate() error {
	if len(t.Modules) == 0 {
		return eris.Wrap(ErrInvalidTables, "no modules")
	}

	known := make(map[domain.Module]bool, len(t.Modules))
	maxWeight := 0
	for _, mk := range t.Modules {
		if mk.Module == "" {
			return eris.Wrap(ErrInvalidTables, "module with empty name")
		}
		if known[mk.Module] {
			return eris.Wrapf(ErrInvalidTables, "duplicate module %s", mk.Module)
		}
		known[mk.Module] = true
		for _, kw := range mk.Keywords {
			if kw.Term == "" || kw.Weight <= 0 {
				return eris.Wrapf(ErrInvalidTables, "module %s: keyword %q has weight %d", mk.Module, kw.Term, kw.Weight)
			}
			maxWeight = max(maxWeight, kw.Weight)
		}
	}

	if !known[t.DefaultModule] {
		return eris.Wrapf(ErrInvalidTables, "default module %q is not declared", t.DefaultModule)
	}
	if t.TitleBonusFactor < 0 {
		return eris.Wrapf(ErrInvalidTables, "negative title bonus factor %v", t.TitleBonusFactor)
	}

	for _, alias := range t.CategoryAliases {
		if alias.Alias == "" || !known[alias.Module] {
			return eris.Wrapf(ErrInvalidTables, "category alias %q -> %q", alias.Alias, alias.Module)
		}
	}

	for _, rule := range t.Rules {
		if rule.Name == "" || !known[rule.Module] {
			return eris.Wrapf(ErrInvalidTables, "rule %q -> %q", rule.Name, rule.Module)
		}
		if len(rule.AllOf) == 0 {
			return eris.Wrapf(ErrInvalidTables, "rule %s has no condition", rule.Name)
		}
		for _, group := range rule.AllOf {
			if len(group) == 0 {
				return eris.Wrapf(ErrInvalidTables, "rule %s has an empty term group", rule.Name)
			}
		}
		bonus := t.ruleBonus(rule)
		if bonus <= maxWeight {
			return eris.Wrapf(ErrInvalidTables, "rule %s bonus %d must exceed keyword weight %d", rule.Name, bonus, maxWeight)
		}
		if t.CategoryBonus <= bonus {
			return eris.Wrapf(ErrInvalidTables, "category bonus %d must exceed rule %s bonus %d", t.CategoryBonus, rule.Name, bonus)
		}
	}
	if len(t.Rules) == 0 && t.CategoryBonus <= maxWeight {
		return eris.Wrapf(ErrInvalidTables, "category bonus %d must exceed keyword weight %d", t.CategoryBonus, maxWeight)
	}
	return nil
}

// DefaultTables returns the production keyword tables, aliases and rules.
func DefaultTables() Tables {
	return Tables{
		CategoryBonus:    20,
		RuleBonus:        15,
		TitleBonusFactor: 0.5,
		DefaultModule:    domain.ModuleAchats,
		Modules:          defaultModules(),
		CategoryAliases:  defaultCategoryAliases(),
		Rules:            defaultRules(),
	}
}

func kw(term string, weight int) Keyword {
	return Keyword{Term: term, Weight: weight}
}

func defaultModules() []ModuleKeywords {
	return []ModuleKeywords{
		{Module: domain.ModuleEntretiens, Keywords: []Keyword{
			kw("nettoyage", 10), kw("nettoiement", 10), kw("propreté", 8), kw("hygiène", 7),
			kw("désinfection", 8), kw("assainissement", 8), kw("balayage", 7), kw("lavage", 6),
			kw("gardiennage", 10), kw("surveillance", 9), kw("vigile", 9), kw("agent de sécurité", 10),
			kw("rondes", 7),
			kw("espaces verts", 10), kw("jardinage", 9), kw("tonte", 8), kw("élagage", 8),
			kw("arrosage", 7), kw("paysagiste", 8), kw("pelouse", 7),
			kw("prestation de service", 5), kw("services aux bâtiments", 7),
		}},
		{Module: domain.ModuleTenues, Keywords: []Keyword{
			kw("uniforme", 10), kw("uniformes", 10), kw("tenue", 9), kw("tenues", 9), kw("habillement", 10),
			kw("confection", 10), kw("couture", 9), kw("couturier", 9),
			kw("costume", 8), kw("costumes", 8), kw("chemise", 7), kw("pantalon", 7), kw("blouse", 8),
			kw("combinaison", 7),
			kw("tenue de cérémonie", 8), kw("uniforme scolaire", 10), kw("tenue officielle", 9),
		}},
		{Module: domain.ModuleAchats, Keywords: []Keyword{
			kw("mobilier", 10), kw("mobilier de bureau", 10), kw("meuble", 9), kw("meubles", 9),
			kw("bureau", 6), kw("chaise", 7), kw("table", 6), kw("armoire", 7), kw("étagère", 7),
			kw("rayonnage", 8),
			kw("informatique", 8), kw("ordinateur", 9), kw("ordinateurs", 9), kw("imprimante", 8),
			kw("serveur informatique", 7), kw("logiciel", 6),
			kw("fourniture", 9), kw("fournitures", 9), kw("fournitures de bureau", 10), kw("consommable", 7),
			kw("papeterie", 8), kw("article de bureau", 8),
			kw("acquisition", 7), kw("achat", 6), kw("livraison", 5), kw("approvisionnement", 6),
		}},
		{Module: domain.ModuleVehicules, Keywords: []Keyword{
			kw("véhicule", 10), kw("véhicules", 10), kw("voiture", 9), kw("voitures", 9),
			kw("automobile", 10), kw("automobiles", 10), kw("camion", 9), kw("camions", 9),
			kw("camionnette", 8), kw("fourgon", 8), kw("bus", 8), kw("autobus", 8), kw("minibus", 8),
			kw("motocyclette", 7), kw("moto", 7), kw("scooter", 7), kw("engin roulant", 8),
			kw("pièces détachées", 9), kw("pièces automobiles", 10), kw("pneumatique", 9), kw("pneu", 8),
			kw("pneus", 8), kw("batterie auto", 8), kw("huile moteur", 7), kw("lubrifiant", 7),
			kw("carburant", 6),
			kw("maintenance automobile", 10), kw("entretien véhicule", 10), kw("réparation automobile", 10),
			kw("garage", 8), kw("vidange", 8), kw("révision véhicule", 9), kw("carrosserie", 8),
			kw("mécanique auto", 9), kw("contrôle technique", 8),
			kw("location véhicule", 9), kw("location voiture", 9), kw("parc automobile", 9),
		}},
		{Module: domain.ModuleChaussuresMaroquinerie, Keywords: []Keyword{
			kw("chaussure", 10), kw("chaussures", 10), kw("botte", 9), kw("bottes", 9), kw("bottine", 8),
			kw("sandale", 7), kw("mocassin", 7), kw("escarpin", 7), kw("basket", 7),
			kw("chaussure de sécurité", 10), kw("chaussure de travail", 10), kw("brodequin", 9), kw("rangers", 9),
			kw("maroquinerie", 10), kw("sac", 8), kw("sac à main", 8), kw("sacoche", 8), kw("serviette", 7),
			kw("porte-document", 8), kw("cartable", 7), kw("valise", 7), kw("bagage", 7),
			kw("cuir", 9), kw("articles en cuir", 10), kw("ceinture", 8), kw("ceinturon", 9),
			kw("portefeuille", 7), kw("gant cuir", 8), kw("étui", 6),
			kw("cordonnerie", 9), kw("cordonnier", 9), kw("sellerie", 8), kw("tannerie", 8),
		}},
		{Module: domain.ModuleEquipementsMilitaires, Keywords: []Keyword{
			kw("équipement militaire", 10), kw("équipements militaires", 10), kw("matériel militaire", 10),
			kw("défense", 8), kw("armée", 9), kw("forces armées", 9), kw("gendarmerie", 9), kw("police", 8),
			kw("armement", 10), kw("munition", 9), kw("munitions", 9), kw("gilet pare-balles", 10),
			kw("gilet tactique", 10), kw("casque balistique", 10), kw("casque militaire", 10),
			kw("blindage", 9), kw("bouclier", 8),
			kw("treillis", 10), kw("tenue de combat", 10), kw("uniforme militaire", 10),
			kw("tenue camouflage", 9), kw("rangers militaires", 9),
			kw("équipement tactique", 10), kw("matériel de sécurité", 9), kw("détection", 7),
			kw("surveillance électronique", 8), kw("radio militaire", 8), kw("jumelles", 7),
			kw("vision nocturne", 9),
		}},
		{Module: domain.ModuleMobilierHospitalier, Keywords: []Keyword{
			kw("mobilier hospitalier", 10), kw("mobilier médical", 10), kw("lit médical", 10),
			kw("lit hôpital", 10), kw("lit hospitalier", 10), kw("brancard", 9), kw("chariot médical", 9),
			kw("table d'examen", 9), kw("table chirurgicale", 10), kw("fauteuil roulant", 9),
			kw("fauteuil médical", 9),
			kw("équipement médical", 10), kw("équipement hospitalier", 10), kw("matériel médical", 10),
			kw("dispositif médical", 9), kw("appareil médical", 9), kw("imagerie médicale", 9),
			kw("radiologie", 8), kw("scanner", 8), kw("échographe", 9), kw("électrocardiographe", 9),
			kw("respirateur", 9), kw("défibrillateur", 9), kw("moniteur patient", 9),
			kw("consommable médical", 8), kw("seringue", 7), kw("compresse", 7), kw("gant médical", 8),
			kw("masque chirurgical", 8),
			kw("équipement laboratoire", 9), kw("laboratoire", 7), kw("microscope", 8),
			kw("centrifugeuse", 8), kw("réactif", 7),
		}},
		{Module: domain.ModuleTextilesProfessionnels, Keywords: []Keyword{
			kw("vêtement de travail", 10), kw("vêtements de travail", 10), kw("tenue de travail", 10),
			kw("bleu de travail", 10), kw("combinaison de travail", 10), kw("vêtement professionnel", 10),
			kw("veste de travail", 9), kw("pantalon de travail", 9),
			kw("epi", 8), kw("équipement de protection individuelle", 10), kw("vêtement de protection", 10),
			kw("combinaison jetable", 8), kw("tablier", 7), kw("blouse de travail", 9), kw("surblouse", 8),
			kw("textile technique", 9), kw("textile professionnel", 10), kw("tissu ignifugé", 9),
			kw("tissu haute visibilité", 9), kw("gilet fluorescent", 8), kw("brassard", 7),
			kw("linge professionnel", 9), kw("linge hôtelier", 8), kw("drap", 6), kw("serviette", 6),
			kw("nappe", 6), kw("torchon", 6),
		}},
		{Module: domain.ModuleBTP, Keywords: []Keyword{
			kw("btp", 10), kw("bâtiment", 9), kw("construction", 10), kw("travaux publics", 10),
			kw("génie civil", 10), kw("ouvrage", 7), kw("chantier", 8),
			kw("travaux de construction", 10), kw("travaux de rénovation", 9), kw("travaux de réhabilitation", 9),
			kw("travaux d'extension", 8), kw("travaux de démolition", 8), kw("travaux de terrassement", 9),
			kw("travaux de voirie", 9), kw("travaux routiers", 9), kw("assainissement", 8),
			kw("maçonnerie", 9), kw("plomberie", 8), kw("électricité bâtiment", 8), kw("menuiserie", 8),
			kw("peinture bâtiment", 8), kw("carrelage", 7), kw("étanchéité", 8), kw("toiture", 8),
			kw("charpente", 8),
			kw("ciment", 8), kw("béton", 9), kw("agrégat", 7), kw("sable", 6), kw("gravier", 6),
			kw("bitume", 8), kw("enrobé", 8),
		}},
		{Module: domain.ModuleFabricationMetallique, Keywords: []Keyword{
			kw("métallurgie", 10), kw("métallique", 9), kw("métal", 8), kw("acier", 9), kw("fer", 8),
			kw("aluminium", 8), kw("inox", 8), kw("fonte", 7),
			kw("structure métallique", 10), kw("charpente métallique", 10), kw("ossature métallique", 10),
			kw("hangar métallique", 9), kw("bâtiment métallique", 9), kw("construction métallique", 10),
			kw("fabrication métallique", 10), kw("soudure", 9), kw("soudage", 9), kw("chaudronnerie", 10),
			kw("tôlerie", 9), kw("ferronnerie", 9), kw("forge", 8), kw("fonderie", 8),
			kw("poutrelle", 8), kw("profilé", 8), kw("tube acier", 8), kw("tôle", 8),
			kw("grille métallique", 8), kw("portail", 7), kw("clôture métallique", 8), kw("garde-corps", 8),
			kw("escalier métallique", 8),
		}},
		{Module: domain.ModuleMaintenanceIndustrielle, Keywords: []Keyword{
			kw("maintenance industrielle", 10), kw("maintenance technique", 10), kw("maintenance préventive", 9),
			kw("maintenance corrective", 9), kw("maintenance curative", 9), kw("entretien industriel", 9),
			kw("réparation industrielle", 9),
			kw("équipement industriel", 10), kw("machine industrielle", 10), kw("machine-outil", 9),
			kw("groupe électrogène", 9), kw("compresseur", 8), kw("pompe industrielle", 8),
			kw("moteur industriel", 8), kw("transformateur", 8), kw("onduleur", 8),
			kw("installation industrielle", 9), kw("climatisation industrielle", 8),
			kw("ventilation industrielle", 8), kw("chaufferie", 8), kw("réseau électrique", 8),
			kw("automatisme", 8),
			kw("dépannage industriel", 9), kw("révision machine", 8), kw("calibration", 7),
			kw("métrologie", 7), kw("inspection technique", 8),
		}},
		{Module: domain.ModuleEquipementsAgricoles, Keywords: []Keyword{
			kw("équipement agricole", 10), kw("équipements agricoles", 10), kw("matériel agricole", 10),
			kw("machine agricole", 10), kw("tracteur", 10), kw("moissonneuse", 10), kw("batteuse", 9),
			kw("semoir", 9), kw("charrue", 9), kw("pulvérisateur", 8), kw("motoculteur", 8),
			kw("irrigation", 9), kw("système d'irrigation", 10), kw("pompe agricole", 9),
			kw("goutte à goutte", 8), kw("aspersion", 8), kw("forage agricole", 8),
			kw("silo", 9), kw("stockage agricole", 9), kw("chambre froide", 8), kw("séchoir", 8),
			kw("décortiqueuse", 9), kw("moulin", 8), kw("presse", 7),
			kw("agro-industrie", 10), kw("agro-industriel", 10), kw("agroalimentaire", 9),
			kw("transformation agricole", 9), kw("conditionnement", 7), kw("emballage agricole", 8),
			kw("élevage", 8), kw("équipement élevage", 9), kw("abreuvoir", 8), kw("mangeoire", 8),
			kw("couveuse", 8), kw("clôture élevage", 7),
		}},
	}
}

func defaultCategoryAliases() []CategoryAlias {
	alias := func(m domain.Module, aliases ...string) []CategoryAlias {
		out := make([]CategoryAlias, 0, len(aliases))
		for _, a := range aliases {
			out = append(out, CategoryAlias{Alias: a, Module: m})
		}
		return out
	}

	var all []CategoryAlias
	all = append(all, alias(domain.ModuleEntretiens, "nettoyage", "entretien", "gardiennage", "espaces verts", "services")...)
	all = append(all, alias(domain.ModuleTenues, "habillement", "confection", "uniforme", "vêtements")...)
	all = append(all, alias(domain.ModuleAchats, "fournitures", "fournitures de bureau", "mobilier", "informatique")...)
	all = append(all, alias(domain.ModuleVehicules, "véhicules", "automobile", "transport", "parc auto")...)
	all = append(all, alias(domain.ModuleChaussuresMaroquinerie, "chaussures", "maroquinerie", "cuir")...)
	all = append(all, alias(domain.ModuleEquipementsMilitaires, "défense", "militaire", "sécurité", "armement")...)
	all = append(all, alias(domain.ModuleMobilierHospitalier, "médical", "hospitalier", "santé", "équipement médical")...)
	all = append(all, alias(domain.ModuleTextilesProfessionnels, "textile", "vêtements de travail", "epi")...)
	all = append(all, alias(domain.ModuleBTP, "btp", "travaux", "construction", "génie civil", "travaux publics")...)
	all = append(all, alias(domain.ModuleFabricationMetallique, "métallurgie", "métallique", "charpente métallique")...)
	all = append(all, alias(domain.ModuleMaintenanceIndustrielle, "maintenance", "maintenance industrielle", "équipement industriel")...)
	all = append(all, alias(domain.ModuleEquipementsAgricoles, "agricole", "agriculture", "agro-industrie")...)
	return all
}

func defaultRules() []Rule {
	return []Rule{
		{Name: "fourniture_tenues", Module: domain.ModuleTenues,
			AllOf: [][]string{{"fourniture"}, {"tenue", "uniforme"}}},
		{Name: "marche_nettoyage", Module: domain.ModuleEntretiens,
			AllOf: [][]string{{"marché"}, {"nettoyage"}}},
		{Name: "acquisition_mobilier", Module: domain.ModuleAchats,
			AllOf:  [][]string{{"acquisition"}, {"mobilier"}},
			NoneOf: []string{"hospitalier", "médical", "hôpital", "hopital", "clinique", "centre de santé"}},
		{Name: "acquisition_vehicules", Module: domain.ModuleVehicules,
			AllOf: [][]string{{"acquisition", "achat"}, {"véhicule", "voiture", "camion"}}},
		{Name: "travaux_construction", Module: domain.ModuleBTP,
			AllOf: [][]string{{"travaux"}, {"construction", "réhabilitation", "rénovation"}}},
		{Name: "equipement_hospitalier", Module: domain.ModuleMobilierHospitalier,
			AllOf: [][]string{{"hôpital", "centre de santé", "clinique"}, {"équipement", "mobilier"}}},
		{Name: "materiel_agricole", Module: domain.ModuleEquipementsAgricoles,
			AllOf: [][]string{{"agricole", "agriculture", "rural"}, {"équipement", "matériel", "machine"}}},
		{Name: "chaussures_securite", Module: domain.ModuleChaussuresMaroquinerie,
			AllOf: [][]string{{"chaussure"}, {"sécurité", "travail", "protection"}}},
		{Name: "equipement_militaire", Module: domain.ModuleEquipementsMilitaires,
			AllOf: [][]string{{"militaire", "défense", "armée", "gendarmerie"}, {"équipement", "matériel", "fourniture"}}},
		{Name: "structure_metallique", Module: domain.ModuleFabricationMetallique,
			AllOf: [][]string{{"métallique"}, {"structure", "charpente", "hangar"}}},
		{Name: "maintenance_industrielle", Module: domain.ModuleMaintenanceIndustrielle,
			AllOf: [][]string{{"maintenance"}, {"industriel", "machine", "groupe électrogène"}}},
		{Name: "vetement_travail", Module: domain.ModuleTextilesProfessionnels,
			AllOf:  [][]string{{"vêtement de travail", "tenue de travail", "epi", "équipement de protection"}},
			NoneOf: []string{"chaussure"}},
	}
}
