package domain

import "time"

// Module is one of the business verticals a tender is routed to.
type Module string

const (
	ModuleEntretiens              Module = "entretiens"
	ModuleTenues                  Module = "tenues"
	ModuleAchats                  Module = "achats"
	ModuleVehicules               Module = "vehicules"
	ModuleChaussuresMaroquinerie  Module = "chaussures_maroquinerie"
	ModuleEquipementsMilitaires   Module = "equipements_militaires"
	ModuleMobilierHospitalier     Module = "mobilier_hospitalier"
	ModuleTextilesProfessionnels  Module = "textiles_professionnels"
	ModuleBTP                     Module = "btp"
	ModuleFabricationMetallique   Module = "fabrication_metallique"
	ModuleMaintenanceIndustrielle Module = "maintenance_industrielle"
	ModuleEquipementsAgricoles    Module = "equipements_agricoles"
)

// AllModules lists the modules in their fixed enumeration order.
// Classification ties are resolved in favour of the earlier entry.
func AllModules() []Module {
	return []Module{
		ModuleEntretiens,
		ModuleTenues,
		ModuleAchats,
		ModuleVehicules,
		ModuleChaussuresMaroquinerie,
		ModuleEquipementsMilitaires,
		ModuleMobilierHospitalier,
		ModuleTextilesProfessionnels,
		ModuleBTP,
		ModuleFabricationMetallique,
		ModuleMaintenanceIndustrielle,
		ModuleEquipementsAgricoles,
	}
}

// Valid reports whether m is a known module.
func (m Module) Valid() bool {
	for _, known := range AllModules() {
		if m == known {
			return true
		}
	}
	return false
}

// Region is the canonical administrative region label.
type Region string

// RegionNational covers tenders without a specific location.
const RegionNational Region = "National"

// UnspecifiedInstitution is used when the listing carries no contracting authority.
const UnspecifiedInstitution = "Non spécifié"

// DefaultCurrency is the currency recorded for every tender amount.
const DefaultCurrency = "XOF"

// ScrapedTender is a listing entry extracted from a page, before classification.
type ScrapedTender struct {
	Reference       string
	Title           string
	Description     string
	Institution     string
	Category        string
	PublicationDate time.Time
	DeadlineDate    time.Time
	Region          Region
	Amount          *float64
	SourceURL       string
	DocumentURL     string
}

// ClassificationResult is the outcome of routing a tender to a module.
type ClassificationResult struct {
	Module       Module
	Confidence   float64
	Keywords     []string
	MatchedRules []string
	Scores       []ModuleScore
}

// ModuleScore is one entry of the per-module score vector.
type ModuleScore struct {
	Module Module
	Score  int
}

// TenderRecord is a scraped tender merged with its classification; it is the upsert input.
type TenderRecord struct {
	ScrapedTender
	Module     Module
	Keywords   []string
	Confidence float64
}

// NewTenderRecord merges extraction and classification output.
func NewTenderRecord(t ScrapedTender, c ClassificationResult) TenderRecord {
	return TenderRecord{
		ScrapedTender: t,
		Module:        c.Module,
		Keywords:      c.Keywords,
		Confidence:    c.Confidence,
	}
}

// TenderStatus enumerates lifecycle states of a persisted tender.
type TenderStatus string

const (
	StatusActive    TenderStatus = "actif"
	StatusExpired   TenderStatus = "expire"
	StatusAwarded   TenderStatus = "attribue"
	StatusCancelled TenderStatus = "annule"
)

// ACLPublicRead marks records readable by anonymous clients.
const ACLPublicRead = "public-read"

// PersistedTender is the stored form of a tender.
type PersistedTender struct {
	TenderRecord
	ID          string
	Status      TenderStatus
	ContentHash string
	ACL         string
	Currency    string
	LastSyncAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UpsertResult reports what an upsert did with a record.
type UpsertResult struct {
	ID      string
	IsNew   bool
	Changed bool
}

// TenderQuery filters repository reads. Zero values mean "no filter".
type TenderQuery struct {
	Module         Module
	Region         Region
	Status         TenderStatus
	Terms          []string
	DeadlineAfter  time.Time
	DeadlineBefore time.Time
	OrderBy        string
	Descending     bool
	Limit          int
	Offset         int
}
