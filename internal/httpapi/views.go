package httpapi

import (
	"time"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
)

type tenderView struct {
	ID              string              `json:"id"`
	Reference       string              `json:"reference"`
	Title           string              `json:"titre"`
	Description     string              `json:"description"`
	Institution     string              `json:"institution"`
	Category        string              `json:"categorie,omitempty"`
	Module          domain.Module       `json:"module"`
	Keywords        []string            `json:"motsCles"`
	Confidence      float64             `json:"confiance"`
	PublicationDate time.Time           `json:"datePublication"`
	DeadlineDate    time.Time           `json:"dateLimite"`
	Region          domain.Region       `json:"region"`
	Amount          *float64            `json:"montant,omitempty"`
	Currency        string              `json:"devise"`
	SourceURL       string              `json:"sourceUrl"`
	DocumentURL     string              `json:"documentUrl,omitempty"`
	Status          domain.TenderStatus `json:"statut"`
	LastSyncAt      time.Time           `json:"lastSyncAt"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func newTenderView(t domain.PersistedTender) tenderView {
	keywords := t.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return tenderView{
		ID:              t.ID,
		Reference:       t.Reference,
		Title:           t.Title,
		Description:     t.Description,
		Institution:     t.Institution,
		Category:        t.Category,
		Module:          t.Module,
		Keywords:        keywords,
		Confidence:      t.Confidence,
		PublicationDate: t.PublicationDate,
		DeadlineDate:    t.DeadlineDate,
		Region:          t.Region,
		Amount:          t.Amount,
		Currency:        t.Currency,
		SourceURL:       t.SourceURL,
		DocumentURL:     t.DocumentURL,
		Status:          t.Status,
		LastSyncAt:      t.LastSyncAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

type scoreView struct {
	Module domain.Module `json:"module"`
	Score  int           `json:"score"`
}

type classificationView struct {
	Module       domain.Module `json:"module"`
	Confidence   float64       `json:"confidence"`
	Keywords     []string      `json:"keywords"`
	MatchedRules []string      `json:"matchedRules"`
	Scores       []scoreView   `json:"scores"`
}

func newClassificationView(c domain.ClassificationResult) classificationView {
	view := classificationView{
		Module:       c.Module,
		Confidence:   c.Confidence,
		Keywords:     append([]string{}, c.Keywords...),
		MatchedRules: append([]string{}, c.MatchedRules...),
		Scores:       make([]scoreView, 0, len(c.Scores)),
	}
	for _, s := range c.Scores {
		view.Scores = append(view.Scores, scoreView{Module: s.Module, Score: s.Score})
	}
	return view
}
