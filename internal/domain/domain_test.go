package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleRecord() TenderRecord {
	return TenderRecord{
		ScrapedTender: ScrapedTender{
			Reference:    "AO-2026-001234",
			Title:        "Nettoyage des locaux",
			Description:  "Nettoyage des locaux",
			DeadlineDate: time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC),
		},
		Module: ModuleEntretiens,
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	base := sampleRecord()
	assert.Equal(t, "0ac1e40cddd922ae10e456cc5f1a15ec75db257f01ff82e201cae8395b024ea2", Fingerprint(base))

	// Only title, description, deadline and amount take part.
	other := base
	other.Reference = "AO-OTHER"
	other.Region = "Dakar"
	other.Module = ModuleBTP
	other.Keywords = []string{"nettoyage"}
	assert.Equal(t, Fingerprint(base), Fingerprint(other))

	dakar, _ := time.LoadLocation("Africa/Dakar")
	other.DeadlineDate = base.DeadlineDate.In(dakar)
	assert.Equal(t, Fingerprint(base), Fingerprint(other))

	amount := 12500000.0
	priced := base
	priced.Amount = &amount
	assert.NotEqual(t, Fingerprint(base), Fingerprint(priced))

	moved := base
	moved.DeadlineDate = base.DeadlineDate.AddDate(0, 0, 1)
	assert.NotEqual(t, Fingerprint(base), Fingerprint(moved))
}

func TestModuleValid(t *testing.T) {
	t.Parallel()

	assert.Len(t, AllModules(), 12)
	assert.Equal(t, ModuleEntretiens, AllModules()[0])
	for _, m := range AllModules() {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, Module("peinture").Valid())
	assert.False(t, Module("").Valid())
}

func TestNewTenderRecord(t *testing.T) {
	t.Parallel()

	scraped := sampleRecord().ScrapedTender
	rec := NewTenderRecord(scraped, ClassificationResult{
		Module:     ModuleEntretiens,
		Confidence: 1,
		Keywords:   []string{"nettoyage"},
	})
	assert.Equal(t, scraped, rec.ScrapedTender)
	assert.Equal(t, ModuleEntretiens, rec.Module)
	assert.Equal(t, []string{"nettoyage"}, rec.Keywords)
	assert.InDelta(t, 1.0, rec.Confidence, 1e-9)
}
