package usecase

import (
	"context"
	"log/slog"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
)

// Scraper runs one scraping session.
type Scraper interface {
	Scrape(ctx context.Context) (domain.ScrapingResult, error)
}

// TenderNotifier announces freshly created tenders.
type TenderNotifier interface {
	NotifyNewTenders(ctx context.Context, tenders []domain.TenderRecord) DeliveryReport
}

// PipelineDeps wires the scrape-then-notify workflow.
type PipelineDeps struct {
	Scraper  Scraper
	Notifier TenderNotifier
	Logger   *slog.Logger
}

// Pipeline implements the scheduled ingestion workflow.
type Pipeline struct {
	scraper  Scraper
	notifier TenderNotifier
	logger   *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		scraper:  deps.Scraper,
		notifier: deps.Notifier,
		logger:   logger.With("component", "pipeline"),
	}
}

// RunOnce scrapes and notifies recipients of the tenders created by the
// session, including partially successful or stopped ones.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.ScrapingResult, error) {
	result, err := p.scraper.Scrape(ctx)
	if err != nil {
		return result, err
	}
	if p.notifier == nil || len(result.NewTenders) == 0 {
		return result, nil
	}
	report := p.notifier.NotifyNewTenders(ctx, result.NewTenders)
	p.logger.Info("new tenders announced",
		"session", result.SessionID,
		"tenders", len(result.NewTenders),
		"recipients", report.Recipients,
		"sent", report.Sent,
		"failed", report.Failed,
	)
	return result, nil
}
