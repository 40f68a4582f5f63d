package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
	"github.com/A78Z/pmn-marches-publics/internal/ports"
	"github.com/A78Z/pmn-marches-publics/internal/scanner"
)

var (
	// ErrAlreadyRunning rejects a scrape while another session is active.
	ErrAlreadyRunning = eris.New("scraping already in progress")
	// ErrSessionFatal marks sessions that could not start browsing at all.
	ErrSessionFatal = eris.New("scraping session failed")
)

// DefaultMaxPages bounds pagination per session.
const DefaultMaxPages = 10

const sweepTimeout = 30 * time.Second

// SessionState is the lifecycle of the orchestrator.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateRunning   SessionState = "running"
	StateCompleted SessionState = "completed"
	StateFailed    SessionState = "failed"
)

// Classifier routes a tender to a module.
type Classifier interface {
	Classify(title, description, category string) domain.ClassificationResult
}

// OrchestratorDeps wires the scrape session collaborators.
type OrchestratorDeps struct {
	Browser    ports.Browser
	Parsers    *scanner.Registry
	ParserName string
	Classifier Classifier
	Repository ports.TenderRepository
	SourceURL  string
	MaxPages   int
	Now        func() time.Time
	Logger     *slog.Logger
}

// Status is a snapshot of the orchestrator for the control surface.
type Status struct {
	IsRunning  bool                   `json:"isRunning"`
	State      SessionState           `json:"state"`
	LastResult *domain.ScrapingResult `json:"lastResult,omitempty"`
}

// Orchestrator runs at most one scraping session at a time.
type Orchestrator struct {
	browser    ports.Browser
	parsers    *scanner.Registry
	parserName string
	classifier Classifier
	repository ports.TenderRepository
	sourceURL  string
	maxPages   int
	now        func() time.Time
	logger     *slog.Logger

	mu      sync.Mutex
	state   SessionState
	cancel  context.CancelFunc
	release func()
	stopped bool
	last    *domain.ScrapingResult
}

// NewOrchestrator applies defaults for the page cap and clock.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxPages := deps.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		browser:    deps.Browser,
		parsers:    deps.Parsers,
		parserName: deps.ParserName,
		classifier: deps.Classifier,
		repository: deps.Repository,
		sourceURL:  deps.SourceURL,
		maxPages:   maxPages,
		now:        now,
		logger:     logger.With("component", "orchestrator"),
		state:      StateIdle,
	}
}

// Scrape runs one session synchronously. Partial failures are reported in
// the result; only ErrAlreadyRunning and ErrSessionFatal are returned as errors.
func (o *Orchestrator) Scrape(ctx context.Context) (domain.ScrapingResult, error) {
	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return domain.ScrapingResult{}, ErrAlreadyRunning
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	o.state = StateRunning
	o.cancel = cancel
	o.release = nil
	o.stopped = false
	o.mu.Unlock()
	defer cancel()

	result := domain.ScrapingResult{
		SessionID: uuid.NewString(),
		StartTime: o.now(),
		Errors:    []domain.SessionError{},
	}
	logger := o.logger.With("session", result.SessionID)
	logger.Info("scraping session started", "source", o.sourceURL)

	err := o.run(sessionCtx, &result, logger)

	result.EndTime = o.now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	o.mu.Lock()
	result.Stopped = o.stopped || ctx.Err() != nil
	if err != nil {
		result.Errors = append(result.Errors, domain.SessionError{Message: err.Error()})
		result.Stats.Errors++
		o.state = StateFailed
	} else {
		o.state = StateCompleted
	}
	result.Success = err == nil && len(result.Errors) == 0
	o.cancel = nil
	o.release = nil
	last := result
	o.last = &last
	o.mu.Unlock()

	if err != nil {
		logger.Error("scraping session failed", "error", err, "duration", result.Duration)
		return result, err
	}
	logger.Info("scraping session finished",
		"pages", result.Stats.PagesScraped,
		"new", result.Stats.NewTenders,
		"updated", result.Stats.UpdatedTenders,
		"unchanged", result.Stats.UnchangedTenders,
		"expired", result.Stats.ExpiredTenders,
		"errors", result.Stats.Errors,
		"stopped", result.Stopped,
		"duration", result.Duration,
	)
	return result, nil
}

// Stop closes the running session's page and cancels its context. It reports
// whether a session was running.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return false
	}
	o.stopped = true
	cancel, release := o.cancel, o.release
	o.mu.Unlock()

	o.logger.Info("stop requested")
	if cancel != nil {
		cancel()
	}
	if release != nil {
		release()
	}
	return true
}

// Status returns the current state and the last finished session.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{IsRunning: o.state == StateRunning, State: o.state, LastResult: o.last}
}

// IsRunning reports whether a session is active.
func (o *Orchestrator) IsRunning() bool {
	return o.Status().IsRunning
}

func (o *Orchestrator) run(ctx context.Context, result *domain.ScrapingResult, logger *slog.Logger) error {
	if o.sourceURL == "" {
		return eris.Wrap(ErrSessionFatal, "source url is not configured")
	}
	if o.parsers == nil || o.browser == nil || o.repository == nil || o.classifier == nil {
		return eris.Wrap(ErrSessionFatal, "orchestrator is not fully wired")
	}
	parser, err := o.parsers.Resolve(o.parserName)
	if err != nil {
		return eris.Wrapf(ErrSessionFatal, "resolve parser: %v", err)
	}

	page, err := o.browser.Open(ctx)
	if err != nil {
		return eris.Wrapf(ErrSessionFatal, "open browser: %v", err)
	}
	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := page.Close(); err != nil {
				logger.Warn("close page", "error", err)
			}
		})
	}
	defer release()
	if !o.attach(release) {
		release()
	}

	if err := page.Navigate(ctx, o.sourceURL); err != nil {
		if !o.isStopped() {
			o.record(result, domain.SessionError{Message: "navigate: " + err.Error(), Page: o.sourceURL})
		}
	} else {
		o.scrapePages(ctx, parser, page, result, logger)
	}

	o.sweep(ctx, result, logger)
	return nil
}

func (o *Orchestrator) scrapePages(ctx context.Context, parser scanner.Parser, page ports.Page, result *domain.ScrapingResult, logger *slog.Logger) {
	for pageNumber := 1; ; pageNumber++ {
		if o.interrupted(ctx) {
			return
		}
		result.Stats.PagesScraped++
		parsed := parser.ParseListPage(ctx, page)
		logger.Info("page parsed",
			"page", pageNumber,
			"url", page.URL(),
			"tenders", len(parsed.Tenders),
			"skipped", parsed.Skipped,
		)

		for _, tender := range parsed.Tenders {
			if o.interrupted(ctx) {
				return
			}
			o.store(ctx, tender, result, logger)
		}

		if pageNumber >= o.maxPages {
			logger.Info("page limit reached", "max_pages", o.maxPages)
			return
		}
		if o.interrupted(ctx) || !parser.HasNextPage(ctx, page) {
			return
		}
		if err := parser.GoToNextPage(ctx, page); err != nil {
			if !o.isStopped() {
				logger.Warn("pagination stopped", "page", pageNumber, "error", err)
			}
			return
		}
	}
}

func (o *Orchestrator) store(ctx context.Context, tender domain.ScrapedTender, result *domain.ScrapingResult, logger *slog.Logger) {
	classification := o.classifier.Classify(tender.Title, tender.Description, tender.Category)
	record := domain.NewTenderRecord(tender, classification)

	upserted, err := o.repository.Upsert(ctx, record)
	if err != nil && o.interrupted(ctx) {
		logger.Debug("upsert abandoned on stop", "reference", tender.Reference, "error", err)
		return
	}
	if err != nil {
		o.record(result, domain.SessionError{
			Message: "upsert " + tender.Reference + ": " + err.Error(),
			Page:    tender.SourceURL,
		})
		return
	}
	switch {
	case upserted.IsNew:
		result.Stats.NewTenders++
		result.NewTenders = append(result.NewTenders, record)
		logger.Debug("tender created", "reference", tender.Reference, "module", record.Module, "confidence", record.Confidence)
	case upserted.Changed:
		result.Stats.UpdatedTenders++
	default:
		result.Stats.UnchangedTenders++
	}
}

// sweep outlives a stop request so expiry still runs after a partial session.
func (o *Orchestrator) sweep(ctx context.Context, result *domain.ScrapingResult, logger *slog.Logger) {
	sweepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sweepTimeout)
	defer cancel()

	expired, err := o.repository.MarkExpired(sweepCtx, o.now())
	if err != nil {
		o.record(result, domain.SessionError{Message: "mark expired: " + err.Error()})
		return
	}
	result.Stats.ExpiredTenders = expired
	if expired > 0 {
		logger.Info("tenders expired", "count", expired)
	}
}

func (o *Orchestrator) record(result *domain.ScrapingResult, e domain.SessionError) {
	result.Errors = append(result.Errors, e)
	result.Stats.Errors++
	o.logger.Warn("session error", "message", e.Message, "page", e.Page)
}

// attach publishes the page release to Stop; false means a stop already happened.
func (o *Orchestrator) attach(release func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.release = release
	return !o.stopped
}

func (o *Orchestrator) isStopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}

func (o *Orchestrator) interrupted(ctx context.Context) bool {
	return ctx.Err() != nil || o.isStopped()
}
