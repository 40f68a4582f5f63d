package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
	"github.com/A78Z/pmn-marches-publics/internal/usecase"
)

type stubScraper struct {
	result domain.ScrapingResult
	err    error
	calls  int
}

func (s *stubScraper) Scrape(context.Context) (domain.ScrapingResult, error) {
	s.calls++
	return s.result, s.err
}

type stubNotifier struct {
	got [][]domain.TenderRecord
}

func (s *stubNotifier) NotifyNewTenders(_ context.Context, tenders []domain.TenderRecord) usecase.DeliveryReport {
	s.got = append(s.got, tenders)
	return usecase.DeliveryReport{Recipients: 1, Sent: 1}
}

func TestPipelineNotifiesNewTenders(t *testing.T) {
	t.Parallel()

	fresh := []domain.TenderRecord{tenderRecord("N-1", domain.ModuleBTP, "Dakar", clock)}
	scraper := &stubScraper{result: domain.ScrapingResult{NewTenders: fresh}}
	notifier := &stubNotifier{}
	p := usecase.NewPipeline(usecase.PipelineDeps{Scraper: scraper, Notifier: notifier})

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, notifier.got, 1)
	assert.Equal(t, fresh, notifier.got[0])

	scraper.result = domain.ScrapingResult{}
	_, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, notifier.got, 1)
}

func TestPipelineSkipsNotificationOnFailure(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{err: usecase.ErrAlreadyRunning}
	notifier := &stubNotifier{}
	p := usecase.NewPipeline(usecase.PipelineDeps{Scraper: scraper, Notifier: notifier})

	_, err := p.RunOnce(context.Background())
	assert.ErrorIs(t, err, usecase.ErrAlreadyRunning)
	assert.Empty(t, notifier.got)
}

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *manualDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunsPipeline(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{err: usecase.ErrAlreadyRunning}
	driver := &manualDriver{}
	s := usecase.NewScheduler(driver, usecase.NewPipeline(usecase.PipelineDeps{Scraper: scraper}), nil)

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)
	driver.job(clock)
	driver.job(clock)
	assert.Equal(t, 2, scraper.calls)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}
