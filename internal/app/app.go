package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/A78Z/pmn-marches-publics/internal/classification"
	"github.com/A78Z/pmn-marches-publics/internal/config"
	"github.com/A78Z/pmn-marches-publics/internal/domain"
	"github.com/A78Z/pmn-marches-publics/internal/httpapi"
	"github.com/A78Z/pmn-marches-publics/internal/infrastructure/browser"
	"github.com/A78Z/pmn-marches-publics/internal/infrastructure/notify"
	"github.com/A78Z/pmn-marches-publics/internal/infrastructure/parser"
	"github.com/A78Z/pmn-marches-publics/internal/infrastructure/scheduler"
	"github.com/A78Z/pmn-marches-publics/internal/infrastructure/storage"
	"github.com/A78Z/pmn-marches-publics/internal/logging"
	"github.com/A78Z/pmn-marches-publics/internal/normalize"
	"github.com/A78Z/pmn-marches-publics/internal/ports"
	"github.com/A78Z/pmn-marches-publics/internal/scanner"
	"github.com/A78Z/pmn-marches-publics/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store        storage.Store
	engine       *classification.Engine
	parser       *parser.MarchesPublics
	orchestrator *usecase.Orchestrator
	notifier     *usecase.Notifier
	pipeline     *usecase.Pipeline
	scheduler    *usecase.Scheduler
	reminders    *scheduler.CronScheduler
}

// New opens the store and builds every collaborator from cfg. The caller
// owns the returned application and must Close it.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	loc := cfg.Scheduler.Location()

	engine, err := NewEngine(cfg.Classification)
	if err != nil {
		return nil, err
	}

	site, err := NewParser(cfg, baseLogger)
	if err != nil {
		return nil, err
	}
	registry := scanner.NewRegistry()
	registry.Register(site)

	pages, err := browser.NewHTTPBrowser(browser.Options{
		UserAgent:         cfg.Scraping.UserAgent,
		Timeout:           cfg.Scraping.Timeout,
		MaxRetries:        cfg.Scraping.MaxRetries,
		RequestsPerSecond: cfg.Scraping.RequestsPerSecond,
	}, baseLogger.With("component", "browser"))
	if err != nil {
		return nil, eris.Wrap(err, "app: browser")
	}

	recipients, err := newRecipients(cfg.Notifications)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Browser:    pages,
		Parsers:    registry,
		ParserName: cfg.Scraping.Parser,
		Classifier: engine,
		Repository: store,
		SourceURL:  cfg.Scraping.SourceURL,
		MaxPages:   cfg.Scraping.MaxPages,
		Logger:     baseLogger,
	})
	notifier := usecase.NewNotifier(usecase.NotifierDeps{
		Channels:   newChannels(cfg.Notifications, baseLogger),
		Recipients: recipients,
		Urgent:     store,
		PortalURL:  cfg.Notifications.PortalURL,
		Logger:     baseLogger,
	})
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Scraper:  orchestrator,
		Notifier: notifier,
		Logger:   baseLogger,
	})

	application := &Application{
		cfg:          cfg,
		logger:       baseLogger.With("component", "app"),
		store:        store,
		engine:       engine,
		parser:       site,
		orchestrator: orchestrator,
		notifier:     notifier,
		pipeline:     pipeline,
	}

	if !cfg.Scheduler.Disabled {
		driver, err := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, loc, baseLogger)
		if err != nil {
			store.Close()
			return nil, err
		}
		application.scheduler = usecase.NewScheduler(driver, pipeline, baseLogger)

		if cfg.Scheduler.ReminderCron != "" {
			application.reminders, err = scheduler.NewCronScheduler(cfg.Scheduler.ReminderCron, loc, baseLogger)
			if err != nil {
				store.Close()
				return nil, err
			}
		}
	}
	return application, nil
}

// NewParser builds the marchespublics.sn parser with the configured selector
// overrides.
func NewParser(cfg config.Config, logger *slog.Logger) (*parser.MarchesPublics, error) {
	if logger == nil {
		logger = slog.Default()
	}
	selectors, err := parser.DefaultSelectors().WithOverrides(cfg.Selectors)
	if err != nil {
		return nil, eris.Wrap(err, "app: selectors")
	}
	return parser.NewMarchesPublics(parser.Options{
		Selectors:       selectors,
		SelectorTimeout: cfg.Scraping.SelectorTimeout,
		Location:        cfg.Scheduler.Location(),
	}, logger.With("component", "parser."+parser.MarchesPublicsName)), nil
}

// NewEngine loads keyword table overrides when a path is configured.
func NewEngine(cfg config.ClassificationConfig) (*classification.Engine, error) {
	if cfg.TablesPath == "" {
		return classification.NewDefaultEngine(), nil
	}
	tables, err := classification.LoadTables(cfg.TablesPath)
	if err != nil {
		return nil, err
	}
	engine, err := classification.NewEngine(tables)
	if err != nil {
		return nil, eris.Wrapf(err, "app: classification tables %s", cfg.TablesPath)
	}
	return engine, nil
}

// newChannels only builds channels that have credentials.
func newChannels(cfg config.NotificationConfig, logger *slog.Logger) []ports.NotificationChannel {
	var channels []ports.NotificationChannel
	if cfg.SMTP.Enabled() {
		channels = append(channels, notify.NewEmailChannel(notify.SMTPConfig{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.User,
			Password:    cfg.SMTP.Password,
			FromName:    cfg.SMTP.FromName,
			FromAddress: cfg.SMTP.FromAddress,
		}))
	}
	if cfg.WhatsApp.Enabled() {
		channels = append(channels, notify.NewWhatsAppChannel(notify.WhatsAppConfig{
			APIURL:        cfg.WhatsApp.APIURL,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			AccessToken:   cfg.WhatsApp.AccessToken,
		}, logger))
	}
	if cfg.Telegram.BotToken != "" {
		channels = append(channels, notify.NewTelegramChannel(cfg.Telegram.BotToken, cfg.Telegram.APIURL))
	}
	return channels
}

// newRecipients maps configured subscriptions to use case recipients. A
// Telegram chat id becomes an extra recipient receiving every digest.
func newRecipients(cfg config.NotificationConfig) ([]usecase.Recipient, error) {
	out := make([]usecase.Recipient, 0, len(cfg.Recipients)+1)
	for i, rc := range cfg.Recipients {
		r := usecase.Recipient{Name: rc.Name, Addresses: map[string]string{}}
		if r.Name == "" {
			r.Name = "recipient-" + strconv.Itoa(i+1)
		}
		for channel, address := range map[string]string{
			notify.ChannelEmail:    rc.Email,
			notify.ChannelWhatsApp: rc.WhatsApp,
			notify.ChannelTelegram: rc.Telegram,
		} {
			if address = strings.TrimSpace(address); address != "" {
				r.Addresses[channel] = address
			}
		}
		for _, raw := range rc.Modules {
			m := domain.Module(strings.TrimSpace(raw))
			if !m.Valid() {
				return nil, eris.Errorf("app: recipient %s: unknown module %q", r.Name, raw)
			}
			r.Modules = append(r.Modules, m)
		}
		for _, raw := range rc.Regions {
			r.Regions = append(r.Regions, normalize.Region(raw))
		}
		out = append(out, r)
	}
	if chat := strings.TrimSpace(cfg.Telegram.ChatID); chat != "" {
		out = append(out, usecase.Recipient{
			Name:      "telegram-channel",
			Addresses: map[string]string{notify.ChannelTelegram: chat},
		})
	}
	return out, nil
}

// Scrape runs one session and announces the new tenders.
func (a *Application) Scrape(ctx context.Context) (domain.ScrapingResult, error) {
	return a.pipeline.RunOnce(ctx)
}

// Expire marks active tenders past their deadline as expired.
func (a *Application) Expire(ctx context.Context) (int, error) {
	return a.store.MarkExpired(ctx, time.Now())
}

// Remind sends deadline reminders for tenders closing within days.
func (a *Application) Remind(ctx context.Context, days int) (usecase.DeliveryReport, error) {
	if days <= 0 {
		days = a.cfg.Scheduler.ReminderDays
	}
	return a.notifier.RemindUrgent(ctx, days)
}

// Engine exposes the classifier for previews.
func (a *Application) Engine() *classification.Engine { return a.engine }

// Parser exposes the site parser for offline inspection.
func (a *Application) Parser() *parser.MarchesPublics { return a.parser }

// Store exposes the tender repository.
func (a *Application) Store() storage.Store { return a.store }

// Handler builds the HTTP API.
func (a *Application) Handler() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Runner:         a.pipeline,
		Controller:     a.orchestrator,
		Tenders:        a.store,
		Classifier:     a.engine,
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		Logger:         a.logger,
	})
}

// Serve runs the HTTP API and the schedulers until ctx is cancelled. A
// running scrape is stopped on shutdown.
func (a *Application) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(a.cfg.Server.Port)),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := a.startSchedules(gctx); err != nil {
		return err
	}
	g.Go(func() error {
		a.logger.Info("http api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "app: http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.orchestrator.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		var errs []error
		if a.scheduler != nil {
			errs = append(errs, a.scheduler.Stop(shutdownCtx))
		}
		if a.reminders != nil {
			errs = append(errs, a.reminders.Stop(shutdownCtx))
		}
		errs = append(errs, srv.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})
	return g.Wait()
}

func (a *Application) startSchedules(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return err
		}
	}
	if a.reminders == nil {
		return nil
	}
	err := a.reminders.Start(ctx, func(time.Time) {
		report, err := a.Remind(ctx, 0)
		if err != nil {
			a.logger.Error("deadline reminders failed", "error", err)
			return
		}
		a.logger.Info("deadline reminders sent", "recipients", report.Recipients, "sent", report.Sent, "failed", report.Failed)
	})
	if err != nil && a.scheduler != nil {
		_ = a.scheduler.Stop(context.WithoutCancel(ctx))
	}
	return err
}

// Close releases the store.
func (a *Application) Close() error {
	return a.store.Close()
}
