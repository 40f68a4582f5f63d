package usecase

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

// Recipient subscribes to tender alerts. Empty Modules or Regions match
// everything; a region subscription also receives National tenders.
type Recipient struct {
	Name string
	// Addresses maps a channel name (email, whatsapp, telegram) to the
	// recipient's address on that channel.
	Addresses map[string]string
	Modules   []domain.Module
	Regions   []domain.Region
}

// Wants reports whether the tender matches the recipient's subscriptions.
func (r Recipient) Wants(module domain.Module, region domain.Region) bool {
	if len(r.Modules) > 0 && !slices.Contains(r.Modules, module) {
		return false
	}
	if len(r.Regions) > 0 && region != domain.RegionNational && !slices.Contains(r.Regions, region) {
		return false
	}
	return true
}

// UrgentFinder loads active tenders closing soon.
type UrgentFinder interface {
	FindUrgent(ctx context.Context, days int) ([]domain.PersistedTender, error)
}

// NotifierDeps wires channels and recipients.
type NotifierDeps struct {
	Channels   []ports.NotificationChannel
	Recipients []Recipient
	Urgent     UrgentFinder
	PortalURL  string
	Now        func() time.Time
	Logger     *slog.Logger
}

// DeliveryReport counts the outcome of one notification round.
type DeliveryReport struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// Notifier fans tender alerts out to subscribed recipients.
type Notifier struct {
	channels   map[string]ports.NotificationChannel
	recipients []Recipient
	urgent     UrgentFinder
	portal     string
	now        func() time.Time
	logger     *slog.Logger
}

// NewNotifier indexes channels by name.
func NewNotifier(deps NotifierDeps) *Notifier {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	channels := make(map[string]ports.NotificationChannel, len(deps.Channels))
	for _, ch := range deps.Channels {
		channels[ch.Name()] = ch
	}
	return &Notifier{
		channels:   channels,
		recipients: deps.Recipients,
		urgent:     deps.Urgent,
		portal:     deps.PortalURL,
		now:        now,
		logger:     logger.With("component", "notifier"),
	}
}

// NotifyNewTenders sends each recipient a digest of the tenders they follow.
// Delivery failures are logged and counted.
func (n *Notifier) NotifyNewTenders(ctx context.Context, tenders []domain.TenderRecord) DeliveryReport {
	var report DeliveryReport
	if len(tenders) == 0 {
		return report
	}
	n.logger.Info("notifying new tenders", "count", len(tenders), "recipients", len(n.recipients))

	for _, recipient := range n.recipients {
		var matching []domain.TenderRecord
		for _, t := range tenders {
			if recipient.Wants(t.Module, t.Region) {
				matching = append(matching, t)
			}
		}
		if len(matching) == 0 {
			continue
		}
		msg, err := DigestMessage(matching, n.portal)
		if err != nil {
			n.logger.Error("render digest", "recipient", recipient.Name, "error", err)
			report.Failed++
			continue
		}
		report.Recipients++
		n.deliver(ctx, recipient, msg, &report)
	}
	return report
}

// RemindUrgent sends one reminder per recipient and tender whose deadline
// falls within days.
func (n *Notifier) RemindUrgent(ctx context.Context, days int) (DeliveryReport, error) {
	var report DeliveryReport
	if n.urgent == nil {
		return report, eris.New("reminders: no tender source configured")
	}
	tenders, err := n.urgent.FindUrgent(ctx, days)
	if err != nil {
		return report, eris.Wrap(err, "reminders: load urgent tenders")
	}
	now := n.now()

	for _, recipient := range n.recipients {
		reached := false
		for _, t := range tenders {
			if !recipient.Wants(t.Module, t.Region) {
				continue
			}
			msg, err := ReminderMessage(t, DaysLeft(t.DeadlineDate, now), n.portal)
			if err != nil {
				n.logger.Error("render reminder", "reference", t.Reference, "error", err)
				report.Failed++
				continue
			}
			reached = true
			n.deliver(ctx, recipient, msg, &report)
		}
		if reached {
			report.Recipients++
		}
	}
	n.logger.Info("reminders sent", "tenders", len(tenders), "sent", report.Sent, "failed", report.Failed)
	return report, nil
}

func (n *Notifier) deliver(ctx context.Context, recipient Recipient, msg ports.Notification, report *DeliveryReport) {
	names := make([]string, 0, len(recipient.Addresses))
	for name := range recipient.Addresses {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		address := recipient.Addresses[name]
		if address == "" {
			continue
		}
		ch, ok := n.channels[name]
		if !ok {
			n.logger.Warn("channel not configured", "channel", name, "recipient", recipient.Name)
			continue
		}
		if err := ch.Deliver(ctx, address, msg); err != nil {
			report.Failed++
			n.logger.Error("delivery failed", "channel", name, "recipient", recipient.Name, "error", err)
			continue
		}
		report.Sent++
		n.logger.Debug("notification delivered", "channel", name, "recipient", recipient.Name, "subject", msg.Subject)
	}
}
