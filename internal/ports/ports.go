package ports

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
)

var (
	// ErrNotFound is returned by repository lookups that match nothing.
	ErrNotFound = eris.New("not found")
	// ErrPageClosed is returned by page operations after Close.
	ErrPageClosed = eris.New("page closed")
	// ErrSelectorNotFound is returned by WaitFor when no element matched in time.
	ErrSelectorNotFound = eris.New("selector not found")
)

// TenderRepository persists classified tenders keyed by their public reference.
type TenderRepository interface {
	Upsert(ctx context.Context, record domain.TenderRecord) (domain.UpsertResult, error)
	MarkExpired(ctx context.Context, now time.Time) (int, error)
	Query(ctx context.Context, q domain.TenderQuery) ([]domain.PersistedTender, error)
	FindByReference(ctx context.Context, reference string) (domain.PersistedTender, error)
	CountByModule(ctx context.Context) (map[domain.Module]int, error)
}

// Browser hands out pages; one page per scraping session.
type Browser interface {
	Open(ctx context.Context) (Page, error)
}

// Page is the narrow set of navigation and query capabilities the scraper needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL() string
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Locate(selector string) []Element
	Click(ctx context.Context, el Element) error
	WaitNetworkIdle(ctx context.Context) error
	Content() string
	Close() error
}

// Element is a located DOM node.
type Element interface {
	Text() string
	Attr(name string) (string, bool)
	Find(selector string) []Element
}

// Notification is a rendered message ready for delivery.
type Notification struct {
	Subject string
	Text    string
	HTML    string
}

// NotificationChannel delivers a message to one address (email, phone, chat id).
type NotificationChannel interface {
	Name() string
	Deliver(ctx context.Context, address string, msg Notification) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
