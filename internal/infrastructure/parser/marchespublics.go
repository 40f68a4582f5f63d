// Package parser holds the site-specific listing parsers.
package parser

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/normalize"
	"github.com/A78Z/pmn-marches-publics/internal/ports"
	"github.com/A78Z/pmn-marches-publics/internal/scanner"
)

// MarchesPublicsName is the registry key of the marchespublics.sn parser.
const MarchesPublicsName = "marchespublics"

// ErrNoNextPage is returned by GoToNextPage when no usable next control exists.
var ErrNoNextPage = eris.New("no next page")

const defaultSelectorTimeout = 10 * time.Second

// structureMarkers are probed when a page yields nothing.
var structureMarkers = []struct {
	label    string
	selector string
}{
	{"table", "table"},
	{".liste", `[class*="liste"]`},
	{".list", `[class*="list"]`},
	{"tbody", "tbody"},
	{".avis", `[class*="avis"]`},
	{".tender", `[class*="tender"]`},
	{".ao-", `[class*="ao-"]`},
}

// Options configures MarchesPublics.
type Options struct {
	Selectors       Selectors
	SelectorTimeout time.Duration
	Location        *time.Location
	Now             func() time.Time
}

// MarchesPublics parses listing pages of marchespublics.sn.
type MarchesPublics struct {
	selectors       Selectors
	extractor       *Extractor
	selectorTimeout time.Duration
	logger          *slog.Logger
}

var _ scanner.Parser = (*MarchesPublics)(nil)

// NewMarchesPublics falls back to DefaultSelectors for an empty selector set.
func NewMarchesPublics(opts Options, logger *slog.Logger) *MarchesPublics {
	if logger == nil {
		logger = slog.Default()
	}
	selectors := opts.Selectors
	if len(selectors.Item) == 0 {
		selectors = DefaultSelectors()
	}
	timeout := opts.SelectorTimeout
	if timeout <= 0 {
		timeout = defaultSelectorTimeout
	}
	return &MarchesPublics{
		selectors:       selectors,
		extractor:       NewExtractor(selectors, normalize.NewDates(opts.Location), opts.Now),
		selectorTimeout: timeout,
		logger:          logger,
	}
}

// Name identifies the strategy inside the registry.
func (m *MarchesPublics) Name() string {
	return MarchesPublicsName
}

// ParseListPage extracts every valid tender of the loaded page in document
// order. Item faults are skipped; an empty or unrecognised page produces a
// structure diagnostic instead of an error.
func (m *MarchesPublics) ParseListPage(ctx context.Context, page ports.Page) scanner.ParsedPage {
	var result scanner.ParsedPage

	waitErr := m.waitForList(ctx, page)
	if waitErr != nil {
		m.logger.Warn("primary list selector not found, trying alternatives", "url", page.URL(), "error", waitErr)
	}

	items, used := m.locateItems(page)
	result.Items = len(items)
	m.logger.Debug("list items located", "url", page.URL(), "selector", used, "count", len(items))

	pageURL := page.URL()
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		tender, ok, err := m.extractor.Extract(item, pageURL)
		if err != nil {
			m.logger.Debug("item extraction failed", "index", i, "error", err)
			result.Skipped++
			continue
		}
		if !ok {
			result.Skipped++
			continue
		}
		result.Tenders = append(result.Tenders, tender)
	}

	if waitErr != nil || len(result.Tenders) == 0 {
		diag := Diagnose(page.Content())
		result.Diagnostic = &diag
		m.logger.Warn("listing structure may have changed, selectors may need updating",
			"url", pageURL,
			"present", strings.Join(diag.Present, ", "),
			"absent", strings.Join(diag.Absent, ", "),
		)
	}
	return result
}

// HasNextPage reports whether an enabled next control leads somewhere new.
func (m *MarchesPublics) HasNextPage(_ context.Context, page ports.Page) bool {
	next := m.nextControl(page)
	if next == nil {
		return false
	}
	if _, disabled := next.Attr("disabled"); disabled {
		return false
	}
	if aria, _ := next.Attr("aria-disabled"); strings.EqualFold(strings.TrimSpace(aria), "true") {
		return false
	}
	if class, _ := next.Attr("class"); slices.Contains(strings.Fields(class), "disabled") {
		return false
	}
	href, _ := next.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	return absolute(page.URL(), href) != page.URL()
}

// GoToNextPage activates the next control and waits for the load to settle.
func (m *MarchesPublics) GoToNextPage(ctx context.Context, page ports.Page) error {
	next := m.nextControl(page)
	if next == nil {
		return ErrNoNextPage
	}
	if err := page.Click(ctx, next); err != nil {
		return eris.Wrap(err, "follow next page")
	}
	if err := page.WaitNetworkIdle(ctx); err != nil {
		return eris.Wrap(err, "wait next page")
	}
	return nil
}

func (m *MarchesPublics) waitForList(ctx context.Context, page ports.Page) error {
	if len(m.selectors.List) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.selectorTimeout)
	defer cancel()
	return page.WaitFor(ctx, m.selectors.List[0], m.selectorTimeout)
}

func (m *MarchesPublics) locateItems(page ports.Page) ([]ports.Element, string) {
	for _, sel := range m.selectors.Item {
		if items := page.Locate(sel); len(items) > 0 {
			return items, sel
		}
	}
	return nil, ""
}

func (m *MarchesPublics) nextControl(page ports.Page) ports.Element {
	for _, sel := range m.selectors.NextPage {
		if found := page.Locate(sel); len(found) > 0 {
			return found[0]
		}
	}
	return nil
}

// Diagnose lists which layout markers occur in html.
func Diagnose(html string) scanner.StructureDiagnostic {
	var diag scanner.StructureDiagnostic
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	for _, marker := range structureMarkers {
		if err == nil && doc.Find(marker.selector).Length() > 0 {
			diag.Present = append(diag.Present, marker.label)
			continue
		}
		diag.Absent = append(diag.Absent, marker.label)
	}
	return diag
}
