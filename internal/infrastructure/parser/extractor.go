package parser

import (
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
	"github.com/A78Z/pmn-marches-publics/internal/normalize"
	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

// Extractor turns one list item into a ScrapedTender by interpreting the
// selector lists field by field.
type Extractor struct {
	selectors Selectors
	dates     normalize.Dates
	now       func() time.Time
}

// NewExtractor binds selectors and the date parser; now defaults to time.Now.
func NewExtractor(selectors Selectors, dates normalize.Dates, now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{selectors: selectors, dates: dates, now: now}
}

// Extract returns ok=false without error when the item lacks a reference, a
// title or a parseable deadline. A non-nil error means the item could not be
// read at all.
func (x *Extractor) Extract(item ports.Element, pageURL string) (tender domain.ScrapedTender, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			tender, ok, err = domain.ScrapedTender{}, false, eris.Errorf("extract item: %v", r)
		}
	}()

	reference := firstText(item, x.selectors.Reference)
	title := firstText(item, x.selectors.Title)
	if reference == "" || title == "" {
		return domain.ScrapedTender{}, false, nil
	}

	deadline, found := x.dates.Parse(firstText(item, x.selectors.Deadline))
	if !found {
		return domain.ScrapedTender{}, false, nil
	}
	published, found := x.dates.Parse(firstText(item, x.selectors.Publication))
	if !found {
		published = x.now()
	}

	tender = domain.ScrapedTender{
		Reference:       reference,
		Title:           title,
		Description:     firstText(item, x.selectors.Description),
		Institution:     firstText(item, x.selectors.Institution),
		Category:        firstText(item, x.selectors.Category),
		PublicationDate: published,
		DeadlineDate:    deadline,
		Region:          normalize.Region(firstText(item, x.selectors.Region)),
		SourceURL:       firstLink(item, x.selectors.DetailLink, pageURL),
		DocumentURL:     firstLink(item, x.selectors.DocumentLink, pageURL),
	}
	if tender.Description == "" {
		tender.Description = title
	}
	if tender.Institution == "" {
		tender.Institution = domain.UnspecifiedInstitution
	}
	if tender.SourceURL == "" {
		tender.SourceURL = pageURL
	}
	if amount, found := normalize.Amount(firstText(item, x.selectors.Amount)); found {
		tender.Amount = &amount
	}
	return tender, true, nil
}

// firstText returns the whitespace-collapsed text of the first selector with
// a non-empty match.
func firstText(el ports.Element, selectors []string) string {
	for _, sel := range selectors {
		found := el.Find(sel)
		if len(found) == 0 {
			continue
		}
		if text := strings.Join(strings.Fields(found[0].Text()), " "); text != "" {
			return text
		}
	}
	return ""
}

// firstLink returns the first href among selectors, absolute against base.
func firstLink(el ports.Element, selectors []string, base string) string {
	for _, sel := range selectors {
		for _, found := range el.Find(sel) {
			href, ok := found.Attr("href")
			href = strings.TrimSpace(href)
			if !ok || href == "" {
				continue
			}
			return absolute(base, href)
		}
	}
	return ""
}

func absolute(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return ref.String()
	}
	return b.ResolveReference(ref).String()
}
