package normalize

import (
	"regexp"
	"strconv"
	"time"
)

var (
	slashDate   = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	dashDate    = regexp.MustCompile(`(\d{1,2})-(\d{1,2})-(\d{4})`)
	isoDate     = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	frenchDate  = regexp.MustCompile(`(\d{1,2})(?:er)?\s+(janvier|fevrier|mars|avril|mai|juin|juillet|aout|septembre|octobre|novembre|decembre)\s+(\d{4})`)
	frenchMonth = map[string]time.Month{
		"janvier":   time.January,
		"fevrier":   time.February,
		"mars":      time.March,
		"avril":     time.April,
		"mai":       time.May,
		"juin":      time.June,
		"juillet":   time.July,
		"aout":      time.August,
		"septembre": time.September,
		"octobre":   time.October,
		"novembre":  time.November,
		"decembre":  time.December,
	}
)

// genericLayouts is the last-resort list, tried against the whole cleaned string.
var genericLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02.01.2006",
	"2006/01/02",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// Dates parses listing dates into calendar days in Location.
type Dates struct {
	Location *time.Location
}

// NewDates returns a parser anchored in loc; nil means UTC.
func NewDates(loc *time.Location) Dates {
	if loc == nil {
		loc = time.UTC
	}
	return Dates{Location: loc}
}

// ParseDate parses raw with a UTC parser.
func ParseDate(raw string) (time.Time, bool) {
	return NewDates(time.UTC).Parse(raw)
}

// Parse tries the known formats in order and reports false when none matches.
// Patterns are searched inside raw, so labels around the date are ignored.
func (d Dates) Parse(raw string) (time.Time, bool) {
	cleaned := collapseSpaces(raw)
	if cleaned == "" {
		return time.Time{}, false
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}

	if m := slashDate.FindStringSubmatch(cleaned); m != nil {
		if t, ok := calendarDay(m[3], m[2], m[1], loc); ok {
			return t, true
		}
	}
	if m := dashDate.FindStringSubmatch(cleaned); m != nil {
		if t, ok := calendarDay(m[3], m[2], m[1], loc); ok {
			return t, true
		}
	}
	if m := isoDate.FindStringSubmatch(cleaned); m != nil {
		if t, ok := calendarDay(m[1], m[2], m[3], loc); ok {
			return t, true
		}
	}
	if m := frenchDate.FindStringSubmatch(Fold(cleaned)); m != nil {
		month := frenchMonth[m[2]]
		if t, ok := calendarDay(m[3], strconv.Itoa(int(month)), m[1], loc); ok {
			return t, true
		}
	}

	for _, layout := range genericLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// calendarDay builds a midnight date and rejects overflowing components (31/02).
func calendarDay(year, month, day string, loc *time.Location) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	dd, err := strconv.Atoi(day)
	if err != nil || dd < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), dd, 0, 0, 0, 0, loc)
	if t.Year() != y || t.Month() != time.Month(m) || t.Day() != dd {
		return time.Time{}, false
	}
	return t, true
}
