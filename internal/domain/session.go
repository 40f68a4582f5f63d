package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// SessionError is a non-fatal failure recorded during a scraping session.
type SessionError struct {
	Message string `json:"message"`
	Page    string `json:"page,omitempty"`
}

// SessionStats aggregates per-session counters.
type SessionStats struct {
	PagesScraped     int `json:"pagesScraped"`
	NewTenders       int `json:"newTenders"`
	UpdatedTenders   int `json:"updatedTenders"`
	UnchangedTenders int `json:"unchangedTenders"`
	ExpiredTenders   int `json:"expiredTenders"`
	Errors           int `json:"errors"`
}

// ScrapingResult summarises one scraping session.
type ScrapingResult struct {
	Success    bool           `json:"success"`
	SessionID  string         `json:"sessionId"`
	StartTime  time.Time      `json:"startTime"`
	EndTime    time.Time      `json:"endTime"`
	Duration   time.Duration  `json:"duration"`
	Stats      SessionStats   `json:"stats"`
	Errors     []SessionError `json:"errors"`
	Stopped    bool           `json:"stopped"`
	NewTenders []TenderRecord `json:"-"`
}

// Fingerprint hashes the mutable content of a record; a different hash means
// the listing changed upstream.
func Fingerprint(r TenderRecord) string {
	amount := "undefined"
	if r.Amount != nil {
		amount = strconv.FormatFloat(*r.Amount, 'f', -1, 64)
	}
	content := strings.Join([]string{
		r.Title,
		r.Description,
		r.DeadlineDate.UTC().Format(time.RFC3339),
		amount,
	}, "|")
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
