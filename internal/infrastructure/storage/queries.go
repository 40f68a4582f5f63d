package storage

import (
	"context"
	"time"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
)

// UrgentQuery selects active tenders closing within days of now, soonest first.
func UrgentQuery(now time.Time, days int) domain.TenderQuery {
	return domain.TenderQuery{
		Status:         domain.StatusActive,
		DeadlineAfter:  now,
		DeadlineBefore: now.AddDate(0, 0, days),
		OrderBy:        "deadline",
	}
}

// RecentQuery selects the latest recorded tenders, newest first.
func RecentQuery(limit int) domain.TenderQuery {
	return domain.TenderQuery{OrderBy: "created", Descending: true, Limit: limit}
}

// FindUrgent returns active tenders whose deadline falls in the next days.
func (r *SQLRepository) FindUrgent(ctx context.Context, days int) ([]domain.PersistedTender, error) {
	return r.Query(ctx, UrgentQuery(r.now(), days))
}

// FindRecent returns the limit most recently created tenders.
func (r *SQLRepository) FindRecent(ctx context.Context, limit int) ([]domain.PersistedTender, error) {
	return r.Query(ctx, RecentQuery(limit))
}

// FindUrgent returns active tenders whose deadline falls in the next days.
func (r *MemoryRepository) FindUrgent(ctx context.Context, days int) ([]domain.PersistedTender, error) {
	return r.Query(ctx, UrgentQuery(r.now(), days))
}

// FindRecent returns the limit most recently created tenders.
func (r *MemoryRepository) FindRecent(ctx context.Context, limit int) ([]domain.PersistedTender, error) {
	return r.Query(ctx, RecentQuery(limit))
}
