package storage

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
	"github.com/A78Z/pmn-marches-publics/internal/normalize"
	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

// MemoryRepository keeps tenders in a map keyed by reference. It backs tests
// and dry runs.
type MemoryRepository struct {
	mu      sync.RWMutex
	tenders map[string]domain.PersistedTender
	now     func() time.Time
}

var _ ports.TenderRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tenders: make(map[string]domain.PersistedTender),
		now:     time.Now,
	}
}

// Migrate is a no-op.
func (r *MemoryRepository) Migrate(context.Context) error { return nil }

// Close is a no-op.
func (r *MemoryRepository) Close() error { return nil }

// Upsert applies the same hash rules as SQLRepository.
func (r *MemoryRepository) Upsert(_ context.Context, record domain.TenderRecord) (domain.UpsertResult, error) {
	hash := domain.Fingerprint(record)
	now := stamp(r.now())

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tenders[record.Reference]
	if !ok {
		stored := domain.PersistedTender{
			TenderRecord: clone(record),
			ID:           uuid.NewString(),
			Status:       domain.StatusActive,
			ContentHash:  hash,
			ACL:          domain.ACLPublicRead,
			Currency:     domain.DefaultCurrency,
			LastSyncAt:   now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		r.tenders[record.Reference] = stored
		return domain.UpsertResult{ID: stored.ID, IsNew: true}, nil
	}
	if existing.ContentHash == hash {
		return domain.UpsertResult{ID: existing.ID}, nil
	}

	existing.TenderRecord = clone(record)
	existing.ContentHash = hash
	existing.LastSyncAt = now
	existing.UpdatedAt = now
	r.tenders[record.Reference] = existing
	return domain.UpsertResult{ID: existing.ID, Changed: true}, nil
}

// MarkExpired flips active tenders whose deadline is before now.
func (r *MemoryRepository) MarkExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := 0
	for ref, t := range r.tenders {
		if t.Status == domain.StatusActive && t.DeadlineDate.Before(now) {
			t.Status = domain.StatusExpired
			t.UpdatedAt = stamp(r.now())
			r.tenders[ref] = t
			changed++
		}
	}
	return changed, nil
}

// Query filters, orders and pages the stored tenders.
func (r *MemoryRepository) Query(_ context.Context, q domain.TenderQuery) ([]domain.PersistedTender, error) {
	key, ok := memoryOrder[q.OrderBy]
	if !ok {
		return nil, eris.Errorf("query: unknown order %q", q.OrderBy)
	}

	r.mu.RLock()
	out := make([]domain.PersistedTender, 0, len(r.tenders))
	for _, t := range r.tenders {
		if matches(t, q) {
			out = append(out, t)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.PersistedTender) int {
		c := key(a).Compare(key(b))
		if q.Descending {
			c = -c
		}
		return cmp.Or(c, strings.Compare(a.Reference, b.Reference))
	})

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// FindByReference loads one tender or returns ports.ErrNotFound.
func (r *MemoryRepository) FindByReference(_ context.Context, reference string) (domain.PersistedTender, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenders[reference]
	if !ok {
		return domain.PersistedTender{}, eris.Wrapf(ports.ErrNotFound, "tender %s", reference)
	}
	return t, nil
}

// CountByModule counts active tenders per module.
func (r *MemoryRepository) CountByModule(context.Context) (map[domain.Module]int, error) {
	counts := make(map[domain.Module]int, len(domain.AllModules()))
	for _, m := range domain.AllModules() {
		counts[m] = 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tenders {
		if t.Status == domain.StatusActive {
			counts[t.Module]++
		}
	}
	return counts, nil
}

var memoryOrder = map[string]func(domain.PersistedTender) time.Time{
	"":            func(t domain.PersistedTender) time.Time { return t.DeadlineDate },
	"deadline":    func(t domain.PersistedTender) time.Time { return t.DeadlineDate },
	"publication": func(t domain.PersistedTender) time.Time { return t.PublicationDate },
	"created":     func(t domain.PersistedTender) time.Time { return t.CreatedAt },
	"updated":     func(t domain.PersistedTender) time.Time { return t.UpdatedAt },
}

func matches(t domain.PersistedTender, q domain.TenderQuery) bool {
	switch {
	case q.Module != "" && t.Module != q.Module:
		return false
	case q.Region != "" && t.Region != q.Region:
		return false
	case q.Status != "" && t.Status != q.Status:
		return false
	case !q.DeadlineAfter.IsZero() && !t.DeadlineDate.After(q.DeadlineAfter):
		return false
	case !q.DeadlineBefore.IsZero() && t.DeadlineDate.After(q.DeadlineBefore):
		return false
	}
	if len(q.Terms) == 0 {
		return true
	}
	haystack := searchText(t.TenderRecord)
	for _, term := range q.Terms {
		term = normalize.Fold(term)
		if term != "" && !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

func clone(record domain.TenderRecord) domain.TenderRecord {
	record.Keywords = slices.Clone(record.Keywords)
	if record.Amount != nil {
		v := *record.Amount
		record.Amount = &v
	}
	record.PublicationDate = stamp(record.PublicationDate)
	record.DeadlineDate = stamp(record.DeadlineDate)
	return record
}
