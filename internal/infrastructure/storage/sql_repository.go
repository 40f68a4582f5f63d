package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
	"github.com/A78Z/pmn-marches-publics/internal/normalize"
	"github.com/A78Z/pmn-marches-publics/internal/ports"
)

// Dialect selects placeholder style, schema and array encoding.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const tendersTable = "tenders"

var tenderColumns = []string{
	"id", "reference", "title", "description", "institution", "category", "module",
	"keywords", "confidence", "publication_date", "deadline_date", "region", "amount",
	"currency", "source_url", "document_url", "status", "content_hash", "acl",
	"last_sync_at", "created_at", "updated_at",
}

// searchColumn holds the folded title, description and keywords matched by
// query terms. It is written on every insert and update but never scanned.
const searchColumn = "search_text"

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

var orderColumns = map[string]string{
	"":            "deadline_date",
	"deadline":    "deadline_date",
	"publication": "publication_date",
	"created":     "created_at",
	"updated":     "updated_at",
}

// SQLRepository persists tenders in SQLite or Postgres.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.TenderRepository = (*SQLRepository)(nil)

// NewSQLRepository wires an open sql.DB for the given dialect.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	var placeholder sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		placeholder = sq.Dollar
	}
	return &SQLRepository{
		db:      db,
		dialect: dialect,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:     time.Now,
	}
}

// OpenSQLite opens a SQLite database at dsn in WAL mode.
func OpenSQLite(dsn string) (*SQLRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return NewSQLRepository(db, DialectSQLite), nil
}

// OpenPostgres opens a Postgres pool through lib/pq.
func OpenPostgres(ctx context.Context, dsn string) (*SQLRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return NewSQLRepository(db, DialectPostgres), nil
}

// Migrate creates the schema if missing.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if r.dialect == DialectPostgres {
		schema = postgresSchema
	}
	_, err := r.db.ExecContext(ctx, schema)
	return eris.Wrapf(err, "%s: migrate", r.dialect)
}

// Close releases the pool.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// Upsert creates the record on first sighting, rewrites it when its content
// hash changed and leaves it untouched otherwise.
func (r *SQLRepository) Upsert(ctx context.Context, record domain.TenderRecord) (domain.UpsertResult, error) {
	hash := domain.Fingerprint(record)
	now := stamp(r.now())

	keywords, err := r.encodeKeywords(record.Keywords)
	if err != nil {
		return domain.UpsertResult{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.UpsertResult{}, eris.Wrap(err, "upsert: begin")
	}
	defer tx.Rollback()

	query, args, err := r.builder.Select("id", "content_hash").From(tendersTable).
		Where(sq.Eq{"reference": record.Reference}).ToSql()
	if err != nil {
		return domain.UpsertResult{}, eris.Wrap(err, "upsert: build lookup")
	}

	var id, existingHash string
	err = tx.QueryRowContext(ctx, query, args...).Scan(&id, &existingHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		columns := append(slices.Clone(tenderColumns), searchColumn)
		query, args, err = r.builder.Insert(tendersTable).Columns(columns...).Values(
			id, record.Reference, record.Title, record.Description, record.Institution, record.Category,
			string(record.Module), keywords, record.Confidence, stamp(record.PublicationDate),
			stamp(record.DeadlineDate), string(record.Region), nullableAmount(record.Amount),
			domain.DefaultCurrency, record.SourceURL, record.DocumentURL, string(domain.StatusActive),
			hash, domain.ACLPublicRead, now, now, now, searchText(record),
		).ToSql()
		if err != nil {
			return domain.UpsertResult{}, eris.Wrap(err, "upsert: build insert")
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return domain.UpsertResult{}, eris.Wrapf(err, "upsert: insert %s", record.Reference)
		}
		if err := tx.Commit(); err != nil {
			return domain.UpsertResult{}, eris.Wrap(err, "upsert: commit")
		}
		return domain.UpsertResult{ID: id, IsNew: true}, nil
	case err != nil:
		return domain.UpsertResult{}, eris.Wrapf(err, "upsert: lookup %s", record.Reference)
	}

	if existingHash == hash {
		return domain.UpsertResult{ID: id}, nil
	}

	query, args, err = r.builder.Update(tendersTable).SetMap(map[string]any{
		"title":            record.Title,
		"description":      record.Description,
		"institution":      record.Institution,
		"category":         record.Category,
		"module":           string(record.Module),
		"keywords":         keywords,
		"confidence":       record.Confidence,
		"publication_date": stamp(record.PublicationDate),
		"deadline_date":    stamp(record.DeadlineDate),
		"region":           string(record.Region),
		"amount":           nullableAmount(record.Amount),
		"source_url":       record.SourceURL,
		"document_url":     record.DocumentURL,
		"content_hash":     hash,
		searchColumn:       searchText(record),
		"last_sync_at":     now,
		"updated_at":       now,
	}).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.UpsertResult{}, eris.Wrap(err, "upsert: build update")
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return domain.UpsertResult{}, eris.Wrapf(err, "upsert: update %s", record.Reference)
	}
	if err := tx.Commit(); err != nil {
		return domain.UpsertResult{}, eris.Wrap(err, "upsert: commit")
	}
	return domain.UpsertResult{ID: id, Changed: true}, nil
}

// MarkExpired flips active tenders whose deadline is before now.
func (r *SQLRepository) MarkExpired(ctx context.Context, now time.Time) (int, error) {
	query, args, err := r.builder.Update(tendersTable).
		Set("status", string(domain.StatusExpired)).
		Set("updated_at", stamp(r.now())).
		Where(sq.Eq{"status": string(domain.StatusActive)}).
		Where(sq.Lt{"deadline_date": stamp(now)}).
		ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "mark expired: build")
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "mark expired")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "mark expired: rows affected")
	}
	return int(n), nil
}

// Query returns tenders matching q.
func (r *SQLRepository) Query(ctx context.Context, q domain.TenderQuery) ([]domain.PersistedTender, error) {
	column, ok := orderColumns[q.OrderBy]
	if !ok {
		return nil, eris.Errorf("query: unknown order %q", q.OrderBy)
	}
	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}

	stmt := r.builder.Select(tenderColumns...).From(tendersTable).OrderBy(column+" "+direction, "reference ASC")
	if q.Module != "" {
		stmt = stmt.Where(sq.Eq{"module": string(q.Module)})
	}
	if q.Region != "" {
		stmt = stmt.Where(sq.Eq{"region": string(q.Region)})
	}
	if q.Status != "" {
		stmt = stmt.Where(sq.Eq{"status": string(q.Status)})
	}
	if !q.DeadlineAfter.IsZero() {
		stmt = stmt.Where(sq.Gt{"deadline_date": stamp(q.DeadlineAfter)})
	}
	if !q.DeadlineBefore.IsZero() {
		stmt = stmt.Where(sq.LtOrEq{"deadline_date": stamp(q.DeadlineBefore)})
	}
	for _, term := range q.Terms {
		term = normalize.Fold(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		pattern := "%" + likeEscaper.Replace(term) + "%"
		stmt = stmt.Where(sq.Expr(searchColumn+` LIKE ? ESCAPE '\'`, pattern))
	}
	if q.Limit > 0 {
		stmt = stmt.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		stmt = stmt.Offset(uint64(q.Offset))
	}

	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "query: build")
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query tenders")
	}
	defer rows.Close()

	var out []domain.PersistedTender
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "query: rows iteration")
	}
	return out, nil
}

// FindByReference loads one tender or returns ports.ErrNotFound.
func (r *SQLRepository) FindByReference(ctx context.Context, reference string) (domain.PersistedTender, error) {
	query, args, err := r.builder.Select(tenderColumns...).From(tendersTable).
		Where(sq.Eq{"reference": reference}).ToSql()
	if err != nil {
		return domain.PersistedTender{}, eris.Wrap(err, "find by reference: build")
	}
	t, err := r.scan(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PersistedTender{}, eris.Wrapf(ports.ErrNotFound, "tender %s", reference)
	}
	return t, err
}

// CountByModule counts active tenders per module; every module is present.
func (r *SQLRepository) CountByModule(ctx context.Context) (map[domain.Module]int, error) {
	query, args, err := r.builder.Select("module", "COUNT(*)").From(tendersTable).
		Where(sq.Eq{"status": string(domain.StatusActive)}).GroupBy("module").ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "count by module: build")
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "count by module")
	}
	defer rows.Close()

	counts := make(map[domain.Module]int, len(domain.AllModules()))
	for _, m := range domain.AllModules() {
		counts[m] = 0
	}
	for rows.Next() {
		var module string
		var n int
		if err := rows.Scan(&module, &n); err != nil {
			return nil, eris.Wrap(err, "count by module: scan")
		}
		counts[domain.Module(module)] = n
	}
	return counts, eris.Wrap(rows.Err(), "count by module: rows iteration")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scan(row rowScanner) (domain.PersistedTender, error) {
	var (
		t                   domain.PersistedTender
		module, region      string
		status              string
		amount              sql.NullFloat64
		rawKeywords         string
		pgKeywords          pq.StringArray
		publication, expiry time.Time
	)
	var keywordsDest any = &rawKeywords
	if r.dialect == DialectPostgres {
		keywordsDest = &pgKeywords
	}

	err := row.Scan(
		&t.ID, &t.Reference, &t.Title, &t.Description, &t.Institution, &t.Category, &module,
		keywordsDest, &t.Confidence, &publication, &expiry, &region, &amount,
		&t.Currency, &t.SourceURL, &t.DocumentURL, &status, &t.ContentHash, &t.ACL,
		&t.LastSyncAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return t, err
	}
	if err != nil {
		return t, eris.Wrap(err, "scan tender")
	}

	t.Module = domain.Module(module)
	t.Region = domain.Region(region)
	t.Status = domain.TenderStatus(status)
	t.PublicationDate = publication.UTC()
	t.DeadlineDate = expiry.UTC()
	t.LastSyncAt = t.LastSyncAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if amount.Valid {
		v := amount.Float64
		t.Amount = &v
	}
	if r.dialect == DialectPostgres {
		t.Keywords = []string(pgKeywords)
	} else if err := json.Unmarshal([]byte(rawKeywords), &t.Keywords); err != nil {
		return t, eris.Wrap(err, "scan tender: keywords")
	}
	return t, nil
}

func (r *SQLRepository) encodeKeywords(keywords []string) (any, error) {
	if keywords == nil {
		keywords = []string{}
	}
	if r.dialect == DialectPostgres {
		return pq.Array(keywords), nil
	}
	raw, err := json.Marshal(keywords)
	if err != nil {
		return nil, eris.Wrap(err, "encode keywords")
	}
	return string(raw), nil
}

// searchText is the accent-folded haystack shared with MemoryRepository.
func searchText(record domain.TenderRecord) string {
	return normalize.Fold(record.Title + " " + record.Description + " " + strings.Join(record.Keywords, " "))
}

// stamp normalises times to UTC seconds so SQLite text comparisons stay chronological.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullableAmount(amount *float64) sql.NullFloat64 {
	if amount == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *amount, Valid: true}
}
