package storage

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tenders (
	id               TEXT PRIMARY KEY,
	reference        TEXT NOT NULL UNIQUE,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL,
	institution      TEXT NOT NULL,
	category         TEXT NOT NULL DEFAULT '',
	module           TEXT NOT NULL,
	keywords         TEXT NOT NULL DEFAULT '[]',
	confidence       REAL NOT NULL DEFAULT 0,
	publication_date TIMESTAMP NOT NULL,
	deadline_date    TIMESTAMP NOT NULL,
	region           TEXT NOT NULL,
	amount           REAL,
	currency         TEXT NOT NULL DEFAULT 'XOF',
	source_url       TEXT NOT NULL DEFAULT '',
	document_url     TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	content_hash     TEXT NOT NULL,
	acl              TEXT NOT NULL,
	last_sync_at     TIMESTAMP NOT NULL,
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL,
	search_text      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tenders_status_deadline ON tenders(status, deadline_date);
CREATE INDEX IF NOT EXISTS idx_tenders_module ON tenders(module);
CREATE INDEX IF NOT EXISTS idx_tenders_region ON tenders(region);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tenders (
	id               TEXT PRIMARY KEY,
	reference        TEXT NOT NULL UNIQUE,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL,
	institution      TEXT NOT NULL,
	category         TEXT NOT NULL DEFAULT '',
	module           TEXT NOT NULL,
	keywords         TEXT[] NOT NULL DEFAULT '{}',
	confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
	publication_date TIMESTAMPTZ NOT NULL,
	deadline_date    TIMESTAMPTZ NOT NULL,
	region           TEXT NOT NULL,
	amount           DOUBLE PRECISION,
	currency         TEXT NOT NULL DEFAULT 'XOF',
	source_url       TEXT NOT NULL DEFAULT '',
	document_url     TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	content_hash     TEXT NOT NULL,
	acl              TEXT NOT NULL,
	last_sync_at     TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	search_text      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tenders_status_deadline ON tenders(status, deadline_date);
CREATE INDEX IF NOT EXISTS idx_tenders_module ON tenders(module);
CREATE INDEX IF NOT EXISTS idx_tenders_region ON tenders(region);
`
