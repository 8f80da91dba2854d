package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/deal-intake/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS deals (
	id         TEXT PRIMARY KEY,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS field_values (
	deal_id    TEXT NOT NULL REFERENCES deals(id),
	field      TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (deal_id, field)
);

CREATE TABLE IF NOT EXISTS facts (
	id          TEXT NOT NULL,
	deal_id     TEXT NOT NULL REFERENCES deals(id),
	document_id TEXT NOT NULL,
	kind        TEXT NOT NULL,
	payload     TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (deal_id, id)
);

CREATE TABLE IF NOT EXISTS processing_records (
	deal_id      TEXT NOT NULL REFERENCES deals(id),
	document_id  TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	processed_at DATETIME NOT NULL,
	artifacts    TEXT NOT NULL,
	PRIMARY KEY (deal_id, document_id)
);

CREATE TABLE IF NOT EXISTS deal_documents (
	deal_id     TEXT NOT NULL REFERENCES deals(id),
	document_id TEXT NOT NULL,
	position    INTEGER NOT NULL,
	PRIMARY KEY (deal_id, document_id)
);

CREATE INDEX IF NOT EXISTS idx_facts_deal_document ON facts(deal_id, document_id);
CREATE INDEX IF NOT EXISTS idx_processing_deal ON processing_records(deal_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CommitEnvelope writes the whole commit in one transaction. Facts from
// the committed documents are replaced, not appended; processing records
// are overwritten per (deal, document) identity.
func (s *SQLiteStore) CommitEnvelope(ctx context.Context, c Commit) error {
	env := c.Envelope
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin commit")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO deals (id, updated_at) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		env.DealID, now,
	); err != nil {
		return eris.Wrap(err, "sqlite: upsert deal")
	}

	for field, fv := range env.FieldUpdates {
		fvJSON, err := json.Marshal(fv)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal field %s", field)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO field_values (deal_id, field, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(deal_id, field) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			env.DealID, field, string(fvJSON), now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert field %s", field)
		}
	}

	for _, field := range c.RemoveFields {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM field_values WHERE deal_id = ? AND field = ?`,
			env.DealID, field,
		); err != nil {
			return eris.Wrapf(err, "sqlite: remove field %s", field)
		}
	}

	if len(c.DocumentIDs) > 0 {
		placeholders := strings.Repeat("?,", len(c.DocumentIDs))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, 0, len(c.DocumentIDs)+1)
		args = append(args, env.DealID)
		for _, id := range c.DocumentIDs {
			args = append(args, id)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM facts WHERE deal_id = ? AND document_id IN (`+placeholders+`)`,
			args...,
		); err != nil {
			return eris.Wrap(err, "sqlite: replace facts")
		}
	}

	for _, f := range env.AllFacts() {
		payload, err := json.Marshal(f)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal fact %s", f.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO facts (id, deal_id, document_id, kind, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(deal_id, id) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
			f.ID, env.DealID, f.PrimaryDocumentID(), string(f.Kind), string(payload), now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert fact %s", f.ID)
		}
	}

	for _, r := range c.Records {
		artifacts, err := json.Marshal(r.Artifacts)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal artifacts")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO processing_records (deal_id, document_id, content_hash, processed_at, artifacts) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(deal_id, document_id) DO UPDATE SET content_hash = excluded.content_hash,
			   processed_at = excluded.processed_at, artifacts = excluded.artifacts`,
			r.DealID, r.DocumentID, r.ContentHash, r.ProcessedAt.UTC(), string(artifacts),
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert processing record %s", r.DocumentID)
		}
	}

	for _, docID := range c.DocumentIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO deal_documents (deal_id, document_id, position)
			 VALUES (?, ?, COALESCE((SELECT MAX(position) + 1 FROM deal_documents WHERE deal_id = ?), 0))
			 ON CONFLICT(deal_id, document_id) DO NOTHING`,
			env.DealID, docID, env.DealID,
		); err != nil {
			return eris.Wrapf(err, "sqlite: record document %s", docID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) GetDeal(ctx context.Context, dealID string) (*model.Deal, error) {
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM deals WHERE id = ?`, dealID,
	).Scan(&updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get deal")
	}

	deal := &model.Deal{
		ID:        dealID,
		Fields:    make(map[string]model.FieldValue),
		UpdatedAt: updatedAt,
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT field, value FROM field_values WHERE deal_id = ? ORDER BY field`, dealID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get fields")
	}
	defer rows.Close()
	for rows.Next() {
		var field, fvJSON string
		if err := rows.Scan(&field, &fvJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan field")
		}
		var fv model.FieldValue
		if err := json.Unmarshal([]byte(fvJSON), &fv); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal field %s", field)
		}
		deal.Fields[field] = fv
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate fields")
	}

	factRows, err := s.db.QueryContext(ctx,
		`SELECT payload, created_at FROM facts WHERE deal_id = ? ORDER BY document_id, id`, dealID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get facts")
	}
	defer factRows.Close()
	for factRows.Next() {
		var payload string
		var createdAt time.Time
		if err := factRows.Scan(&payload, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fact")
		}
		var f model.Fact
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal fact")
		}
		f.CreatedAt = createdAt
		deal.Facts = append(deal.Facts, f)
	}
	if err := factRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate facts")
	}

	docRows, err := s.db.QueryContext(ctx,
		`SELECT document_id FROM deal_documents WHERE deal_id = ? ORDER BY position`, dealID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get documents")
	}
	defer docRows.Close()
	for docRows.Next() {
		var docID string
		if err := docRows.Scan(&docID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		deal.Documents = append(deal.Documents, docID)
	}
	return deal, eris.Wrap(docRows.Err(), "sqlite: iterate documents")
}

func (s *SQLiteStore) ListDeals(ctx context.Context, limit, offset int) ([]model.DealSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.updated_at,
		   (SELECT COUNT(*) FROM field_values fv WHERE fv.deal_id = d.id),
		   (SELECT COUNT(*) FROM facts f WHERE f.deal_id = d.id),
		   (SELECT COUNT(*) FROM deal_documents dd WHERE dd.deal_id = d.id)
		 FROM deals d ORDER BY d.updated_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list deals")
	}
	defer rows.Close()

	var out []model.DealSummary
	for rows.Next() {
		var s model.DealSummary
		if err := rows.Scan(&s.ID, &s.UpdatedAt, &s.Fields, &s.Facts, &s.Documents); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan deal summary")
		}
		out = append(out, s)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate deals")
}

func (s *SQLiteStore) GetProcessingRecord(ctx context.Context, dealID, documentID string) (*model.ProcessingRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT deal_id, document_id, content_hash, processed_at, artifacts
		 FROM processing_records WHERE deal_id = ? AND document_id = ?`,
		dealID, documentID,
	)
	r, err := scanProcessingRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get processing record")
	}
	return r, nil
}

func (s *SQLiteStore) ListProcessingRecords(ctx context.Context, dealID string) ([]model.ProcessingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT deal_id, document_id, content_hash, processed_at, artifacts
		 FROM processing_records WHERE deal_id = ? ORDER BY document_id`,
		dealID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list processing records")
	}
	defer rows.Close()

	var out []model.ProcessingRecord
	for rows.Next() {
		r, err := scanProcessingRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan processing record")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate processing records")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProcessingRecord(row scannable) (*model.ProcessingRecord, error) {
	var r model.ProcessingRecord
	var artifacts string
	if err := row.Scan(&r.DealID, &r.DocumentID, &r.ContentHash, &r.ProcessedAt, &artifacts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(artifacts), &r.Artifacts); err != nil {
		return nil, eris.Wrap(err, "unmarshal artifacts")
	}
	return &r, nil
}
