package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-intake/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock implements it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS deals (
	id         TEXT PRIMARY KEY,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS field_values (
	deal_id    TEXT NOT NULL REFERENCES deals(id),
	field      TEXT NOT NULL,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (deal_id, field)
);

CREATE TABLE IF NOT EXISTS facts (
	id          TEXT NOT NULL,
	deal_id     TEXT NOT NULL REFERENCES deals(id),
	document_id TEXT NOT NULL,
	kind        TEXT NOT NULL,
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (deal_id, id)
);

CREATE TABLE IF NOT EXISTS processing_records (
	deal_id      TEXT NOT NULL REFERENCES deals(id),
	document_id  TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL,
	artifacts    JSONB NOT NULL,
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CommitEnvelope writes the whole commit in one transaction so a failed
// commit leaves the deal untouched.
func (s *PostgresStore) CommitEnvelope(ctx context.Context, c Commit) error {
	env := c.Envelope
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin commit")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO deals (id, updated_at) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		env.DealID, now,
	); err != nil {
		return eris.Wrap(err, "postgres: upsert deal")
	}

	for field, fv := range env.FieldUpdates {
		fvJSON, err := json.Marshal(fv)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal field %s", field)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO field_values (deal_id, field, value, updated_at) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (deal_id, field) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			env.DealID, field, fvJSON, now,
		); err != nil {
			return eris.Wrapf(err, "postgres: upsert field %s", field)
		}
	}

	if len(c.RemoveFields) > 0 {
		if _, err := tx.Exec(ctx,
			`DELETE FROM field_values WHERE deal_id = $1 AND field = ANY($2)`,
			env.DealID, c.RemoveFields,
		); err != nil {
			return eris.Wrap(err, "postgres: remove fields")
		}
	}

	if len(c.DocumentIDs) > 0 {
		if _, err := tx.Exec(ctx,
			`DELETE FROM facts WHERE deal_id = $1 AND document_id = ANY($2)`,
			env.DealID, c.DocumentIDs,
		); err != nil {
			return eris.Wrap(err, "postgres: replace facts")
		}
	}

	for _, f := range env.AllFacts() {
		payload, err := json.Marshal(f)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal fact %s", f.ID)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO facts (id, deal_id, document_id, kind, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (deal_id, id) DO UPDATE SET payload = EXCLUDED.payload, created_at = EXCLUDED.created_at`,
			f.ID, env.DealID, f.PrimaryDocumentID(), string(f.Kind), payload, now,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert fact %s", f.ID)
		}
	}

	for _, r := range c.Records {
		artifacts, err := json.Marshal(r.Artifacts)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal artifacts")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO processing_records (deal_id, document_id, content_hash, processed_at, artifacts) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (deal_id, document_id) DO UPDATE SET content_hash = EXCLUDED.content_hash,
			   processed_at = EXCLUDED.processed_at, artifacts = EXCLUDED.artifacts`,
			r.DealID, r.DocumentID, r.ContentHash, r.ProcessedAt.UTC(), artifacts,
		); err != nil {
			return eris.Wrapf(err, "postgres: upsert processing record %s", r.DocumentID)
		}
	}

	for _, docID := range c.DocumentIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO deal_documents (deal_id, document_id, position)
			 VALUES ($1, $2, COALESCE((SELECT MAX(position) + 1 FROM deal_documents WHERE deal_id = $1), 0))
			 ON CONFLICT (deal_id, document_id) DO NOTHING`,
			env.DealID, docID,
		); err != nil {
			return eris.Wrapf(err, "postgres: record document %s", docID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

func (s *PostgresStore) GetDeal(ctx context.Context, dealID string) (*model.Deal, error) {
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT updated_at FROM deals WHERE id = $1`, dealID,
	).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get deal")
	}

	deal := &model.Deal{
		ID:        dealID,
		Fields:    make(map[string]model.FieldValue),
		UpdatedAt: updatedAt,
	}

	rows, err := s.pool.Query(ctx,
		`SELECT field, value FROM field_values WHERE deal_id = $1 ORDER BY field`, dealID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get fields")
	}
	defer rows.Close()
	for rows.Next() {
		var field string
		var fvJSON []byte
		if err := rows.Scan(&field, &fvJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan field")
		}
		var fv model.FieldValue
		if err := json.Unmarshal(fvJSON, &fv); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal field %s", field)
		}
		deal.Fields[field] = fv
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate fields")
	}

	factRows, err := s.pool.Query(ctx,
		`SELECT payload, created_at FROM facts WHERE deal_id = $1 ORDER BY document_id, id`, dealID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get facts")
	}
	defer factRows.Close()
	for factRows.Next() {
		var payload []byte
		var createdAt time.Time
		if err := factRows.Scan(&payload, &createdAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fact")
		}
		var f model.Fact
		if err := json.Unmarshal(payload, &f); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal fact")
		}
		f.CreatedAt = createdAt
		deal.Facts = append(deal.Facts, f)
	}
	if err := factRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate facts")
	}

	docRows, err := s.pool.Query(ctx,
		`SELECT document_id FROM deal_documents WHERE deal_id = $1 ORDER BY position`, dealID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get documents")
	}
	defer docRows.Close()
	for docRows.Next() {
		var docID string
		if err := docRows.Scan(&docID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		deal.Documents = append(deal.Documents, docID)
	}
	return deal, eris.Wrap(docRows.Err(), "postgres: iterate documents")
}

func (s *PostgresStore) ListDeals(ctx context.Context, limit, offset int) ([]model.DealSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT d.id, d.updated_at,
		   (SELECT COUNT(*) FROM field_values fv WHERE fv.deal_id = d.id),
		   (SELECT COUNT(*) FROM facts f WHERE f.deal_id = d.id),
		   (SELECT COUNT(*) FROM deal_documents dd WHERE dd.deal_id = d.id)
		 FROM deals d ORDER BY d.updated_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list deals")
	}
	defer rows.Close()

	var out []model.DealSummary
	for rows.Next() {
		var ds model.DealSummary
		if err := rows.Scan(&ds.ID, &ds.UpdatedAt, &ds.Fields, &ds.Facts, &ds.Documents); err != nil {
			return nil, eris.Wrap(err, "postgres: scan deal summary")
		}
		out = append(out, ds)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate deals")
}

func (s *PostgresStore) GetProcessingRecord(ctx context.Context, dealID, documentID string) (*model.ProcessingRecord, error) {
	var r model.ProcessingRecord
	var artifacts []byte
	err := s.pool.QueryRow(ctx,
		`SELECT deal_id, document_id, content_hash, processed_at, artifacts
		 FROM processing_records WHERE deal_id = $1 AND document_id = $2`,
		dealID, documentID,
	).Scan(&r.DealID, &r.DocumentID, &r.ContentHash, &r.ProcessedAt, &artifacts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get processing record")
	}
	if err := json.Unmarshal(artifacts, &r.Artifacts); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal artifacts")
	}
	return &r, nil
}

func (s *PostgresStore) ListProcessingRecords(ctx context.Context, dealID string) ([]model.ProcessingRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT deal_id, document_id, content_hash, processed_at, artifacts
		 FROM processing_records WHERE deal_id = $1 ORDER BY document_id`,
		dealID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list processing records")
	}
	defer rows.Close()

	var out []model.ProcessingRecord
	for rows.Next() {
		var r model.ProcessingRecord
		var artifacts []byte
		if err := rows.Scan(&r.DealID, &r.DocumentID, &r.ContentHash, &r.ProcessedAt, &artifacts); err != nil {
			return nil, eris.Wrap(err, "postgres: scan processing record")
		}
		if err := json.Unmarshal(artifacts, &r.Artifacts); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal artifacts")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate processing records")
}
