package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-intake/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS deals`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDeal_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT updated_at FROM deals`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	deal, err := s.GetDeal(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, deal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDeal(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	fv := model.FieldValue{Field: model.FieldACV, Value: 144000.0, RawValue: "$144,000"}
	fvJSON, err := json.Marshal(fv)
	require.NoError(t, err)

	fact := model.Fact{
		ID:          "f1",
		Kind:        model.FactKindStakeholder,
		Stakeholder: &model.Stakeholder{Name: "Sarah Chen", Role: model.RoleChampion},
		Provenance:  []model.Provenance{{DocumentID: "doc-1", Snippet: "Sarah Chen:"}},
	}
	payload, err := json.Marshal(fact)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT updated_at FROM deals`).
		WithArgs("deal-1").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectQuery(`SELECT field, value FROM field_values`).
		WithArgs("deal-1").
		WillReturnRows(pgxmock.NewRows([]string{"field", "value"}).AddRow(model.FieldACV, fvJSON))
	mock.ExpectQuery(`SELECT payload, created_at FROM facts`).
		WithArgs("deal-1").
		WillReturnRows(pgxmock.NewRows([]string{"payload", "created_at"}).AddRow(payload, now))
	mock.ExpectQuery(`SELECT document_id FROM deal_documents`).
		WithArgs("deal-1").
		WillReturnRows(pgxmock.NewRows([]string{"document_id"}).AddRow("doc-1"))

	deal, err := s.GetDeal(context.Background(), "deal-1")
	require.NoError(t, err)
	require.NotNil(t, deal)
	assert.Equal(t, 144000.0, deal.Fields[model.FieldACV].Value)
	require.Len(t, deal.Facts, 1)
	assert.Equal(t, "Sarah Chen", deal.Facts[0].Stakeholder.Name)
	assert.Equal(t, []string{"doc-1"}, deal.Documents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitEnvelope(t *testing.T) {
	s, mock := newMockStore(t)
	c := sampleCommit("deal-1")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO deals`).
		WithArgs("deal-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO field_values`).
		WithArgs("deal-1", model.FieldACV, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM facts`).
		WithArgs("deal-1", c.DocumentIDs).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO facts`).
		WithArgs("fact-1", "deal-1", "doc-1", string(model.FactKindStakeholder), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO processing_records`).
		WithArgs("deal-1", "doc-1", c.Records[0].ContentHash, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO deal_documents`).
		WithArgs("deal-1", "doc-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, s.CommitEnvelope(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitEnvelope_RemovesFields(t *testing.T) {
	s, mock := newMockStore(t)
	c := sampleCommit("deal-1")
	c.RemoveFields = []string{"next_step", "stage"}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO deals`).
		WithArgs("deal-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO field_values`).
		WithArgs("deal-1", model.FieldACV, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM field_values`).
		WithArgs("deal-1", c.RemoveFields).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM facts`).
		WithArgs("deal-1", c.DocumentIDs).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO facts`).
		WithArgs("fact-1", "deal-1", "doc-1", string(model.FactKindStakeholder), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO processing_records`).
		WithArgs("deal-1", "doc-1", c.Records[0].ContentHash, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO deal_documents`).
		WithArgs("deal-1", "doc-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, s.CommitEnvelope(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitEnvelope_RollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	c := sampleCommit("deal-1")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO deals`).
		WithArgs("deal-1", pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	assert.Error(t, s.CommitEnvelope(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProcessingRecord(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	artifacts, err := json.Marshal(model.ArtifactCounts{Facts: 2, FieldUpdates: 1, DocType: model.DocTypeQuote})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT deal_id, document_id, content_hash, processed_at, artifacts`).
		WithArgs("deal-1", "doc-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"deal_id", "document_id", "content_hash", "processed_at", "artifacts"},
		).AddRow("deal-1", "doc-1", "abc123", now, artifacts))

	rec, err := s.GetProcessingRecord(context.Background(), "deal-1", "doc-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "abc123", rec.ContentHash)
	assert.Equal(t, 2, rec.Artifacts.Facts)
	assert.Equal(t, model.DocTypeQuote, rec.Artifacts.DocType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProcessingRecord_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT deal_id, document_id, content_hash, processed_at, artifacts`).
		WithArgs("deal-1", "doc-9").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetProcessingRecord(context.Background(), "deal-1", "doc-9")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDeals(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT d.id, d.updated_at`).
		WithArgs(100, 0).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "updated_at", "fields", "facts", "documents"},
		).AddRow("deal-1", now, 3, 7, 2))

	deals, err := s.ListDeals(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, "deal-1", deals[0].ID)
	assert.Equal(t, 7, deals[0].Facts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
