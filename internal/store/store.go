package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-intake/internal/model"
)

// Commit is the atomic unit written at the end of a pipeline run: the
// envelope plus the processing-ledger entries for the documents that
// produced it. Facts previously derived from those documents are replaced,
// never duplicated. RemoveFields lists fields whose only support came from
// reprocessed documents and which this run did not re-derive; their stored
// values are deleted in the same transaction.
type Commit struct {
	Envelope     *model.Envelope
	DocumentIDs  []string
	Records      []model.ProcessingRecord
	RemoveFields []string
}

// Store defines persistence for deals, facts, resolved field values, and
// the idempotency ledger. CommitEnvelope must be all-or-nothing: a failed
// commit leaves the deal untouched.
type Store interface {
	GetDeal(ctx context.Context, dealID string) (*model.Deal, error)
	ListDeals(ctx context.Context, limit, offset int) ([]model.DealSummary, error)

	CommitEnvelope(ctx context.Context, c Commit) error

	GetProcessingRecord(ctx context.Context, dealID, documentID string) (*model.ProcessingRecord, error)
	ListProcessingRecords(ctx context.Context, dealID string) ([]model.ProcessingRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs a Store for the configured driver.
func Open(ctx context.Context, driver, databaseURL string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
