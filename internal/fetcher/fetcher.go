// Package fetcher loads deal documents from local files, HTTP sources,
// and Salesforce. Plain text formats are kept verbatim; tabular formats
// (CSV, XLSX) are flattened into labeled key-value text so the classifier
// and extractors see one uniform representation.
package fetcher

import (
	"context"

	"github.com/sells-group/deal-intake/internal/model"
)

// Source yields documents for a deal.
type Source interface {
	Fetch(ctx context.Context, dealID string) ([]model.Document, error)
}
