package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-intake/internal/model"
	"github.com/sells-group/deal-intake/internal/resilience"
)

// maxDocumentBytes caps a fetched document body. Deal documents are
// text; anything larger is misdirected input.
const maxDocumentBytes = 10 << 20

// HTTPSource downloads documents from a list of URLs. The URL is the
// document ID, so path-based classification signals still apply.
// Transient failures (timeouts, 5xx, 429) are retried.
type HTTPSource struct {
	URLs   []string
	Client *http.Client
	Retry  resilience.Policy
}

func (s *HTTPSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// Fetch downloads every URL. A non-2xx status fails the whole fetch.
func (s *HTTPSource) Fetch(ctx context.Context, dealID string) ([]model.Document, error) {
	retry := s.Retry
	if retry.Attempts == 0 {
		retry = resilience.DefaultPolicy()
	}
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("http")
	}

	docs := make([]model.Document, 0, len(s.URLs))
	for _, url := range s.URLs {
		doc, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (model.Document, error) {
			return s.fetchOne(ctx, dealID, url)
		})
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *HTTPSource) fetchOne(ctx context.Context, dealID, url string) (model.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.Document{}, eris.Wrapf(err, "fetcher: build request %s", url)
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return model.Document{}, eris.Wrapf(err, "fetcher: fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := eris.Errorf("fetcher: fetch %s: status %d", url, resp.StatusCode)
		if resilience.RetryableStatus(resp.StatusCode) {
			return model.Document{}, resilience.Transient(err, resp.StatusCode)
		}
		return model.Document{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return model.Document{}, eris.Wrapf(err, "fetcher: read %s", url)
	}
	return model.NewDocument(dealID, url, string(body)), nil
}
