// Package pipeline turns raw deal documents into a validated envelope:
// classify, gate, extract, ground, resolve, validate, commit. A rejected
// envelope commits nothing; the deal is only mutated by a successful run.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/deal-intake/internal/config"
	"github.com/sells-group/deal-intake/internal/model"
	"github.com/sells-group/deal-intake/internal/resolve"
	"github.com/sells-group/deal-intake/internal/store"
	"github.com/sells-group/deal-intake/internal/validate"
)

// Options tunes one intake run.
type Options struct {
	// Force reprocesses documents whose content hash is unchanged.
	Force bool
	// TypeOverrides maps document ID to a caller-declared type that skips
	// classification.
	TypeOverrides map[string]model.DocType
}

// Result is the outcome of one intake run. Envelope is nil when every
// document in the batch was skipped.
type Result struct {
	RunID    string          `json:"run_id"`
	Envelope *model.Envelope `json:"envelope,omitempty"`
	Skipped  []string        `json:"skipped,omitempty"` // documents skipped as already processed
	Notices  []string        `json:"notices,omitempty"`
}

// Pipeline coordinates document intake for deals. Commits to the same
// deal are serialized; different deals proceed in parallel.
type Pipeline struct {
	store         store.Store
	precedence    *resolve.Config
	maxConcurrent int
	shardSize     int

	mu        sync.Mutex
	dealLocks map[string]*sync.Mutex
}

// New builds a Pipeline. A nil precedence config selects the built-in
// tables.
func New(st store.Store, precedence *resolve.Config, cfg config.PipelineConfig) *Pipeline {
	if precedence == nil {
		precedence = resolve.Default()
	}
	maxConcurrent := cfg.MaxConcurrentDocs
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	shardSize := cfg.ShardSize
	if shardSize <= 0 {
		shardSize = 32
	}
	return &Pipeline{
		store:         st,
		precedence:    precedence,
		maxConcurrent: maxConcurrent,
		shardSize:     shardSize,
		dealLocks:     make(map[string]*sync.Mutex),
	}
}

func (p *Pipeline) dealLock(dealID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.dealLocks[dealID]
	if !ok {
		l = &sync.Mutex{}
		p.dealLocks[dealID] = l
	}
	return l
}

// docResult is one document's classification and grounded extraction.
type docResult struct {
	doc      model.Document
	cls      model.Classification
	fastPath bool
	facts    []model.Fact
}

// ProcessBatch runs the full intake pipeline over a batch of documents
// for one deal. Documents already in the ledger with an unchanged content
// hash are skipped unless Force is set; reprocessed documents replace
// their earlier facts rather than duplicating them.
func (p *Pipeline) ProcessBatch(ctx context.Context, dealID string, docs []model.Document, opts Options) (*Result, error) {
	if dealID == "" {
		return nil, eris.New("pipeline: deal ID is required")
	}

	lock := p.dealLock(dealID)
	lock.Lock()
	defer lock.Unlock()

	result := &Result{RunID: uuid.NewString()}

	// Within-batch dedupe by document identity: first occurrence wins.
	seen := make(map[string]bool, len(docs))
	var batch []model.Document
	for _, d := range docs {
		if seen[d.ID] {
			result.Notices = append(result.Notices, "duplicate document in batch: "+d.ID)
			continue
		}
		seen[d.ID] = true
		d.DealID = dealID
		if d.ContentHash == "" {
			d.ContentHash = model.ContentHash(d.Text)
		}
		if dt, ok := opts.TypeOverrides[d.ID]; ok {
			d.DeclaredType = dt
		}
		batch = append(batch, d)
	}

	prior, err := p.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load deal")
	}

	// Ledger check: unchanged documents are skipped unless forced.
	var pending []model.Document
	for _, d := range batch {
		rec, err := p.store.GetProcessingRecord(ctx, dealID, d.ID)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: check ledger")
		}
		if rec != nil && rec.ContentHash == d.ContentHash && !opts.Force {
			result.Skipped = append(result.Skipped, d.ID)
			continue
		}
		if rec != nil && rec.ContentHash != d.ContentHash {
			result.Notices = append(result.Notices, "document content changed, reprocessing: "+d.ID)
		}
		pending = append(pending, d)
	}
	if len(pending) == 0 {
		zap.L().Info("pipeline: nothing to process",
			zap.String("run", result.RunID),
			zap.String("deal", dealID),
			zap.Int("skipped", len(result.Skipped)),
		)
		return result, nil
	}

	results, err := p.processDocuments(ctx, pending)
	if err != nil {
		return nil, err
	}

	// Low-confidence classifications are surfaced so the caller can supply
	// a type override and re-run; they never fail the batch.
	for _, r := range results {
		if r.cls.Ambiguous() {
			result.Notices = append(result.Notices,
				"ambiguous document type, treated as "+string(r.cls.Type)+": "+r.doc.ID)
		}
	}

	docTexts := make(map[string]string, len(results))
	for _, r := range results {
		docTexts[r.doc.ID] = r.doc.Text
	}

	// Grounding filter before anything reaches the envelope.
	for i := range results {
		results[i].facts = GroundFacts(results[i].facts, docTexts)
	}

	env := p.buildEnvelope(dealID, prior, results)
	env.SummaryBullets = SummaryBullets(env)

	if err := validate.Envelope(env, docTexts); err != nil {
		zap.L().Warn("pipeline: envelope rejected",
			zap.String("deal", dealID),
			zap.Error(err),
		)
		return nil, eris.Wrap(err, "pipeline: validate envelope")
	}

	commit := store.Commit{Envelope: env}
	// A prior field absent from this resolution lost its only support to a
	// reprocessed document; its stored value is removed with the facts that
	// backed it. Fields supported by untouched documents re-resolve above
	// and are never removed.
	if prior != nil {
		for field := range prior.Fields {
			if _, ok := env.FieldUpdates[field]; !ok {
				commit.RemoveFields = append(commit.RemoveFields, field)
			}
		}
		sort.Strings(commit.RemoveFields)
	}
	now := time.Now().UTC()
	for _, r := range results {
		commit.DocumentIDs = append(commit.DocumentIDs, r.doc.ID)
		commit.Records = append(commit.Records, model.ProcessingRecord{
			DealID:      dealID,
			DocumentID:  r.doc.ID,
			ContentHash: r.doc.ContentHash,
			ProcessedAt: now,
			Artifacts:   artifactCounts(r),
		})
	}
	if err := p.store.CommitEnvelope(ctx, commit); err != nil {
		return nil, eris.Wrap(err, "pipeline: commit envelope")
	}

	zap.L().Info("pipeline: batch committed",
		zap.String("run", result.RunID),
		zap.String("deal", dealID),
		zap.Int("documents", len(results)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("facts", env.FactCount()),
		zap.Int("fields", len(env.FieldUpdates)),
	)

	result.Envelope = env
	return result, nil
}

// processDocuments classifies every pending document, then extracts them
// shard by shard with bounded concurrency. Shards group documents of the
// same classified type so a large mixed batch degrades predictably.
func (p *Pipeline) processDocuments(ctx context.Context, pending []model.Document) ([]docResult, error) {
	results := make([]docResult, len(pending))
	for i, d := range pending {
		results[i] = docResult{doc: d, cls: Classify(d)}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].cls.Type != results[j].cls.Type {
			return results[i].cls.Type < results[j].cls.Type
		}
		return results[i].doc.ID < results[j].doc.ID
	})

	for start := 0; start < len(results); start += p.shardSize {
		end := start + p.shardSize
		if end > len(results) {
			end = len(results)
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.maxConcurrent)
		for i := start; i < end; i++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				r := &results[i]
				r.fastPath = ShouldFastPath(r.doc, r.cls)
				r.facts = Extract(r.doc, r.cls, r.fastPath)
				zap.L().Debug("pipeline: document extracted",
					zap.String("document", r.doc.ID),
					zap.String("type", string(r.cls.Type)),
					zap.Bool("fast_path", r.fastPath),
					zap.Int("facts", len(r.facts)),
				)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, eris.Wrap(err, "pipeline: extract shard")
		}
	}
	return results, nil
}

// buildEnvelope partitions grounded facts into envelope categories and
// resolves deal-level fields. Field observations from earlier runs are
// kept unless this run reprocessed the document that produced them.
func (p *Pipeline) buildEnvelope(dealID string, prior *model.Deal, results []docResult) *model.Envelope {
	env := &model.Envelope{
		DealID:        dealID,
		SchemaVersion: model.SchemaVersion,
		FieldUpdates:  map[string]model.FieldValue{},
	}

	reprocessed := make(map[string]bool, len(results))
	for _, r := range results {
		reprocessed[r.doc.ID] = true
		env.DocumentsProcessed = append(env.DocumentsProcessed, r.doc.ID)
	}

	byField := make(map[string][]model.Observation)
	if prior != nil {
		for field, fv := range prior.Fields {
			for _, o := range fv.Observations {
				if !reprocessed[o.DocumentID] {
					byField[field] = append(byField[field], o)
				}
			}
		}
	}

	for _, r := range results {
		for _, f := range r.facts {
			switch f.Kind {
			case model.FactKindStakeholder:
				env.Stakeholders = append(env.Stakeholders, f)
			case model.FactKindPainPoint:
				env.PainPoints = append(env.PainPoints, f)
			case model.FactKindMetric:
				env.Metrics = append(env.Metrics, f)
			case model.FactKindEvent:
				env.Events = append(env.Events, f)
			case model.FactKindFieldUpdate:
				fu := f.FieldUpdate
				byField[fu.Field] = append(byField[fu.Field], model.Observation{
					SourceType: r.cls.Type,
					DocumentID: f.PrimaryDocumentID(),
					RawValue:   fu.RawValue,
					Normalized: fu.Normalized,
					Snippet:    f.Provenance[0].Snippet,
				})
			}
		}
	}

	env.FieldUpdates = resolve.ResolveAll(byField, p.precedence)
	return env
}

func artifactCounts(r docResult) model.ArtifactCounts {
	c := model.ArtifactCounts{FastPath: r.fastPath, DocType: r.cls.Type}
	for _, f := range r.facts {
		if f.Kind == model.FactKindFieldUpdate {
			c.FieldUpdates++
		} else {
			c.Facts++
		}
	}
	return c
}
