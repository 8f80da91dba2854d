package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-intake/internal/config"
	"github.com/sells-group/deal-intake/internal/model"
	"github.com/sells-group/deal-intake/internal/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "intake.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return New(st, nil, config.PipelineConfig{}), st
}

func conflictingBatch() []model.Document {
	return []model.Document{
		model.NewDocument("deal-1", "calls/demo.txt", sampleTranscript),
		model.NewDocument("deal-1", "quotes/q2041.txt", sampleQuote),
		model.NewDocument("deal-1", "crm/acme.txt", sampleCRM),
	}
}

// Three documents assert three different deal values. The CRM export wins
// by precedence, the disagreement drops confidence to medium, and every
// observation survives into the committed field.
func TestProcessBatch_ConflictingACV(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	res, err := p.ProcessBatch(ctx, "deal-1", conflictingBatch(), Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Envelope)
	assert.Empty(t, res.Skipped)
	assert.NotEmpty(t, res.RunID)

	acv, ok := res.Envelope.FieldUpdates[model.FieldACV]
	require.True(t, ok)
	assert.Equal(t, 144000.0, acv.Value)
	assert.Equal(t, "$144,000", acv.RawValue)
	assert.Equal(t, model.DocTypeCRMExport, acv.SourceType)
	assert.Equal(t, model.ConfidenceMedium, acv.Confidence)
	assert.Len(t, acv.Observations, 3)

	// Transcript and CRM agree on the close date.
	cd, ok := res.Envelope.FieldUpdates[model.FieldCloseDate]
	require.True(t, ok)
	assert.Equal(t, model.ConfidenceHigh, cd.Confidence)

	assert.NotEmpty(t, res.Envelope.Stakeholders)
	assert.NotEmpty(t, res.Envelope.SummaryBullets)

	deal, err := st.GetDeal(ctx, "deal-1")
	require.NoError(t, err)
	require.NotNil(t, deal)
	assert.Len(t, deal.Fields[model.FieldACV].Observations, 3)
	assert.Len(t, deal.Documents, 3)
}

func TestProcessBatch_FastPathShortNote(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	docs := []model.Document{model.NewDocument("deal-1", "note.txt", shortNote)}
	res, err := p.ProcessBatch(ctx, "deal-1", docs, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Envelope)

	assert.Len(t, res.Envelope.Stakeholders, 2)
	assert.Empty(t, res.Envelope.PainPoints)
	assert.Empty(t, res.Envelope.Events)

	acv := res.Envelope.FieldUpdates[model.FieldACV]
	assert.Equal(t, 80000.0, acv.Value)
	assert.Equal(t, model.ConfidenceHigh, acv.Confidence)

	rec, err := st.GetProcessingRecord(ctx, "deal-1", "note.txt")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Artifacts.FastPath)
}

func TestProcessBatch_SkipsUnchangedDocuments(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.ProcessBatch(ctx, "deal-1", conflictingBatch(), Options{})
	require.NoError(t, err)
	require.NotNil(t, first.Envelope)

	deal, err := st.GetDeal(ctx, "deal-1")
	require.NoError(t, err)
	factsBefore := len(deal.Facts)

	second, err := p.ProcessBatch(ctx, "deal-1", conflictingBatch(), Options{})
	require.NoError(t, err)
	assert.Nil(t, second.Envelope)
	assert.Len(t, second.Skipped, 3)

	deal, err = st.GetDeal(ctx, "deal-1")
	require.NoError(t, err)
	assert.Len(t, deal.Facts, factsBefore, "skipped run must not mutate the deal")

	records, err := st.ListProcessingRecords(ctx, "deal-1")
	require.NoError(t, err)
	assert.Len(t, records, 3, "one ledger entry per document")
}

func TestProcessBatch_ForceReprocessesWithoutDuplicating(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.ProcessBatch(ctx, "deal-1", conflictingBatch(), Options{})
	require.NoError(t, err)
	require.NotNil(t, first.Envelope)

	deal, err := st.GetDeal(ctx, "deal-1")
	require.NoError(t, err)
	factsBefore := len(deal.Facts)

	forced, err := p.ProcessBatch(ctx, "deal-1", conflictingBatch(), Options{Force: true})
	require.NoError(t, err)
	require.NotNil(t, forced.Envelope)
	assert.Empty(t, forced.Skipped)

	deal, err = st.GetDeal(ctx, "deal-1")
	require.NoError(t, err)
	assert.Len(t, deal.Facts, factsBefore, "reprocessing replaces facts, never appends")
	assert.Len(t, deal.Fields[model.FieldACV].Observations, 3)

	records, err := st.ListProcessingRecords(ctx, "deal-1")
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestProcessBatch_ChangedContentReprocesses(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	docs := []model.Document{model.NewDocument("deal-1", "crm/acme.txt", sampleCRM)}
	_, err := p.ProcessBatch(ctx, "deal-1", docs, Options{})
	require.NoError(t, err)

	changed := []model.Document{model.NewDocument("deal-1", "crm/acme.txt",
		"Opportunity Name: Acme Corp Expansion\nStage: Closed Won\nACV: $144,000\n")}
	res, err := p.ProcessBatch(ctx, "deal-1", changed, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Envelope)
	assert.Empty(t, res.Skipped)
	require.Len(t, res.Notices, 1)
	assert.Contains(t, res.Notices[0], "content changed")

	deal, err := st.GetDeal(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, "Closed Won", deal.Fields[model.FieldStage].RawValue)

	rec, err := st.GetProcessingRecord(ctx, "deal-1", "crm/acme.txt")
	require.NoError(t, err)
	assert.Equal(t, changed[0].ContentHash, rec.ContentHash)
}

// Observations from documents processed in earlier runs feed later
// resolutions unless the run reprocessed that document.
func TestProcessBatch_PriorObservationsCarryForward(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.ProcessBatch(ctx, "deal-1",
		[]model.Document{model.NewDocument("deal-1", "calls/demo.txt", sampleTranscript)}, Options{})
	require.NoError(t, err)

	res, err := p.ProcessBatch(ctx, "deal-1",
		[]model.Document{model.NewDocument("deal-1", "crm/acme.txt", sampleCRM)}, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Envelope)

	acv := res.Envelope.FieldUpdates[model.FieldACV]
	assert.Equal(t, 144000.0, acv.Value, "CRM outranks the earlier transcript")
	assert.Len(t, acv.Observations, 2, "transcript observation from the first run is retained")
}

// A CRM export that writes its amount as a bare number commits end to
// end; validation accepts the value against the unprefixed snippet.
func TestProcessBatch_PlainNumberAmountCommits(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	docs := []model.Document{model.NewDocument("deal-1", "crm/export.txt", "Amount: 144000\nStage: Proposal\n")}
	res, err := p.ProcessBatch(ctx, "deal-1", docs, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Envelope)

	acv, ok := res.Envelope.FieldUpdates[model.FieldACV]
	require.True(t, ok)
	assert.Equal(t, 144000.0, acv.Value)
	assert.Equal(t, "144000", acv.RawValue)

	deal, err := st.GetDeal(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, "144000", deal.Fields[model.FieldACV].RawValue)
}

// Documents with no path, name, or content signals classify generic at
// low confidence; the run reports them so a type override can be
// supplied on a re-run.
func TestProcessBatch_AmbiguousTypeNotice(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	docs := []model.Document{
		model.NewDocument("deal-1", "note.txt", shortNote),
		model.NewDocument("deal-1", "crm/acme.txt", sampleCRM),
	}
	res, err := p.ProcessBatch(ctx, "deal-1", docs, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Envelope)
	require.Len(t, res.Notices, 1)
	assert.Contains(t, res.Notices[0], "ambiguous document type")
	assert.Contains(t, res.Notices[0], "note.txt")

	// A declared type settles the classification and suppresses the notice.
	p2, _ := newTestPipeline(t)
	opts := Options{TypeOverrides: map[string]model.DocType{"note.txt": model.DocTypeGeneric}}
	res, err = p2.ProcessBatch(ctx, "deal-1",
		[]model.Document{model.NewDocument("deal-1", "note.txt", shortNote)}, opts)
	require.NoError(t, err)
	assert.Empty(t, res.Notices)
}

// Reprocessing a changed document drops stored fields whose only support
// came from its earlier version.
func TestProcessBatch_ReprocessRemovesOrphanedFields(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	docs := []model.Document{model.NewDocument("deal-1", "crm/acme.txt", sampleCRM)}
	_, err := p.ProcessBatch(ctx, "deal-1", docs, Options{})
	require.NoError(t, err)

	deal, err := st.GetDeal(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, "Negotiation", deal.Fields[model.FieldStage].RawValue)

	// The new version no longer states a stage.
	changed := []model.Document{model.NewDocument("deal-1", "crm/acme.txt",
		"Opportunity Name: Acme Corp Expansion\nACV: $144,000\nClose Date: 2026-09-30\n")}
	res, err := p.ProcessBatch(ctx, "deal-1", changed, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Envelope)

	deal, err = st.GetDeal(ctx, "deal-1")
	require.NoError(t, err)
	_, ok := deal.Fields[model.FieldStage]
	assert.False(t, ok, "stage lost its only source and must be removed")
	assert.Equal(t, "$144,000", deal.Fields[model.FieldACV].RawValue)
}

// A field supported by an untouched document survives reprocessing of a
// different document that used to assert it.
func TestProcessBatch_UntouchedSupportSurvivesReprocess(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.ProcessBatch(ctx, "deal-1",
		[]model.Document{model.NewDocument("deal-1", "calls/demo.txt", sampleTranscript)}, Options{})
	require.NoError(t, err)

	_, err = p.ProcessBatch(ctx, "deal-1",
		[]model.Document{model.NewDocument("deal-1", "crm/acme.txt", sampleCRM)}, Options{})
	require.NoError(t, err)

	// The reprocessed CRM export drops its close date; the transcript's
	// observation still stands.
	changed := []model.Document{model.NewDocument("deal-1", "crm/acme.txt",
		"Opportunity Name: Acme Corp Expansion\nStage: Closed Won\n")}
	_, err = p.ProcessBatch(ctx, "deal-1", changed, Options{})
	require.NoError(t, err)

	deal, err := st.GetDeal(ctx, "deal-1")
	require.NoError(t, err)
	require.Contains(t, deal.Fields, model.FieldCloseDate)
	assert.Equal(t, model.DocTypeTranscript, deal.Fields[model.FieldCloseDate].SourceType)
}

func TestProcessBatch_DuplicateInBatch(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	docs := []model.Document{
		model.NewDocument("deal-1", "crm/acme.txt", sampleCRM),
		model.NewDocument("deal-1", "crm/acme.txt", sampleCRM),
	}
	res, err := p.ProcessBatch(ctx, "deal-1", docs, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Envelope)
	assert.Len(t, res.Envelope.DocumentsProcessed, 1)
	require.Len(t, res.Notices, 1)
	assert.Contains(t, res.Notices[0], "duplicate document")
}

func TestProcessBatch_TypeOverride(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	// A CRM export saved under a misleading path still resolves as CRM
	// when the caller declares its type.
	docs := []model.Document{model.NewDocument("deal-1", "misc/dump.txt", sampleCRM)}
	opts := Options{TypeOverrides: map[string]model.DocType{"misc/dump.txt": model.DocTypeCRMExport}}
	res, err := p.ProcessBatch(ctx, "deal-1", docs, opts)
	require.NoError(t, err)
	require.NotNil(t, res.Envelope)
	assert.Equal(t, model.DocTypeCRMExport, res.Envelope.FieldUpdates[model.FieldACV].SourceType)

	rec, err := st.GetProcessingRecord(ctx, "deal-1", "misc/dump.txt")
	require.NoError(t, err)
	assert.Equal(t, model.DocTypeCRMExport, rec.Artifacts.DocType)
}

func TestProcessBatch_RequiresDealID(t *testing.T) {
	p, _ := newTestPipeline(t)
	_, err := p.ProcessBatch(context.Background(), "", nil, Options{})
	assert.Error(t, err)
}

func TestProcessBatch_EmptyBatch(t *testing.T) {
	p, _ := newTestPipeline(t)
	res, err := p.ProcessBatch(context.Background(), "deal-1", nil, Options{})
	require.NoError(t, err)
	assert.Nil(t, res.Envelope)
	assert.Empty(t, res.Skipped)
}
