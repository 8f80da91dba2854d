package pipeline

import (
	"regexp"
	"strings"

	"github.com/sells-group/deal-intake/internal/model"
)

// Extract pulls typed facts out of a document. fastPath routes the
// document to the minimal extractor, which pulls only explicitly stated
// facts and produces no per-type structured artifacts.
//
// Universal grounding rules hold for every extractor: each fact's snippet
// is a verbatim substring of the document; numbers, names, and dates are
// copied exactly as written; a category with no supporting text yields an
// empty fact list; speaker identity comes only from explicit labels.
func Extract(doc model.Document, cls model.Classification, fastPath bool) []model.Fact {
	if fastPath {
		return extractMinimal(doc)
	}
	switch cls.Type {
	case model.DocTypeTranscript:
		return extractTranscript(doc)
	case model.DocTypeQuote:
		return extractQuote(doc)
	case model.DocTypeEmail:
		return extractEmail(doc)
	case model.DocTypeCRMExport:
		return extractCRMExport(doc)
	default:
		return extractMinimal(doc)
	}
}

// factID derives a stable fact identifier from the deal, document, kind,
// and the fact's primary snippet, so repeated runs over unchanged input
// produce identical facts.
func factID(dealID, docID string, kind model.FactKind, key string) string {
	return model.ContentHash(dealID + "\x00" + docID + "\x00" + string(kind) + "\x00" + key)[:16]
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]\s+|\n`)

// sentences splits text into trimmed sentence-ish chunks. Each returned
// chunk is still a literal substring of the input.
func sentences(text string) []string {
	parts := sentenceSplitRe.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var painIndicators = []string{
	"struggl", "pain", "problem", "frustrat", "challeng",
	"bottleneck", "manual", "error-prone", "too slow", "churn",
}

func hasPainIndicator(s string) bool {
	lower := strings.ToLower(s)
	for _, ind := range painIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}

var percentRe = regexp.MustCompile(`\b\d+(?:\.\d+)?%`)
var countMetricRe = regexp.MustCompile(`(?i)\b\d[\d,]*\s?(?:hours|days|weeks|users|seats|licenses|reps|tickets)\b`)

func isMetricSentence(s string) bool {
	return model.MoneyRe.MatchString(s) || percentRe.MatchString(s) || countMetricRe.MatchString(s)
}

// acvContext gates money mentions to ones plausibly about deal value.
var acvContextWords = []string{"budget", "price", "cost", "acv", "annual", "contract", "deal", "total"}

func hasACVContext(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range acvContextWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

var closeContextWords = []string{"close", "sign", "signature", "wrap up", "finalize", "by end of"}

func hasCloseContext(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range closeContextWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func painFact(doc model.Document, sentence string) model.Fact {
	return model.Fact{
		ID:        factID(doc.DealID, doc.ID, model.FactKindPainPoint, sentence),
		DealID:    doc.DealID,
		Kind:      model.FactKindPainPoint,
		PainPoint: &model.PainPoint{Description: sentence},
		Provenance: []model.Provenance{
			{DocumentID: doc.ID, Snippet: sentence},
		},
	}
}

func metricFact(doc model.Document, sentence string) model.Fact {
	m := model.Metric{Text: sentence}
	if v, ok := model.ParseMoney(sentence); ok {
		m.Normalized = &v
	}
	return model.Fact{
		ID:     factID(doc.DealID, doc.ID, model.FactKindMetric, sentence),
		DealID: doc.DealID,
		Kind:   model.FactKindMetric,
		Metric: &m,
		Provenance: []model.Provenance{
			{DocumentID: doc.ID, Snippet: sentence},
		},
	}
}

func eventFact(doc model.Document, description, rawDate string) model.Fact {
	ev := model.Event{Description: description, RawDate: rawDate}
	if rawDate != "" {
		if t, ambiguous, ok := model.ParseDate(rawDate); ok && !ambiguous {
			ev.Normalized = &t
		}
	}
	return model.Fact{
		ID:     factID(doc.DealID, doc.ID, model.FactKindEvent, description),
		DealID: doc.DealID,
		Kind:   model.FactKindEvent,
		Event:  &ev,
		Provenance: []model.Provenance{
			{DocumentID: doc.ID, Snippet: description},
		},
	}
}

func stakeholderFact(doc model.Document, sh model.Stakeholder, snippet string) model.Fact {
	if sh.Role == "" {
		sh.Role = model.RoleUnknown
	}
	return model.Fact{
		ID:          factID(doc.DealID, doc.ID, model.FactKindStakeholder, sh.Name),
		DealID:      doc.DealID,
		Kind:        model.FactKindStakeholder,
		Stakeholder: &sh,
		Provenance: []model.Provenance{
			{DocumentID: doc.ID, Snippet: snippet},
		},
	}
}

// moneyFieldFact builds an acv-style field update from a money mention.
// The snippet is the sentence containing the figure; RawValue is the
// literal matched amount.
func moneyFieldFact(doc model.Document, field, snippet string) (model.Fact, bool) {
	raw := model.MoneyRe.FindString(snippet)
	if raw == "" {
		return model.Fact{}, false
	}
	fu := model.FieldUpdate{Field: field, RawValue: raw, Confidence: model.ConfidenceMedium}
	if v, ok := model.ParseMoney(raw); ok {
		fu.Normalized = v
		fu.Confidence = model.ConfidenceHigh
	}
	return model.Fact{
		ID:          factID(doc.DealID, doc.ID, model.FactKindFieldUpdate, field+"\x00"+raw),
		DealID:      doc.DealID,
		Kind:        model.FactKindFieldUpdate,
		FieldUpdate: &fu,
		Provenance: []model.Provenance{
			{DocumentID: doc.ID, Snippet: snippet},
		},
	}, true
}

// dateFieldFact builds a close_date-style field update from a date
// mention. Ambiguous dates keep the raw text with a nil normalized value
// and low confidence rather than a guess.
func dateFieldFact(doc model.Document, field, snippet string) (model.Fact, bool) {
	raw := model.DateRe.FindString(snippet)
	if raw == "" {
		return model.Fact{}, false
	}
	fu := model.FieldUpdate{Field: field, RawValue: raw, Confidence: model.ConfidenceLow}
	if t, ambiguous, ok := model.ParseDate(raw); ok && !ambiguous {
		fu.Normalized = t
		fu.Confidence = model.ConfidenceHigh
	}
	return model.Fact{
		ID:          factID(doc.DealID, doc.ID, model.FactKindFieldUpdate, field+"\x00"+raw),
		DealID:      doc.DealID,
		Kind:        model.FactKindFieldUpdate,
		FieldUpdate: &fu,
		Provenance: []model.Provenance{
			{DocumentID: doc.ID, Snippet: snippet},
		},
	}, true
}

// textFieldFact builds a field update whose value is verbatim text (stage,
// champion, competition).
func textFieldFact(doc model.Document, field, value, snippet string, conf model.Confidence) model.Fact {
	return model.Fact{
		ID:     factID(doc.DealID, doc.ID, model.FactKindFieldUpdate, field+"\x00"+value),
		DealID: doc.DealID,
		Kind:   model.FactKindFieldUpdate,
		FieldUpdate: &model.FieldUpdate{
			Field:      field,
			RawValue:   value,
			Normalized: value,
			Confidence: conf,
		},
		Provenance: []model.Provenance{
			{DocumentID: doc.ID, Snippet: snippet},
		},
	}
}
