package pipeline

import (
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/deal-intake/internal/model"
)

// contentScanLines bounds the prefix of a document inspected during the
// stage-2 content scan.
const contentScanLines = 200

// pathKeywords maps directory-name keywords to document types. Matching is
// by path segment, lowercased.
var pathKeywords = map[string]model.DocType{
	"calls":          model.DocTypeTranscript,
	"call":           model.DocTypeTranscript,
	"transcripts":    model.DocTypeTranscript,
	"recordings":     model.DocTypeTranscript,
	"quotes":         model.DocTypeQuote,
	"proposals":      model.DocTypeQuote,
	"pricing":        model.DocTypeQuote,
	"emails":         model.DocTypeEmail,
	"inbox":          model.DocTypeEmail,
	"correspondence": model.DocTypeEmail,
	"crm":            model.DocTypeCRMExport,
	"salesforce":     model.DocTypeCRMExport,
	"sfdc":           model.DocTypeCRMExport,
	"exports":        model.DocTypeCRMExport,
}

// nameKeywords maps filename substrings to document types. Ordered so
// that matching is deterministic when several keywords appear.
var nameKeywords = []struct {
	keyword string
	docType model.DocType
}{
	{"transcript", model.DocTypeTranscript},
	{"gong", model.DocTypeTranscript},
	{"zoom", model.DocTypeTranscript},
	{"call", model.DocTypeTranscript},
	{"quote", model.DocTypeQuote},
	{"proposal", model.DocTypeQuote},
	{"order_form", model.DocTypeQuote},
	{".eml", model.DocTypeEmail},
	{"email", model.DocTypeEmail},
	{"thread", model.DocTypeEmail},
	{"crm", model.DocTypeCRMExport},
	{"salesforce", model.DocTypeCRMExport},
	{"sfdc", model.DocTypeCRMExport},
	{"opportunity", model.DocTypeCRMExport},
	{"export", model.DocTypeCRMExport},
}

// Content indicator patterns per type, counted over the scanned prefix.
var (
	transcriptIndicatorRe = regexp.MustCompile(`(?m)^\s*(?:[A-Z][A-Za-z.'-]*(?:\s[A-Z][A-Za-z.'-]*){0,2}|Speaker\s?\d+)\s*(?:\([^)]{1,40}\))?:\s|\[?\d{1,2}:\d{2}(?::\d{2})?\]?`)
	quoteIndicatorRe      = regexp.MustCompile(`(?im)\$\s?\d|^\s*(?:qty|quantity|unit price|subtotal|total|line item|sku|discount)\b|valid (?:until|through)`)
	emailIndicatorRe      = regexp.MustCompile(`(?im)^(?:from|to|cc|subject|sent|date):\s|^\s*(?:hi|hello|dear)\s+[A-Z]|^\s*(?:best|regards|thanks|cheers|sincerely)[,.!]?\s*$`)
	crmIndicatorRe        = regexp.MustCompile(`(?im)^\s*(?:stage|acv|amount|close date|owner|account(?: name)?|opportunity(?: name)?|economic buyer|champion|competition|next step|forecast category)\s*[:=]`)
)

// contentThresholds is the minimum indicator count for a type to win the
// content scan. Transcripts need more hits because speaker-turn markers
// also match stray capitalized labels.
var contentThresholds = map[model.DocType]int{
	model.DocTypeTranscript: 4,
	model.DocTypeQuote:      3,
	model.DocTypeEmail:      2,
	model.DocTypeCRMExport:  2,
}

// Classify assigns a document type and confidence. Stage 1 inspects the
// origin path and filename; when both independently agree the result is
// high confidence and the content scan is skipped. Stage 2 counts
// category-specific indicator patterns over a bounded prefix. Content
// signals outrank path signals: the classifier trusts what the document
// contains over where it was saved.
func Classify(doc model.Document) model.Classification {
	if doc.DeclaredType != "" {
		return model.Classification{
			Type:       doc.DeclaredType,
			Confidence: model.ConfidenceHigh,
		}
	}

	signals := model.ClassificationSignals{}

	dir := strings.ToLower(path.Dir(strings.ReplaceAll(doc.ID, "\\", "/")))
	base := strings.ToLower(path.Base(strings.ReplaceAll(doc.ID, "\\", "/")))

	for _, seg := range strings.Split(dir, "/") {
		if dt, ok := pathKeywords[seg]; ok {
			signals.PathType = dt
			break
		}
	}
	for _, nk := range nameKeywords {
		if strings.Contains(base, nk.keyword) {
			signals.NameType = nk.docType
			break
		}
	}

	// Stage 1: path and filename independently agree.
	if signals.PathType != "" && signals.PathType == signals.NameType {
		return model.Classification{
			Type:       signals.PathType,
			Confidence: model.ConfidenceHigh,
			Signals:    signals,
		}
	}

	// Stage 2: bounded content scan.
	prefix := scanPrefix(doc.Text, contentScanLines)
	hits := map[model.DocType]int{
		model.DocTypeTranscript: len(transcriptIndicatorRe.FindAllString(prefix, -1)),
		model.DocTypeQuote:      len(quoteIndicatorRe.FindAllString(prefix, -1)),
		model.DocTypeEmail:      len(emailIndicatorRe.FindAllString(prefix, -1)),
		model.DocTypeCRMExport:  len(crmIndicatorRe.FindAllString(prefix, -1)),
	}
	signals.ContentHits = hits

	winner, winnerHits, tie := contentWinner(hits)
	if winner != "" && !tie {
		signals.ContentType = winner
		pathCandidate := signals.PathType
		if pathCandidate == "" {
			pathCandidate = signals.NameType
		}
		if pathCandidate != "" && pathCandidate != winner {
			// Content disagrees with where the file was saved; content wins.
			signals.ContentOverrode = true
			zap.L().Debug("classify: content signal overrode path signal",
				zap.String("document", doc.ID),
				zap.String("path_type", string(pathCandidate)),
				zap.String("content_type", string(winner)),
			)
		}
		conf := model.ConfidenceMedium
		if winnerHits >= 2*contentThresholds[winner] {
			conf = model.ConfidenceHigh
		}
		return model.Classification{
			Type:       winner,
			Confidence: conf,
			Signals:    signals,
		}
	}

	// A lone path or filename signal with no content confirmation is a
	// medium-confidence result.
	if signals.PathType != "" || signals.NameType != "" {
		dt := signals.PathType
		if dt == "" {
			dt = signals.NameType
		}
		return model.Classification{
			Type:       dt,
			Confidence: model.ConfidenceMedium,
			Signals:    signals,
		}
	}

	return model.Classification{
		Type:       model.DocTypeGeneric,
		Confidence: model.ConfidenceLow,
		Signals:    signals,
	}
}

// contentWinner returns the type whose indicator count meets its threshold
// with the strictly highest count. tie is true when two types meet their
// thresholds with equal counts.
func contentWinner(hits map[model.DocType]int) (winner model.DocType, count int, tie bool) {
	for _, dt := range model.AllDocTypes() {
		n, ok := hits[dt]
		if !ok || n < contentThresholds[dt] {
			continue
		}
		switch {
		case n > count:
			winner, count, tie = dt, n, false
		case n == count && count > 0:
			tie = true
		}
	}
	if tie {
		return "", 0, true
	}
	return winner, count, false
}

func scanPrefix(text string, maxLines int) string {
	n := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			n++
			if n >= maxLines {
				return text[:i]
			}
		}
	}
	return text
}
