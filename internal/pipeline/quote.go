package pipeline

import (
	"regexp"
	"strings"

	"github.com/sells-group/deal-intake/internal/model"
)

var (
	preparedForRe = regexp.MustCompile(`(?im)^\s*(?:prepared for|attn|attention|bill to)[:.]?\s+([A-Z][A-Za-z.'-]*(?:\s[A-Z][A-Za-z.'-]*){0,2})\s*$`)
	preparedByRe  = regexp.MustCompile(`(?im)^\s*(?:prepared by|from)[:.]?\s+([A-Z][A-Za-z.'-]*(?:\s[A-Z][A-Za-z.'-]*){0,2})\s*$`)
	totalLineRe   = regexp.MustCompile(`(?im)^.*\btotal\b.*$`)
	lineItemRe    = regexp.MustCompile(`(?im)^.*\b(?:\d[\d,]*)\s*(?:x|seats?|licenses?|units?)\b.*\$\s?\d.*$`)
	validUntilRe  = regexp.MustCompile(`(?im)^.*(?:valid (?:until|through)|expires?(?: on)?)\b.*$`)
)

// extractQuote pulls commercial terms out of a price quote: the quoted
// total as an acv assertion, line items as metrics, recipients and
// authors as stakeholders, and validity windows as events.
func extractQuote(doc model.Document) []model.Fact {
	var facts []model.Fact

	for _, m := range preparedForRe.FindAllStringSubmatch(doc.Text, -1) {
		sh := model.Stakeholder{Name: m[1], Role: model.RoleUnknown}
		facts = append(facts, stakeholderFact(doc, sh, strings.TrimSpace(m[0])))
	}
	for _, m := range preparedByRe.FindAllStringSubmatch(doc.Text, -1) {
		sh := model.Stakeholder{Name: m[1], Role: model.RoleUnknown}
		facts = append(facts, stakeholderFact(doc, sh, strings.TrimSpace(m[0])))
	}

	// The quoted total asserts deal value. Prefer an explicit total line;
	// otherwise no acv is asserted (no guessing from scattered figures).
	for _, line := range totalLineRe.FindAllString(doc.Text, -1) {
		if strings.Contains(strings.ToLower(line), "subtotal") {
			continue
		}
		if f, ok := moneyFieldFact(doc, model.FieldACV, strings.TrimSpace(line)); ok {
			facts = append(facts, f)
			break
		}
	}

	for _, line := range lineItemRe.FindAllString(doc.Text, -1) {
		facts = append(facts, metricFact(doc, strings.TrimSpace(line)))
	}

	for _, line := range validUntilRe.FindAllString(doc.Text, -1) {
		trimmed := strings.TrimSpace(line)
		raw := model.DateRe.FindString(trimmed)
		facts = append(facts, eventFact(doc, trimmed, raw))
	}

	return facts
}
