package pipeline

import (
	"regexp"
	"strings"

	"github.com/sells-group/deal-intake/internal/model"
)

// personNameRe matches a capitalized first-last name pair.
var personNameRe = regexp.MustCompile(`\b[A-Z][a-z]+\s[A-Z][a-z]+\b`)

// nameStopwords are capitalized words that start sentences or phrases and
// are not given names.
var nameStopwords = map[string]bool{
	"The": true, "This": true, "That": true, "Our": true, "Their": true,
	"Next": true, "Last": true, "Close": true, "Deal": true, "Annual": true,
	"Met": true, "Spoke": true, "Quick": true, "New": true, "Per": true,
	"January": true, "February": true, "March": true, "April": true,
	"May": true, "June": true, "July": true, "August": true,
	"September": true, "October": true, "November": true, "December": true,
}

// extractMinimal is the fast-path extractor for short unstructured notes.
// It pulls only explicitly stated facts: named people, monetary figures,
// and dated mentions. It deliberately produces no transcript-style
// artifacts (no speaker turns, no dialogue structure).
func extractMinimal(doc model.Document) []model.Fact {
	var facts []model.Fact

	seen := make(map[string]bool)
	for _, name := range personNameRe.FindAllString(doc.Text, -1) {
		first, _, _ := strings.Cut(name, " ")
		if nameStopwords[first] || seen[name] {
			continue
		}
		seen[name] = true
		facts = append(facts, stakeholderFact(doc, model.Stakeholder{
			Name: name,
			Role: model.RoleUnknown,
		}, name))
	}

	seenMoney := make(map[string]bool)
	for _, raw := range model.MoneyRe.FindAllString(doc.Text, -1) {
		if seenMoney[raw] {
			continue
		}
		seenMoney[raw] = true
		if f, ok := moneyFieldFact(doc, model.FieldACV, raw); ok {
			facts = append(facts, f)
		}
	}

	for _, s := range sentences(doc.Text) {
		if raw := model.DateRe.FindString(s); raw != "" {
			facts = append(facts, eventFact(doc, s, raw))
		}
	}

	return facts
}
