package pipeline

import (
	"regexp"
	"strings"

	"github.com/sells-group/deal-intake/internal/model"
)

// speakerTurnRe captures a speaker label at the start of a line: a
// one-to-three word name or a generic "Speaker N" tag, with an optional
// parenthesized title.
var speakerTurnRe = regexp.MustCompile(`(?m)^\s*([A-Z][A-Za-z.'-]*(?:\s[A-Z][A-Za-z.'-]*){0,2}|Speaker\s?\d+)\s*(?:\(([^)]{1,40})\))?:\s`)

var championStatementRe = regexp.MustCompile(`([A-Z][a-z]+(?:\s[A-Z][a-z]+)?)\s(?:is|will be)\s(?:our|the|your)\schampion`)

var competitionRe = regexp.MustCompile(`(?:competing\s(?:with|against)|versus|vs\.?|evaluating)\s([A-Z][A-Za-z0-9]+)`)

// roleFromLabel maps an explicit parenthesized label to a stakeholder
// role. Anything else stays RoleUnknown; titles are never upgraded to
// roles by inference.
func roleFromLabel(label string) model.StakeholderRole {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "champion":
		return model.RoleChampion
	case "economic buyer":
		return model.RoleEconomicBuyer
	case "influencer":
		return model.RoleInfluencer
	case "blocker":
		return model.RoleBlocker
	default:
		return model.RoleUnknown
	}
}

// extractTranscript pulls decision, budget, and pain signals out of a call
// transcript: one stakeholder per distinct speaker label, pain points,
// quantitative metrics, and acv/close_date/champion/competition field
// updates where the supporting phrasing is explicit.
func extractTranscript(doc model.Document) []model.Fact {
	var facts []model.Fact

	// Stakeholders: one per distinct speaker label, name preserved
	// exactly as labeled. Generic "Speaker N" tags stay generic.
	seen := make(map[string]bool)
	for _, m := range speakerTurnRe.FindAllStringSubmatch(doc.Text, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		sh := model.Stakeholder{Name: name, Role: model.RoleUnknown}
		if m[2] != "" {
			role := roleFromLabel(m[2])
			if role != model.RoleUnknown {
				sh.Role = role
			} else {
				sh.Title = m[2]
			}
		}
		snippet := strings.TrimSpace(strings.TrimSuffix(m[0], " "))
		facts = append(facts, stakeholderFact(doc, sh, strings.TrimSpace(snippet)))
	}

	for _, s := range sentences(doc.Text) {
		if hasPainIndicator(s) {
			facts = append(facts, painFact(doc, s))
		}
		if isMetricSentence(s) {
			facts = append(facts, metricFact(doc, s))
		}
		if model.MoneyRe.MatchString(s) && hasACVContext(s) {
			if f, ok := moneyFieldFact(doc, model.FieldACV, s); ok {
				facts = append(facts, f)
			}
		}
		if model.DateRe.MatchString(s) && hasCloseContext(s) {
			if f, ok := dateFieldFact(doc, model.FieldCloseDate, s); ok {
				facts = append(facts, f)
			}
		}
		if m := championStatementRe.FindStringSubmatch(s); m != nil {
			facts = append(facts, textFieldFact(doc, model.FieldChampion, m[1], s, model.ConfidenceHigh))
		}
		if m := competitionRe.FindStringSubmatch(s); m != nil {
			facts = append(facts, textFieldFact(doc, model.FieldCompetition, m[1], s, model.ConfidenceMedium))
		}
	}

	return facts
}
