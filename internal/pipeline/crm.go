package pipeline

import (
	"regexp"
	"strings"

	"github.com/sells-group/deal-intake/internal/model"
)

// crmFieldLineRe matches labeled key-value pairs as produced by CRM
// exports ("Stage: Negotiation", "ACV: $144,000").
var crmFieldLineRe = regexp.MustCompile(`(?im)^\s*(stage|acv|amount|annual contract value|close date|economic buyer|champion|competition|competitor|owner|next step)\s*[:=]\s*(.+?)\s*$`)

// extractCRMExport pulls header fields out of a system-of-record export.
// Values are copied exactly as written; people named under explicit role
// labels also become stakeholder facts carrying that role.
func extractCRMExport(doc model.Document) []model.Fact {
	var facts []model.Fact

	for _, m := range crmFieldLineRe.FindAllStringSubmatch(doc.Text, -1) {
		line := strings.TrimSpace(m[0])
		label := strings.ToLower(m[1])
		value := m[2]

		switch label {
		case "stage":
			facts = append(facts, textFieldFact(doc, model.FieldStage, value, line, model.ConfidenceHigh))

		case "acv", "amount", "annual contract value":
			if f, ok := moneyFieldFact(doc, model.FieldACV, line); ok {
				facts = append(facts, f)
			} else if f, ok := plainNumberFieldFact(doc, model.FieldACV, value, line); ok {
				facts = append(facts, f)
			}

		case "close date":
			if f, ok := dateFieldFact(doc, model.FieldCloseDate, line); ok {
				facts = append(facts, f)
			}

		case "economic buyer":
			facts = append(facts, textFieldFact(doc, model.FieldEconomicBuyer, value, line, model.ConfidenceHigh))
			facts = append(facts, stakeholderFact(doc, model.Stakeholder{
				Name: value,
				Role: model.RoleEconomicBuyer,
			}, line))

		case "champion":
			facts = append(facts, textFieldFact(doc, model.FieldChampion, value, line, model.ConfidenceMedium))
			facts = append(facts, stakeholderFact(doc, model.Stakeholder{
				Name: value,
				Role: model.RoleChampion,
			}, line))

		case "competition", "competitor":
			facts = append(facts, textFieldFact(doc, model.FieldCompetition, value, line, model.ConfidenceHigh))

		case "owner":
			facts = append(facts, stakeholderFact(doc, model.Stakeholder{
				Name: value,
				Role: model.RoleUnknown,
			}, line))

		case "next step":
			raw := model.DateRe.FindString(value)
			facts = append(facts, eventFact(doc, line, raw))
		}
	}

	return facts
}

var plainNumberRe = regexp.MustCompile(`^\d[\d,]*(?:\.\d+)?$`)

// plainNumberFieldFact handles CRM money values exported without a
// currency symbol.
func plainNumberFieldFact(doc model.Document, field, value, snippet string) (model.Fact, bool) {
	v := strings.TrimSpace(value)
	if !plainNumberRe.MatchString(v) {
		return model.Fact{}, false
	}
	parsed, ok := model.ParseMoney("$" + v)
	if !ok {
		return model.Fact{}, false
	}
	fu := model.FieldUpdate{
		Field:      field,
		RawValue:   v,
		Normalized: parsed,
		Confidence: model.ConfidenceHigh,
	}
	return model.Fact{
		ID:          factID(doc.DealID, doc.ID, model.FactKindFieldUpdate, field+"\x00"+v),
		DealID:      doc.DealID,
		Kind:        model.FactKindFieldUpdate,
		FieldUpdate: &fu,
		Provenance: []model.Provenance{
			{DocumentID: doc.ID, Snippet: snippet},
		},
	}, true
}
