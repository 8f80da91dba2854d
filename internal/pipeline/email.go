package pipeline

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/sells-group/deal-intake/internal/model"
)

var emailHeaderRe = regexp.MustCompile(`(?im)^(from|to|cc):\s*(.+)$`)

var commitmentWords = []string{"will ", "agreed", "commit", "by ", "send ", "schedule"}

func hasCommitmentLanguage(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range commitmentWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// extractEmail pulls correspondents from From/To/Cc headers, commitments
// with dates as events, pain statements, and acv/close_date assertions
// from the body.
func extractEmail(doc model.Document) []model.Fact {
	var facts []model.Fact

	seen := make(map[string]bool)
	for _, m := range emailHeaderRe.FindAllStringSubmatch(doc.Text, -1) {
		line := strings.TrimSpace(m[0])
		for _, part := range strings.Split(m[2], ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			sh := model.Stakeholder{Role: model.RoleUnknown}
			if addr, err := mail.ParseAddress(part); err == nil {
				sh.Name = addr.Name
				sh.Email = addr.Address
				if sh.Name == "" {
					sh.Name = addr.Address
				}
			} else {
				sh.Name = part
			}
			if seen[sh.Name] {
				continue
			}
			seen[sh.Name] = true
			facts = append(facts, stakeholderFact(doc, sh, line))
		}
	}

	for _, s := range sentences(doc.Text) {
		if emailHeaderRe.MatchString(s) {
			continue
		}
		if hasPainIndicator(s) {
			facts = append(facts, painFact(doc, s))
		}
		if raw := model.DateRe.FindString(s); raw != "" && hasCommitmentLanguage(s) {
			facts = append(facts, eventFact(doc, s, raw))
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
	}

	return facts
}
