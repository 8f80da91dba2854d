// Package validate enforces the structural and provenance contract of the
// envelope before it is accepted for commit. It fails closed: any
// violation rejects the whole envelope and the pipeline commits nothing.
package validate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/deal-intake/internal/model"
)

// Rule names surfaced on rejection.
const (
	RuleSchemaVersion    = "schema_version"
	RuleFactProvenance   = "fact_provenance"
	RuleSnippetGrounding = "snippet_grounding"
	RuleStakeholderEnum  = "stakeholder_enum"
	RuleValueCorrespond  = "value_correspondence"
)

// Violation is one broken envelope rule.
type Violation struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// Error carries every violation found in an envelope. The pipeline
// surfaces it to callers as the structured rejection.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Rule + ": " + v.Detail
	}
	return "envelope rejected: " + strings.Join(parts, "; ")
}

// Envelope checks the envelope against every rule. docs maps document ID
// to raw text for the documents in this run; grounding checks only apply
// to provenance citing those documents (earlier runs' documents are not
// re-read). Returns nil when the envelope is valid, otherwise *Error.
func Envelope(env *model.Envelope, docs map[string]string) error {
	var violations []Violation

	if env.SchemaVersion != model.SchemaVersion {
		violations = append(violations, Violation{
			Rule:   RuleSchemaVersion,
			Detail: fmt.Sprintf("schema version %q, want %q", env.SchemaVersion, model.SchemaVersion),
		})
	}

	for _, f := range env.AllFacts() {
		if len(f.Provenance) == 0 {
			violations = append(violations, Violation{
				Rule:   RuleFactProvenance,
				Detail: fmt.Sprintf("fact %s (%s) has no provenance", f.ID, f.Kind),
			})
			continue
		}
		for _, p := range f.Provenance {
			text, ok := docs[p.DocumentID]
			if !ok {
				continue
			}
			if p.Snippet == "" || !strings.Contains(text, p.Snippet) {
				violations = append(violations, Violation{
					Rule:   RuleSnippetGrounding,
					Detail: fmt.Sprintf("fact %s snippet is not a substring of document %s", f.ID, p.DocumentID),
				})
			}
		}
		if f.Kind == model.FactKindStakeholder {
			if f.Stakeholder == nil || !model.ValidStakeholderRole(f.Stakeholder.Role) {
				violations = append(violations, Violation{
					Rule:   RuleStakeholderEnum,
					Detail: fmt.Sprintf("fact %s has a role outside the closed enumeration", f.ID),
				})
			}
		}
	}

	for field, fv := range env.FieldUpdates {
		if v := checkValueCorrespondence(field, fv, docs); v != nil {
			violations = append(violations, *v)
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &Error{Violations: violations}
}

// checkValueCorrespondence verifies that a resolved numeric or date value
// is backed by at least one of the field's own observation snippets.
func checkValueCorrespondence(field string, fv model.FieldValue, docs map[string]string) *Violation {
	if len(fv.Observations) == 0 {
		return &Violation{
			Rule:   RuleFactProvenance,
			Detail: fmt.Sprintf("field %s has no observations", field),
		}
	}

	// Snippets must ground in their documents when we hold the text.
	for _, o := range fv.Observations {
		if text, ok := docs[o.DocumentID]; ok {
			if o.Snippet == "" || !strings.Contains(text, o.Snippet) {
				return &Violation{
					Rule:   RuleSnippetGrounding,
					Detail: fmt.Sprintf("field %s observation snippet is not a substring of document %s", field, o.DocumentID),
				}
			}
		}
	}

	switch val := fv.Value.(type) {
	case float64:
		for _, o := range fv.Observations {
			if snippetAssertsAmount(o.Snippet, val) {
				return nil
			}
		}
		return &Violation{
			Rule:   RuleValueCorrespond,
			Detail: fmt.Sprintf("field %s value %v matches none of its snippets", field, val),
		}
	case time.Time:
		for _, o := range fv.Observations {
			if parsed, ambiguous, ok := model.ParseDate(o.Snippet); ok && !ambiguous && parsed.Equal(val) {
				return nil
			}
		}
		return &Violation{
			Rule:   RuleValueCorrespond,
			Detail: fmt.Sprintf("field %s date %v matches none of its snippets", field, val),
		}
	}
	return nil
}

// snippetAssertsAmount reports whether a snippet states the given amount,
// either symbol-prefixed ("$144,000", "$140K") or as the bare number a CRM
// export writes ("Amount: 144000").
func snippetAssertsAmount(snippet string, val float64) bool {
	if parsed, ok := model.ParseMoney(snippet); ok && parsed == val {
		return true
	}
	for _, m := range model.BareAmountRe.FindAllString(snippet, -1) {
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err == nil && f == val {
			return true
		}
	}
	return false
}
