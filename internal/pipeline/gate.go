package pipeline

import (
	"regexp"
	"strings"

	"github.com/sells-group/deal-intake/internal/model"
)

// FastPathWordLimit is the inclusive word-count ceiling for the fast path.
// Documents at or below the limit with no structural markers skip full
// per-type decomposition. Full decomposition of very short unstructured
// notes tends to fabricate structure (invented speaker turns) that is not
// in the source, which is the failure mode this gate exists to prevent.
const FastPathWordLimit = 120

var (
	speakerLabelRe  = regexp.MustCompile(`(?m)^\s*(?:[A-Z][A-Za-z.'-]*(?:\s[A-Z][A-Za-z.'-]*){0,2}|Speaker\s?\d+)\s*(?:\([^)]{1,40}\))?:\s`)
	sectionHeaderRe = regexp.MustCompile(`(?m)^\s*(?:#{1,6}\s|={3,}|-{3,}\s*$)`)
	tabularRe       = regexp.MustCompile(`(?m)^[^\n]*(?:\t|\|[^\n]*\|)`)
)

// ShouldFastPath reports whether a document should take the minimal
// direct-extraction route: short AND free of structural markers (speaker
// labels, section headers, tabular data).
func ShouldFastPath(doc model.Document, cls model.Classification) bool {
	if len(strings.Fields(doc.Text)) > FastPathWordLimit {
		return false
	}
	return !hasStructuralMarkers(doc.Text)
}

func hasStructuralMarkers(text string) bool {
	return speakerLabelRe.MatchString(text) ||
		sectionHeaderRe.MatchString(text) ||
		tabularRe.MatchString(text)
}
