package pipeline

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/deal-intake/internal/model"
)

// GroundFacts is the post-extraction grounding filter: every provenance
// snippet of every candidate fact must be a literal substring of the text
// of the document it cites. Facts that fail are dropped before they reach
// the envelope. This is a routine outcome of noisy input, not an error;
// the drop is silent apart from a debug log.
func GroundFacts(facts []model.Fact, docs map[string]string) []model.Fact {
	kept := make([]model.Fact, 0, len(facts))
	for _, f := range facts {
		if grounded(f, docs) {
			kept = append(kept, f)
		} else {
			zap.L().Debug("ground: dropped ungrounded candidate fact",
				zap.String("fact_id", f.ID),
				zap.String("kind", string(f.Kind)),
				zap.String("document", f.PrimaryDocumentID()),
			)
		}
	}
	return kept
}

func grounded(f model.Fact, docs map[string]string) bool {
	if len(f.Provenance) == 0 {
		return false
	}
	for _, p := range f.Provenance {
		text, ok := docs[p.DocumentID]
		if !ok || p.Snippet == "" || !strings.Contains(text, p.Snippet) {
			return false
		}
	}
	return true
}
