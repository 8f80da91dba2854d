package resolve

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/deal-intake/internal/model"
)

// Resolve picks the authoritative value for a field from competing
// observations. The result is deterministic regardless of observation
// order: observations are ranked by the field's source-type table, with
// document ID and raw value as tie-breakers. Every losing observation is
// retained on the returned FieldValue. Returns nil when no observation
// carries a value.
func Resolve(field string, observations []model.Observation, cfg *Config) *model.FieldValue {
	if cfg == nil {
		cfg = Default()
	}
	rule := cfg.rule(field)

	sorted := make([]model.Observation, len(observations))
	copy(sorted, observations)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := rule.rank(sorted[i].SourceType), rule.rank(sorted[j].SourceType)
		if ri != rj {
			return ri < rj
		}
		if sorted[i].DocumentID != sorted[j].DocumentID {
			return sorted[i].DocumentID < sorted[j].DocumentID
		}
		return sorted[i].RawValue < sorted[j].RawValue
	})

	winnerIdx := -1
	for i, o := range sorted {
		if o.RawValue != "" {
			winnerIdx = i
			break
		}
	}
	if winnerIdx < 0 {
		return nil
	}
	winner := sorted[winnerIdx]

	fv := &model.FieldValue{
		Field:        field,
		Value:        observationValue(winner),
		RawValue:     winner.RawValue,
		Confidence:   model.ConfidenceHigh,
		SourceType:   winner.SourceType,
		Observations: sorted,
	}
	fv.Rationale = fmt.Sprintf("%s selected by precedence over %d observation(s)", winner.SourceType, len(sorted))

	// Compare against the next-highest non-empty observation.
	var runnerUp *model.Observation
	for i := winnerIdx + 1; i < len(sorted); i++ {
		if sorted[i].RawValue != "" {
			runnerUp = &sorted[i]
			break
		}
	}
	if runnerUp == nil {
		return fv
	}

	agree, divergence := compare(winner, *runnerUp, rule)
	switch {
	case agree:
		// Independent sources agree; confidence stays high.
	case divergence:
		fv.Confidence = model.ConfidenceLow
		fv.Rationale = fmt.Sprintf("%s and %s diverge beyond threshold for %s",
			winner.SourceType, runnerUp.SourceType, field)
		zap.L().Warn("resolve: source divergence",
			zap.String("field", field),
			zap.String("winner_source", string(winner.SourceType)),
			zap.String("winner_value", winner.RawValue),
			zap.String("runner_up_source", string(runnerUp.SourceType)),
			zap.String("runner_up_value", runnerUp.RawValue),
		)
	default:
		fv.Confidence = model.ConfidenceMedium
		fv.Rationale = fmt.Sprintf("%s and %s disagree within tolerance for %s",
			winner.SourceType, runnerUp.SourceType, field)
	}
	return fv
}

// ResolveAll resolves every field present in the observation map.
func ResolveAll(byField map[string][]model.Observation, cfg *Config) map[string]model.FieldValue {
	out := make(map[string]model.FieldValue, len(byField))
	for field, obs := range byField {
		if fv := Resolve(field, obs, cfg); fv != nil {
			out[field] = *fv
		}
	}
	return out
}

func observationValue(o model.Observation) any {
	if o.Normalized != nil {
		return o.Normalized
	}
	return o.RawValue
}

// compare reports whether two observations agree outright, and if not,
// whether their divergence exceeds the field's configured magnitude
// threshold (>pct numeric difference, >days date difference).
func compare(a, b model.Observation, rule FieldRule) (agree, divergent bool) {
	if a.RawValue == b.RawValue {
		return true, false
	}

	if af, aok := asFloat(a.Normalized); aok {
		if bf, bok := asFloat(b.Normalized); bok {
			if af == bf {
				return true, false
			}
			base := math.Max(math.Abs(af), math.Abs(bf))
			if base == 0 {
				return false, false
			}
			pct := math.Abs(af-bf) / base * 100
			return false, pct > *rule.NumericDivergencePct
		}
	}

	if at, aok := asTime(a.Normalized); aok {
		if bt, bok := asTime(b.Normalized); bok {
			if at.Equal(bt) {
				return true, false
			}
			days := math.Abs(at.Sub(bt).Hours()) / 24
			return false, days > float64(*rule.DateDivergenceDays)
		}
	}

	// Text values that differ are a disagreement but not a measurable
	// divergence.
	return false, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
