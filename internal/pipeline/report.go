package pipeline

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/deal-intake/internal/model"
)

var bulletPrinter = message.NewPrinter(language.AmericanEnglish)

// SummaryBullets renders a short human-readable digest of an envelope.
// Every bullet restates structured content already in the envelope; no
// new claims are introduced. Output order is deterministic.
func SummaryBullets(env *model.Envelope) []string {
	var bullets []string

	if n := len(env.Stakeholders); n > 0 {
		bullets = append(bullets, bulletPrinter.Sprintf("%d stakeholder(s) identified across %d document(s)",
			n, len(env.DocumentsProcessed)))
	}

	fields := make([]string, 0, len(env.FieldUpdates))
	for f := range env.FieldUpdates {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fv := env.FieldUpdates[field]
		bullets = append(bullets, fieldBullet(field, fv))
	}

	if n := len(env.PainPoints); n > 0 {
		bullets = append(bullets, bulletPrinter.Sprintf("%d pain point(s) recorded", n))
	}
	if n := len(env.Events); n > 0 {
		bullets = append(bullets, bulletPrinter.Sprintf("%d upcoming event(s) or commitment(s)", n))
	}
	return bullets
}

func fieldBullet(field string, fv model.FieldValue) string {
	switch v := fv.Value.(type) {
	case float64:
		return bulletPrinter.Sprintf("%s: $%.0f (%s confidence, from %s)", field, v, fv.Confidence, fv.SourceType)
	case time.Time:
		return fmt.Sprintf("%s: %s (%s confidence, from %s)", field, v.Format("2006-01-02"), fv.Confidence, fv.SourceType)
	default:
		return fmt.Sprintf("%s: %s (%s confidence, from %s)", field, fv.RawValue, fv.Confidence, fv.SourceType)
	}
}
