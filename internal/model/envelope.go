package model

// SchemaVersion is the current envelope schema version tag. The envelope
// validator rejects envelopes carrying any other value.
const SchemaVersion = "1"

// Envelope is the validated structured output of one pipeline run. It is
// the sole contract consumed by downstream presentation collaborators;
// they never re-parse raw documents.
type Envelope struct {
	DealID             string                `json:"deal_id"`
	SchemaVersion      string                `json:"schema_version"`
	Stakeholders       []Fact                `json:"stakeholders"`
	PainPoints         []Fact                `json:"pain_points"`
	Metrics            []Fact                `json:"metrics"`
	Events             []Fact                `json:"events"`
	FieldUpdates       map[string]FieldValue `json:"field_updates"`
	DocumentsProcessed []string              `json:"documents_processed"`
	SummaryBullets     []string              `json:"summary_bullets"`
}

// AllFacts returns every fact in the envelope across categories.
func (e *Envelope) AllFacts() []Fact {
	out := make([]Fact, 0, len(e.Stakeholders)+len(e.PainPoints)+len(e.Metrics)+len(e.Events))
	out = append(out, e.Stakeholders...)
	out = append(out, e.PainPoints...)
	out = append(out, e.Metrics...)
	out = append(out, e.Events...)
	return out
}

// FactCount returns the total number of facts in the envelope.
func (e *Envelope) FactCount() int {
	return len(e.Stakeholders) + len(e.PainPoints) + len(e.Metrics) + len(e.Events)
}
