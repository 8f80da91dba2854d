package model

// Deal-level field names produced by the extractors. The resolver and
// store treat field names as opaque strings; these constants exist so the
// extractors and tests agree on spelling.
const (
	FieldACV           = "acv"
	FieldCloseDate     = "close_date"
	FieldEconomicBuyer = "economic_buyer"
	FieldChampion      = "champion"
	FieldCompetition   = "competition"
	FieldStage         = "stage"
)

// Observation is one document's assertion of a field value, considered by
// the precedence resolver. Snippet is the verbatim source substring.
type Observation struct {
	SourceType DocType `json:"source_type"`
	DocumentID string  `json:"document_id"`
	RawValue   string  `json:"raw_value"`
	Normalized any     `json:"normalized,omitempty"`
	Snippet    string  `json:"snippet"`
}

// FieldValue is the resolved value for a deal-level field. Observations
// retains every competing assertion, winner included, for audit.
type FieldValue struct {
	Field        string        `json:"field"`
	Value        any           `json:"value"`
	RawValue     string        `json:"raw_value"`
	Confidence   Confidence    `json:"confidence"`
	SourceType   DocType       `json:"source_type"`
	Rationale    string        `json:"rationale,omitempty"`
	Observations []Observation `json:"observations"`
}
