package model

import "time"

// FactKind categorizes an extracted claim.
type FactKind string

const (
	FactKindStakeholder FactKind = "stakeholder"
	FactKindPainPoint   FactKind = "pain_point"
	FactKindMetric      FactKind = "metric"
	FactKindEvent       FactKind = "event"
	FactKindFieldUpdate FactKind = "field_update"
)

// StakeholderRole is the closed enumeration of stakeholder relationship
// categories. Roles are only assigned from explicit labels in source text;
// extraction defaults to RoleUnknown.
type StakeholderRole string

const (
	RoleEconomicBuyer StakeholderRole = "economic_buyer"
	RoleChampion      StakeholderRole = "champion"
	RoleInfluencer    StakeholderRole = "influencer"
	RoleBlocker       StakeholderRole = "blocker"
	RoleUnknown       StakeholderRole = "unknown"
)

// AllStakeholderRoles returns the closed role enumeration.
func AllStakeholderRoles() []StakeholderRole {
	return []StakeholderRole{
		RoleEconomicBuyer,
		RoleChampion,
		RoleInfluencer,
		RoleBlocker,
		RoleUnknown,
	}
}

// ValidStakeholderRole reports whether r is inside the closed enumeration.
func ValidStakeholderRole(r StakeholderRole) bool {
	for _, v := range AllStakeholderRoles() {
		if v == r {
			return true
		}
	}
	return false
}

// Provenance is a mandatory (document, verbatim snippet) citation.
// The snippet is a literal substring of the cited document's text.
type Provenance struct {
	DocumentID string `json:"document_id"`
	Snippet    string `json:"snippet"`
}

// Stakeholder is a person named in source text. Name and Title are copied
// exactly as written; generic speaker labels are preserved as-is.
type Stakeholder struct {
	Name  string          `json:"name"`
	Title string          `json:"title,omitempty"`
	Email string          `json:"email,omitempty"`
	Role  StakeholderRole `json:"role"`
}

// PainPoint is a stated problem or frustration.
type PainPoint struct {
	Description string `json:"description"`
}

// Metric is a quantitative statement. Normalized is nil when the raw text
// could not be parsed unambiguously.
type Metric struct {
	Text       string   `json:"text"`
	Normalized *float64 `json:"normalized,omitempty"`
}

// Event is a commitment or dated occurrence. RawDate is kept exactly as
// written; Normalized is nil for ambiguous dates.
type Event struct {
	Description string     `json:"description"`
	RawDate     string     `json:"raw_date,omitempty"`
	Normalized  *time.Time `json:"normalized,omitempty"`
}

// FieldUpdate asserts a value for a deal-level field. RawValue is the
// verbatim text; Normalized holds the parsed value (float64 for money,
// time.Time for dates) or nil when parsing was ambiguous.
type FieldUpdate struct {
	Field      string     `json:"field"`
	RawValue   string     `json:"raw_value"`
	Normalized any        `json:"normalized,omitempty"`
	Confidence Confidence `json:"confidence"`
}

// Fact is an atomic extracted claim with mandatory provenance. Exactly one
// payload pointer is set, matching Kind.
type Fact struct {
	ID          string       `json:"id"`
	DealID      string       `json:"deal_id"`
	Kind        FactKind     `json:"kind"`
	Stakeholder *Stakeholder `json:"stakeholder,omitempty"`
	PainPoint   *PainPoint   `json:"pain_point,omitempty"`
	Metric      *Metric      `json:"metric,omitempty"`
	Event       *Event       `json:"event,omitempty"`
	FieldUpdate *FieldUpdate `json:"field_update,omitempty"`
	Provenance  []Provenance `json:"provenance"`
	CreatedAt   time.Time    `json:"created_at,omitempty"`
}

// PrimaryDocumentID returns the document cited by the fact's first
// provenance pair, or "" when provenance is empty.
func (f Fact) PrimaryDocumentID() string {
	if len(f.Provenance) == 0 {
		return ""
	}
	return f.Provenance[0].DocumentID
}
