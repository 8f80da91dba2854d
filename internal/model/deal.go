package model

import "time"

// Deal is the aggregation root for one tracked opportunity. Mutated only
// by a successful pipeline commit; a rejected run leaves it untouched.
type Deal struct {
	ID        string                `json:"id"`
	Fields    map[string]FieldValue `json:"fields"`
	Facts     []Fact                `json:"facts"`
	Documents []string              `json:"documents"` // ordered processed document IDs
	UpdatedAt time.Time             `json:"updated_at"`
}

// DealSummary is a listing row for a deal.
type DealSummary struct {
	ID        string    `json:"id"`
	Fields    int       `json:"fields"`
	Facts     int       `json:"facts"`
	Documents int       `json:"documents"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArtifactCounts summarizes what a document's processing produced.
type ArtifactCounts struct {
	Facts        int     `json:"facts"`
	FieldUpdates int     `json:"field_updates"`
	FastPath     bool    `json:"fast_path"`
	DocType      DocType `json:"doc_type"`
}

// ProcessingRecord is one entry in the idempotency ledger. At most one
// active record exists per (deal, document identity); reprocessing
// overwrites rather than appends.
type ProcessingRecord struct {
	DealID      string         `json:"deal_id"`
	DocumentID  string         `json:"document_id"`
	ContentHash string         `json:"content_hash"`
	ProcessedAt time.Time      `json:"processed_at"`
	Artifacts   ArtifactCounts `json:"artifacts"`
}
