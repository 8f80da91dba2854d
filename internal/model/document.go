package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DocType represents a classified document category.
type DocType string

const (
	DocTypeTranscript DocType = "transcript"
	DocTypeQuote      DocType = "quote"
	DocTypeEmail      DocType = "email"
	DocTypeCRMExport  DocType = "crm_export"
	DocTypeGeneric    DocType = "generic"
)

// AllDocTypes returns all defined document types.
func AllDocTypes() []DocType {
	return []DocType{
		DocTypeTranscript,
		DocTypeQuote,
		DocTypeEmail,
		DocTypeCRMExport,
		DocTypeGeneric,
	}
}

// ParseDocType maps a string to a DocType. Returns ("", false) for
// unknown values.
func ParseDocType(s string) (DocType, bool) {
	dt := DocType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range AllDocTypes() {
		if t == dt {
			return t, true
		}
	}
	return "", false
}

// Confidence is the three-level confidence grade used throughout the
// pipeline for classifications and resolved field values.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Document is one raw input unit for a deal. Immutable once ingested.
type Document struct {
	ID           string  `json:"id"` // origin path or synthetic identifier
	DealID       string  `json:"deal_id"`
	Text         string  `json:"text"`
	DeclaredType DocType `json:"declared_type,omitempty"` // caller-supplied override
	ContentHash  string  `json:"content_hash"`
}

// NewDocument builds a Document with its content hash populated.
func NewDocument(dealID, id, text string) Document {
	return Document{
		ID:          id,
		DealID:      dealID,
		Text:        text,
		ContentHash: ContentHash(text),
	}
}

// ContentHash returns the hex-encoded SHA-256 of the document text.
// Used as the identity key in the processing ledger.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
