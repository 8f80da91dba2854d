package model

// ClassificationSignals records the evidence that produced a
// classification, for diagnostics. Not persisted beyond the run.
type ClassificationSignals struct {
	PathType    DocType         `json:"path_type,omitempty"`    // type implied by the directory
	NameType    DocType         `json:"name_type,omitempty"`    // type implied by the filename
	ContentType DocType         `json:"content_type,omitempty"` // type implied by the content scan
	ContentHits map[DocType]int `json:"content_hits,omitempty"` // indicator counts per type
	// ContentOverrode is set when the content scan disagreed with the
	// path/filename signal and won.
	ContentOverrode bool `json:"content_overrode,omitempty"`
}

// Classification is the per-document result of the type classifier.
type Classification struct {
	Type       DocType               `json:"type"`
	Confidence Confidence            `json:"confidence"`
	Signals    ClassificationSignals `json:"signals"`
}

// Ambiguous reports whether the classification should be surfaced to the
// caller as an ambiguous-type notice (not an error).
func (c Classification) Ambiguous() bool {
	return c.Confidence == ConfidenceLow
}
