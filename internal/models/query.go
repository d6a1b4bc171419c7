package models

import "fmt"

// QueryFilter is the coarse restriction derived from a question before
// similarity scoring. An empty Types set means no type restriction. Day, when
// set, restricts to evolucion_dia chunks for that day. Never persisted.
type QueryFilter struct {
	Day   *int
	Types map[ChunkType]bool
}

// HasTypeFilter reports whether any chunk type was inferred.
func (f *QueryFilter) HasTypeFilter() bool {
	return len(f.Types) > 0
}

// WantsType reports whether t passes the type restriction (always true when
// no types were inferred).
func (f *QueryFilter) WantsType(t ChunkType) bool {
	if !f.HasTypeFilter() {
		return true
	}
	return f.Types[t]
}

// AskRequest is a question against the currently ingested record.
type AskRequest struct {
	Question string `json:"question"`
	// TopK is the relevance shortlist size before diversification.
	TopK int `json:"top_k,omitempty"`
	// SelectN is how many chunks MMR keeps for the prompt.
	SelectN int `json:"select_n,omitempty"`
}

// Validate ensures the request has a question and normalizes the retrieval
// sizes to their defaults.
func (q *AskRequest) Validate() error {
	if q.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if q.TopK <= 0 {
		q.TopK = 10
	}
	if q.TopK > 50 {
		q.TopK = 50
	}
	if q.SelectN <= 0 {
		q.SelectN = 3
	}
	if q.SelectN > q.TopK {
		q.SelectN = q.TopK
	}
	return nil
}
