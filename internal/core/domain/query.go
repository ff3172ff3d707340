package domain

import "strings"

// Query is an immutable, normalized question against the lab corpus.
// Build it with NewQuery; the raw text is trimmed, whitespace-collapsed
// and lowercased so that equal questions produce equal cache keys.
type Query struct {
	Text      string `json:"text"`
	DocType   string `json:"doc_type,omitempty"`
	Profile   string `json:"profile,omitempty"`
	SessionID string `json:"session_id"`
	Stream    bool   `json:"stream"`
}

func NewQuery(text, docType, profile, sessionID string, stream bool) (Query, error) {
	normalized := NormalizeQueryText(text)
	if normalized == "" {
		return Query{}, WrapError(ErrInvalidInput, "new query", ErrEmptyQuestion)
	}
	return Query{
		Text:      normalized,
		DocType:   strings.TrimSpace(docType),
		Profile:   strings.TrimSpace(profile),
		SessionID: strings.TrimSpace(sessionID),
		Stream:    stream,
	}, nil
}

// NormalizeQueryText collapses runs of whitespace and lowercases the
// question so that cache keys are stable across trivial rephrasings.
func NormalizeQueryText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// TokenCount counts whitespace-separated tokens of the normalized text.
func (q Query) TokenCount() int {
	return len(strings.Fields(q.Text))
}
