package domain

type AnswerStatus string

const (
	StatusAnswered      AnswerStatus = "answered"
	StatusLowConfidence AnswerStatus = "low_confidence"
	StatusRejected      AnswerStatus = "rejected"
)

// RejectedFallbackText is the fixed response surfaced instead of the
// synthesized text when the confidence gate withholds an answer.
const RejectedFallbackText = "I cannot answer this confidently from the lab corpus. Try rephrasing the question or narrowing it to a specific protocol or thesis."

// Answer is the terminal result of one query pipeline execution.
// Immutable after creation; always written to the response cache.
type Answer struct {
	ID         string       `json:"id"`
	Text       string       `json:"text"`
	Citations  []string     `json:"citations"`
	Confidence float64      `json:"confidence"`
	Status     AnswerStatus `json:"status"`
	ModelID    string       `json:"model_id"`
	CacheHit   bool         `json:"cache_hit"`
}
