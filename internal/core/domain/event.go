package domain

// QueryAnsweredEvent is published after a pipeline run for the history
// and analytics collaborators. It never carries the answer text.
type QueryAnsweredEvent struct {
	AnswerID   string       `json:"answer_id"`
	SessionID  string       `json:"session_id"`
	Status     AnswerStatus `json:"status"`
	Confidence float64      `json:"confidence"`
	CacheHit   bool         `json:"cache_hit"`
	DurationMS int64        `json:"duration_ms"`
}
