package domain

type StreamEventType string

const (
	EventMetadata StreamEventType = "metadata"
	EventDelta    StreamEventType = "delta"
	EventFinal    StreamEventType = "final"
	EventError    StreamEventType = "error"
)

// StreamEvent is the tagged union delivered to a streaming caller.
// Invariant per stream: exactly one metadata event first, zero or more
// delta events, then exactly one final event; an error event replaces
// final when the stream fails or is cancelled.
type StreamEvent struct {
	Type       StreamEventType `json:"type"`
	Citations  []string        `json:"citations,omitempty"`
	Delta      string          `json:"delta,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Status     AnswerStatus    `json:"status,omitempty"`
	CacheHit   bool            `json:"cache_hit,omitempty"`
	Err        string          `json:"error,omitempty"`
}

func MetadataEvent(citations []string, cacheHit bool) StreamEvent {
	return StreamEvent{Type: EventMetadata, Citations: citations, CacheHit: cacheHit}
}

func DeltaEvent(delta string) StreamEvent {
	return StreamEvent{Type: EventDelta, Delta: delta}
}

// FinalEvent closes a successful stream. It carries the validated
// citations so callers get them whether the answer was synthesized
// live or replayed from cache.
func FinalEvent(confidence float64, status AnswerStatus, citations []string) StreamEvent {
	return StreamEvent{Type: EventFinal, Confidence: confidence, Status: status, Citations: citations}
}

func ErrorEvent(err error) StreamEvent {
	event := StreamEvent{Type: EventError}
	if err != nil {
		event.Err = err.Error()
	}
	return event
}
