package ports

import (
	"context"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
)

// QueryService is the inbound contract for answering corpus questions.
type QueryService interface {
	// Answer runs the full pipeline and returns the terminal Answer.
	Answer(ctx context.Context, query domain.Query) (*domain.Answer, error)
	// AnswerStream runs the pipeline in streaming mode. The returned
	// channel observes the StreamEvent ordering invariant and is closed
	// after the final or error event. Cancelling ctx stops delivery and
	// releases the in-flight completion call.
	AnswerStream(ctx context.Context, query domain.Query) (<-chan domain.StreamEvent, error)
}
