package ports

import (
	"context"
	"time"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
)

// Embedder turns query text into a fixed-dimension vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchIndex is the vector+keyword index over the ingested corpus.
// Both searches return candidates with the matching sub-score filled in
// and normalized to [0,1]; blending is the retriever's job.
type SearchIndex interface {
	SearchDense(ctx context.Context, queryVector []float32, limit int, docType string) ([]domain.CandidateChunk, error)
	SearchSparse(ctx context.Context, queryText string, limit int, docType string) ([]domain.CandidateChunk, error)
}

// CompletionStream yields incremental text fragments from an in-flight
// completion. Close releases the provider call; it is safe to call
// after the stream is exhausted.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// Completer is the text-completion backend used for answer synthesis.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteStream(ctx context.Context, prompt string) (CompletionStream, error)
	ModelID() string
}

// AnswerCache is the TTL key/value store for finished answers and
// intermediate candidate lists. A miss returns ok=false, not an error.
type AnswerCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EventPublisher notifies external collaborators (history, analytics)
// that a query finished. Failures are non-fatal to the pipeline.
type EventPublisher interface {
	PublishQueryAnswered(ctx context.Context, event domain.QueryAnsweredEvent) error
}
