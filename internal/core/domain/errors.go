package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRetrievalUnavailable means the search index is unreachable.
	// Never retried inline; the caller gets an explicit failure.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrEmbeddingFailed means the embedding backend failed or timed out.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrSynthesisFailed means the completion backend failed or timed
	// out after its single retry.
	ErrSynthesisFailed = errors.New("synthesis failed")
	// ErrRerankUnavailable is absorbed inside the pipeline and never
	// surfaces to callers.
	ErrRerankUnavailable = errors.New("rerank unavailable")

	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyQuestion = errors.New("question is empty")
	ErrTemporary     = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
