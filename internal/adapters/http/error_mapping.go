package httpadapter

import (
	"net/http"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrRetrievalUnavailable),
		domain.IsKind(err, domain.ErrEmbeddingFailed),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrSynthesisFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userFacingError replaces backend failures with a clear message. A
// retrieval outage is surfaced as such, never papered over with
// fabricated results. Raw error text never reaches the caller; it can
// carry backend addresses and model names.
func userFacingError(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid request"
	case domain.IsKind(err, domain.ErrRetrievalUnavailable), domain.IsKind(err, domain.ErrEmbeddingFailed):
		return "search temporarily unavailable"
	case domain.IsKind(err, domain.ErrSynthesisFailed):
		return "answer generation failed"
	case domain.IsKind(err, domain.ErrTemporary):
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}

func degradedKind(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrRetrievalUnavailable):
		return "retrieval_unavailable"
	case domain.IsKind(err, domain.ErrEmbeddingFailed):
		return "embedding_failed"
	case domain.IsKind(err, domain.ErrSynthesisFailed):
		return "synthesis_failed"
	default:
		return ""
	}
}
