package usecase

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
)

// alphaFor returns the vector/keyword blending weight for a query.
// Short queries under-match on sparse keyword overlap, so they are
// biased toward semantic similarity.
func alphaFor(query domain.Query, opts Options) float64 {
	if query.TokenCount() <= opts.ShortQueryMaxTokens {
		return opts.ShortQueryAlpha
	}
	return opts.DefaultAlpha
}

// retrieve runs the dense and sparse searches concurrently against the
// index, blends the sub-scores into a combined score and returns the
// deduplicated candidate set sorted for downstream stages. Index or
// embedding failures are terminal for the query; they are never retried
// inline.
func (p *QueryPipeline) retrieve(ctx context.Context, query domain.Query, params queryParams) ([]domain.CandidateChunk, error) {
	var (
		dense  []domain.CandidateChunk
		sparse []domain.CandidateChunk
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		vector, err := p.embedder.EmbedQuery(groupCtx, query.Text)
		if err != nil {
			return domain.WrapError(domain.ErrEmbeddingFailed, "embed query", err)
		}
		hits, err := p.index.SearchDense(groupCtx, vector, p.opts.HybridCandidates, query.DocType)
		if err != nil {
			return domain.WrapError(domain.ErrRetrievalUnavailable, "dense search", err)
		}
		dense = hits
		return nil
	})
	group.Go(func() error {
		hits, err := p.index.SearchSparse(groupCtx, query.Text, p.opts.HybridCandidates, query.DocType)
		if err != nil {
			return domain.WrapError(domain.ErrRetrievalUnavailable, "sparse search", err)
		}
		sparse = hits
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return blendCandidates(dense, sparse, params.alpha), nil
}

// blendCandidates merges dense and sparse hits by chunk id, computes
// combined = alpha*vector + (1-alpha)*keyword, and sorts descending.
// Ties break by newer source document first, then chunk id, so repeated
// queries produce a deterministic ordering.
func blendCandidates(dense, sparse []domain.CandidateChunk, alpha float64) []domain.CandidateChunk {
	merged := make(map[string]domain.CandidateChunk, len(dense)+len(sparse))
	for _, hit := range dense {
		current := merged[hit.ID]
		current = preferRicherChunk(current, hit)
		current.VectorScore = hit.VectorScore
		merged[hit.ID] = current
	}
	for _, hit := range sparse {
		current := merged[hit.ID]
		current = preferRicherChunk(current, hit)
		current.KeywordScore = hit.KeywordScore
		merged[hit.ID] = current
	}

	out := make([]domain.CandidateChunk, 0, len(merged))
	for _, chunk := range merged {
		chunk.CombinedScore = alpha*chunk.VectorScore + (1-alpha)*chunk.KeywordScore
		out = append(out, chunk)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		if out[i].Meta.Year != out[j].Meta.Year {
			return out[i].Meta.Year > out[j].Meta.Year
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func trimCandidates(chunks []domain.CandidateChunk, limit int) []domain.CandidateChunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}

// preferRicherChunk keeps payload fields from whichever hit carried
// them; dense and sparse results for the same chunk may differ in how
// much payload the index returned.
func preferRicherChunk(current, candidate domain.CandidateChunk) domain.CandidateChunk {
	if current.ID == "" {
		candidate.VectorScore = 0
		candidate.KeywordScore = 0
		return candidate
	}
	if current.Text == "" && candidate.Text != "" {
		current.Text = candidate.Text
	}
	if current.DocumentID == "" && candidate.DocumentID != "" {
		current.DocumentID = candidate.DocumentID
	}
	if current.Meta.Title == "" && candidate.Meta.Title != "" {
		current.Meta.Title = candidate.Meta.Title
	}
	if current.Meta.Author == "" && candidate.Meta.Author != "" {
		current.Meta.Author = candidate.Meta.Author
	}
	if current.Meta.Year == 0 && candidate.Meta.Year != 0 {
		current.Meta.Year = candidate.Meta.Year
	}
	if current.Meta.DocType == "" && candidate.Meta.DocType != "" {
		current.Meta.DocType = candidate.Meta.DocType
	}
	if current.Meta.Section == "" && candidate.Meta.Section != "" {
		current.Meta.Section = candidate.Meta.Section
	}
	return current
}
