package usecase

import (
	"sort"
	"strings"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
)

// rerankOutcome records how the rerank stage resolved, for confidence
// scoring and observability.
type rerankOutcome struct {
	Ran         bool
	Skipped     bool
	Unavailable bool
}

func (o rerankOutcome) String() string {
	switch {
	case o.Unavailable:
		return "unavailable"
	case o.Ran:
		return "ran"
	default:
		return "skipped"
	}
}

// shouldRerank decides whether the expensive second scoring pass is
// worth its latency. When initial retrieval is already confident the
// marginal benefit is not.
func shouldRerank(topCombinedScore, skipThreshold float64) bool {
	return topCombinedScore <= skipThreshold
}

// rerank reorders the candidate head with a more precise lexical
// cross-scorer. Failures are absorbed: the input order is returned
// unchanged and the outcome marked unavailable.
func (p *QueryPipeline) rerank(question string, candidates []domain.CandidateChunk) ([]domain.CandidateChunk, rerankOutcome) {
	if len(candidates) == 0 {
		return candidates, rerankOutcome{Skipped: true}
	}
	if !shouldRerank(candidates[0].CombinedScore, p.opts.RerankSkipThreshold) {
		return candidates, rerankOutcome{Skipped: true}
	}

	reranked, err := crossScoreCandidates(question, candidates, p.opts.RerankTopN)
	if err != nil {
		return candidates, rerankOutcome{Unavailable: true}
	}
	return reranked, rerankOutcome{Ran: true}
}

// crossScoreCandidates scores the top-N head against the question and
// re-sorts it; the tail keeps its hybrid order. Scores land in
// RerankScore so the original combined score stays observable.
func crossScoreCandidates(question string, candidates []domain.CandidateChunk, topN int) ([]domain.CandidateChunk, error) {
	queryTokens := toTokenSet(question)
	if len(queryTokens) == 0 {
		return nil, domain.ErrRerankUnavailable
	}
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	head := make([]domain.CandidateChunk, topN)
	copy(head, candidates[:topN])

	minScore, maxScore := head[0].CombinedScore, head[0].CombinedScore
	for _, chunk := range head[1:] {
		if chunk.CombinedScore < minScore {
			minScore = chunk.CombinedScore
		}
		if chunk.CombinedScore > maxScore {
			maxScore = chunk.CombinedScore
		}
	}
	scoreRange := maxScore - minScore
	normalize := func(v float64) float64 {
		if scoreRange <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - minScore) / scoreRange
	}

	for i := range head {
		overlap := tokenOverlap(queryTokens, toTokenSet(head[i].Text))
		titleHit := metaTokenHit(queryTokens, head[i].Meta)
		score := 0.60*normalize(head[i].CombinedScore) + 0.30*overlap + 0.10*titleHit
		head[i].RerankScore = &score
	}

	sort.SliceStable(head, func(i, j int) bool {
		if *head[i].RerankScore != *head[j].RerankScore {
			return *head[i].RerankScore > *head[j].RerankScore
		}
		if head[i].Meta.Year != head[j].Meta.Year {
			return head[i].Meta.Year > head[j].Meta.Year
		}
		return head[i].ID < head[j].ID
	})

	if topN == len(candidates) {
		return head, nil
	}
	out := make([]domain.CandidateChunk, 0, len(candidates))
	out = append(out, head...)
	out = append(out, candidates[topN:]...)
	return out, nil
}

func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func metaTokenHit(query map[string]struct{}, meta domain.ChunkMeta) float64 {
	haystack := strings.ToLower(meta.Title + " " + meta.Section)
	if strings.TrimSpace(haystack) == "" {
		return 0
	}
	for token := range query {
		if token != "" && strings.Contains(haystack, token) {
			return 1
		}
	}
	return 0
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}
	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			if b.Len() > 0 {
				tokens = append(tokens, b.String())
				b.Reset()
			}
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
