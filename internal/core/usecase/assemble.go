package usecase

import (
	"strings"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
)

// assembleContext greedily accepts candidates in rank order while the
// cumulative token count stays within budget and stops at the first
// chunk that would overflow it; chunks are never split. If even the top
// chunk exceeds the budget its text is truncated to fit, so at least a
// partial grounding survives.
func assembleContext(candidates []domain.CandidateChunk, tokenBudget int) domain.AssembledContext {
	if len(candidates) == 0 || tokenBudget <= 0 {
		return domain.AssembledContext{}
	}

	assembled := domain.AssembledContext{Chunks: make([]domain.CandidateChunk, 0, len(candidates))}
	for _, chunk := range candidates {
		cost := estimateTokens(chunk.Text)
		if assembled.TotalTokens+cost > tokenBudget {
			break
		}
		assembled.Chunks = append(assembled.Chunks, chunk)
		assembled.TotalTokens += cost
	}
	if !assembled.Empty() {
		return assembled
	}

	truncated := candidates[0]
	truncated.Text = truncateToTokens(truncated.Text, tokenBudget)
	return domain.AssembledContext{
		Chunks:      []domain.CandidateChunk{truncated},
		TotalTokens: estimateTokens(truncated.Text),
		Truncated:   true,
	}
}

// estimateTokens approximates the completion model's token count as
// whitespace-separated words adjusted for subword splitting. It only
// needs to be consistent, not exact: the budget is set with headroom
// for the question and the response.
func estimateTokens(text string) int {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	// Long words typically split into several subword tokens.
	tokens := 0
	for _, w := range words {
		tokens += 1 + len(w)/8
	}
	return tokens
}

func truncateToTokens(text string, tokenBudget int) string {
	words := strings.Fields(text)
	kept := make([]string, 0, len(words))
	total := 0
	for _, w := range words {
		cost := 1 + len(w)/8
		if total+cost > tokenBudget {
			break
		}
		kept = append(kept, w)
		total += cost
	}
	return strings.Join(kept, " ")
}
