package usecase

import "github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"

// Confidence gate thresholds. Boundaries are exact: a confidence of
// exactly 0.45 is low_confidence, exactly 0.7 is answered.
const (
	rejectThreshold        = 0.45
	lowConfidenceThreshold = 0.7
)

// Component weights. Citation coverage dominates: an answer with no
// valid citations cannot be trusted however fluent the prose.
const (
	weightCitationCoverage = 0.45
	weightRetrievalScore   = 0.30
	weightRerank           = 0.10
	weightModelSignal      = 0.15

	neutralModelSignal = 0.5
)

type confidenceInputs struct {
	BestRetrievalScore float64
	Rerank             rerankOutcome
	CitationCoverage   float64
	// ModelSignal is the provider-reported confidence when one exists;
	// nil substitutes a neutral value.
	ModelSignal *float64
}

// confidenceScore blends retrieval quality, rerank availability,
// citation coverage and any model-reported signal into one scalar.
func confidenceScore(in confidenceInputs) float64 {
	rerankComponent := 0.0
	if in.Rerank.Ran || in.Rerank.Skipped {
		// A skip means initial retrieval was already confident; only an
		// unavailable reranker loses this component.
		rerankComponent = 1.0
	}

	signal := neutralModelSignal
	if in.ModelSignal != nil {
		signal = clamp01(*in.ModelSignal)
	}

	score := weightCitationCoverage*clamp01(in.CitationCoverage) +
		weightRetrievalScore*clamp01(in.BestRetrievalScore) +
		weightRerank*rerankComponent +
		weightModelSignal*signal
	return clamp01(score)
}

func statusFor(confidence float64) domain.AnswerStatus {
	switch {
	case confidence < rejectThreshold:
		return domain.StatusRejected
	case confidence < lowConfidenceThreshold:
		return domain.StatusLowConfidence
	default:
		return domain.StatusAnswered
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
