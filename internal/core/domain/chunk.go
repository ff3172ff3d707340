package domain

// ChunkMeta carries the bibliographic payload stored alongside each
// indexed chunk.
type ChunkMeta struct {
	Title   string `json:"title,omitempty"`
	Author  string `json:"author,omitempty"`
	Year    int    `json:"year,omitempty"`
	DocType string `json:"doc_type,omitempty"`
	Section string `json:"section,omitempty"`
}

// CandidateChunk is one retrieved passage with its retrieval sub-scores.
// It is produced by the retriever, optionally enriched with a rerank
// score, and read-only for every later pipeline stage.
type CandidateChunk struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	Text          string    `json:"text"`
	VectorScore   float64   `json:"vector_score"`
	KeywordScore  float64   `json:"keyword_score"`
	CombinedScore float64   `json:"combined_score"`
	RerankScore   *float64  `json:"rerank_score,omitempty"`
	Meta          ChunkMeta `json:"meta"`
}

// EffectiveScore is the rerank score when reranking ran, else the
// combined hybrid score.
func (c CandidateChunk) EffectiveScore() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.CombinedScore
}

// AssembledContext is the token-budgeted slice of candidates handed to
// the synthesizer, ordered by descending effective score.
type AssembledContext struct {
	Chunks      []CandidateChunk `json:"chunks"`
	TotalTokens int              `json:"total_tokens"`
	Truncated   bool             `json:"truncated"`
}

func (a AssembledContext) Empty() bool {
	return len(a.Chunks) == 0
}

// Contains reports whether the context holds a chunk with the given id.
func (a AssembledContext) Contains(chunkID string) bool {
	for _, c := range a.Chunks {
		if c.ID == chunkID {
			return true
		}
	}
	return false
}
