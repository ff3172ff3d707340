package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/ports"
)

// RankingProfile overrides retrieval parameters for a named profile.
type RankingProfile struct {
	Alpha         float64 `yaml:"alpha"`
	Limit         int     `yaml:"limit"`
	RerankEnabled bool    `yaml:"rerank_enabled"`
}

type Options struct {
	DefaultAlpha        float64
	ShortQueryAlpha     float64
	ShortQueryMaxTokens int
	ResultLimit         int
	HybridCandidates    int
	RerankSkipThreshold float64
	RerankTopN          int
	ContextTokenBudget  int
	StreamDeltaChars    int

	FactualTTL time.Duration
	RecencyTTL time.Duration

	RetrievalTimeout      time.Duration
	SynthesisTimeout      time.Duration
	SynthesisRetryBackoff time.Duration

	Profiles map[string]RankingProfile
}

func DefaultOptions() Options {
	return Options{
		DefaultAlpha:          0.7,
		ShortQueryAlpha:       0.8,
		ShortQueryMaxTokens:   3,
		ResultLimit:           10,
		HybridCandidates:      30,
		RerankSkipThreshold:   0.8,
		RerankTopN:            20,
		ContextTokenBudget:    2500,
		StreamDeltaChars:      120,
		FactualTTL:            24 * time.Hour,
		RecencyTTL:            15 * time.Minute,
		RetrievalTimeout:      5 * time.Second,
		SynthesisTimeout:      45 * time.Second,
		SynthesisRetryBackoff: 250 * time.Millisecond,
	}
}

func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.DefaultAlpha <= 0 || o.DefaultAlpha > 1 {
		o.DefaultAlpha = def.DefaultAlpha
	}
	if o.ShortQueryAlpha <= 0 || o.ShortQueryAlpha > 1 {
		o.ShortQueryAlpha = def.ShortQueryAlpha
	}
	if o.ShortQueryMaxTokens <= 0 {
		o.ShortQueryMaxTokens = def.ShortQueryMaxTokens
	}
	if o.ResultLimit <= 0 {
		o.ResultLimit = def.ResultLimit
	}
	if o.HybridCandidates < o.ResultLimit {
		o.HybridCandidates = def.HybridCandidates
	}
	if o.RerankSkipThreshold <= 0 {
		o.RerankSkipThreshold = def.RerankSkipThreshold
	}
	if o.RerankTopN <= 0 {
		o.RerankTopN = def.RerankTopN
	}
	if o.ContextTokenBudget <= 0 {
		o.ContextTokenBudget = def.ContextTokenBudget
	}
	if o.StreamDeltaChars <= 0 {
		o.StreamDeltaChars = def.StreamDeltaChars
	}
	if o.FactualTTL <= 0 {
		o.FactualTTL = def.FactualTTL
	}
	if o.RecencyTTL <= 0 {
		o.RecencyTTL = def.RecencyTTL
	}
	if o.RetrievalTimeout <= 0 {
		o.RetrievalTimeout = def.RetrievalTimeout
	}
	if o.SynthesisTimeout <= 0 {
		o.SynthesisTimeout = def.SynthesisTimeout
	}
	if o.SynthesisRetryBackoff <= 0 {
		o.SynthesisRetryBackoff = def.SynthesisRetryBackoff
	}
	return o
}

// Observer receives pipeline telemetry. Implementations must be cheap;
// the pipeline calls it inline.
type Observer interface {
	QueryFinished(status domain.AnswerStatus, cacheHit bool, duration time.Duration)
	StageFinished(stage string, duration time.Duration)
	RerankOutcome(outcome string)
	StreamCancelled()
}

type noopObserver struct{}

func (noopObserver) QueryFinished(domain.AnswerStatus, bool, time.Duration) {}
func (noopObserver) StageFinished(string, time.Duration)                   {}
func (noopObserver) RerankOutcome(string)                                  {}
func (noopObserver) StreamCancelled()                                      {}

// QueryPipeline orchestrates one query end to end: cache read, hybrid
// retrieval, conditional rerank, context assembly, synthesis, confidence
// gating, cache write and event publication. Executions share no mutable
// state beyond the injected cache, so concurrent queries are independent.
type QueryPipeline struct {
	embedder  ports.Embedder
	index     ports.SearchIndex
	completer ports.Completer
	cache     ports.AnswerCache
	publisher ports.EventPublisher
	observer  Observer
	opts      Options
}

func NewQueryPipeline(
	embedder ports.Embedder,
	index ports.SearchIndex,
	completer ports.Completer,
	cache ports.AnswerCache,
	publisher ports.EventPublisher,
	observer Observer,
	opts Options,
) *QueryPipeline {
	if observer == nil {
		observer = noopObserver{}
	}
	return &QueryPipeline{
		embedder:  embedder,
		index:     index,
		completer: completer,
		cache:     cache,
		publisher: publisher,
		observer:  observer,
		opts:      opts.normalize(),
	}
}

// cacheEnvelope is the cached form of a finished answer together with
// the chunk ids that grounded it, so streamed cache hits can replay the
// metadata event.
type cacheEnvelope struct {
	Answer     domain.Answer `json:"answer"`
	ContextIDs []string      `json:"context_ids"`
}

func (p *QueryPipeline) Answer(ctx context.Context, query domain.Query) (*domain.Answer, error) {
	start := time.Now()

	params := p.resolveParams(query)
	key := cacheKey(query, params)

	if cached, ok := p.readCachedAnswer(ctx, key); ok {
		answer := cached.Answer
		answer.CacheHit = true
		p.finish(ctx, query, &answer, start)
		return &answer, nil
	}

	run, err := p.runRetrieval(ctx, query, params)
	if err != nil {
		return nil, err
	}

	synthCtx, cancel := context.WithTimeout(ctx, p.opts.SynthesisTimeout)
	defer cancel()

	synthStart := time.Now()
	raw, err := p.completer.Complete(synthCtx, buildSynthesisPrompt(query.Text, run.context))
	if err != nil {
		return nil, domain.WrapError(domain.ErrSynthesisFailed, "complete", err)
	}
	p.observer.StageFinished("synthesize", time.Since(synthStart))

	answer := p.scoreAndFinalize(query, run, raw)
	p.writeCache(ctx, key, query, answer, run.context)
	p.finish(ctx, query, answer, start)
	return answer, nil
}

// retrievalRun carries everything the scoring and delivery stages need
// from the retrieval half of the pipeline.
type retrievalRun struct {
	candidates []domain.CandidateChunk
	rerank     rerankOutcome
	context    domain.AssembledContext
	bestScore  float64
}

func (p *QueryPipeline) runRetrieval(ctx context.Context, query domain.Query, params queryParams) (*retrievalRun, error) {
	retrievalCtx, cancel := context.WithTimeout(ctx, p.opts.RetrievalTimeout)
	defer cancel()

	candidates, fromCache := p.readCachedCandidates(ctx, params.candidateKey)
	if !fromCache {
		stageStart := time.Now()
		retrieved, err := p.retrieve(retrievalCtx, query, params)
		if err != nil {
			return nil, err
		}
		candidates = retrieved
		p.observer.StageFinished("retrieve", time.Since(stageStart))
		p.writeCachedCandidates(ctx, params.candidateKey, query, candidates)
	}

	best := 0.0
	if len(candidates) > 0 {
		best = candidates[0].CombinedScore
	}

	outcome := rerankOutcome{Skipped: true}
	if params.rerankEnabled {
		stageStart := time.Now()
		candidates, outcome = p.rerank(query.Text, candidates)
		p.observer.StageFinished("rerank", time.Since(stageStart))
	}
	p.observer.RerankOutcome(outcome.String())

	assembled := assembleContext(trimCandidates(candidates, params.limit), p.opts.ContextTokenBudget)

	return &retrievalRun{
		candidates: candidates,
		rerank:     outcome,
		context:    assembled,
		bestScore:  best,
	}, nil
}

func (p *QueryPipeline) scoreAndFinalize(query domain.Query, run *retrievalRun, rawAnswer string) *domain.Answer {
	citations := validCitations(parseCitations(rawAnswer), run.context)
	coverage := citationCoverage(rawAnswer, run.context)

	confidence := confidenceScore(confidenceInputs{
		BestRetrievalScore: run.bestScore,
		Rerank:             run.rerank,
		CitationCoverage:   coverage,
	})
	status := statusFor(confidence)

	// An answer grounded on context but backed by zero valid citations
	// cannot be trusted, however fluent.
	if !run.context.Empty() && len(citations) == 0 {
		status = domain.StatusRejected
	}

	text := stripCitationMarkers(rawAnswer)
	if status == domain.StatusRejected {
		text = domain.RejectedFallbackText
		citations = nil
	}

	return &domain.Answer{
		ID:         uuid.NewString(),
		Text:       text,
		Citations:  citations,
		Confidence: confidence,
		Status:     status,
		ModelID:    p.completer.ModelID(),
	}
}

func (p *QueryPipeline) readCachedAnswer(ctx context.Context, key string) (*cacheEnvelope, bool) {
	if p.cache == nil {
		return nil, false
	}
	raw, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("cache_read_failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var envelope cacheEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		slog.Warn("cache_entry_corrupt", "error", err)
		return nil, false
	}
	return &envelope, true
}

func (p *QueryPipeline) writeCache(ctx context.Context, key string, query domain.Query, answer *domain.Answer, assembled domain.AssembledContext) {
	if p.cache == nil {
		return
	}
	contextIDs := make([]string, 0, len(assembled.Chunks))
	for _, c := range assembled.Chunks {
		contextIDs = append(contextIDs, c.ID)
	}
	payload, err := json.Marshal(cacheEnvelope{Answer: *answer, ContextIDs: contextIDs})
	if err != nil {
		return
	}
	ttl := ttlForClass(classifyQuery(query.Text), p.opts)
	if err := p.cache.Put(ctx, key, payload, ttl); err != nil {
		slog.Warn("cache_write_failed", "error", err)
	}
}

func (p *QueryPipeline) readCachedCandidates(ctx context.Context, key string) ([]domain.CandidateChunk, bool) {
	if p.cache == nil {
		return nil, false
	}
	raw, ok, err := p.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var candidates []domain.CandidateChunk
	if err := json.Unmarshal(raw, &candidates); err != nil {
		return nil, false
	}
	return candidates, true
}

func (p *QueryPipeline) writeCachedCandidates(ctx context.Context, key string, query domain.Query, candidates []domain.CandidateChunk) {
	if p.cache == nil {
		return
	}
	payload, err := json.Marshal(candidates)
	if err != nil {
		return
	}
	ttl := ttlForClass(classifyQuery(query.Text), p.opts)
	if err := p.cache.Put(ctx, key, payload, ttl); err != nil {
		slog.Warn("candidate_cache_write_failed", "error", err)
	}
}

func (p *QueryPipeline) finish(ctx context.Context, query domain.Query, answer *domain.Answer, start time.Time) {
	duration := time.Since(start)
	p.observer.QueryFinished(answer.Status, answer.CacheHit, duration)

	if p.publisher == nil {
		return
	}
	event := domain.QueryAnsweredEvent{
		AnswerID:   answer.ID,
		SessionID:  query.SessionID,
		Status:     answer.Status,
		Confidence: answer.Confidence,
		CacheHit:   answer.CacheHit,
		DurationMS: duration.Milliseconds(),
	}
	if err := p.publisher.PublishQueryAnswered(ctx, event); err != nil {
		slog.Warn("publish_query_answered_failed", "answer_id", answer.ID, "error", err)
	}
}

// queryParams are the retrieval parameters resolved from options plus
// the optional ranking profile.
type queryParams struct {
	alpha         float64
	limit         int
	rerankEnabled bool
	candidateKey  string
}

func (p *QueryPipeline) resolveParams(query domain.Query) queryParams {
	params := queryParams{
		alpha:         alphaFor(query, p.opts),
		limit:         p.opts.ResultLimit,
		rerankEnabled: true,
	}
	if profile, ok := p.opts.Profiles[query.Profile]; ok && query.Profile != "" {
		if profile.Alpha > 0 && profile.Alpha <= 1 {
			params.alpha = profile.Alpha
		}
		if profile.Limit > 0 {
			params.limit = profile.Limit
		}
		params.rerankEnabled = profile.RerankEnabled
	}
	params.candidateKey = candidateCacheKey(query, params)
	return params
}

var _ ports.QueryService = (*QueryPipeline)(nil)
