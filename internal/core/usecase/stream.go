package usecase

import (
	"context"
	"errors"
	"io"
	"time"
	"unicode/utf8"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
)

// AnswerStream runs the pipeline in streaming mode. The returned
// channel carries exactly one metadata event, the answer deltas and one
// final event, or an error event in place of final. Cancelling ctx
// stops delivery, releases the in-flight completion call and closes the
// channel.
func (p *QueryPipeline) AnswerStream(ctx context.Context, query domain.Query) (<-chan domain.StreamEvent, error) {
	events := make(chan domain.StreamEvent, 8)
	go p.dispatch(ctx, query, events)
	return events, nil
}

func (p *QueryPipeline) dispatch(ctx context.Context, query domain.Query, events chan<- domain.StreamEvent) {
	defer close(events)
	start := time.Now()

	params := p.resolveParams(query)
	key := cacheKey(query, params)

	if cached, ok := p.readCachedAnswer(ctx, key); ok {
		answer := cached.Answer
		answer.CacheHit = true
		p.deliver(ctx, events, &answer, cached.ContextIDs)
		p.finish(ctx, query, &answer, start)
		return
	}

	run, err := p.runRetrieval(ctx, query, params)
	if err != nil {
		p.emitError(ctx, events, err)
		return
	}

	contextIDs := make([]string, 0, len(run.context.Chunks))
	for _, chunk := range run.context.Chunks {
		contextIDs = append(contextIDs, chunk.ID)
	}
	if !p.emit(ctx, events, domain.MetadataEvent(contextIDs, false)) {
		p.observer.StreamCancelled()
		return
	}

	raw, err := p.pullCompletion(ctx, query, run)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.observer.StreamCancelled()
		}
		p.emitError(ctx, events, err)
		return
	}

	answer := p.scoreAndFinalize(query, run, raw)
	p.writeCache(ctx, key, query, answer, run.context)

	if !p.deliverText(ctx, events, answer) {
		p.observer.StreamCancelled()
		return
	}
	p.finish(ctx, query, answer, start)
}

// pullCompletion consumes the provider stream into the answer buffer.
// Confidence gating runs on the full text, so tokens are accumulated
// here and re-delivered as deltas only after the gate passes; a caller
// disconnect mid-pull closes the provider stream and stops the pull.
// Synthesis gets one retry after a short backoff, same budget as the
// blocking path. The retry is invisible to the caller because no delta
// has been emitted yet.
func (p *QueryPipeline) pullCompletion(ctx context.Context, query domain.Query, run *retrievalRun) (string, error) {
	synthCtx, cancel := context.WithTimeout(ctx, p.opts.SynthesisTimeout)
	defer cancel()

	prompt := buildSynthesisPrompt(query.Text, run.context)
	text, err := p.pullOnce(synthCtx, prompt)
	if err == nil {
		return text, nil
	}
	if synthCtx.Err() != nil || !errors.Is(err, domain.ErrSynthesisFailed) {
		return "", err
	}

	select {
	case <-time.After(p.opts.SynthesisRetryBackoff):
	case <-synthCtx.Done():
		return "", synthCtx.Err()
	}
	return p.pullOnce(synthCtx, prompt)
}

func (p *QueryPipeline) pullOnce(synthCtx context.Context, prompt string) (string, error) {
	stream, err := p.completer.CompleteStream(synthCtx, prompt)
	if err != nil {
		return "", domain.WrapError(domain.ErrSynthesisFailed, "open completion stream", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	var buffer []byte
	for {
		if err := synthCtx.Err(); err != nil {
			return "", err
		}
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return string(buffer), nil
		}
		if err != nil {
			if ctxErr := synthCtx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", domain.WrapError(domain.ErrSynthesisFailed, "read completion stream", err)
		}
		buffer = append(buffer, fragment...)
	}
}

// deliver replays a finished answer (cache hit path) as a full event
// sequence.
func (p *QueryPipeline) deliver(ctx context.Context, events chan<- domain.StreamEvent, answer *domain.Answer, contextIDs []string) {
	metadata := domain.MetadataEvent(contextIDs, answer.CacheHit)
	if len(answer.Citations) > 0 {
		metadata.Citations = answer.Citations
	}
	if !p.emit(ctx, events, metadata) {
		p.observer.StreamCancelled()
		return
	}
	if !p.deliverText(ctx, events, answer) {
		p.observer.StreamCancelled()
	}
}

// deliverText streams the answer text as delta events followed by the
// final event. Returns false when the caller went away mid-delivery.
func (p *QueryPipeline) deliverText(ctx context.Context, events chan<- domain.StreamEvent, answer *domain.Answer) bool {
	for _, part := range splitByRunes(answer.Text, p.opts.StreamDeltaChars) {
		if part == "" {
			continue
		}
		if !p.emit(ctx, events, domain.DeltaEvent(part)) {
			return false
		}
	}
	return p.emit(ctx, events, domain.FinalEvent(answer.Confidence, answer.Status, answer.Citations))
}

func (p *QueryPipeline) emit(ctx context.Context, events chan<- domain.StreamEvent, event domain.StreamEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *QueryPipeline) emitError(ctx context.Context, events chan<- domain.StreamEvent, err error) {
	select {
	case events <- domain.ErrorEvent(err):
	case <-ctx.Done():
	}
}

func splitByRunes(text string, chunkChars int) []string {
	if text == "" {
		return nil
	}
	if chunkChars <= 0 || utf8.RuneCountInString(text) <= chunkChars {
		return []string{text}
	}
	runes := []rune(text)
	parts := make([]string, 0, len(runes)/chunkChars+1)
	for start := 0; start < len(runes); start += chunkChars {
		end := start + chunkChars
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}
