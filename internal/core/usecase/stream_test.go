package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
)

func collectEvents(t *testing.T, events <-chan domain.StreamEvent) []domain.StreamEvent {
	t.Helper()
	var out []domain.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, open := <-events:
			if !open {
				return out
			}
			out = append(out, event)
		case <-timeout:
			t.Fatalf("stream did not close, collected %d events", len(out))
		}
	}
}

func TestAnswerStreamEventOrder(t *testing.T) {
	index := &indexFake{
		dense:  []domain.CandidateChunk{chunkFixture("c1", 0.9, 0)},
		sparse: []domain.CandidateChunk{chunkFixture("c1", 0, 0.8)},
	}
	completer := &completerFake{streamFragments: []string{"Anneal at 58C ", "[cite:c1]."}}
	pipeline := newTestPipeline(&embedderFake{}, index, completer, newCacheFake(), nil)

	events, err := pipeline.AnswerStream(context.Background(), testQuery(t, "what annealing temperature for PCR primers"))
	if err != nil {
		t.Fatalf("AnswerStream() error = %v", err)
	}
	got := collectEvents(t, events)
	if len(got) < 3 {
		t.Fatalf("expected metadata, deltas and final, got %d events: %+v", len(got), got)
	}
	if got[0].Type != domain.EventMetadata {
		t.Fatalf("first event must be metadata, got %s", got[0].Type)
	}
	if len(got[0].Citations) == 0 || got[0].Citations[0] != "c1" {
		t.Fatalf("metadata must announce context chunk ids, got %v", got[0].Citations)
	}
	last := got[len(got)-1]
	if last.Type != domain.EventFinal {
		t.Fatalf("last event must be final, got %s", last.Type)
	}
	if last.Status == "" || last.Confidence == 0 {
		t.Fatalf("final event must carry status and confidence, got %+v", last)
	}
	if len(last.Citations) != 1 || last.Citations[0] != "c1" {
		t.Fatalf("final event must carry the validated citations, got %v", last.Citations)
	}

	var text strings.Builder
	for _, event := range got[1 : len(got)-1] {
		if event.Type != domain.EventDelta {
			t.Fatalf("middle events must all be deltas, got %s", event.Type)
		}
		text.WriteString(event.Delta)
	}
	if !strings.Contains(text.String(), "Anneal at 58C") {
		t.Fatalf("deltas do not reassemble the answer, got %q", text.String())
	}
	if strings.Contains(text.String(), "[cite:") {
		t.Fatalf("delivered text must not contain raw citation markers: %q", text.String())
	}
}

func TestAnswerStreamCancelBeforeDeltasReleasesProvider(t *testing.T) {
	index := &indexFake{
		dense:  []domain.CandidateChunk{chunkFixture("c1", 0.9, 0)},
		sparse: []domain.CandidateChunk{chunkFixture("c1", 0, 0.8)},
	}
	completer := &completerFake{streamBlocked: true, streamOpened: make(chan struct{})}
	pipeline := newTestPipeline(&embedderFake{}, index, completer, newCacheFake(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := pipeline.AnswerStream(ctx, testQuery(t, "what annealing temperature for PCR primers"))
	if err != nil {
		t.Fatalf("AnswerStream() error = %v", err)
	}

	// Wait until the provider stream is open and held, then disconnect
	// the caller.
	select {
	case <-completer.streamOpened:
	case <-time.After(5 * time.Second):
		t.Fatalf("completion stream never opened")
	}
	cancel()

	got := collectEvents(t, events)
	for _, event := range got {
		if event.Type == domain.EventDelta || event.Type == domain.EventFinal {
			t.Fatalf("no content may be delivered after cancellation, got %s", event.Type)
		}
	}
	if !completer.stream.wasClosed() {
		t.Fatalf("cancellation must close the in-flight completion stream")
	}
}

func TestAnswerStreamSynthesisFailureIsRetriedOnce(t *testing.T) {
	index := &indexFake{
		dense:  []domain.CandidateChunk{chunkFixture("c1", 0.9, 0)},
		sparse: []domain.CandidateChunk{chunkFixture("c1", 0, 0.8)},
	}
	completer := &completerFake{
		streamOpenFailures: 1,
		streamOpenErr:      errors.New("model busy"),
		streamFragments:    []string{"Anneal at 58C [cite:c1]."},
	}
	pipeline := newTestPipeline(&embedderFake{}, index, completer, newCacheFake(), nil)

	events, err := pipeline.AnswerStream(context.Background(), testQuery(t, "what annealing temperature for PCR primers"))
	if err != nil {
		t.Fatalf("AnswerStream() error = %v", err)
	}
	got := collectEvents(t, events)
	last := got[len(got)-1]
	if last.Type != domain.EventFinal {
		t.Fatalf("a single transient failure must still deliver an answer, last event = %+v", last)
	}
	if completer.calls != 2 {
		t.Fatalf("expected exactly one retry of the completion stream, calls = %d", completer.calls)
	}
	if !strings.Contains(joinDeltas(got), "Anneal at 58C") {
		t.Fatalf("retried stream lost the answer text: %q", joinDeltas(got))
	}
}

func TestAnswerStreamSynthesisPersistentFailureEmitsError(t *testing.T) {
	index := &indexFake{
		dense:  []domain.CandidateChunk{chunkFixture("c1", 0.9, 0)},
		sparse: []domain.CandidateChunk{chunkFixture("c1", 0, 0.8)},
	}
	completer := &completerFake{err: errors.New("model down")}
	pipeline := newTestPipeline(&embedderFake{}, index, completer, newCacheFake(), nil)

	events, err := pipeline.AnswerStream(context.Background(), testQuery(t, "what annealing temperature for PCR primers"))
	if err != nil {
		t.Fatalf("AnswerStream() error = %v", err)
	}
	got := collectEvents(t, events)
	last := got[len(got)-1]
	if last.Type != domain.EventError {
		t.Fatalf("persistent synthesis failure must end in an error event, got %+v", last)
	}
	if completer.calls != 2 {
		t.Fatalf("synthesis gets one retry and no more, calls = %d", completer.calls)
	}
}

func TestAnswerStreamRetrievalFailureEmitsError(t *testing.T) {
	index := &indexFake{denseErr: context.DeadlineExceeded, sparseErr: context.DeadlineExceeded}
	pipeline := newTestPipeline(&embedderFake{}, index, &completerFake{}, nil, nil)

	events, err := pipeline.AnswerStream(context.Background(), testQuery(t, "what annealing temperature for PCR primers"))
	if err != nil {
		t.Fatalf("AnswerStream() error = %v", err)
	}
	got := collectEvents(t, events)
	if len(got) != 1 || got[0].Type != domain.EventError {
		t.Fatalf("expected a single error event, got %+v", got)
	}
	if got[0].Err == "" {
		t.Fatalf("error event must carry a message")
	}
}

func TestAnswerStreamReplaysCachedAnswer(t *testing.T) {
	index := &indexFake{
		dense:  []domain.CandidateChunk{chunkFixture("c1", 0.9, 0)},
		sparse: []domain.CandidateChunk{chunkFixture("c1", 0, 0.8)},
	}
	completer := &completerFake{streamFragments: []string{"Anneal at 58C [cite:c1]."}}
	cache := newCacheFake()
	pipeline := newTestPipeline(&embedderFake{}, index, completer, cache, nil)

	query := testQuery(t, "what annealing temperature for PCR primers")
	first := collectEvents(t, mustStream(t, pipeline, query))
	second := collectEvents(t, mustStream(t, pipeline, query))

	if second[0].Type != domain.EventMetadata || !second[0].CacheHit {
		t.Fatalf("replayed stream must start with cache-hit metadata, got %+v", second[0])
	}
	if joinDeltas(first) != joinDeltas(second) {
		t.Fatalf("cached replay text differs: %q vs %q", joinDeltas(first), joinDeltas(second))
	}
	if completer.calls != 1 {
		t.Fatalf("cache hit must not re-open the completion stream, calls = %d", completer.calls)
	}
}

func TestSplitByRunes(t *testing.T) {
	if got := splitByRunes("", 4); got != nil {
		t.Fatalf("empty text must yield no parts, got %v", got)
	}
	parts := splitByRunes("αβγδε", 2)
	if len(parts) != 3 || parts[0] != "αβ" || parts[2] != "ε" {
		t.Fatalf("multibyte split broken: %v", parts)
	}
	if got := splitByRunes("short", 100); len(got) != 1 || got[0] != "short" {
		t.Fatalf("text under the chunk size must stay whole, got %v", got)
	}
}

func mustStream(t *testing.T, pipeline *QueryPipeline, query domain.Query) <-chan domain.StreamEvent {
	t.Helper()
	events, err := pipeline.AnswerStream(context.Background(), query)
	if err != nil {
		t.Fatalf("AnswerStream() error = %v", err)
	}
	return events
}

func joinDeltas(events []domain.StreamEvent) string {
	var b strings.Builder
	for _, event := range events {
		if event.Type == domain.EventDelta {
			b.WriteString(event.Delta)
		}
	}
	return b.String()
}
