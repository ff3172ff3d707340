package usecase

import (
	"fmt"
	"testing"
	"time"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
)

func TestCacheKeyStableAndSensitive(t *testing.T) {
	base := testQuery(t, "what annealing temperature for PCR primers")
	params := queryParams{alpha: 0.7, limit: 10, rerankEnabled: true}

	if cacheKey(base, params) != cacheKey(base, params) {
		t.Fatalf("cache key must be deterministic")
	}

	variants := []struct {
		name   string
		query  domain.Query
		params queryParams
	}{
		{name: "different text", query: testQuery(t, "what extension time for PCR"), params: params},
		{name: "different doc type", query: mustQuery(t, base.Text, "protocol", "", false), params: params},
		{name: "different profile", query: mustQuery(t, base.Text, "", "troubleshooting", false), params: params},
		{name: "different alpha", query: base, params: queryParams{alpha: 0.8, limit: 10, rerankEnabled: true}},
		{name: "rerank toggled", query: base, params: queryParams{alpha: 0.7, limit: 10, rerankEnabled: false}},
	}
	baseKey := cacheKey(base, params)
	for _, tc := range variants {
		if cacheKey(tc.query, tc.params) == baseKey {
			t.Fatalf("%s must change the cache key", tc.name)
		}
	}
}

func TestCacheKeyNormalizationFolding(t *testing.T) {
	a := testQuery(t, "What is   RNase contamination")
	b := testQuery(t, "what is rnase contamination")
	params := queryParams{alpha: 0.7}
	if cacheKey(a, params) != cacheKey(b, params) {
		t.Fatalf("case and whitespace variants must share one key")
	}
}

func TestCandidateCacheKeyIgnoresRerankFlag(t *testing.T) {
	query := testQuery(t, "what annealing temperature for PCR primers")
	on := queryParams{alpha: 0.7, limit: 10, rerankEnabled: true}
	off := queryParams{alpha: 0.7, limit: 10, rerankEnabled: false}
	if candidateCacheKey(query, on) != candidateCacheKey(query, off) {
		t.Fatalf("candidate key must not depend on the rerank flag")
	}
	if candidateCacheKey(query, on) == cacheKey(query, on) {
		t.Fatalf("candidate and answer keys must not collide")
	}
}

func TestClassifyQuery(t *testing.T) {
	thisYear := time.Now().Year()
	cases := []struct {
		text string
		want queryClass
	}{
		{"what is the annealing temperature for taq", classFactual},
		{"latest qpcr results for the knockdown line", classRecency},
		{"any recent updates on the sequencing run", classRecency},
		{fmt.Sprintf("papers from %d on crispr screens", thisYear), classRecency},
		{fmt.Sprintf("protocol published in %d", thisYear-10), classFactual},
		{"order 1234 of the reagent catalog", classFactual},
	}
	for _, tc := range cases {
		if got := classifyQuery(tc.text); got != tc.want {
			t.Fatalf("classifyQuery(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestTTLForClass(t *testing.T) {
	opts := DefaultOptions()
	if got := ttlForClass(classFactual, opts); got != opts.FactualTTL {
		t.Fatalf("factual TTL = %v, want %v", got, opts.FactualTTL)
	}
	if got := ttlForClass(classRecency, opts); got != opts.RecencyTTL {
		t.Fatalf("recency TTL = %v, want %v", got, opts.RecencyTTL)
	}
	if opts.RecencyTTL >= opts.FactualTTL {
		t.Fatalf("recency TTL must be shorter than factual TTL")
	}
}

func mustQuery(t *testing.T, text, docType, profile string, stream bool) domain.Query {
	t.Helper()
	query, err := domain.NewQuery(text, docType, profile, "session-1", stream)
	if err != nil {
		t.Fatalf("NewQuery() error = %v", err)
	}
	return query
}
