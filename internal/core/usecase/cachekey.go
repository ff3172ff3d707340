package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
)

// cacheKey derives the content-addressed cache key for a query. It is a
// pure function of the normalized inputs so keys are stable across
// process restarts.
func cacheKey(query domain.Query, params queryParams) string {
	material := fmt.Sprintf("v1|%s|%s|%s|%.4f|%t",
		query.Text,
		query.DocType,
		query.Profile,
		params.alpha,
		params.rerankEnabled,
	)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

// candidateCacheKey keys the intermediate retrieval result; it omits
// the rerank flag because the raw candidate set does not depend on it.
func candidateCacheKey(query domain.Query, params queryParams) string {
	material := fmt.Sprintf("v1|cand|%s|%s|%.4f|%d",
		query.Text,
		query.DocType,
		params.alpha,
		params.limit,
	)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

type queryClass string

const (
	classFactual queryClass = "factual"
	classRecency queryClass = "recency"
)

// recencyTokens mark questions about evolving lab work; answers to
// those go stale fast and get the short TTL.
var recencyTokens = map[string]struct{}{
	"recent":    {},
	"recently":  {},
	"latest":    {},
	"newest":    {},
	"current":   {},
	"currently": {},
	"today":     {},
	"now":       {},
	"ongoing":   {},
	"update":    {},
	"updated":   {},
	"new":       {},
}

// classifyQuery sorts a normalized question into a TTL class. Mentions
// of recency words or of a year in the recent past flag it as
// time-sensitive; everything else is treated as factual/definitional.
func classifyQuery(normalizedText string) queryClass {
	currentYear := time.Now().Year()
	for _, token := range splitAlphaNumLower(normalizedText) {
		if _, ok := recencyTokens[token]; ok {
			return classRecency
		}
		if len(token) == 4 {
			if year, err := strconv.Atoi(token); err == nil && year >= currentYear-1 && year <= currentYear+1 {
				return classRecency
			}
		}
	}
	return classFactual
}

func ttlForClass(class queryClass, opts Options) time.Duration {
	if class == classRecency {
		return opts.RecencyTTL
	}
	return opts.FactualTTL
}
